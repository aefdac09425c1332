package confdiff

import "sort"

// PathEntry is one leaf of a flattened delta.
type PathEntry struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Value Value  `json:"value"`
}

// Paths flattens v into leaf entries sorted by path. Records of identified
// lists are addressed by selector, e.g. "vlan[vlan_id=10].name"; records of
// a root sequence start with the selector, and an empty root sequence has no
// entries. Scalar sets and unidentified
// record lists are reported whole.
func Paths(v Value, keys KeySpec) []PathEntry {
	if v.kind == KindSequence {
		if len(v.seq) == 0 {
			return []PathEntry{}
		}
		v = NewTree(Tree{rootField: v})
	}
	n := &normalizer{keys: keys}
	entries := n.paths(v, 0, "")
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	if entries == nil {
		entries = []PathEntry{}
	}
	return entries
}

func (n *normalizer) paths(v Value, depth int, prefix string) []PathEntry {
	switch v.kind {
	case KindNull:
		return nil
	case KindTree:
		if len(v.tree) == 0 && prefix != "" {
			return []PathEntry{{Path: prefix, Kind: v.kind.String(), Value: v}}
		}
		var entries []PathEntry
		for _, key := range v.tree.Keys() {
			entries = append(entries, n.paths(v.tree[key], depth+1, joinPath(prefix, key))...)
		}
		return entries
	case KindSequence:
		keys, ok := n.identify(v, depth)
		if !ok {
			return []PathEntry{{Path: prefix, Kind: v.kind.String(), Value: v}}
		}
		var entries []PathEntry
		for i, record := range v.seq {
			entries = append(entries, n.paths(record, depth+1, joinPath(prefix, "["+keys[i].String()+"]"))...)
		}
		return entries
	default:
		return []PathEntry{{Path: prefix, Kind: v.kind.String(), Value: v}}
	}
}
