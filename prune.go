package confdiff

type pruneMode uint8

const (
	// pruneStrict drops nulls and every empty tree or sequence.
	pruneStrict pruneMode = iota
	// pruneKeepMarkers drops nulls and containers emptied by pruning, but
	// keeps trees and sequences that were empty in the input. An explicitly
	// empty value is a removal marker for Intersect.
	pruneKeepMarkers
)

// Prune returns a copy of v without null fields, empty trees or empty
// sequences. Records of a sequence are pruned individually and dropped when
// nothing is left of them. The root itself is never dropped: an all-empty
// tree prunes to an empty tree.
func Prune(v Value) Value {
	pruned, _ := prune(v, pruneStrict)
	return pruned
}

// prune reports the pruned value and whether it should be kept by its parent.
func prune(v Value, mode pruneMode) (Value, bool) {
	switch v.kind {
	case KindNull:
		return Value{}, false
	case KindScalar:
		return v, true
	case KindTree:
		if len(v.tree) == 0 {
			return NewTree(nil), mode == pruneKeepMarkers
		}
		out := make(Tree, len(v.tree))
		for key, child := range v.tree {
			if pruned, keep := prune(child, mode); keep {
				out[key] = pruned
			}
		}
		return NewTree(out), len(out) > 0
	case KindSequence:
		if len(v.seq) == 0 {
			return NewSequence(), mode == pruneKeepMarkers
		}
		items := make([]Value, 0, len(v.seq))
		for _, item := range v.seq {
			if pruned, keep := prune(item, mode); keep {
				items = append(items, pruned)
			}
		}
		return NewSequence(items...), len(items) > 0
	}
	return Value{}, false
}
