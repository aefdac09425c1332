package confdiff

import "fmt"

// RemovalCandidate is a record of a removal delta offered to a RemovalFilter.
type RemovalCandidate struct {
	// Path locates the record, e.g. "vlan[vlan_id=10]" or "[vlan_id=10]" for
	// records of a root sequence.
	Path string
	// Depth is the depth of the record list, the depth its identity fields
	// are declared at.
	Depth int
	Key   IdentityKey
	// Record is the record's removal delta, identity and n_keys included.
	Record Value
}

// RemovalFilter decides whether a record must be kept out of removal deltas.
type RemovalFilter interface {
	Protect(RemovalCandidate) (bool, error)
}

// RemovalFilterFunc adapts a function to RemovalFilter.
type RemovalFilterFunc func(RemovalCandidate) (bool, error)

// Protect implements RemovalFilter.
func (f RemovalFilterFunc) Protect(candidate RemovalCandidate) (bool, error) {
	if f == nil {
		return false, nil
	}
	return f(candidate)
}

// removalFilterer drops the records filter protects from a removal delta.
// Nested records are only offered when their parent record survives.
type removalFilterer struct {
	filter    RemovalFilter
	protected int
}

func (f *removalFilterer) apply(node *Normalized, depth int, path string) (*Normalized, error) {
	if node == nil {
		return nil, nil
	}
	switch node.kind {
	case nodeTree:
		out := newTreeNode()
		for key, child := range node.fields {
			filtered, err := f.apply(child, depth+1, joinPath(path, key))
			if err != nil {
				return nil, err
			}
			if filtered != nil {
				out.fields[key] = filtered
			}
		}
		if len(out.fields) == 0 {
			return nil, nil
		}
		return out, nil
	case nodeIndex:
		out := newIndexNode()
		var failure error
		node.index.each(func(entry *indexEntry) {
			if failure != nil {
				return
			}
			recordPath := joinPath(path, "["+entry.key.String()+"]")
			candidate := RemovalCandidate{
				Path:   recordPath,
				Depth:  depth,
				Key:    entry.key,
				Record: entry.denormalize(),
			}
			protect, err := f.filter.Protect(candidate)
			if err != nil {
				failure = fmt.Errorf("confdiff: removal filter %s: %w", recordPath, err)
				return
			}
			if protect {
				f.protected++
				return
			}
			record, err := f.apply(entry.record, depth+1, recordPath)
			if err != nil {
				failure = err
				return
			}
			out.index.put(&indexEntry{key: entry.key, record: record})
		})
		if failure != nil {
			return nil, failure
		}
		if out.size() == 0 {
			return nil, nil
		}
		return out, nil
	default:
		return node, nil
	}
}
