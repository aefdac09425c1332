package confdiff

// NKeysField is the bookkeeping field attached to every record of a removal
// delta. A value of 1 asks for the whole record to be deleted in one step;
// larger values count the fields desired still specifies for the record.
const NKeysField = "n_keys"

// intersectTree computes the removal delta of two trees. Only fields present
// in both current and desired are candidates. When cascade is set, desired
// has asked for the enclosing record to disappear and desired is current
// itself.
func intersectTree(current, desired *Normalized, cascade bool) *Normalized {
	out := newTreeNode()
	for key, have := range current.fields {
		want, ok := desired.fields[key]
		if !ok || want.kind == nodeNull {
			continue
		}
		if sub := intersectField(have, want, cascade); sub != nil {
			out.fields[key] = sub
		}
	}
	if len(out.fields) == 0 {
		return nil
	}
	return out
}

func intersectField(have, want *Normalized, cascade bool) *Normalized {
	switch have.kind {
	case nodeScalar:
		return have
	case nodeSet:
		if len(have.set) == 0 {
			return nil
		}
		if want.isEmpty() {
			return newSetNode(distinct(have.set))
		}
		if want.kind != nodeSet {
			return nil
		}
		common := setIntersection(have.set, want.set)
		if len(common) == 0 {
			return nil
		}
		return newSetNode(common)
	case nodeTree:
		target, erase := want, cascade
		if want.isEmpty() {
			target, erase = have, true
		} else if want.kind != nodeTree {
			return nil
		}
		sub := intersectTree(have, target, erase)
		if sub == nil {
			return nil
		}
		nKeys := target.size()
		if erase {
			nKeys = 1
		}
		sub.fields[NKeysField] = scalarNode(Int(int64(nKeys)))
		return sub
	case nodeIndex:
		target, erase := want, cascade
		if want.isEmpty() {
			target, erase = have, true
		} else if want.kind != nodeIndex {
			return nil
		}
		out := newIndexNode()
		have.index.each(func(entry *indexEntry) {
			peer, ok := target.index.get(entry.key)
			if !ok {
				return
			}
			if sub := intersectField(entry.record, peer.record, erase); sub != nil {
				out.index.put(&indexEntry{key: entry.key, record: sub})
			}
		})
		if out.size() == 0 {
			return nil
		}
		return out
	}
	return nil
}

// eraseNode is the removal delta deleting every currently-set part of have.
func eraseNode(have *Normalized) *Normalized {
	if have.isEmpty() {
		return nil
	}
	return intersectField(have, have, true)
}

// eraseRoot is eraseNode for a root tree, which never carries n_keys.
func eraseRoot(root *Normalized) *Normalized {
	if root.isEmpty() || root.kind != nodeTree {
		return nil
	}
	return intersectTree(root, root, true)
}

// complementer computes removal deltas with replace semantics: whatever
// current holds that desired no longer names is removed.
type complementer struct {
	keys            KeySpec
	includeUnlisted bool
}

// tree compares a tree at depth. identity lists the fields that name the
// tree and are echoed back whenever anything else is removed. top marks the
// resource level, where entries desired does not list are left alone unless
// includeUnlisted is set.
func (c complementer) tree(have, want *Normalized, depth int, identity []string, top bool) *Normalized {
	out := newTreeNode()
	for key, child := range have.fields {
		peer, ok := want.fields[key]
		var sub *Normalized
		switch {
		case !ok || peer.kind == nodeNull:
			if top && !c.includeUnlisted {
				continue
			}
			sub = eraseNode(child)
		default:
			sub = c.field(child, peer, depth+1, top)
		}
		if sub != nil {
			out.fields[key] = sub
		}
	}
	if len(out.fields) == 0 {
		return nil
	}
	for _, field := range identity {
		if value, ok := have.fields[field]; ok && value.kind == nodeScalar {
			out.fields[field] = value
		}
	}
	return out
}

func (c complementer) field(have, want *Normalized, depth int, top bool) *Normalized {
	switch have.kind {
	case nodeScalar:
		return nil
	case nodeSet:
		if want.kind != nodeSet || len(want.set) == 0 {
			return eraseNode(have)
		}
		removed := setDifference(have.set, want.set)
		if len(removed) == 0 {
			return nil
		}
		return newSetNode(removed)
	case nodeTree:
		if want.kind != nodeTree || want.size() == 0 {
			return eraseNode(have)
		}
		sub := c.tree(have, want, depth, c.keys.FieldsAt(depth), false)
		if sub == nil {
			return nil
		}
		sub.fields[NKeysField] = scalarNode(Int(int64(want.size())))
		return sub
	case nodeIndex:
		if want.kind != nodeIndex || want.size() == 0 {
			return eraseNode(have)
		}
		out := newIndexNode()
		have.index.each(func(entry *indexEntry) {
			peer, ok := want.index.get(entry.key)
			var sub *Normalized
			switch {
			case !ok:
				if top && !c.includeUnlisted {
					return
				}
				sub = eraseNode(entry.record)
			case entry.record.kind == nodeTree && peer.record.kind == nodeTree:
				sub = c.tree(entry.record, peer.record, depth+1, nil, false)
				if sub != nil {
					sub.fields[NKeysField] = scalarNode(Int(int64(peer.record.size())))
				}
			}
			if sub != nil {
				out.index.put(&indexEntry{key: entry.key, record: sub})
			}
		})
		if out.size() == 0 {
			return nil
		}
		return out
	}
	return nil
}
