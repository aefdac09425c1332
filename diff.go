package confdiff

// diffNode computes the merge delta moving current toward desired. It returns
// nil when nothing needs to be pushed. Fields only present in current never
// appear in a merge delta.
func diffNode(current, desired *Normalized) *Normalized {
	if desired.isEmpty() {
		return nil
	}
	if current == nil || current.kind == nodeNull {
		return desired
	}
	if current.kind != desired.kind {
		return desired
	}
	switch desired.kind {
	case nodeScalar:
		if current.scalar.Equal(desired.scalar) {
			return nil
		}
		return desired
	case nodeTree:
		out := newTreeNode()
		for key, want := range desired.fields {
			if sub := diffNode(current.fields[key], want); sub != nil {
				out.fields[key] = sub
			}
		}
		if len(out.fields) == 0 {
			return nil
		}
		return out
	case nodeSet:
		added := setDifference(desired.set, current.set)
		if len(added) == 0 {
			return nil
		}
		return newSetNode(added)
	case nodeIndex:
		out := newIndexNode()
		desired.index.each(func(want *indexEntry) {
			have, ok := current.index.get(want.key)
			if !ok {
				out.index.put(want)
				return
			}
			if sub := diffNode(have.record, want.record); sub != nil {
				out.index.put(&indexEntry{key: want.key, record: sub})
			}
		})
		if out.size() == 0 {
			return nil
		}
		return out
	}
	return nil
}

// setDifference returns the distinct items of a that are not in b, in a's
// order.
func setDifference(a, b []Value) []Value {
	exclude := fingerprints(b)
	out := make([]Value, 0, len(a))
	seen := map[string]struct{}{}
	for _, item := range a {
		fp := item.fingerprint()
		if _, skip := exclude[fp]; skip {
			continue
		}
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, item)
	}
	return out
}

// setIntersection returns the distinct items of a that are also in b, in a's
// order.
func setIntersection(a, b []Value) []Value {
	include := fingerprints(b)
	out := make([]Value, 0, len(a))
	seen := map[string]struct{}{}
	for _, item := range a {
		fp := item.fingerprint()
		if _, ok := include[fp]; !ok {
			continue
		}
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, item)
	}
	return out
}

func distinct(items []Value) []Value {
	return setDifference(items, nil)
}

func fingerprints(items []Value) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[item.fingerprint()] = struct{}{}
	}
	return out
}
