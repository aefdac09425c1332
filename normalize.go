package confdiff

import (
	"strings"
)

// IdentityPart is one field of a record identity.
type IdentityPart struct {
	Field string
	Value Value
}

// IdentityKey identifies a record among its siblings. Parts are ordered by
// field name; a key with several parts is a composite identity.
type IdentityKey struct {
	Parts []IdentityPart
}

// String renders the key as "field=value,field=value".
func (k IdentityKey) String() string {
	parts := make([]string, len(k.Parts))
	for i, part := range k.Parts {
		parts[i] = part.Field + "=" + renderScalar(part.Value)
	}
	return strings.Join(parts, ",")
}

// Equal reports whether both keys name the same fields with equal values.
func (k IdentityKey) Equal(other IdentityKey) bool {
	return k.canonical() == other.canonical()
}

// canonical is the injective encoding used to index records. Field names are
// length-prefixed and values carry their scalar type, so neither a field's
// content nor an int/string pair with the same digits can collide.
func (k IdentityKey) canonical() string {
	var b strings.Builder
	for _, part := range k.Parts {
		writeLengthPrefixed(&b, part.Field)
		part.Value.writeFingerprint(&b)
	}
	return b.String()
}

func renderScalar(v Value) string {
	if s, ok := v.scalar.(string); ok {
		return s
	}
	return v.String()
}

type nodeKind uint8

const (
	nodeNull nodeKind = iota
	nodeScalar
	nodeTree
	nodeSet
	nodeIndex
)

// Normalized is the order-independent form of a Value. Lists of identified
// records become indexes keyed by IdentityKey; every other sequence is a set.
type Normalized struct {
	kind   nodeKind
	scalar Value
	fields map[string]*Normalized
	set    []Value
	index  *recordIndex
}

type recordIndex struct {
	order   []string
	entries map[string]*indexEntry
}

type indexEntry struct {
	key    IdentityKey
	record *Normalized
}

func newTreeNode() *Normalized {
	return &Normalized{kind: nodeTree, fields: map[string]*Normalized{}}
}

func newIndexNode() *Normalized {
	return &Normalized{kind: nodeIndex, index: &recordIndex{entries: map[string]*indexEntry{}}}
}

func newSetNode(items []Value) *Normalized {
	return &Normalized{kind: nodeSet, set: items}
}

func scalarNode(v Value) *Normalized {
	return &Normalized{kind: nodeScalar, scalar: v}
}

func (idx *recordIndex) put(entry *indexEntry) {
	canonical := entry.key.canonical()
	if _, exists := idx.entries[canonical]; !exists {
		idx.order = append(idx.order, canonical)
	}
	idx.entries[canonical] = entry
}

func (idx *recordIndex) get(key IdentityKey) (*indexEntry, bool) {
	entry, ok := idx.entries[key.canonical()]
	return entry, ok
}

func (idx *recordIndex) each(fn func(*indexEntry)) {
	for _, canonical := range idx.order {
		fn(idx.entries[canonical])
	}
}

// size is the number of fields, records or set items held by n.
func (n *Normalized) size() int {
	if n == nil {
		return 0
	}
	switch n.kind {
	case nodeTree:
		return len(n.fields)
	case nodeSet:
		return len(n.set)
	case nodeIndex:
		return len(n.index.order)
	default:
		return 0
	}
}

func (n *Normalized) isContainer() bool {
	return n != nil && (n.kind == nodeTree || n.kind == nodeSet || n.kind == nodeIndex)
}

func (n *Normalized) isEmpty() bool {
	return n == nil || n.kind == nodeNull || (n.isContainer() && n.size() == 0)
}

// Normalize converts v to its indexed form using keys. Identity collisions
// are permissive: the later record replaces the earlier one in its position.
// The records of a root sequence sit at depth 1, as in KeySpec.
func Normalize(v Value, keys KeySpec) (*Normalized, error) {
	n := &normalizer{keys: keys}
	depth := 0
	if v.kind == KindSequence {
		depth = 1
	}
	return n.normalize(v, depth, "")
}

type normalizer struct {
	keys       KeySpec
	strict     bool
	collisions int
}

func (n *normalizer) normalize(v Value, depth int, path string) (*Normalized, error) {
	switch v.kind {
	case KindScalar:
		return scalarNode(v), nil
	case KindTree:
		node := newTreeNode()
		for key, child := range v.tree {
			normalized, err := n.normalize(child, depth+1, joinPath(path, key))
			if err != nil {
				return nil, err
			}
			node.fields[key] = normalized
		}
		return node, nil
	case KindSequence:
		if keyed, ok := n.identify(v, depth); ok {
			return n.index(v, keyed, depth, path)
		}
		items := make([]Value, len(v.seq))
		for i := range v.seq {
			items[i] = v.seq[i].Clone()
		}
		return newSetNode(items), nil
	default:
		return &Normalized{kind: nodeNull}, nil
	}
}

// identify returns one identity per record when every item of seq is a
// record carrying at least one identity field declared for depth. Any other
// sequence keeps set semantics.
func (n *normalizer) identify(seq Value, depth int) ([]IdentityKey, bool) {
	if !seq.isRecordSequence() {
		return nil, false
	}
	fields := n.keys.FieldsAt(depth)
	if len(fields) == 0 {
		return nil, false
	}
	keys := make([]IdentityKey, len(seq.seq))
	for i, item := range seq.seq {
		if item.kind != KindTree {
			return nil, false
		}
		key, ok := identityOf(item.tree, fields)
		if !ok {
			return nil, false
		}
		keys[i] = key
	}
	return keys, true
}

func identityOf(record Tree, fields []string) (IdentityKey, bool) {
	var key IdentityKey
	for _, field := range fields {
		value, ok := record[field]
		if !ok || value.kind != KindScalar {
			continue
		}
		key.Parts = append(key.Parts, IdentityPart{Field: field, Value: value})
	}
	return key, len(key.Parts) > 0
}

func (n *normalizer) index(seq Value, keys []IdentityKey, depth int, path string) (*Normalized, error) {
	node := newIndexNode()
	positions := map[string]int{}
	for i, item := range seq.seq {
		canonical := keys[i].canonical()
		if first, seen := positions[canonical]; seen {
			if n.strict {
				return nil, &DuplicateIdentityError{Path: path, Key: keys[i], Positions: []int{first, i}}
			}
			n.collisions++
		} else {
			positions[canonical] = i
		}
		record, err := n.normalize(item, depth+1, joinPath(path, "["+keys[i].String()+"]"))
		if err != nil {
			return nil, err
		}
		node.index.put(&indexEntry{key: keys[i], record: record})
	}
	return node, nil
}

// Denormalize converts n back into a Value. Indexes become record sequences
// in index order, and every identity part is written back into its record
// when the record lacks it. A form without indexes converts back unchanged.
func (n *Normalized) Denormalize() Value {
	if n == nil {
		return Value{}
	}
	switch n.kind {
	case nodeScalar:
		return n.scalar
	case nodeTree:
		tree := make(Tree, len(n.fields))
		for key, child := range n.fields {
			tree[key] = child.Denormalize()
		}
		return NewTree(tree)
	case nodeSet:
		items := make([]Value, len(n.set))
		for i := range n.set {
			items[i] = n.set[i].Clone()
		}
		return NewSequence(items...)
	case nodeIndex:
		items := make([]Value, 0, len(n.index.order))
		n.index.each(func(entry *indexEntry) {
			items = append(items, entry.denormalize())
		})
		return NewSequence(items...)
	default:
		return Value{}
	}
}

// denormalize returns the record with every identity part it lacks.
func (e *indexEntry) denormalize() Value {
	record := e.record.Denormalize()
	if record.kind != KindTree {
		record = NewTree(nil)
	}
	for _, part := range e.key.Parts {
		if existing, ok := record.tree[part.Field]; !ok || existing.IsNull() {
			record.tree[part.Field] = part.Value
		}
	}
	return record
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	if strings.HasPrefix(segment, "[") {
		return prefix + segment
	}
	return prefix + "." + segment
}
