package confdiff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// KindNull marks an absent value.
	KindNull Kind = iota
	// KindScalar holds a string, int64, float64 or bool.
	KindScalar
	// KindTree holds a Tree of named fields.
	KindTree
	// KindSequence holds an ordered list of values.
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindTree:
		return "tree"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Tree maps field names to values. Field order carries no meaning.
type Tree map[string]Value

// Keys returns the field names sorted alphabetically.
func (t Tree) Keys() []string {
	keys := make([]string, 0, len(t))
	for key := range t {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of t.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for key, value := range t {
		out[key] = value.Clone()
	}
	return out
}

// Value is a configuration value: null, scalar, tree or sequence. The zero
// Value is null.
type Value struct {
	kind   Kind
	scalar any
	tree   Tree
	seq    []Value
}

// Null returns the absent value.
func Null() Value { return Value{} }

// String wraps s as a scalar.
func String(s string) Value { return Value{kind: KindScalar, scalar: s} }

// Int wraps i as a scalar.
func Int(i int64) Value { return Value{kind: KindScalar, scalar: i} }

// Float wraps f as a scalar. Integral floats compare equal to the matching
// Int.
func Float(f float64) Value { return Value{kind: KindScalar, scalar: f} }

// Bool wraps b as a scalar.
func Bool(b bool) Value { return Value{kind: KindScalar, scalar: b} }

// NewTree wraps t as a tree value. A nil tree becomes an empty tree.
func NewTree(t Tree) Value {
	if t == nil {
		t = Tree{}
	}
	return Value{kind: KindTree, tree: t}
}

// NewSequence wraps items as a sequence value.
func NewSequence(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, seq: items}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Tree returns the fields of a tree value.
func (v Value) Tree() (Tree, bool) {
	if v.kind != KindTree {
		return nil, false
	}
	return v.tree, true
}

// Sequence returns the items of a sequence value.
func (v Value) Sequence() ([]Value, bool) {
	if v.kind != KindSequence {
		return nil, false
	}
	return v.seq, true
}

// Scalar returns the raw scalar (string, int64, float64 or bool).
func (v Value) Scalar() (any, bool) {
	if v.kind != KindScalar {
		return nil, false
	}
	return v.scalar, true
}

// Get returns the named field of a tree value, or null.
func (v Value) Get(field string) Value {
	if v.kind != KindTree {
		return Value{}
	}
	return v.tree[field]
}

// Lookup walks a field path through nested trees.
func (v Value) Lookup(path ...string) Value {
	current := v
	for _, field := range path {
		current = current.Get(field)
		if current.IsNull() {
			return current
		}
	}
	return current
}

// Len returns the number of fields of a tree or items of a sequence.
func (v Value) Len() int {
	switch v.kind {
	case KindTree:
		return len(v.tree)
	case KindSequence:
		return len(v.seq)
	default:
		return 0
	}
}

// IsEmpty reports whether v is null or a tree/sequence without entries.
// Scalars are never empty.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindTree, KindSequence:
		return v.Len() == 0
	default:
		return false
	}
}

func (v Value) isRecordSequence() bool {
	if v.kind != KindSequence || len(v.seq) == 0 {
		return false
	}
	for _, item := range v.seq {
		if item.kind == KindTree {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindTree:
		return Value{kind: KindTree, tree: v.tree.Clone()}
	case KindSequence:
		items := make([]Value, len(v.seq))
		for i := range v.seq {
			items[i] = v.seq[i].Clone()
		}
		return Value{kind: KindSequence, seq: items}
	default:
		return v
	}
}

// Equal reports deep equality. Sequences compare in order; numbers compare
// by numeric value.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindScalar:
		return scalarEqual(v.scalar, other.scalar)
	case KindTree:
		if len(v.tree) != len(other.tree) {
			return false
		}
		for key, value := range v.tree {
			peer, ok := other.tree[key]
			if !ok || !value.Equal(peer) {
				return false
			}
		}
		return true
	case KindSequence:
		if len(v.seq) != len(other.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(other.seq[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func scalarEqual(a, b any) bool {
	switch left := a.(type) {
	case int64:
		switch right := b.(type) {
		case int64:
			return left == right
		case float64:
			return float64(left) == right
		}
		return false
	case float64:
		switch right := b.(type) {
		case float64:
			return left == right
		case int64:
			return left == float64(right)
		}
		return false
	default:
		return a == b
	}
}

// fingerprint returns a canonical encoding of v used as a set membership
// key. Strings are length-prefixed so no content can forge a separator, and
// nested sequences are encoded as sets.
func (v Value) fingerprint() string {
	var b strings.Builder
	v.writeFingerprint(&b)
	return b.String()
}

func (v Value) writeFingerprint(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteByte('n')
	case KindScalar:
		writeScalarFingerprint(b, v.scalar)
	case KindTree:
		b.WriteByte('{')
		for _, key := range v.tree.Keys() {
			writeLengthPrefixed(b, key)
			v.tree[key].writeFingerprint(b)
		}
		b.WriteByte('}')
	case KindSequence:
		items := make([]string, len(v.seq))
		for i, item := range v.seq {
			items[i] = item.fingerprint()
		}
		sort.Strings(items)
		b.WriteByte('[')
		for _, item := range items {
			b.WriteString(item)
			b.WriteByte(',')
		}
		b.WriteByte(']')
	}
}

func writeScalarFingerprint(b *strings.Builder, scalar any) {
	switch typed := scalar.(type) {
	case string:
		b.WriteByte('s')
		writeLengthPrefixed(b, typed)
	case bool:
		if typed {
			b.WriteString("b1")
		} else {
			b.WriteString("b0")
		}
	case int64:
		b.WriteByte('i')
		b.WriteString(strconv.FormatInt(typed, 10))
		b.WriteByte(';')
	case float64:
		if typed == math.Trunc(typed) && math.Abs(typed) < 1<<63 {
			b.WriteByte('i')
			b.WriteString(strconv.FormatInt(int64(typed), 10))
		} else {
			b.WriteByte('f')
			b.WriteString(strconv.FormatFloat(typed, 'g', -1, 64))
		}
		b.WriteByte(';')
	default:
		b.WriteString("?")
		writeLengthPrefixed(b, fmt.Sprint(typed))
	}
}

func writeLengthPrefixed(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

// Any converts v to plain Go values: map[string]any, []any, scalars and nil.
func (v Value) Any() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindTree:
		out := make(map[string]any, len(v.tree))
		for key, value := range v.tree {
			out[key] = value.Any()
		}
		return out
	case KindSequence:
		out := make([]any, len(v.seq))
		for i := range v.seq {
			out[i] = v.seq[i].Any()
		}
		return out
	default:
		return nil
	}
}

func (v Value) String() string {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(payload)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON implements json.Unmarshaler. Numbers without a fraction
// decode as Int.
func (v *Value) UnmarshalJSON(payload []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return fmt.Errorf("confdiff: decode value: %w", err)
	}
	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// MustFromAny is FromAny that panics on unsupported input. Intended for
// literals in tests and examples.
func MustFromAny(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

// FromAny converts plain Go data (as produced by JSON or YAML decoders) into
// a Value.
func FromAny(x any) (Value, error) {
	switch typed := x.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return typed.Clone(), nil
	case Tree:
		return NewTree(typed.Clone()), nil
	case []Value:
		return NewSequence(typed...).Clone(), nil
	case string:
		return String(typed), nil
	case bool:
		return Bool(typed), nil
	case int:
		return Int(int64(typed)), nil
	case int8:
		return Int(int64(typed)), nil
	case int16:
		return Int(int64(typed)), nil
	case int32:
		return Int(int64(typed)), nil
	case int64:
		return Int(typed), nil
	case uint:
		return Int(int64(typed)), nil
	case uint8:
		return Int(int64(typed)), nil
	case uint16:
		return Int(int64(typed)), nil
	case uint32:
		return Int(int64(typed)), nil
	case uint64:
		if typed > math.MaxInt64 {
			return Float(float64(typed)), nil
		}
		return Int(int64(typed)), nil
	case float32:
		return Float(float64(typed)), nil
	case float64:
		return Float(typed), nil
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := typed.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("confdiff: invalid number %q: %w", typed.String(), err)
		}
		return Float(f), nil
	case map[string]any:
		tree := make(Tree, len(typed))
		for key, raw := range typed {
			value, err := FromAny(raw)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", key, err)
			}
			tree[key] = value
		}
		return NewTree(tree), nil
	case map[any]any:
		tree := make(Tree, len(typed))
		for key, raw := range typed {
			value, err := FromAny(raw)
			if err != nil {
				return Value{}, fmt.Errorf("%v: %w", key, err)
			}
			tree[fmt.Sprint(key)] = value
		}
		return NewTree(tree), nil
	case []any:
		items := make([]Value, len(typed))
		for i, raw := range typed {
			value, err := FromAny(raw)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = value
		}
		return NewSequence(items...), nil
	}
	return fromReflect(reflect.ValueOf(x))
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Value{}, nil
		}
		return FromAny(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Value{}, nil
		}
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			value, err := FromAny(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = value
		}
		return NewSequence(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("confdiff: unsupported map key type %s", rv.Type().Key())
		}
		if rv.IsNil() {
			return Value{}, nil
		}
		tree := make(Tree, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			value, err := FromAny(iter.Value().Interface())
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", iter.Key().String(), err)
			}
			tree[iter.Key().String()] = value
		}
		return NewTree(tree), nil
	case reflect.Struct:
		return fromStruct(rv.Interface())
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return FromAny(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	default:
		return Value{}, fmt.Errorf("confdiff: unsupported value type %s", rv.Type())
	}
}

// fromStruct converts a struct through its JSON encoding so json tags name
// the fields.
func fromStruct(x any) (Value, error) {
	payload, err := json.Marshal(x)
	if err != nil {
		return Value{}, fmt.Errorf("confdiff: encode %T: %w", x, err)
	}
	var v Value
	if err := v.UnmarshalJSON(payload); err != nil {
		return Value{}, err
	}
	return v, nil
}
