package confdiff

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-confdiff/layering"
)

// Layer is one desired-state fragment with its precedence. Higher priority
// values represent stronger layers.
type Layer struct {
	Name       string
	Priority   int
	Document   Value
	SnapshotID string
	Metadata   map[string]any
}

// LayerOption configures optional metadata for a layer.
type LayerOption func(*Layer)

// WithSnapshotID sets the snapshot identifier used for auditing.
func WithSnapshotID(id string) LayerOption {
	return func(layer *Layer) {
		layer.SnapshotID = id
	}
}

// WithLayerMetadata attaches arbitrary metadata to the layer. The map is
// copied.
func WithLayerMetadata(metadata map[string]any) LayerOption {
	return func(layer *Layer) {
		layer.Metadata = copyMetadata(metadata)
	}
}

// NewLayer constructs a Layer holding a copy of document.
func NewLayer(name string, priority int, document Value, opts ...LayerOption) Layer {
	layer := Layer{
		Name:     name,
		Priority: priority,
		Document: document.Clone(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&layer)
	}
	return layer
}

// LayerFor names and ranks a layer after its layering source.
func LayerFor(source layering.Source, document Value, opts ...LayerOption) Layer {
	return NewLayer(source.Identifier(), source.Level.Priority(), document, opts...)
}

// NewChainStack builds a stack from the sources of chain that layer
// resolves, typically through LayerFor. Peers of one level rank in chain
// order, earlier peers stronger.
func NewChainStack(keys KeySpec, chain layering.Chain, layer func(layering.Source) (Layer, bool)) (*Stack, error) {
	var layers []Layer
	peers := map[layering.Level]int{}
	for _, source := range chain.Ordered() {
		resolved, ok := layer(source)
		if !ok {
			continue
		}
		rank := peers[source.Level]
		peers[source.Level]++
		resolved.Priority -= rank
		layers = append(layers, resolved)
	}
	return NewStack(keys, layers...)
}

func (l Layer) clone() Layer {
	return Layer{
		Name:       l.Name,
		Priority:   l.Priority,
		Document:   l.Document.Clone(),
		SnapshotID: l.SnapshotID,
		Metadata:   copyMetadata(l.Metadata),
	}
}

var (
	// ErrLayerNameRequired indicates a missing layer name.
	ErrLayerNameRequired = errors.New("confdiff: layer name must be provided")
	// ErrDuplicateLayerName indicates Stack construction received multiple
	// layers with the same name.
	ErrDuplicateLayerName = errors.New("confdiff: layer names must be unique")
	// ErrPriorityOrder indicates Stack construction detected duplicate
	// priorities.
	ErrPriorityOrder = errors.New("confdiff: layer priorities must be strictly ordered")
)

// Stack is an immutable set of desired-state layers ordered from strongest
// to weakest. Record lists merge by the identity fields of keys.
type Stack struct {
	keys   KeySpec
	shape  Kind
	layers []Layer
}

// NewStack validates and sorts layers so the strongest comes first. Every
// non-null document must share one root kind, tree or sequence.
func NewStack(keys KeySpec, layers ...Layer) (*Stack, error) {
	stack := &Stack{keys: keys.Clone(), shape: KindTree}
	if len(layers) == 0 {
		return stack, nil
	}

	seenNames := make(map[string]struct{}, len(layers))
	copied := make([]Layer, len(layers))
	shape := KindNull
	for i, layer := range layers {
		layer := layer.clone()
		if layer.Name == "" {
			return nil, ErrLayerNameRequired
		}
		if _, ok := seenNames[layer.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLayerName, layer.Name)
		}
		seenNames[layer.Name] = struct{}{}
		kind := layer.Document.Kind()
		if kind == KindScalar || (kind != KindNull && shape != KindNull && kind != shape) {
			return nil, &ShapeError{Op: "stack", Path: layer.Name, Current: shape, Desired: kind}
		}
		if kind != KindNull {
			shape = kind
		}
		copied[i] = layer
	}
	if shape != KindNull {
		stack.shape = shape
	}

	sort.Slice(copied, func(i, j int) bool {
		if copied[i].Priority == copied[j].Priority {
			return copied[i].Name < copied[j].Name
		}
		return copied[i].Priority > copied[j].Priority
	})

	for i := 1; i < len(copied); i++ {
		if copied[i-1].Priority <= copied[i].Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, copied[i].Priority)
		}
	}

	stack.layers = copied
	return stack, nil
}

// Layers returns copies of the layers, strongest first.
func (s *Stack) Layers() []Layer {
	if s == nil || len(s.layers) == 0 {
		return nil
	}
	out := make([]Layer, len(s.layers))
	for i := range s.layers {
		out[i] = s.layers[i].clone()
	}
	return out
}

// Len returns the number of layers in the stack.
func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Merge resolves the stack into a single desired document.
func (s *Stack) Merge() (Value, error) {
	if s == nil || len(s.layers) == 0 {
		return Value{}, fmt.Errorf("confdiff: stack must include at least one layer")
	}
	documents := make([]any, len(s.layers))
	for i := range s.layers {
		documents[i] = s.wrap(s.layers[i].Document)
	}
	merged, err := FromAny(layering.MergeDocuments(s.keys.FieldsAt, documents...))
	if err != nil {
		return Value{}, fmt.Errorf("confdiff: merge stack: %w", err)
	}
	if s.shape == KindSequence {
		items := merged.Get(rootField)
		if items.Kind() != KindSequence {
			return NewSequence(), nil
		}
		return items, nil
	}
	if merged.Kind() != KindTree {
		return NewTree(nil), nil
	}
	return merged, nil
}

func (s *Stack) wrap(document Value) any {
	if s.shape == KindSequence {
		if document.IsNull() {
			return nil
		}
		return map[string]any{rootField: document.Any()}
	}
	return document.Any()
}

// Trace reports which layers set the field at path, strongest first.
func (s *Stack) Trace(path ...string) Trace {
	trace := Trace{Path: joinFieldPath(path)}
	if s == nil {
		return trace
	}
	for _, layer := range s.layers {
		value := layer.Document.Lookup(path...)
		entry := Provenance{
			Layer:      layer.Name,
			Priority:   layer.Priority,
			SnapshotID: layer.SnapshotID,
			Found:      !value.IsNull(),
		}
		if entry.Found {
			entry.Value = value.Clone()
		}
		trace.Layers = append(trace.Layers, entry)
	}
	return trace
}

func joinFieldPath(path []string) string {
	out := ""
	for _, field := range path {
		out = joinPath(out, field)
	}
	return out
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
