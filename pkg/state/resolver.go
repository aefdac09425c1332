package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-confdiff"
	"github.com/goliatone/go-confdiff/layering"
)

// ErrNoLayers reports a chain whose sources have no stored fragment.
var ErrNoLayers = errors.New("state: no desired fragments found")

// Resolver loads desired fragments for a layering chain and stacks them.
type Resolver struct {
	Store Store[layering.Source, confdiff.Value]
}

// Resolve loads every source of chain and returns the stack of those found.
// Layer snapshot ids come from the stored Meta.
func (r Resolver) Resolve(ctx context.Context, keys confdiff.KeySpec, chain layering.Chain) (*confdiff.Stack, error) {
	layers, err := r.load(ctx, chain)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoLayers, chainLabel(chain))
	}
	return r.stack(keys, chain, layers)
}

// ResolveWithDefaults behaves like Resolve but adds defaults as the weakest
// layer. The chain must not carry its own defaults source.
func (r Resolver) ResolveWithDefaults(ctx context.Context, keys confdiff.KeySpec, chain layering.Chain, defaults confdiff.Value) (*confdiff.Stack, error) {
	for _, source := range chain.Ordered() {
		if source.Level == layering.LevelDefaults {
			return nil, fmt.Errorf("state: chain already holds defaults source %q", source.Identifier())
		}
	}
	layers, err := r.load(ctx, chain)
	if err != nil {
		return nil, err
	}
	source := layering.Source{Level: layering.LevelDefaults, Resource: chain.Strongest().Resource}
	layers[source.Identifier()] = confdiff.LayerFor(source, defaults)
	ordered := append(chain.Ordered(), source)
	return r.stack(keys, layering.NewChain(ordered...), layers)
}

func (r Resolver) load(ctx context.Context, chain layering.Chain) (map[string]confdiff.Layer, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	layers := map[string]confdiff.Layer{}
	for _, source := range chain.Ordered() {
		snapshot, meta, ok, err := r.Store.Load(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("state: load %q: %w", source.Identifier(), err)
		}
		if !ok {
			continue
		}
		layers[source.Identifier()] = confdiff.LayerFor(source, snapshot, confdiff.WithSnapshotID(meta.SnapshotID))
	}
	return layers, nil
}

func (r Resolver) stack(keys confdiff.KeySpec, chain layering.Chain, layers map[string]confdiff.Layer) (*confdiff.Stack, error) {
	stack, err := confdiff.NewChainStack(keys, chain, func(source layering.Source) (confdiff.Layer, bool) {
		layer, ok := layers[source.Identifier()]
		return layer, ok
	})
	if err != nil {
		return nil, fmt.Errorf("state: stack: %w", err)
	}
	return stack, nil
}

func chainLabel(chain layering.Chain) string {
	sources := chain.Ordered()
	if len(sources) == 0 {
		return "<empty chain>"
	}
	return sources[0].Identifier()
}
