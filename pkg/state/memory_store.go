package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-confdiff"
	"github.com/goliatone/go-confdiff/layering"
)

// MemoryStore is an in-memory Store for tests, examples and the CLI. Keys
// are mapped to strings by a key function; ETags are per-store revisions.
type MemoryStore[K, T any] struct {
	mu       sync.RWMutex
	key      func(K) (string, error)
	records  map[string]memoryRecord[T]
	revision uint64
}

type memoryRecord[T any] struct {
	snapshot T
	meta     Meta
}

// NewMemoryStore constructs a store addressing snapshots through key.
func NewMemoryStore[K, T any](key func(K) (string, error)) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{key: key, records: map[string]memoryRecord[T]{}}
}

// NewObservedStore stores observed snapshots by Ref.
func NewObservedStore() *MemoryStore[Ref, confdiff.Value] {
	return NewMemoryStore[Ref, confdiff.Value](Ref.Identifier)
}

// NewFragmentStore stores desired fragments by layering source.
func NewFragmentStore() *MemoryStore[layering.Source, confdiff.Value] {
	return NewMemoryStore[layering.Source, confdiff.Value](SourceKey)
}

func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (T, Meta, bool, error) {
	var zero T
	id, err := s.key(key)
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	return record.snapshot, cloneMeta(record.meta), true, nil
}

func (s *MemoryStore[K, T]) Save(_ context.Context, key K, snapshot T, meta Meta) (Meta, error) {
	id, err := s.key(key)
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkETag(id, meta.ETag); err != nil {
		return Meta{}, err
	}
	s.revision++
	saved := cloneMeta(meta)
	saved.ETag = fmt.Sprintf("r%d", s.revision)
	s.records[id] = memoryRecord[T]{snapshot: snapshot, meta: saved}
	return cloneMeta(saved), nil
}

// Delete drops the snapshot stored under key.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K, meta Meta) (bool, error) {
	id, err := s.key(key)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	if err := s.checkETag(id, meta.ETag); err != nil {
		return false, err
	}
	delete(s.records, id)
	return true, nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore[K, T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore[K, T]) checkETag(id, expected string) error {
	if expected == "" {
		return nil
	}
	current := s.records[id].meta.ETag
	if current != expected {
		return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, current)
	}
	return nil
}
