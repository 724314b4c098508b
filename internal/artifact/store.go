package artifact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("artifact: not found")

// Store is the artifact store contract. It exclusively owns artifact bytes;
// everything else in the pipeline holds references.
type Store interface {
	Get(ctx context.Context, ref Ref) ([]byte, error)
	Put(ctx context.Context, ref Ref, data []byte) error
	// List returns every object whose key starts with prefix.Key, sorted by key.
	List(ctx context.Context, prefix Ref) ([]Ref, error)
}

// Mux routes each reference to the store registered for its scheme.
type Mux struct {
	stores map[string]Store
}

func NewMux() *Mux {
	return &Mux{stores: map[string]Store{}}
}

func (m *Mux) Handle(scheme string, s Store) *Mux {
	m.stores[scheme] = s
	return m
}

func (m *Mux) route(ref Ref) (Store, error) {
	s, ok := m.stores[ref.Scheme]
	if !ok {
		return nil, fmt.Errorf("artifact: no store for scheme %q", ref.Scheme)
	}
	return s, nil
}

func (m *Mux) Get(ctx context.Context, ref Ref) ([]byte, error) {
	s, err := m.route(ref)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, ref)
}

func (m *Mux) Put(ctx context.Context, ref Ref, data []byte) error {
	s, err := m.route(ref)
	if err != nil {
		return err
	}
	return s.Put(ctx, ref, data)
}

func (m *Mux) List(ctx context.Context, prefix Ref) ([]Ref, error) {
	s, err := m.route(prefix)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, prefix)
}

// MemoryStore keeps artifacts in process memory. Used for mock runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[Ref][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[Ref][]byte{}}
}

func (s *MemoryStore) Get(_ context.Context, ref Ref) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return append([]byte(nil), b...), nil
}

func (s *MemoryStore) Put(_ context.Context, ref Ref, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix Ref) ([]Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Ref
	for ref := range s.objects {
		if ref.Scheme == prefix.Scheme && ref.Bucket == prefix.Bucket && hasPrefix(ref.Key, prefix.Key) {
			out = append(out, ref)
		}
	}
	sortRefs(out)
	return out, nil
}

func hasPrefix(key, prefix string) bool {
	return len(key) >= len(prefix) && key[:len(prefix)] == prefix
}

func sortRefs(refs []Ref) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
}
