package docstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/teachai/server/internal/metrics"
)

// MemoryStore is an in-process Store for development and tests.
//
// Change callbacks fire synchronously from Set, after the write is visible,
// which makes test assertions deterministic while keeping the same
// at-least-once delivery contract as the networked stores.
type MemoryStore struct {
	mu     sync.Mutex
	closed bool
	docs   map[string]json.RawMessage
	subs   map[string]map[int]ChangeFunc
	nextID int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]json.RawMessage),
		subs: make(map[string]map[int]ChangeFunc),
	}
}

// Get returns the document stored at key.
func (s *MemoryStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	doc, ok := s.docs[key]
	if !ok {
		return nil, false, nil
	}
	// Copy so callers cannot mutate stored state.
	out := make(json.RawMessage, len(doc))
	copy(out, doc)
	return out, true, nil
}

// Set overwrites the document at key and notifies subscribers.
func (s *MemoryStore) Set(ctx context.Context, key string, doc json.RawMessage) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	stored := make(json.RawMessage, len(doc))
	copy(stored, doc)
	s.docs[key] = stored

	// Snapshot subscriber callbacks so they run outside the lock.
	var fns []ChangeFunc
	for _, fn := range s.subs[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(stored, true)
	}
	if len(fns) > 0 {
		metrics.DocstoreNotifications.WithLabelValues(ProviderMemory).Add(float64(len(fns)))
	}
	return nil
}

// Subscribe watches a single document.
func (s *MemoryStore) Subscribe(ctx context.Context, key string, fn ChangeFunc) (Unsubscribe, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	id := s.nextID
	s.nextID++
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]ChangeFunc)
	}
	s.subs[key][id] = fn
	doc, ok := s.docs[key]
	s.mu.Unlock()

	// Initial fire with current state.
	fn(doc, ok)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs[key], id)
		})
	}, nil
}

// Close marks the store closed. Further operations return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = make(map[string]map[int]ChangeFunc)
	return nil
}

var _ Store = (*MemoryStore)(nil)
