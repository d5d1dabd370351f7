// Package memory provides the in-memory key-value table for kvmesh.
package memory

import (
	"sync"

	"github.com/yndnr/kvmesh-go/pkg/cmap"
)

// Lookup is one entry of a MultiGet result.
type Lookup struct {
	Key   string
	Value []byte
	Found bool
}

// Store is the shared key-value table.
type Store struct {
	data *cmap.Map[[]byte]

	observersMu sync.RWMutex
	observers   []func(key string)
}

// Option configures the Store.
type Option func(*Store)

// WithShardCount sets the number of map shards (power of two).
func WithShardCount(n int) Option {
	return func(s *Store) {
		s.data = cmap.NewWithShards[[]byte](n)
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		data: cmap.New[[]byte](),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Observe registers fn to be called after every put, with the written key.
// Observers run synchronously on the writer's goroutine and must not block.
func (s *Store) Observe(fn func(key string)) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Put creates or replaces the value for key.
func (s *Store) Put(key string, value []byte) {
	s.data.Set(key, clone(value))
	s.notify(key)
}

// Get returns a copy of the value for key.
func (s *Store) Get(key string) ([]byte, bool) {
	v, ok := s.data.Get(key)
	if !ok {
		return nil, false
	}
	return clone(v), true
}

// MultiPut applies one independent put per pair.
func (s *Store) MultiPut(pairs map[string][]byte) {
	for k, v := range pairs {
		s.Put(k, v)
	}
}

// MultiGet reads each key independently and returns the results in the
// order of keys. Duplicate keys are looked up once per occurrence.
func (s *Store) MultiGet(keys []string) []Lookup {
	out := make([]Lookup, len(keys))
	for i, k := range keys {
		v, ok := s.Get(k)
		out[i] = Lookup{Key: k, Value: v, Found: ok}
	}
	return out
}

// Len returns the number of keys.
func (s *Store) Len() int {
	return s.data.Count()
}

func (s *Store) notify(key string) {
	s.observersMu.RLock()
	defer s.observersMu.RUnlock()
	for _, fn := range s.observers {
		fn(key)
	}
}

// clone copies b, keeping the empty-but-present distinction.
func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
