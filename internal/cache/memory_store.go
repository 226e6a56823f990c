package cache

import (
	"sync"

	"github.com/goccy/go-json"
)

// MemoryStore is an in-memory implementation of Store, used in tests and
// as a null cache when no durable directory is configured.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string][]byte
}

// NewMemoryStore creates an empty in-memory cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

// Save serializes v into the named slot.
func (s *MemoryStore) Save(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.slots[key] = data
	s.mu.Unlock()
}

// Load decodes the named slot into v.
func (s *MemoryStore) Load(key string, v any) bool {
	s.mu.Lock()
	data, ok := s.slots[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.mu.Lock()
		delete(s.slots, key)
		s.mu.Unlock()
		return false
	}
	return true
}

// Remove deletes the named slot.
func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	delete(s.slots, key)
	s.mu.Unlock()
}

// Corrupt overwrites a slot with an undecodable blob. Test helper.
func (s *MemoryStore) Corrupt(key string) {
	s.mu.Lock()
	s.slots[key] = []byte("{not json")
	s.mu.Unlock()
}

// Contains reports whether the slot currently holds a blob. Test helper.
func (s *MemoryStore) Contains(key string) bool {
	s.mu.Lock()
	_, ok := s.slots[key]
	s.mu.Unlock()
	return ok
}
