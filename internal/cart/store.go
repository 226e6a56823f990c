package cart

import (
	"log"
	"sync"

	"github.com/velora/storefront/internal/cache"
	"github.com/velora/storefront/internal/money"
)

// Store holds the single in-memory cart snapshot. Every mutation takes a
// whole snapshot; the durable cache is written as an explicit step after
// each in-memory change so the two never diverge past a successful call.
type Store struct {
	mu        sync.RWMutex
	snapshot  *Snapshot
	cache     cache.Store
	logger    *log.Logger
	listeners []func(*Snapshot)
}

// NewStore creates a cart store backed by the given durable cache.
func NewStore(c cache.Store, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{cache: c, logger: logger}
}

// Subscribe registers fn to run after every snapshot replacement or clear.
// The argument is nil on clear. Not safe to call concurrently with Replace.
func (s *Store) Subscribe(fn func(*Snapshot)) {
	if fn == nil {
		return
	}
	s.listeners = append(s.listeners, fn)
}

// Replace installs a new authoritative snapshot and persists it.
func (s *Store) Replace(snapshot Snapshot) {
	installed := snapshot.Clone()
	s.mu.Lock()
	s.snapshot = installed
	s.mu.Unlock()

	s.cache.Save(cache.KeyCartSnapshot, installed)
	s.notify(installed)
}

// Clear removes the snapshot from memory and from the durable cache.
func (s *Store) Clear() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()

	s.cache.Remove(cache.KeyCartSnapshot)
	s.notify(nil)
}

// LoadFromCache installs whatever snapshot is durably cached. It is a
// no-op when nothing usable is cached and reports whether a snapshot was
// installed. Intended to run once at startup.
func (s *Store) LoadFromCache() bool {
	var cached Snapshot
	if !s.cache.Load(cache.KeyCartSnapshot, &cached) {
		return false
	}
	installed := cached.Clone()
	s.mu.Lock()
	s.snapshot = installed
	s.mu.Unlock()
	s.notify(installed)
	return true
}

// Current returns a copy of the held snapshot, or false when empty.
func (s *Store) Current() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, false
	}
	return s.snapshot.Clone(), true
}

// AmountToPay reads the payable amount off the live snapshot. ok is false
// when no snapshot is held; callers must treat that as "not zero".
func (s *Store) AmountToPay() (money.Amount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return money.Amount{}, false
	}
	return s.snapshot.AmountToPay, true
}

func (s *Store) notify(snapshot *Snapshot) {
	for _, fn := range s.listeners {
		fn(snapshot)
	}
}
