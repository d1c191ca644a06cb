package coalesce

import (
	"sync"
	"time"

	"github.com/nihonguide/travel-api-client/pkg/clock"
)

// Result is the resolved outcome of one upstream call.
// Value is shared between every caller that receives it and must not be mutated.
type Result struct {
	Value      any
	Err        error
	ResolvedAt time.Time
}

type storeEntry struct {
	result  Result
	expires time.Time
}

// Store is an in-memory table of resolved results, each kept for a fixed TTL
// measured against the store's clock.
type Store struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]storeEntry
}

// NewStore creates an empty store. A nil clock means wall time.
func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{
		clock:   clk,
		entries: make(map[string]storeEntry),
	}
}

// Put inserts r under key until ttl has elapsed. A non-positive ttl is a no-op.
func (s *Store) Put(key string, r Result, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = storeEntry{
		result:  r,
		expires: s.clock.Now().Add(ttl),
	}
}

// Get returns the live result for key. Expired entries are removed on access.
func (s *Store) Get(key string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Result{}, false
	}
	if !s.clock.Now().Before(e.expires) {
		delete(s.entries, key)
		return Result{}, false
	}
	return e.result, true
}

// Delete removes key regardless of expiry.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Sweep drops every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
