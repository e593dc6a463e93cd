package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/i474232898/city-env-alerts/internal/common"
)

// entry is a single cached value. Entries are replaced, never mutated.
type entry struct {
	value     any
	expiresAt time.Time
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Keys   int    `json:"keys"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// MemoryStore is a concurrency-safe, process-local key/value store where every
// entry carries its own expiry. Expiry is checked lazily on read.
type MemoryStore struct {
	mu sync.RWMutex

	// key: opaque composite (domain + coordinates [+ date])
	data map[string]entry

	now common.Clock

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the time source used for expiry checks.
func WithClock(clock common.Clock) Option {
	return func(s *MemoryStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		data: make(map[string]entry),
		now:  common.SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value stored under key. A value whose TTL has elapsed is
// reported as a miss and dropped.
func (s *MemoryStore) Get(key string) (any, bool) {
	now := s.now()

	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		s.misses.Add(1)
		return nil, false
	}

	if !now.Before(e.expiresAt) {
		s.mu.Lock()
		// Only drop the entry we looked at; a concurrent Set may have replaced it.
		if cur, still := s.data[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return e.value, true
}

// Set stores value under key for ttl, overwriting any existing entry.
// A non-positive ttl is a no-op.
func (s *MemoryStore) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	e := entry{value: value, expiresAt: s.now().Add(ttl)}

	s.mu.Lock()
	s.data[key] = e
	s.mu.Unlock()
}

// Flush removes every entry. Counters are kept.
func (s *MemoryStore) Flush() {
	s.mu.Lock()
	s.data = make(map[string]entry)
	s.mu.Unlock()
}

// PurgeExpired drops entries whose TTL has elapsed and returns how many were
// removed. Reads never depend on it.
func (s *MemoryStore) PurgeExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.data {
		if !now.Before(e.expiresAt) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}

// Stats reports the number of stored keys (expired-but-unread included) and
// the hit/miss counters.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	keys := len(s.data)
	s.mu.RUnlock()

	return Stats{
		Keys:   keys,
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
	}
}
