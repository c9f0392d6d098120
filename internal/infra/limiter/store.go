package limiter

import (
	"sync"
	"time"
)

// CachedResult is one tool result kept until its TTL elapses. Stale
// entries are ignored and eventually overwritten; there is no proactive
// eviction.
type CachedResult struct {
	Value    string
	StoredAt time.Time
}

// Store holds the rate windows and the result cache. It is kept behind an
// interface so a distributed deployment can swap in a shared external
// store without touching the call path.
type Store interface {
	GetResult(key string) (CachedResult, bool)
	SetResult(key string, value string, now time.Time)
	// Reserve prunes call timestamps at or before the cutoff and, when
	// fewer than max remain, records the call at now. Prune, check, and
	// record happen as one atomic step so parallel callers cannot
	// over-admit past the limit.
	Reserve(tool string, cutoff, now time.Time, max int) bool
}

// MemoryStore is the in-process Store. Both maps are touched by every
// concurrent tool call, so access is guarded by a single mutex.
type MemoryStore struct {
	mu      sync.Mutex
	results map[string]CachedResult
	windows map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results: make(map[string]CachedResult),
		windows: make(map[string][]time.Time),
	}
}

func (s *MemoryStore) GetResult(key string) (CachedResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.results[key]
	return entry, ok
}

func (s *MemoryStore) SetResult(key string, value string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[key] = CachedResult{Value: value, StoredAt: now}
}

func (s *MemoryStore) Reserve(tool string, cutoff, now time.Time, max int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.windows[tool]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= max {
		s.windows[tool] = kept
		return false
	}
	s.windows[tool] = append(kept, now)
	return true
}
