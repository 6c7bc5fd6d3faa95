package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucketKey struct {
	key    string
	window Window
}

type bucket struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int64
	evicted     bool
}

// MemoryStore keeps counters in process memory. The map is guarded by a
// read-mostly lock and every bucket has its own mutex, so unrelated keys
// never wait on each other.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[bucketKey]*bucket
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[bucketKey]*bucket)}
}

func (s *MemoryStore) lookup(k bucketKey) *bucket {
	s.mu.RLock()
	b, ok := s.buckets[k]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buckets[k]; !ok {
		b = &bucket{}
		s.buckets[k] = b
	}
	return b
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, window Window, now time.Time) (int64, time.Time, error) {
	k := bucketKey{key: key, window: window}
	length := window.Length()

	for {
		b := s.lookup(k)

		b.mu.Lock()
		if b.evicted {
			// Lost a race with Sweep; the next lookup creates a new bucket.
			b.mu.Unlock()
			continue
		}
		if b.windowStart.IsZero() || !now.Before(b.windowStart.Add(length)) {
			b.windowStart = window.Start(now)
			b.count = 0
		}
		b.count++
		count, start := b.count, b.windowStart
		b.mu.Unlock()

		return count, start, nil
	}
}

// Sweep evicts buckets whose window has ended before now and returns how
// many were removed. Evicting an elapsed bucket never changes a later
// decision; it only releases memory.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, b := range s.buckets {
		b.mu.Lock()
		if !now.Before(b.windowStart.Add(k.window.Length())) {
			b.evicted = true
			delete(s.buckets, k)
			removed++
		}
		b.mu.Unlock()
	}
	return removed
}

// Len returns the number of live buckets.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets)
}
