package cache

import (
	"sync"
	"time"
)

// LocalTier holds the last successfully fetched copy of one hot value in
// process memory, fronting the distributed store on the highest-traffic
// read paths. It is owned by the process that populated it, never
// authoritative, and disposable at any time; consistency across instances
// is bounded only by its TTL.
type LocalTier struct {
	mu        sync.RWMutex
	ttl       time.Duration
	data      []byte
	fetchedAt time.Time
}

// NewLocalTier creates a local tier with the given window. A zero or
// negative TTL yields a tier that never reports a hit.
func NewLocalTier(ttl time.Duration) *LocalTier {
	return &LocalTier{ttl: ttl}
}

// Read returns the held copy if it is still within the window.
func (t *LocalTier) Read() ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.data == nil || t.ttl <= 0 {
		return nil, false
	}
	if time.Since(t.fetchedAt) >= t.ttl {
		return nil, false
	}
	return t.data, true
}

// Write replaces the held copy and resets the window. Called after every
// successful read from a lower tier so the next local read avoids all I/O.
func (t *LocalTier) Write(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data = data
	t.fetchedAt = time.Now()
}

// Invalidate drops the held copy.
func (t *LocalTier) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data = nil
	t.fetchedAt = time.Time{}
}
