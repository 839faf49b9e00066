package server

import (
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a snapshot is served without rereading the
// backend, which may be changed by another process holding its lock.
const DefaultCacheTTL = 30 * time.Second

// snapshotCache holds the last snapshot read from or written to the backend.
// Decrypting an encrypted data file costs a key derivation, so GETs are
// served from here.
type snapshotCache struct {
	mu      sync.RWMutex
	data    []byte
	updated time.Time
	ttl     time.Duration
	now     func() time.Time
}

func newSnapshotCache(ttl time.Duration) *snapshotCache {
	return &snapshotCache{ttl: ttl, now: time.Now}
}

func (c *snapshotCache) Get() ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data == nil || c.ttl <= 0 {
		return nil, false
	}
	if c.now().Sub(c.updated) > c.ttl {
		return nil, false
	}
	return c.data, true
}

// Set stores data. Callers must not modify it afterwards.
func (c *snapshotCache) Set(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = data
	c.updated = c.now()
}

func (c *snapshotCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = nil
}
