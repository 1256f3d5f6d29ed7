package dedupe

import (
	"sync"
)

const DefaultMaxCacheSize = 100

// Cache is a bounded, insertion-ordered set of previously processed event
// identities. It tolerates at-least-once webhook delivery: an identity is not
// reprocessed while it remains in the window. The window is bounded by count,
// not time, so an event re-delivered after capacity-driven eviction can be
// reprocessed. That is an accepted limitation, not something to fix here.
type Cache struct {
	mu       sync.Mutex
	capacity int
	present  map[string]struct{}
	order    []string // insertion order, oldest first
}

// NewCache creates a cache bounded at capacity entries. Non-positive
// capacities fall back to the default.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultMaxCacheSize
	}
	return &Cache{
		capacity: capacity,
		present:  make(map[string]struct{}, capacity),
	}
}

// Admit records identity and returns true if it was not already present.
// The membership check and the insert are one atomic unit: two concurrent
// requests carrying the same identity cannot both be admitted.
//
// When the post-insert size exceeds capacity, the oldest capacity/5 entries
// (rounded down, at least one) are evicted in a batch. Batch eviction
// amortizes the slice shift against bursty delivery instead of paying it on
// every insert.
func (c *Cache) Admit(identity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.present[identity]; ok {
		return false
	}

	c.present[identity] = struct{}{}
	c.order = append(c.order, identity)

	if len(c.order) > c.capacity {
		n := c.capacity / 5
		if n < 1 {
			n = 1
		}
		for _, old := range c.order[:n] {
			delete(c.present, old)
		}
		c.order = append(c.order[:0], c.order[n:]...)
	}

	return true
}

// Len returns the current number of cached identities.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
