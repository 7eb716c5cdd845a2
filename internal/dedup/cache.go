// Package dedup remembers which cells already have a population request in
// flight so the same cell is not requested again inside the TTL window.
package dedup

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
)

const (
	defaultMaxEntries = 1024
	defaultTTL        = 240 * time.Second
)

// Cache is a TTL layer over a bounded LRU. Reads peek without touching
// recency, so eviction order tracks marking order and the oldest pending
// cells are evicted first when the cache fills. Expired entries are removed
// lazily, on the next read that sees them.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries *lru.Cache[model.Cell, time.Time]
}

func New(maxEntries int, ttl time.Duration) *Cache {
	return NewWithClock(maxEntries, ttl, time.Now)
}

// NewWithClock is for tests that need to control time.
func NewWithClock(maxEntries int, ttl time.Duration, now func() time.Time) *Cache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	entries, _ := lru.New[model.Cell, time.Time](maxEntries)
	return &Cache{ttl: ttl, now: now, entries: entries}
}

// StillPending returns the subset of cells marked less than one TTL ago.
// The whole batch is checked under one lock.
func (c *Cache) StillPending(cells []model.Cell) map[model.Cell]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make(map[model.Cell]struct{})
	for _, cell := range cells {
		marked, ok := c.entries.Peek(cell)
		if !ok {
			continue
		}
		if now.Sub(marked) >= c.ttl {
			c.entries.Remove(cell)
			continue
		}
		out[cell] = struct{}{}
	}
	return out
}

// MarkPending records that population was just requested for the cells.
// Re-marking a cell restarts its window.
func (c *Cache) MarkPending(cells []model.Cell) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, cell := range cells {
		c.entries.Add(cell, now)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
