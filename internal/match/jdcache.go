package match

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JDCache holds extracted JDs for the scorer. Implementations may be
// per-replica (repopulated from the event stream, which is idempotent) or
// shared; tests inject their own.
type JDCache interface {
	Get(jobID uuid.UUID) (StructuredJD, bool)
	Put(jobID uuid.UUID, jd StructuredJD)
	Evict(jobID uuid.UUID)
}

type cacheEntry struct {
	jd       StructuredJD
	lastSeen time.Time
}

// MemoryJDCache is a mutex-guarded map with a sliding TTL. Entries expire
// ttl after last access so the map stays bounded across long-lived workers.
type MemoryJDCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryJDCache(ttl time.Duration) *MemoryJDCache {
	return &MemoryJDCache{
		entries: make(map[uuid.UUID]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryJDCache) Get(jobID uuid.UUID) (StructuredJD, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[jobID]
	if !ok {
		return StructuredJD{}, false
	}
	now := c.now()
	if c.ttl > 0 && now.Sub(entry.lastSeen) > c.ttl {
		delete(c.entries, jobID)
		return StructuredJD{}, false
	}
	entry.lastSeen = now
	c.entries[jobID] = entry
	return entry.jd, true
}

// Put is last-write-wins: extraction is idempotent, so a redelivered
// JdExtracted overwriting an entry is harmless.
func (c *MemoryJDCache) Put(jobID uuid.UUID, jd StructuredJD) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[jobID] = cacheEntry{jd: jd, lastSeen: c.now()}
	c.sweepLocked()
}

func (c *MemoryJDCache) Evict(jobID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, jobID)
}

func (c *MemoryJDCache) sweepLocked() {
	if c.ttl <= 0 {
		return
	}
	cutoff := c.now().Add(-c.ttl)
	for id, entry := range c.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(c.entries, id)
		}
	}
}
