package classifier

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// CacheTTL is how long a domain classification stays valid.
const CacheTTL = 10 * time.Minute

type cacheEntry struct {
	category string
	ts       time.Time
}

// Cache is the process-local domain classification cache. Entries expire
// after CacheTTL; the whole cache is invalidated when the category
// configuration changes. Never persisted, so cold-start re-classifies.
type Cache struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	entries map[string]cacheEntry
}

// NewCache creates an empty cache driven by the given clock.
func NewCache(clock clockwork.Clock) *Cache {
	return &Cache{
		clock:   clock,
		entries: map[string]cacheEntry{},
	}
}

// Get returns the cached category for a domain when the entry is still fresh.
func (c *Cache) Get(domain string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[domain]
	if !ok {
		return "", false
	}
	if c.clock.Since(e.ts) >= CacheTTL {
		delete(c.entries, domain)
		return "", false
	}
	return e.category, true
}

// Put records a classification for a domain.
func (c *Cache) Put(domain, category string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = cacheEntry{category: category, ts: c.clock.Now()}
}

// Reset drops every entry. Called when the category configuration changes.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]cacheEntry{}
}
