package translate

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Cache is a bounded translation cache keyed by (text, source, target).
// Entries expire after the TTL; when full, the oldest insertion is evicted.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache holding at most maxSize entries for ttl each.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(text, sourceLocale, targetLocale string) string {
	if sourceLocale == "" {
		sourceLocale = "auto"
	}
	return text + ":" + sourceLocale + ":" + targetLocale
}

// Get returns the cached translation if present and fresh.
func (c *Cache) Get(text, sourceLocale, targetLocale string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(text, sourceLocale, targetLocale)
	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		c.dropOrder(key)
		return "", false
	}
	return entry.value, true
}

// dropOrder removes key from the insertion order so a later re-insert
// does not leave a stale slot behind. Caller holds the lock.
func (c *Cache) dropOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Put stores a translation, evicting the oldest entry on overflow.
func (c *Cache) Put(text, sourceLocale, targetLocale, translated string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(text, sourceLocale, targetLocale)
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{value: translated, expiresAt: c.now().Add(c.ttl)}

	for len(c.entries) > c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
