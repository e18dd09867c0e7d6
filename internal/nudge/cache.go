package nudge

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/spendguard/internal/model"
)

// cacheEntry represents a cached nudge.
type cacheEntry struct {
	expiry time.Time
	text   string
}

// nudgeCache keeps generated nudges so revisiting a product does not cost
// another request.
type nudgeCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// newNudgeCache creates a new cache with the specified TTL.
func newNudgeCache(ttl time.Duration) *nudgeCache {
	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	cache := &nudgeCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

func cacheKey(pc model.PurchaseContext) string {
	return strings.ToLower(fmt.Sprintf("%s|%s|%s", pc.ProductName, pc.PriceText, pc.Platform))
}

func (c *nudgeCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		return "", false
	}
	return entry.text, true
}

func (c *nudgeCache) set(key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		text:   text,
		expiry: time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *nudgeCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *nudgeCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *nudgeCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
