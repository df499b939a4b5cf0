package ledger

import (
	"sync"
	"time"

	"github.com/contentgate/contentgate/internal/model"
)

// licenseCache is a TTL cache for license lookups, keyed by URL.
// Safe for concurrent use; the per-URL fan-out reads and writes it
// from multiple goroutines.
type licenseCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	info    model.LicenseInfo
	expires time.Time
}

func newLicenseCache(ttl time.Duration) *licenseCache {
	return &licenseCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *licenseCache) get(url string) (model.LicenseInfo, bool) {
	c.mu.RLock()
	e, ok := c.entries[url]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return model.LicenseInfo{}, false
	}
	return e.info, true
}

func (c *licenseCache) put(url string, info model.LicenseInfo) {
	c.mu.Lock()
	c.entries[url] = cacheEntry{info: info, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
