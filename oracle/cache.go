package oracle

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/scoutwork/harvest/models"
)

const (
	cacheTTL        = time.Hour
	cacheSweepEvery = 5 * time.Minute
	cacheMaxEntries = 500

	// keyPrefixLen bounds how much content feeds the hash. The first
	// slice of compressed text identifies a page well enough, and hashing
	// megabytes per lookup would dwarf the lookup itself.
	keyPrefixLen = 1000
)

// cacheKey hashes the extraction mode, source, and a content prefix.
func cacheKey(mode, sourceID, content string) string {
	runes := []rune(content)
	if len(runes) > keyPrefixLen {
		content = string(runes[:keyPrefixLen])
	}
	h := sha256.New()
	h.Write([]byte(mode))
	h.Write([]byte("|"))
	h.Write([]byte(sourceID))
	h.Write([]byte("|"))
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	records   []models.Record
	createdAt time.Time
}

// resultCache is an in-memory TTL cache for oracle outputs. Safe for
// concurrent use.
type resultCache struct {
	mu    sync.RWMutex
	store map[string]*cacheEntry
}

func newResultCache() *resultCache {
	c := &resultCache{store: make(map[string]*cacheEntry)}
	go c.sweepLoop()
	return c
}

func (c *resultCache) get(key string) ([]models.Record, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > cacheTTL {
		return nil, false
	}
	return e.records, true
}

func (c *resultCache) set(key string, records []models.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one arbitrary entry at capacity (map iteration is random).
	if len(c.store) >= cacheMaxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &cacheEntry{records: records, createdAt: time.Now()}
}

func (c *resultCache) sweepLoop() {
	ticker := time.NewTicker(cacheSweepEvery)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-cacheTTL)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
