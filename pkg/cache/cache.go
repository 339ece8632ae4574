// Package cache provides the in-process, self-cleaning result cache keyed
// by a fingerprint of (query, mode).
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/codeready-toolchain/deepresearch/pkg/models"
)

// Result is the immutable payload stored per cache entry: a completed
// research outcome, independent of how it was produced.
type Result struct {
	Report    string
	Citations []models.Citation
	Tokens    models.Tokens
	LatencyMs int64
}

type entry struct {
	value     Result
	expiresAt time.Time
}

// TTLs returns the entry lifetime for mode, per spec: quick 15m, standard
// 20m, deep 30m.
func TTLs(mode models.Mode) time.Duration {
	switch mode {
	case models.ModeQuick:
		return 15 * time.Minute
	case models.ModeStandard:
		return 20 * time.Minute
	case models.ModeDeep:
		return 30 * time.Minute
	default:
		return 15 * time.Minute
	}
}

// Cache is a concurrent-safe, in-process TTL map. It is a hint, not a
// lock: no single-flight guarantee is made, and the last writer for a key
// wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	sweepInterval time.Duration
	stop          chan struct{}
	stopped       sync.Once
}

// New constructs a Cache whose background sweep runs every sweepInterval.
func New(sweepInterval time.Duration) *Cache {
	c := &Cache{
		entries:       make(map[string]entry),
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Fingerprint computes the cache key for a (query, mode) pair: the 64-bit
// xxhash digest of query + "::" + mode, as 16 hex digits.
func Fingerprint(query string, mode models.Mode) string {
	sum := xxhash.Sum64String(query + "::" + string(mode))
	return fmt.Sprintf("%016x", sum)
}

// Get returns the cached Result for key, if present and unexpired. An
// expired entry is evicted on read.
func (c *Cache) Get(key string) (Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Result{}, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return Result{}, false
	}
	return e.value, true
}

// Set stores value under key with the given ttl, overwriting any existing
// entry.
func (c *Cache) Set(key string, value Result, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Len reports the current entry count, including not-yet-swept expired
// entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweep. Safe to call more than once.
func (c *Cache) Close() {
	c.stopped.Do(func() { close(c.stop) })
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}
