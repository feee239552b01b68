// Package cache provides an in-memory cache for pass-prediction responses.
//
// Entries expire after a TTL and the cache holds at most MaxEntries; when full,
// the least recently used entry is evicted. When the TLE dataset changes, every
// entry is dropped since predictions computed from the old elements are stale.
package cache

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/sattrack/internal/metrics"
	"github.com/star/sattrack/internal/orbit"
	"github.com/star/sattrack/internal/passes"
	"github.com/star/sattrack/internal/tle"
)

// Config holds cache configuration.
type Config struct {
	TTL        time.Duration // Entry lifetime (default: 5m)
	MaxEntries int           // Capacity (default: 500)
	Sweep      time.Duration // Expiry sweep interval (default: 1m)
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{TTL: 5 * time.Minute, MaxEntries: 500, Sweep: time.Minute}
}

// Key identifies one pass-list computation. Observer coordinates are rounded
// to 1e-4 degrees (about 11 m) so jitter in client input still hits.
type Key struct {
	Kind         string // "next" or "today"
	NORADID      int
	Lat, Lon     float64
	AltM         float64
	Start        int64 // window start, unix seconds
	Hours        float64
	MinElevation float64
	MaxPasses    int
}

// NewKey builds a key with normalized observer coordinates.
func NewKey(kind string, noradID int, obs orbit.Observer, start time.Time, hours, minEl float64, maxPasses int) Key {
	return Key{
		Kind:         kind,
		NORADID:      noradID,
		Lat:          round4(obs.LatitudeDeg),
		Lon:          round4(obs.LongitudeDeg),
		AltM:         math.Round(obs.AltitudeMeters),
		Start:        start.Unix(),
		Hours:        hours,
		MinElevation: minEl,
		MaxPasses:    maxPasses,
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%.4f,%.4f,%.0f:%d:%g:%g:%d",
		k.Kind, k.NORADID, k.Lat, k.Lon, k.AltM,
		k.Start, k.Hours, k.MinElevation, k.MaxPasses)
}

type entry struct {
	value     []passes.Detail
	expiresAt time.Time
	lastUsed  time.Time
}

// PassCache is a TTL and size bounded cache of pass details.
// Safe for concurrent use by multiple goroutines.
type PassCache struct {
	mu      sync.Mutex
	entries map[Key]*entry

	config Config
	store  *tle.Store
	now    func() time.Time
	logger *slog.Logger

	// Dataset the entries were computed from.
	currentFetchedAt time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a pass cache. store may be nil, in which case dataset changes
// are not tracked.
func New(config Config, store *tle.Store, logger *slog.Logger) *PassCache {
	def := DefaultConfig()
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = def.MaxEntries
	}
	if config.Sweep <= 0 {
		config.Sweep = def.Sweep
	}
	logger.Info("pass cache initialized",
		"component", "pass_cache",
		"ttl_seconds", config.TTL.Seconds(),
		"max_entries", config.MaxEntries,
	)
	c := &PassCache{
		entries: make(map[Key]*entry),
		config:  config,
		store:   store,
		now:     time.Now,
		logger:  logger,
	}
	if store != nil {
		if ds := store.Get(); ds != nil {
			c.currentFetchedAt = ds.FetchedAt
		}
	}
	return c
}

// Get returns the cached details for k. Expired entries are removed and
// reported as misses.
func (c *PassCache) Get(k Key) ([]passes.Detail, bool) {
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[k]
	if ok && !now.Before(e.expiresAt) {
		delete(c.entries, k)
		ok = false
	}
	if ok {
		e.lastUsed = now
	}
	n := len(c.entries)
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		metrics.PassCacheMiss()
		metrics.SetPassCacheEntries(n)
		return nil, false
	}
	c.hits.Add(1)
	metrics.PassCacheHit()
	return e.value, true
}

// Put stores v under k, evicting the least recently used entry when full.
func (c *PassCache) Put(k Key, v []passes.Detail) {
	now := c.now()

	c.mu.Lock()
	if _, exists := c.entries[k]; !exists && len(c.entries) >= c.config.MaxEntries {
		c.evictLRU()
	}
	c.entries[k] = &entry{value: v, expiresAt: now.Add(c.config.TTL), lastUsed: now}
	n := len(c.entries)
	c.mu.Unlock()

	metrics.SetPassCacheEntries(n)
}

// GetOrCompute returns the cached value or computes, stores and returns it.
func (c *PassCache) GetOrCompute(k Key, compute func() []passes.Detail) []passes.Detail {
	if v, ok := c.Get(k); ok {
		return v
	}
	v := compute()
	c.Put(k, v)
	return v
}

// evictLRU removes the least recently used entry. Caller must hold mu.
func (c *PassCache) evictLRU() {
	var (
		oldestKey Key
		oldest    time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.lastUsed.Before(oldest) {
			oldestKey, oldest, found = k, e.lastUsed, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		c.evictions.Add(1)
	}
}

// evictExpired removes entries past their TTL.
func (c *PassCache) evictExpired() int {
	now := c.now()
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.SetPassCacheEntries(n)
		c.logger.Debug("pass cache eviction", "component", "pass_cache", "entries_removed", removed)
	}
	return removed
}

// Purge drops every entry.
func (c *PassCache) Purge() int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[Key]*entry)
	c.mu.Unlock()

	metrics.SetPassCacheEntries(0)
	return n
}

// Stats returns current cache statistics.
func (c *PassCache) Stats() Stats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Entries:   n,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Stats holds cache counters for the status endpoint.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}
