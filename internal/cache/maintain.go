package cache

import (
	"context"
	"time"
)

// Start runs the maintenance loop: expired entries are swept and the cache is
// purged when the TLE dataset changes. Blocks until ctx is cancelled.
func (c *PassCache) Start(ctx context.Context) {
	ticker := time.NewTicker(c.config.Sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("pass cache maintenance stopped", "component", "pass_cache")
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *PassCache) tick() {
	if c.datasetChanged() {
		c.cutover()
		return
	}
	c.evictExpired()
}

// datasetChanged reports whether the TLE store holds a dataset other than
// the one the entries were computed from.
func (c *PassCache) datasetChanged() bool {
	if c.store == nil {
		return false
	}
	ds := c.store.Get()
	if ds == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !ds.FetchedAt.Equal(c.currentFetchedAt)
}

// cutover drops all entries and records the new dataset.
func (c *PassCache) cutover() {
	ds := c.store.Get()
	if ds == nil {
		return
	}
	c.mu.Lock()
	old := c.currentFetchedAt
	c.currentFetchedAt = ds.FetchedAt
	c.mu.Unlock()

	removed := c.Purge()
	c.logger.Info("TLE dataset changed, pass cache purged",
		"component", "pass_cache",
		"old_dataset_fetched_at", old.UTC().Format(time.RFC3339),
		"new_dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
		"entries_removed", removed,
	)
}
