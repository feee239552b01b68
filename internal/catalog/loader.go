package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/star/sattrack/internal/metrics"
	"github.com/star/sattrack/internal/orbit"
	"github.com/star/sattrack/internal/session"
	"github.com/star/sattrack/internal/tle"
)

// Source fetches raw element set text. *tle.Fetcher implements it.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	SourceURL() string
}

// Loader keeps the current catalog. Refreshes may overlap; a refresh that
// finishes after a newer one was started is discarded.
type Loader struct {
	source  Source // nil disables network fetches
	cache   *tle.Cache
	store   *tle.Store
	logger  *slog.Logger
	now     func() time.Time
	token   session.Token
	current atomic.Pointer[Catalog]
}

// NewLoader creates a Loader holding the mock fleet until the first
// successful load. source and cache may be nil.
func NewLoader(source Source, cache *tle.Cache, store *tle.Store, logger *slog.Logger) *Loader {
	l := &Loader{
		source: source,
		cache:  cache,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	l.current.Store(Mock())
	return l
}

// Current returns the active catalog. It is never nil.
func (l *Loader) Current() *Catalog {
	return l.current.Load()
}

// Lookup finds a satellite in the active catalog.
func (l *Loader) Lookup(id int) (orbit.Satellite, bool) {
	return l.Current().Lookup(id)
}

// Store returns the dataset store backing the catalog.
func (l *Loader) Store() *tle.Store {
	return l.store
}

// UseMock switches to the synthetic fleet and supersedes in-flight refreshes.
func (l *Loader) UseMock() {
	tok := l.token.Next()
	_ = l.token.Apply(tok, func() { l.current.Store(Mock()) })
}

// LoadCached builds the catalog from the newest on-disk snapshot.
func (l *Loader) LoadCached() error {
	if l.cache == nil {
		return tle.ErrNoCache
	}
	tok := l.token.Next()
	data, ts, err := l.cache.LoadLatest()
	if err != nil {
		return err
	}
	_, err = l.publish(tok, "cache", data, ts)
	return err
}

// Refresh fetches from the source, falling back to the newest snapshot when
// the fetch fails. Successful fetches are written to the cache.
func (l *Loader) Refresh(ctx context.Context) (*Catalog, error) {
	if l.source == nil {
		return nil, errors.New("no TLE source configured")
	}
	tok := l.token.Next()
	start := l.now()

	data, err := l.source.Fetch(ctx)
	if err != nil {
		l.logger.Warn("TLE fetch failed", "component", "catalog", "url", l.source.SourceURL(), "error", err)
		if l.cache == nil {
			return nil, fmt.Errorf("fetching TLE data: %w", err)
		}
		cached, ts, cerr := l.cache.LoadLatest()
		if cerr != nil {
			return nil, fmt.Errorf("fetching TLE data: %w (cache: %v)", err, cerr)
		}
		return l.publish(tok, "cache", cached, ts)
	}

	if l.cache != nil {
		if err := l.cache.Write(data, start); err != nil {
			l.logger.Warn("TLE cache write failed", "component", "catalog", "error", err)
		}
	}

	cat, err := l.publish(tok, l.source.SourceURL(), data, start)
	if err == nil {
		l.logger.Info("TLE refresh complete",
			"component", "catalog",
			"satellites", cat.Len(),
			"duration_ms", l.now().Sub(start).Milliseconds(),
		)
	}
	return cat, err
}

func (l *Loader) publish(tok uint64, source string, data []byte, fetchedAt time.Time) (*Catalog, error) {
	entries, err := tle.Parse(bytes.NewReader(data), l.logger)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no valid TLE entries from %s", source)
	}

	ds := tle.NewDataset(source, fetchedAt, entries)
	cat := New(source, entries, l.logger)
	if cat.Len() == 0 {
		return nil, fmt.Errorf("no usable satellites from %s", source)
	}

	err = l.token.Apply(tok, func() {
		if l.store != nil {
			l.store.Set(ds)
		}
		l.current.Store(cat)
	})
	if err != nil {
		metrics.StaleDiscard("catalog")
		l.logger.Info("discarding superseded catalog", "component", "catalog", "source", source)
		return nil, err
	}
	metrics.SetTLEDataset(cat.Len(), fetchedAt)
	return cat, nil
}
