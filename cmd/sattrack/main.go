package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/sattrack/internal/api"
	"github.com/star/sattrack/internal/cache"
	"github.com/star/sattrack/internal/catalog"
	"github.com/star/sattrack/internal/elevation"
	"github.com/star/sattrack/internal/fleet"
	"github.com/star/sattrack/internal/health"
	"github.com/star/sattrack/internal/prefs"
	"github.com/star/sattrack/internal/session"
	"github.com/star/sattrack/internal/simclock"
	"github.com/star/sattrack/internal/stream"
	"github.com/star/sattrack/internal/tle"
)

// defaultNORADID is tracked on start when nothing else is selected.
const defaultNORADID = 25544

// refreshCheckInterval is how often the dataset age is compared to tle_max_age.
const refreshCheckInterval = 10 * time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := loadConfig(logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store := tle.NewStore()
	var source catalog.Source
	if cfg.TLE.EnableFetch && !cfg.TLE.Mock {
		source = tle.NewFetcher(cfg.TLE.SourceURL, logger, cfg.TLE.ExtraURLs...)
	}
	loader := catalog.NewLoader(source, tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles), store, logger)

	if cfg.TLE.Mock {
		loader.UseMock()
		logger.Info("using synthetic satellites", "count", loader.Current().Len())
	} else if err := loader.LoadCached(); err != nil {
		logger.Info("no TLE cache found, starting with synthetic satellites", "error", err)
	} else {
		logger.Info("loaded TLE data from cache", "count", loader.Current().Len())
	}

	clock := simclock.New(simclock.WithBounds(simclock.DefaultBounds))
	sess := session.New(clock, loader, logger)
	prefStore := openPrefs(cfg, logger)
	restoreSession(sess, prefStore, cfg, logger)

	scheduler := session.NewScheduler(sess, cfg.SchedulerTick, logger)
	passCache := cache.New(cfg.PassCache, store, logger)
	streamHandler := stream.NewHandler(scheduler, clock, store, func() string {
		return loader.Current().Source()
	}, cfg.Stream, logger)
	elevations := elevation.NewClient(cfg.ElevationURL, logger)

	srv := api.NewServer(cfg.Addr, api.Deps{
		Session:  sess,
		Loader:   loader,
		Cache:    passCache,
		Stream:   streamHandler,
		Fleet:    fleet.NewPool(0, logger),
		Prefs:    prefStore,
		Altitude: elevations.Lookup,
		Ready: []health.Check{func() error {
			if loader.Current().Len() == 0 {
				return errors.New("catalog is empty")
			}
			return nil
		}},
		Auth:       cfg.Auth,
		TrustProxy: cfg.TrustProxy,
		Logger:     logger,
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go scheduler.Run(ctx)
	go passCache.Start(ctx)
	if source != nil {
		go refreshLoop(ctx, loader, store, cfg.TLE.MaxAge, logger)
	}

	go func() {
		logger.Info("starting server", "addr", cfg.Addr, "auth_enabled", cfg.Auth.Enabled, "tle_fetch_enabled", source != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	if err := prefStore.Save(api.CurrentPrefs(sess)); err != nil {
		logger.Warn("saving preferences failed", "error", err)
	}

	logger.Info("server stopped")
}

func openPrefs(cfg config, logger *slog.Logger) prefs.Store {
	if cfg.PrefsFile == "" {
		return prefs.NewMemoryStore()
	}
	fs, err := prefs.NewFileStore(cfg.PrefsFile)
	if err != nil {
		logger.Warn("invalid prefs file, preferences will not persist", "path", cfg.PrefsFile, "error", err)
		return prefs.NewMemoryStore()
	}
	return fs
}

// restoreSession applies saved preferences, falls back to the configured
// default observer and selects the default satellite.
func restoreSession(sess *session.Session, store prefs.Store, cfg config, logger *slog.Logger) {
	p, err := store.Load()
	if err != nil {
		logger.Warn("loading preferences failed, using defaults", "error", err)
		p = prefs.Defaults()
	}
	if err := api.ApplyPrefs(sess, p); err != nil {
		logger.Warn("ignoring invalid saved preferences", "error", err)
	}
	if _, ok := sess.Observer(); !ok && cfg.Observer != nil {
		if err := sess.SetObserver(*cfg.Observer); err != nil {
			logger.Warn("invalid default observer", "error", err)
		}
	}
	if err := sess.Select(defaultNORADID); err != nil {
		logger.Warn("default satellite not in catalog", "norad_id", defaultNORADID, "error", err)
	}
}

// refreshLoop fetches the catalog at start when the dataset is missing or
// older than maxAge, then rechecks periodically.
func refreshLoop(ctx context.Context, loader *catalog.Loader, store *tle.Store, maxAge time.Duration, logger *slog.Logger) {
	refreshIfStale := func() {
		if ds := store.Get(); ds != nil && store.Age(time.Now()) < maxAge {
			return
		}
		if _, err := loader.Refresh(ctx); err != nil {
			logger.Warn("scheduled TLE refresh failed", "error", err)
		}
	}

	refreshIfStale()
	ticker := time.NewTicker(min(refreshCheckInterval, maxAge))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			refreshIfStale()
		case <-ctx.Done():
			return
		}
	}
}
