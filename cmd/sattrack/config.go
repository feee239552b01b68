package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/sattrack/internal/auth"
	"github.com/star/sattrack/internal/cache"
	"github.com/star/sattrack/internal/orbit"
	"github.com/star/sattrack/internal/session"
	"github.com/star/sattrack/internal/stream"
	"github.com/star/sattrack/internal/tle"
)

// tleConfig controls catalog fetching and the on-disk snapshot cache.
type tleConfig struct {
	EnableFetch bool
	SourceURL   string
	ExtraURLs   []string
	CacheDir    string
	MaxFiles    int
	MaxAge      time.Duration
	Mock        bool
}

type config struct {
	Addr          string
	TrustProxy    bool
	Auth          auth.Config
	TLE           tleConfig
	SchedulerTick time.Duration
	PassCache     cache.Config
	Stream        stream.Config
	PrefsFile     string
	ElevationURL  string
	Observer      *orbit.Observer
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SATTRACK")
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("trust_proxy", false)
	v.SetDefault("auth_enabled", false)
	v.SetDefault("auth_token", "")
	v.SetDefault("tle_enable_fetch", true)
	v.SetDefault("tle_source_url", tle.DefaultSourceURL)
	v.SetDefault("tle_extra_urls", "")
	v.SetDefault("tle_cache_dir", filepath.Join(os.TempDir(), "sattrack", "tle"))
	v.SetDefault("tle_max_files", 5)
	v.SetDefault("tle_max_age", "24h")
	v.SetDefault("mock_satellites", false)
	v.SetDefault("scheduler_tick", "1s")
	v.SetDefault("pass_cache_ttl", "5m")
	v.SetDefault("pass_cache_max", 500)
	v.SetDefault("stream_max_concurrent", 10)
	v.SetDefault("stream_keepalive_interval", "30s")
	v.SetDefault("prefs_file", "")
	v.SetDefault("elevation_url", "")
	v.SetDefault("observer_lat", "")
	v.SetDefault("observer_lon", "")
	v.SetDefault("observer_alt", "0")
	return v
}

// loadConfig reads SATTRACK_* environment variables and, when SATTRACK_CONFIG
// names a file, that file. Invalid optional values are logged and replaced by
// their defaults; invalid auth settings are fatal.
func loadConfig(logger *slog.Logger) (config, error) {
	v := newViper()
	if path := os.Getenv("SATTRACK_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		logger.Info("config file loaded", "component", "config", "path", path)
	}
	return configFrom(v, logger)
}

func configFrom(v *viper.Viper, logger *slog.Logger) (config, error) {
	cfg := config{
		Addr:         v.GetString("http_addr"),
		TrustProxy:   boolValue(v, "trust_proxy", false, logger),
		PrefsFile:    v.GetString("prefs_file"),
		ElevationURL: v.GetString("elevation_url"),
	}

	authCfg, err := authConfig(v)
	if err != nil {
		return cfg, err
	}
	cfg.Auth = authCfg

	cfg.TLE = tleConfig{
		EnableFetch: boolValue(v, "tle_enable_fetch", true, logger),
		SourceURL:   v.GetString("tle_source_url"),
		ExtraURLs:   listValue(v, "tle_extra_urls"),
		CacheDir:    v.GetString("tle_cache_dir"),
		MaxFiles:    positiveInt(v, "tle_max_files", 5, logger),
		MaxAge:      durationValue(v, "tle_max_age", 24*time.Hour, logger),
		Mock:        boolValue(v, "mock_satellites", false, logger),
	}

	cfg.SchedulerTick = durationValue(v, "scheduler_tick", session.DefaultTick, logger)

	def := cache.DefaultConfig()
	cfg.PassCache = cache.Config{
		TTL:        durationValue(v, "pass_cache_ttl", def.TTL, logger),
		MaxEntries: positiveInt(v, "pass_cache_max", def.MaxEntries, logger),
		Sweep:      def.Sweep,
	}

	cfg.Stream = stream.Config{
		MaxConcurrentPerIP: positiveInt(v, "stream_max_concurrent", 10, logger),
		KeepaliveInterval:  durationValue(v, "stream_keepalive_interval", 30*time.Second, logger),
		TrustProxy:         cfg.TrustProxy,
	}

	cfg.Observer = observerValue(v, logger)

	logger.Info("config",
		"component", "config",
		"addr", cfg.Addr,
		"auth_enabled", cfg.Auth.Enabled,
		"tle_fetch_enabled", cfg.TLE.EnableFetch,
		"tle_source_url", cfg.TLE.SourceURL,
		"tle_extra_urls", cfg.TLE.ExtraURLs,
		"tle_cache_dir", cfg.TLE.CacheDir,
		"tle_max_age_seconds", cfg.TLE.MaxAge.Seconds(),
		"mock_satellites", cfg.TLE.Mock,
		"scheduler_tick_ms", cfg.SchedulerTick.Milliseconds(),
		"pass_cache_ttl_seconds", cfg.PassCache.TTL.Seconds(),
		"pass_cache_max", cfg.PassCache.MaxEntries,
		"stream_max_concurrent_per_ip", cfg.Stream.MaxConcurrentPerIP,
		"prefs_file", cfg.PrefsFile,
	)
	return cfg, nil
}

func authConfig(v *viper.Viper) (auth.Config, error) {
	cfg := auth.Config{}
	if s := v.GetString("auth_enabled"); s != "" {
		enabled, err := strconv.ParseBool(s)
		if err != nil {
			return cfg, errors.New("SATTRACK_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}
	if cfg.Enabled {
		cfg.Token = v.GetString("auth_token")
		if cfg.Token == "" {
			return cfg, errors.New("SATTRACK_AUTH_TOKEN is required when auth is enabled")
		}
	}
	return cfg, nil
}

func boolValue(v *viper.Viper, key string, def bool, logger *slog.Logger) bool {
	s := v.GetString(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		logger.Warn("invalid boolean value, using default", "component", "config", "key", key, "value", s, "default", def)
		return def
	}
	return b
}

func positiveInt(v *viper.Viper, key string, def int, logger *slog.Logger) int {
	s := v.GetString(key)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		logger.Warn("invalid integer value, using default", "component", "config", "key", key, "value", s, "default", def)
		return def
	}
	return n
}

// durationValue accepts a Go duration ("90s", "5m") or a bare number of
// seconds.
func durationValue(v *viper.Viper, key string, def time.Duration, logger *slog.Logger) time.Duration {
	s := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(s)
	if err != nil {
		if n, nerr := strconv.ParseFloat(s, 64); nerr == nil {
			d, err = time.Duration(n*float64(time.Second)), nil
		}
	}
	if err != nil || d <= 0 {
		logger.Warn("invalid duration value, using default", "component", "config", "key", key, "value", s, "default", def.String())
		return def
	}
	return d
}

// observerValue returns the configured default observer, or nil when none is
// set or the values do not describe a valid location.
func observerValue(v *viper.Viper, logger *slog.Logger) *orbit.Observer {
	latS, lonS := v.GetString("observer_lat"), v.GetString("observer_lon")
	if latS == "" && lonS == "" {
		return nil
	}
	lat, err1 := strconv.ParseFloat(latS, 64)
	lon, err2 := strconv.ParseFloat(lonS, 64)
	alt, err3 := strconv.ParseFloat(v.GetString("observer_alt"), 64)
	if err := errors.Join(err1, err2, err3); err != nil {
		logger.Warn("invalid default observer, ignoring", "component", "config", "error", err)
		return nil
	}
	obs, err := orbit.NewObserver(lat, lon, alt)
	if err != nil {
		logger.Warn("invalid default observer, ignoring", "component", "config", "error", err)
		return nil
	}
	return &obs
}

// listValue accepts a list from a config file or a comma-separated string.
func listValue(v *viper.Viper, key string) []string {
	if items, ok := v.Get(key).([]any); ok {
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return splitList(v.GetString(key))
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
