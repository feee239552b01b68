// Package elevation looks up ground elevation for an observer location.
package elevation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// DefaultBaseURL is the Open-Meteo elevation endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/elevation"

const maxBodyBytes = 64 << 10

// Memo limits. Ground elevation does not change, so the TTL only ages out
// locations nobody asks for anymore.
const (
	memoTTL        = 24 * time.Hour
	memoMaxEntries = 1000
)

// ErrNoElevation is returned when the response carries no usable value.
var ErrNoElevation = errors.New("no elevation in response")

type memoEntry struct {
	meters    float64
	expiresAt time.Time
	lastUsed  time.Time
}

// Client queries an elevation service and memoizes answers per location
// rounded to 1e-4 degrees, for at most memoTTL and memoMaxEntries locations.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu         sync.Mutex
	cache      map[string]*memoEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		cache:      make(map[string]*memoEntry),
		ttl:        memoTTL,
		maxEntries: memoMaxEntries,
		now:        time.Now,
	}
}

func (c *Client) cached(key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[key]
	if !ok {
		return 0, false
	}
	now := c.now()
	if !now.Before(e.expiresAt) {
		delete(c.cache, key)
		return 0, false
	}
	e.lastUsed = now
	return e.meters, true
}

func (c *Client) remember(key string, meters float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, exists := c.cache[key]; !exists && len(c.cache) >= c.maxEntries {
		c.evict(now)
	}
	c.cache[key] = &memoEntry{meters: meters, expiresAt: now.Add(c.ttl), lastUsed: now}
}

// evict drops expired entries, or the least recently used one if none have
// expired. Callers hold c.mu.
func (c *Client) evict(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
		expired   bool
	)
	for k, e := range c.cache {
		if !now.Before(e.expiresAt) {
			delete(c.cache, k)
			expired = true
			continue
		}
		if oldestKey == "" || e.lastUsed.Before(oldest) {
			oldestKey, oldest = k, e.lastUsed
		}
	}
	if !expired && oldestKey != "" {
		delete(c.cache, oldestKey)
	}
}

func cacheKey(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', 4, 64) + "," + strconv.FormatFloat(lon, 'f', 4, 64)
}

// response accepts both the array form and a bare number.
type response struct {
	Elevation  json.RawMessage `json:"elevation"`
	Elevations []float64       `json:"elevations"`
}

func (r response) meters() (float64, bool) {
	if len(r.Elevation) > 0 {
		var arr []float64
		if err := json.Unmarshal(r.Elevation, &arr); err == nil && len(arr) > 0 {
			return arr[0], true
		}
		var v float64
		if err := json.Unmarshal(r.Elevation, &v); err == nil {
			return v, true
		}
	}
	if len(r.Elevations) > 0 {
		return r.Elevations[0], true
	}
	return 0, false
}

// Lookup returns the ground elevation in meters at (lat, lon). Its signature
// matches session.AltitudeLookup.
func (c *Client) Lookup(ctx context.Context, lat, lon float64) (float64, error) {
	key := cacheKey(lat, lon)
	if v, ok := c.cached(key); ok {
		return v, nil
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching elevation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code %d from elevation service", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return 0, fmt.Errorf("decoding elevation response: %w", err)
	}
	meters, ok := body.meters()
	if !ok || math.IsNaN(meters) || math.IsInf(meters, 0) {
		return 0, ErrNoElevation
	}

	c.remember(key, meters)

	c.logger.Debug("elevation lookup",
		"component", "elevation",
		"lat", lat,
		"lon", lon,
		"alt_m", meters,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return meters, nil
}
