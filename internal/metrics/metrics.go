package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sattrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	passScansTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sattrack_pass_scans_total",
		Help: "Total number of pass scans run.",
	})

	passScanDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sattrack_pass_scan_duration_seconds",
		Help:    "Duration of a single-satellite pass scan.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	passesFoundTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sattrack_passes_found_total",
		Help: "Total number of passes emitted by pass scans.",
	})

	oracleMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sattrack_oracle_misses_total",
		Help: "Samples skipped because the position oracle returned no data.",
	})

	footprintWindowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sattrack_footprint_windows_total",
		Help: "Total number of LOS footprint windows found.",
	})

	passCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sattrack_pass_cache_hits_total",
		Help: "Pass cache lookups served from cache.",
	})

	passCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sattrack_pass_cache_misses_total",
		Help: "Pass cache lookups that required a scan.",
	})

	passCacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sattrack_pass_cache_entries",
		Help: "Current number of entries in the pass cache.",
	})

	streamConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sattrack_stream_connections_active",
		Help: "Number of open visibility stream connections.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sattrack_stream_messages_total",
		Help: "Total SSE messages written.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_stream_errors_total",
			Help: "Visibility stream errors by reason.",
		},
		[]string{"reason"},
	)

	clockSpeed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sattrack_clock_speed",
		Help: "Current simulated clock speed multiplier.",
	})

	tleSatellites = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sattrack_tle_satellites",
		Help: "Number of satellites in the active TLE dataset.",
	})

	tleFetchedAt = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sattrack_tle_fetched_timestamp_seconds",
		Help: "Unix time the active TLE dataset was fetched.",
	})

	fleetSnapshotDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sattrack_fleet_snapshot_duration_seconds",
		Help:    "Duration of an all-satellite position snapshot.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	fleetPositionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_fleet_positions_total",
			Help: "Satellite positions evaluated by fleet snapshots, by result.",
		},
		[]string{"result"},
	)

	staleDiscardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_stale_discards_total",
			Help: "Async completions discarded because a newer request superseded them.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		passScansTotal,
		passScanDurationSeconds,
		passesFoundTotal,
		oracleMissesTotal,
		footprintWindowsTotal,
		passCacheHitsTotal,
		passCacheMissesTotal,
		passCacheEntries,
		streamConnectionsActive,
		streamMessagesTotal,
		streamErrorsTotal,
		clockSpeed,
		tleSatellites,
		tleFetchedAt,
		fleetSnapshotDurationSeconds,
		fleetPositionsTotal,
		staleDiscardsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePassScan records one completed scan.
func ObservePassScan(d time.Duration, found, misses int) {
	passScansTotal.Inc()
	passScanDurationSeconds.Observe(d.Seconds())
	passesFoundTotal.Add(float64(found))
	oracleMissesTotal.Add(float64(misses))
}

// AddFootprintWindows counts windows returned by a footprint search.
func AddFootprintWindows(n int) {
	footprintWindowsTotal.Add(float64(n))
}

// PassCacheHit records a cache hit.
func PassCacheHit() { passCacheHitsTotal.Inc() }

// PassCacheMiss records a cache miss.
func PassCacheMiss() { passCacheMissesTotal.Inc() }

// SetPassCacheEntries sets the pass cache size gauge.
func SetPassCacheEntries(n int) { passCacheEntries.Set(float64(n)) }

// StreamConnected increments the active stream gauge.
func StreamConnected() { streamConnectionsActive.Inc() }

// StreamDisconnected decrements the active stream gauge.
func StreamDisconnected() { streamConnectionsActive.Dec() }

// StreamMessage counts one written SSE message.
func StreamMessage() { streamMessagesTotal.Inc() }

// StreamError counts a stream failure by reason (rate_limited, write, encode).
func StreamError(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// SetClockSpeed publishes the simulated clock speed.
func SetClockSpeed(v float64) { clockSpeed.Set(v) }

// SetTLEDataset publishes the active dataset size and fetch time.
func SetTLEDataset(count int, fetchedAt time.Time) {
	tleSatellites.Set(float64(count))
	tleFetchedAt.Set(float64(fetchedAt.Unix()))
}

// ObserveFleetSnapshot records one fleet snapshot.
func ObserveFleetSnapshot(d time.Duration, ok, failed int) {
	fleetSnapshotDurationSeconds.Observe(d.Seconds())
	fleetPositionsTotal.WithLabelValues("ok").Add(float64(ok))
	fleetPositionsTotal.WithLabelValues("failed").Add(float64(failed))
}

// StaleDiscard counts a discarded stale async completion.
func StaleDiscard(kind string) { staleDiscardsTotal.WithLabelValues(kind).Inc() }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through to the underlying writer so SSE handlers keep working.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the connection.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

var exactRoutes = map[string]bool{
	"/":                         true,
	"/healthz":                  true,
	"/readyz":                   true,
	"/metrics":                  true,
	"/api/v1/satellites":        true,
	"/api/v1/positions":         true,
	"/api/v1/observer":          true,
	"/api/v1/selection":         true,
	"/api/v1/clock":             true,
	"/api/v1/clock/play":        true,
	"/api/v1/clock/pause":       true,
	"/api/v1/clock/reset":       true,
	"/api/v1/clock/speed":       true,
	"/api/v1/clock/scrub":       true,
	"/api/v1/clock/jog":         true,
	"/api/v1/tle/fetch":         true,
	"/api/v1/tle/metadata":      true,
	"/api/v1/cache/stats":       true,
	"/api/v1/stream/visibility": true,
}

var satelliteSubroutes = map[string]bool{
	"look":         true,
	"passes":       true,
	"passes/today": true,
	"footprint":    true,
	"track":        true,
}

// normalizeRoute maps a request path to a bounded label set so per-satellite
// paths do not create one series per NORAD id.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}

	const prefix = "/api/v1/satellites/"
	if rest, ok := strings.CutPrefix(path, prefix); ok {
		id, sub, _ := strings.Cut(rest, "/")
		if _, err := strconv.Atoi(id); err != nil {
			return "other"
		}
		if sub == "" {
			return prefix + "{norad_id}"
		}
		if satelliteSubroutes[sub] {
			return prefix + "{norad_id}/" + sub
		}
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
