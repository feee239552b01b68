// Package api serves the JSON HTTP interface: catalog, visibility, passes,
// footprint windows, ground tracks, observer and clock control.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/sattrack/internal/auth"
	"github.com/star/sattrack/internal/cache"
	"github.com/star/sattrack/internal/catalog"
	"github.com/star/sattrack/internal/fleet"
	"github.com/star/sattrack/internal/health"
	"github.com/star/sattrack/internal/httputil"
	"github.com/star/sattrack/internal/metrics"
	"github.com/star/sattrack/internal/prefs"
	"github.com/star/sattrack/internal/session"
	"github.com/star/sattrack/internal/stream"
)

// Deps are the collaborators the handlers use. Cache, Stream, Prefs, Fleet
// and Altitude may be nil.
type Deps struct {
	Session  *session.Session
	Loader   *catalog.Loader
	Cache    *cache.PassCache
	Stream   *stream.Handler
	Fleet    *fleet.Pool
	Prefs    prefs.Store
	Altitude session.AltitudeLookup
	Ready    []health.Check
	Auth     auth.Config

	TrustProxy bool
	Logger     *slog.Logger
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger

	// bg bounds background work started by handlers (altitude lookups).
	bg       context.Context
	cancelBg context.CancelFunc
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Fleet == nil {
		deps.Fleet = fleet.NewPool(0, deps.Logger)
	}
	s := &Server{deps: deps, logger: deps.Logger}
	s.bg, s.cancelBg = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	s.routes(mux)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(deps.Auth)(handler)
	handler = loggingMiddleware(deps.Logger, deps.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(s.deps.Ready...))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/satellites", s.handleSatellites)
	mux.HandleFunc("GET /api/v1/positions", s.handlePositions)
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}", s.handleSatellite)
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/look", s.handleLook)
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/passes", s.handlePasses)
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/passes/today", s.handlePassesToday)
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/footprint", s.handleFootprint)
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/track", s.handleTrack)

	mux.HandleFunc("GET /api/v1/observer", s.handleGetObserver)
	mux.HandleFunc("PUT /api/v1/observer", s.handlePutObserver)
	mux.HandleFunc("GET /api/v1/selection", s.handleGetSelection)
	mux.HandleFunc("PUT /api/v1/selection", s.handlePutSelection)

	mux.HandleFunc("GET /api/v1/clock", s.handleClock)
	mux.HandleFunc("POST /api/v1/clock/play", s.handleClockPlay)
	mux.HandleFunc("POST /api/v1/clock/pause", s.handleClockPause)
	mux.HandleFunc("POST /api/v1/clock/reset", s.handleClockReset)
	mux.HandleFunc("POST /api/v1/clock/speed", s.handleClockSpeed)
	mux.HandleFunc("POST /api/v1/clock/scrub", s.handleClockScrub)
	mux.HandleFunc("POST /api/v1/clock/jog", s.handleClockJog)

	mux.HandleFunc("POST /api/v1/tle/fetch", s.handleTLEFetch)
	mux.HandleFunc("GET /api/v1/tle/metadata", s.handleTLEMetadata)
	mux.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)

	if s.deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/visibility", s.deps.Stream.HandleVisibility)
	}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops background work and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBg()
	return s.httpServer.Shutdown(ctx)
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the connection.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
