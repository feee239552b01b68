// Package stream implements Server-Sent Events (SSE) streaming of visibility
// frames. Clients connect via GET /api/v1/stream/visibility and receive every
// frame the scheduler publishes for the tracked satellite.
//
// SSE message format:
//
//	data: {"type":"frame","time":"2026-02-06T04:00:00Z","norad_id":25544,...}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","catalog_source":"...","tle_age_seconds":1800,"clock":{...}}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
package stream

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/star/sattrack/internal/httputil"
	"github.com/star/sattrack/internal/metrics"
	"github.com/star/sattrack/internal/session"
	"github.com/star/sattrack/internal/simclock"
	"github.com/star/sattrack/internal/tle"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Global stream cap (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Read client IP from proxy headers.
}

// Source is what the handler streams from.
type Source interface {
	Subscribe() (<-chan session.Frame, func())
	Latest() (session.Frame, bool)
}

// Handler manages SSE streaming connections.
type Handler struct {
	source  Source
	clock   *simclock.Clock
	store   *tle.Store
	catalog func() string
	config  Config
	limiter *connLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler. catalogSource reports the name
// of the active catalog for the metadata message; it may be nil.
func NewHandler(source Source, clock *simclock.Clock, store *tle.Store, catalogSource func() string, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.MaxTotal <= 0 {
		config.MaxTotal = 1000
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		source:  source,
		clock:   clock,
		store:   store,
		catalog: catalogSource,
		config:  config,
		limiter: newConnLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// HandleVisibility serves the SSE frame stream.
// GET /api/v1/stream/visibility?every=0
//
// every (seconds, 0-60) drops frames whose clock time is closer than that to
// the last frame sent; 0 sends every frame.
func (h *Handler) HandleVisibility(w http.ResponseWriter, r *http.Request) {
	every := 0
	if v := r.URL.Query().Get("every"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 60 {
			writeError(w, http.StatusBadRequest, "invalid every parameter, must be 0-60")
			return
		}
		every = n
	}
	minGap := time.Duration(every) * time.Second

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, ok := h.limiter.acquire(ip)
	if !ok {
		forIP, total := h.limiter.usage(ip)
		metrics.StreamError("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"component", "stream",
			"remote_ip", ip,
			"current_count", forIP,
			"total", total,
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.StreamConnected()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"component", "stream",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"every", every,
	)

	var ew *eventWriter
	defer func() {
		release()
		metrics.StreamDisconnected()
		attrs := []any{
			"component", "stream",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		}
		if ew != nil {
			attrs = append(attrs, "events", ew.events, "bytes", ew.bytes)
		}
		h.logger.Info("stream disconnected", attrs...)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long-lived connection: clear the server's WriteTimeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "component", "stream", "error", err)
	}

	ew = newEventWriter(w, flusher, rc, h.logger)

	// Jittered retry (3-7s) spreads reconnects after a restart.
	if err := ew.retry(3*time.Second + time.Duration(rand.Int63n(int64(4*time.Second)))); err != nil {
		metrics.StreamError("send_error")
		return
	}
	if err := ew.event(h.metadata()); err != nil {
		metrics.StreamError("send_error")
		h.logger.Warn("stream send error (metadata)", "component", "stream", "remote_ip", ip, "error", err)
		return
	}

	frames, cancel := h.source.Subscribe()
	defer cancel()

	var lastSent time.Time
	send := func(f session.Frame) error {
		if minGap > 0 && !lastSent.IsZero() {
			gap := f.Time.Sub(lastSent)
			if gap < 0 {
				gap = -gap
			}
			if gap < minGap {
				return nil
			}
		}
		if err := ew.event(frameMessage{Type: "frame", Frame: f}); err != nil {
			return err
		}
		lastSent = f.Time
		return nil
	}

	if f, ok := h.source.Latest(); ok {
		if err := send(f); err != nil {
			metrics.StreamError("send_error")
			h.logger.Warn("stream send error", "component", "stream", "remote_ip", ip, "error", err)
			return
		}
	}

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case f, ok := <-frames:
			if !ok {
				return
			}
			if err := send(f); err != nil {
				metrics.StreamError("send_error")
				h.logger.Warn("stream send error", "component", "stream", "remote_ip", ip, "error", err)
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := ew.comment(); err != nil {
				metrics.StreamError("send_error")
				h.logger.Warn("stream keepalive error", "component", "stream", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

func (h *Handler) metadata() metadataMessage {
	meta := metadataMessage{Type: "metadata"}
	if h.catalog != nil {
		meta.CatalogSource = h.catalog()
	}
	if h.store != nil {
		if ds := h.store.Get(); ds != nil {
			meta.DatasetFetchedAt = ds.FetchedAt.UTC().Format(time.RFC3339)
			age := int(time.Since(ds.FetchedAt).Seconds())
			meta.TLEAge = &age
		}
	}
	if h.clock != nil {
		snap := h.clock.Snapshot()
		meta.Clock = &snap
	}
	return meta
}

// SSE message payload types.

type metadataMessage struct {
	Type             string             `json:"type"`
	CatalogSource    string             `json:"catalog_source,omitempty"`
	DatasetFetchedAt string             `json:"dataset_fetched_at,omitempty"`
	TLEAge           *int               `json:"tle_age_seconds,omitempty"`
	Clock            *simclock.Snapshot `json:"clock,omitempty"`
}

type frameMessage struct {
	Type string `json:"type"`
	session.Frame
}

// Active returns the number of open streams.
func (h *Handler) Active() int {
	_, total := h.limiter.usage("")
	return total
}
