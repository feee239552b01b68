package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/star/sattrack/internal/session"
	"github.com/star/sattrack/internal/simclock"
	"github.com/star/sattrack/internal/tle"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

var t0 = time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC)

func testStore() *tle.Store {
	store := tle.NewStore()
	store.Set(tle.NewDataset("test", t0.Add(-15*time.Minute), []tle.Entry{{NORADID: 25544, Name: "ISS"}}))
	return store
}

func testConfig() Config {
	return Config{MaxConcurrentPerIP: 10, KeepaliveInterval: 30 * time.Second}
}

// fakeSource hands every subscriber a pre-filled channel.
type fakeSource struct {
	mu     sync.Mutex
	frames []session.Frame
	latest *session.Frame
}

func (f *fakeSource) Subscribe() (<-chan session.Frame, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan session.Frame, len(f.frames))
	for _, fr := range f.frames {
		ch <- fr
	}
	return ch, func() {}
}

func (f *fakeSource) Latest() (session.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return session.Frame{}, false
	}
	return *f.latest, true
}

func frameAt(sec int) session.Frame {
	el := 12.5
	return session.Frame{Time: t0.Add(time.Duration(sec) * time.Second), NORADID: 25544, Name: "ISS", Elevation: &el, AboveMin: true}
}

// serve runs the handler until the request context expires and returns the
// recorder.
func serve(t *testing.T, h *Handler, query string, d time.Duration) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/v1/stream/visibility"+query, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithTimeout(req.Context(), d)
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	h.HandleVisibility(w, req)
	return w
}

// events returns the decoded "data:" payloads in order.
func events(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		out = append(out, msg)
	}
	return out
}

func TestFrameMessageJSON(t *testing.T) {
	data, err := json.Marshal(frameMessage{Type: "frame", Frame: frameAt(0)})
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed["type"] != "frame" {
		t.Errorf("type = %v, want frame", parsed["type"])
	}
	if parsed["norad_id"].(float64) != 25544 {
		t.Errorf("norad_id = %v, want 25544", parsed["norad_id"])
	}
	if parsed["elevation_deg"].(float64) != 12.5 {
		t.Errorf("elevation_deg = %v, want 12.5", parsed["elevation_deg"])
	}
	if _, ok := parsed["azimuth_deg"]; ok {
		t.Error("absent azimuth should be omitted")
	}
}

func TestSSEMessageFormat(t *testing.T) {
	latest := frameAt(0)
	src := &fakeSource{latest: &latest, frames: []session.Frame{frameAt(1), frameAt(2)}}
	clock := simclock.New(simclock.WithWallClock(func() time.Time { return t0 }))
	h := NewHandler(src, clock, testStore(), func() string { return "celestrak" }, testConfig(), testLogger())

	w := serve(t, h, "", 200*time.Millisecond)
	resp := w.Result()

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	body := w.Body.String()
	msgs := events(t, body)
	if len(msgs) != 4 {
		t.Fatalf("got %d events, want metadata + 3 frames", len(msgs))
	}

	meta := msgs[0]
	if meta["type"] != "metadata" {
		t.Fatalf("first event type = %v, want metadata", meta["type"])
	}
	if meta["catalog_source"] != "celestrak" {
		t.Errorf("catalog_source = %v", meta["catalog_source"])
	}
	if _, ok := meta["tle_age_seconds"]; !ok {
		t.Error("metadata missing tle_age_seconds")
	}
	if clk, ok := meta["clock"].(map[string]any); !ok || clk["state"] != "playing" {
		t.Errorf("metadata clock = %v", meta["clock"])
	}

	for i, m := range msgs[1:] {
		if m["type"] != "frame" {
			t.Errorf("event %d type = %v, want frame", i+1, m["type"])
		}
	}

	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") && line != ":" {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
	if h.Active() != 0 {
		t.Errorf("Active() after disconnect = %d, want 0", h.Active())
	}
}

func TestEveryThrottlesFrames(t *testing.T) {
	var frames []session.Frame
	for i := 0; i < 6; i++ {
		frames = append(frames, frameAt(i))
	}
	src := &fakeSource{frames: frames}
	h := NewHandler(src, nil, nil, nil, testConfig(), testLogger())

	msgs := events(t, serve(t, h, "?every=2", 200*time.Millisecond).Body.String())

	var got []string
	for _, m := range msgs[1:] {
		got = append(got, m["time"].(string))
	}
	want := []string{
		t0.Format(time.RFC3339),
		t0.Add(2 * time.Second).Format(time.RFC3339),
		t0.Add(4 * time.Second).Format(time.RFC3339),
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("frames sent = %v, want %v", got, want)
	}
}

func TestConnLimiterPerIP(t *testing.T) {
	l := newConnLimiter(3, 1000)

	var releases []func()
	for i := 0; i < 3; i++ {
		release, ok := l.acquire("10.0.0.1")
		if !ok {
			t.Fatalf("acquire %d should succeed", i+1)
		}
		releases = append(releases, release)
	}
	if _, ok := l.acquire("10.0.0.1"); ok {
		t.Error("acquire beyond per-IP limit should fail")
	}
	if _, ok := l.acquire("10.0.0.2"); !ok {
		t.Error("different IP should not be limited")
	}

	releases[0]()
	releases[0]() // second call is a no-op
	if _, ok := l.acquire("10.0.0.1"); !ok {
		t.Error("acquire after release should succeed")
	}

	if forIP, total := l.usage("10.0.0.1"); forIP != 3 || total != 4 {
		t.Errorf("usage = %d/%d, want 3/4", forIP, total)
	}
	if forIP, _ := l.usage("10.0.0.2"); forIP != 1 {
		t.Errorf("usage(10.0.0.2) = %d, want 1", forIP)
	}
}

func TestConnLimiterGlobalCap(t *testing.T) {
	l := newConnLimiter(10, 2)
	l.acquire("10.0.0.1")
	l.acquire("10.0.0.2")
	if _, ok := l.acquire("10.0.0.3"); ok {
		t.Error("acquire beyond global cap should fail")
	}
	if _, total := l.usage(""); total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestConnLimiterConcurrent(t *testing.T) {
	l := newConnLimiter(100, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if release, ok := l.acquire("10.0.0.1"); ok {
				defer release()
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if forIP, total := l.usage("10.0.0.1"); forIP != 0 || total != 0 {
		t.Errorf("usage after all released = %d/%d, want 0/0", forIP, total)
	}
}

func TestRateLimitHTTPResponse(t *testing.T) {
	h := NewHandler(&fakeSource{}, nil, testStore(), nil, Config{
		MaxConcurrentPerIP: 1,
		KeepaliveInterval:  30 * time.Second,
	}, testLogger())

	// Occupy the only slot for this IP.
	release, ok := h.limiter.acquire("10.0.0.1")
	if !ok {
		t.Fatal("initial acquire failed")
	}
	defer release()

	req := httptest.NewRequest("GET", "/api/v1/stream/visibility", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	h.HandleVisibility(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestInvalidQueryParams(t *testing.T) {
	h := NewHandler(&fakeSource{}, nil, testStore(), nil, testConfig(), testLogger())

	for _, q := range []string{"?every=-1", "?every=61", "?every=abc"} {
		t.Run(q, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/stream/visibility"+q, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			w := httptest.NewRecorder()
			h.HandleVisibility(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestNewHandlerDefaults(t *testing.T) {
	h := NewHandler(&fakeSource{}, nil, nil, nil, Config{}, testLogger())
	if h.config.MaxConcurrentPerIP != 10 || h.config.MaxTotal != 1000 || h.config.KeepaliveInterval != 30*time.Second {
		t.Errorf("config = %+v, want defaults", h.config)
	}
}
