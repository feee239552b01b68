package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/star/sattrack/internal/orbit"
	"github.com/star/sattrack/internal/simclock"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type mapCatalog map[int]orbit.Satellite

func (m mapCatalog) Lookup(id int) (orbit.Satellite, bool) {
	s, ok := m[id]
	return s, ok
}

// equatorSat is over (0°, 0°) at t0.
func equatorSat(t testing.TB) orbit.Satellite {
	t.Helper()
	c, err := orbit.NewCircular(orbit.Circular{PeriodMin: 95, AltitudeKm: 550, Epoch: t0})
	if err != nil {
		t.Fatal(err)
	}
	return orbit.Satellite{NORADID: 90001, Name: "EQUATOR", Category: "other", Provider: c}
}

func newTestSession(t *testing.T) (*Session, *time.Time) {
	t.Helper()
	now := t0
	clock := simclock.New(simclock.WithWallClock(func() time.Time { return now }))
	cat := mapCatalog{90001: equatorSat(t)}
	return New(clock, cat, testLogger), &now
}

func TestSetObserverValidates(t *testing.T) {
	s, _ := newTestSession(t)

	tests := []struct {
		name    string
		obs     orbit.Observer
		wantErr bool
	}{
		{"valid", orbit.Observer{LatitudeDeg: 51.5, LongitudeDeg: -0.1}, false},
		{"lat too high", orbit.Observer{LatitudeDeg: 91}, true},
		{"lon too low", orbit.Observer{LongitudeDeg: -181}, true},
		{"nan", orbit.Observer{LatitudeDeg: math.NaN()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SetObserver(tt.obs)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetObserver() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	obs, ok := s.Observer()
	if !ok || obs.LatitudeDeg != 51.5 {
		t.Errorf("Observer() = %+v, %v; invalid input must not replace it", obs, ok)
	}
}

func TestSelect(t *testing.T) {
	s, _ := newTestSession(t)

	if err := s.Select(12345); !errors.Is(err, ErrUnknownSatellite) {
		t.Errorf("Select(unknown) err = %v, want ErrUnknownSatellite", err)
	}
	if err := s.Select(90001); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := s.SelectedID(); got != 90001 {
		t.Errorf("SelectedID() = %d, want 90001", got)
	}
	if v := s.View(); !v.HasSatellite || v.Satellite.Name != "EQUATOR" {
		t.Errorf("View() satellite = %+v, %v", v.Satellite, v.HasSatellite)
	}
	if err := s.Select(0); err != nil {
		t.Fatalf("Select(0): %v", err)
	}
	if v := s.View(); v.HasSatellite {
		t.Error("Select(0) should clear the selection")
	}
}

func TestSetMinElevation(t *testing.T) {
	s, _ := newTestSession(t)
	if got := s.MinElevation(); got != DefaultMinElevationDeg {
		t.Errorf("default MinElevation() = %v, want %v", got, DefaultMinElevationDeg)
	}
	for _, deg := range []float64{-91, 91, math.NaN()} {
		if err := s.SetMinElevation(deg); !errors.Is(err, ErrInvalidElevation) {
			t.Errorf("SetMinElevation(%v) err = %v, want ErrInvalidElevation", deg, err)
		}
	}
	if err := s.SetMinElevation(0); err != nil {
		t.Fatal(err)
	}
	if got := s.MinElevation(); got != 0 {
		t.Errorf("MinElevation() = %v, want 0", got)
	}
}

func TestRefreshObserverAltitude(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	if err := s.RefreshObserverAltitude(ctx, nil); !errors.Is(err, ErrNoObserver) {
		t.Errorf("without observer err = %v, want ErrNoObserver", err)
	}

	if err := s.SetObserver(orbit.Observer{LatitudeDeg: 46.5, LongitudeDeg: 7.9}); err != nil {
		t.Fatal(err)
	}
	lookup := func(ctx context.Context, lat, lon float64) (float64, error) { return 1034, nil }
	if err := s.RefreshObserverAltitude(ctx, lookup); err != nil {
		t.Fatalf("RefreshObserverAltitude: %v", err)
	}
	obs, _ := s.Observer()
	if obs.AltitudeMeters != 1034 {
		t.Errorf("AltitudeMeters = %v, want 1034", obs.AltitudeMeters)
	}

	failing := func(ctx context.Context, lat, lon float64) (float64, error) {
		return 0, errors.New("service unavailable")
	}
	if err := s.RefreshObserverAltitude(ctx, failing); err == nil {
		t.Error("expected lookup error")
	}
}

func TestRefreshObserverAltitudeDiscardsStale(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.SetObserver(orbit.Observer{LatitudeDeg: 10, LongitudeDeg: 10}); err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(ctx context.Context, lat, lon float64) (float64, error) {
		close(started)
		<-release
		return 999, nil
	}

	errc := make(chan error, 1)
	go func() { errc <- s.RefreshObserverAltitude(context.Background(), slow) }()

	<-started
	// The user moves while the lookup is in flight.
	if err := s.SetObserver(orbit.Observer{LatitudeDeg: 20, LongitudeDeg: 20, AltitudeMeters: 5}); err != nil {
		t.Fatal(err)
	}
	close(release)

	if err := <-errc; !errors.Is(err, ErrStale) {
		t.Errorf("err = %v, want ErrStale", err)
	}
	obs, _ := s.Observer()
	if obs.LatitudeDeg != 20 || obs.AltitudeMeters != 5 {
		t.Errorf("observer = %+v, stale lookup must not overwrite it", obs)
	}
}

func TestRefreshObserverAltitudeAfterConcurrentMove(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.SetObserver(orbit.Observer{LatitudeDeg: 10, LongitudeDeg: 10}); err != nil {
		t.Fatal(err)
	}
	moved := orbit.Observer{LatitudeDeg: 20, LongitudeDeg: 20, AltitudeMeters: 5}
	s.afterSnapshot = func() {
		if err := s.SetObserver(moved); err != nil {
			t.Error(err)
		}
	}

	var asked [2]float64
	lookup := func(ctx context.Context, lat, lon float64) (float64, error) {
		asked = [2]float64{lat, lon}
		return 1234, nil
	}
	if err := s.RefreshObserverAltitude(context.Background(), lookup); !errors.Is(err, ErrStale) {
		t.Errorf("err = %v, want ErrStale", err)
	}
	if asked != [2]float64{10, 10} {
		t.Errorf("lookup for %v, want the observer captured at start", asked)
	}
	if obs, _ := s.Observer(); obs != moved {
		t.Errorf("observer = %+v, want %+v", obs, moved)
	}
}

func TestTokenIssue(t *testing.T) {
	var tok Token
	var seen uint64
	v := tok.Issue(func() { seen = tok.n })
	if v != 1 || seen != 1 {
		t.Errorf("Issue = %d, fn saw %d, want 1/1", v, seen)
	}
	tok.Next()
	if err := tok.Apply(v, func() {}); !errors.Is(err, ErrStale) {
		t.Errorf("Apply after Next err = %v, want ErrStale", err)
	}
}
