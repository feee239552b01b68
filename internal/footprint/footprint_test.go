package footprint

import (
	"math"
	"testing"
	"time"

	"github.com/star/sattrack/internal/geodesy"
	"github.com/star/sattrack/internal/orbit"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// equatorTrack moves a satellite along the equator at a constant angular rate.
type equatorTrack struct {
	startLon  float64
	degPerSec float64
	altKm     float64
	// noData and degenerate mark instants (seconds after t0) with no position
	// or a zero altitude.
	noData     map[int]bool
	degenerate map[int]bool
}

func (e *equatorTrack) Propagate(t time.Time) (orbit.SubPoint, bool) {
	sec := t.Sub(t0).Seconds()
	if e.noData[int(sec)] {
		return orbit.SubPoint{}, false
	}
	alt := e.altKm
	if e.degenerate[int(sec)] {
		alt = 0
	}
	return orbit.SubPoint{LongitudeDeg: e.startLon + e.degPerSec*sec, AltitudeKm: alt}, true
}

func (e *equatorTrack) LookAngles(orbit.Observer, time.Time) (orbit.LookAngles, bool) {
	return orbit.LookAngles{}, false
}

func (e *equatorTrack) Period() time.Duration { return 0 }

func TestLOSRadiusMeters(t *testing.T) {
	r, ok := LOSRadiusMeters(550, 0)
	if !ok {
		t.Fatal("LOSRadiusMeters(550, 0) undefined")
	}
	psi, _ := geodesy.HorizonAngle(550)
	if want := geodesy.EarthRadiusKm * psi * 1000; math.Abs(r-want) > 1e-6 {
		t.Errorf("radius = %v, want %v", r, want)
	}

	// Observer at or below the ellipsoid contributes nothing.
	neg, _ := LOSRadiusMeters(550, -0.2)
	if neg != r {
		t.Errorf("negative observer altitude changed radius: %v vs %v", neg, r)
	}

	high, _ := LOSRadiusMeters(550, 2)
	if high <= r {
		t.Errorf("observer altitude should extend radius: %v <= %v", high, r)
	}

	for _, alt := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		if _, ok := LOSRadiusMeters(alt, 0); ok {
			t.Errorf("LOSRadiusMeters(%v, 0) should be undefined", alt)
		}
	}
}

func TestLOSRadiusMonotonicInSatelliteAltitude(t *testing.T) {
	for _, obsAlt := range []float64{0, 0.5, 3} {
		prev := -1.0
		for alt := 0.5; alt < 40000; alt *= 1.7 {
			r, ok := LOSRadiusMeters(alt, obsAlt)
			if !ok {
				t.Fatalf("undefined at alt=%v", alt)
			}
			if r <= prev {
				t.Fatalf("obsAlt=%v: radius not increasing at alt=%v (%v <= %v)", obsAlt, alt, r, prev)
			}
			prev = r
		}
	}
}

func TestDeltaOverhead(t *testing.T) {
	c, _ := orbit.NewCircular(orbit.Circular{PeriodMin: 95.6, InclinationDeg: 53, PhaseDeg: 40, AltitudeKm: 550, Epoch: t0})
	sat := orbit.Satellite{NORADID: 1, Provider: c}

	for i := 0; i < 20; i++ {
		at := t0.Add(time.Duration(i) * 7 * time.Minute)
		sub, _ := sat.Position(at)
		obs, err := orbit.NewObserver(sub.LatitudeDeg, sub.LongitudeDeg, 0)
		if err != nil {
			t.Fatal(err)
		}
		d, ok := DeltaKm(sat, obs, at)
		if !ok {
			t.Fatalf("DeltaKm undefined at %v", at)
		}
		r, _ := LOSRadiusMeters(550, 0)
		if d < 0 || math.Abs(d-r/1000) > 1e-6 {
			t.Errorf("overhead delta = %v, want %v", d, r/1000)
		}
	}
}

func TestDeltaNoPosition(t *testing.T) {
	sat := orbit.Satellite{Provider: &equatorTrack{altKm: 550, noData: map[int]bool{0: true}}}
	if _, ok := DeltaKm(sat, orbit.Observer{}, t0); ok {
		t.Error("expected undefined delta when the satellite has no position")
	}
	if _, ok := DeltaKm(orbit.Satellite{}, orbit.Observer{}, t0); ok {
		t.Error("expected undefined delta without a provider")
	}
}

func TestFindWindowsInterpolation(t *testing.T) {
	const rate = 0.01 // deg/s
	track := &equatorTrack{startLon: -30, degPerSec: rate, altKm: 550}
	sat := orbit.Satellite{Provider: track}

	psi, _ := geodesy.HorizonAngle(550)
	psiDeg := psi * 180 / math.Pi
	wantStart := t0.Add(time.Duration((30 - psiDeg) / rate * float64(time.Second)))
	wantEnd := t0.Add(time.Duration((30 + psiDeg) / rate * float64(time.Second)))

	windows := FindWindows(sat, orbit.Observer{}, t0, t0.Add(2*time.Hour), 30*time.Second)
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
	w := windows[0]
	if d := w.Start.Sub(wantStart); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("start = %v, want %v (off by %v)", w.Start, wantStart, d)
	}
	if d := w.End.Sub(wantEnd); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("end = %v, want %v (off by %v)", w.End, wantEnd, d)
	}
	if !w.Contains(w.MaxAt) {
		t.Errorf("max_at %v outside window", w.MaxAt)
	}
	// Peak is at lon 0, reached after 3000 s.
	if got := w.MaxAt.Sub(t0); got != 3000*time.Second {
		t.Errorf("max_at offset = %v, want 3000s", got)
	}
}

func TestFindWindowsOpenAtEnd(t *testing.T) {
	track := &equatorTrack{startLon: -10, degPerSec: 0.01, altKm: 550}
	sat := orbit.Satellite{Provider: track}
	end := t0.Add(10 * time.Minute)

	windows := FindWindows(sat, orbit.Observer{}, t0, end, 0)
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
	if !windows[0].Start.Equal(t0) {
		t.Errorf("start = %v, want search start %v", windows[0].Start, t0)
	}
	if !windows[0].End.Equal(end) {
		t.Errorf("end = %v, want search end %v", windows[0].End, end)
	}
}

func TestFindWindowsSkipsMissingSamples(t *testing.T) {
	missing := map[int]bool{}
	for s := 1500; s <= 1800; s += 30 {
		missing[s] = true
	}
	track := &equatorTrack{startLon: -30, degPerSec: 0.01, altKm: 550, noData: missing}
	sat := orbit.Satellite{Provider: track}

	windows := FindWindows(sat, orbit.Observer{}, t0, t0.Add(2*time.Hour), 30*time.Second)
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1 (gaps must not split a window)", len(windows))
	}
}

func TestFindWindowsDegenerateClosesWindow(t *testing.T) {
	track := &equatorTrack{startLon: -30, degPerSec: 0.01, altKm: 550, degenerate: map[int]bool{3000: true}}
	sat := orbit.Satellite{Provider: track}

	windows := FindWindows(sat, orbit.Observer{}, t0, t0.Add(2*time.Hour), 30*time.Second)
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
	if got := windows[0].End.Sub(t0); got != 3000*time.Second {
		t.Errorf("first window end = %v, want 3000s", got)
	}
	if got := windows[1].Start.Sub(t0); got != 3030*time.Second {
		t.Errorf("second window start = %v, want 3030s", got)
	}
}

func TestFindWindowsMultiple(t *testing.T) {
	c, _ := orbit.NewCircular(orbit.Circular{PeriodMin: 95.6, AltitudeKm: 550, Epoch: t0})
	sat := orbit.Satellite{Provider: c}

	windows := FindWindows(sat, orbit.Observer{}, t0, t0.Add(8*time.Hour), 0)
	if len(windows) < 3 {
		t.Fatalf("got %d windows in 8h, want several", len(windows))
	}
	for i, w := range windows {
		if w.End.Before(w.Start) {
			t.Errorf("window %d: end before start", i)
		}
		if i > 0 && !windows[i-1].End.Before(w.Start) {
			t.Errorf("window %d overlaps previous", i)
		}
		if w.MaxDeltaKm < 0 {
			t.Errorf("window %d: negative max delta %v", i, w.MaxDeltaKm)
		}
	}
}

func TestSelectWindow(t *testing.T) {
	at := func(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }
	windows := []Window{
		{Start: at(0), End: at(10)},
		{Start: at(20), End: at(30)},
		{Start: at(100), End: at(110)},
	}

	tests := []struct {
		name             string
		start, peak, end time.Time
		want             int
	}{
		{"contains peak", at(15), at(25), at(35), 1},
		{"largest overlap", at(9), at(15), at(22), 1},
		{"overlap beats nearest", at(9), at(18), at(18).Add(30 * time.Second), 0},
		{"nearest to peak", at(60), at(85), at(86), 2},
		{"nearest earlier", at(40), at(41), at(42), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectWindow(windows, tt.start, tt.peak, tt.end)
			if !ok {
				t.Fatal("no window selected")
			}
			if !got.Start.Equal(windows[tt.want].Start) {
				t.Errorf("selected window starting %v, want %v", got.Start, windows[tt.want].Start)
			}
		})
	}

	if _, ok := SelectWindow(nil, at(0), at(1), at(2)); ok {
		t.Error("empty window list should select nothing")
	}
}
