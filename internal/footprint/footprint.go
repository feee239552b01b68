// Package footprint implements the radio line-of-sight criterion: a satellite
// is "in footprint" when its ground distance to the observer is within the sum
// of both horizon radii. It is independent of the elevation criterion used by
// package passes and the two may disagree near grazing geometry.
package footprint

import (
	"math"
	"time"

	"github.com/star/sattrack/internal/geodesy"
	"github.com/star/sattrack/internal/orbit"
)

// DefaultStep is the sampling step used when FindWindows is given step <= 0.
const DefaultStep = 30 * time.Second

// Window is a contiguous interval with the satellite inside the observer's
// LOS footprint. MaxDeltaKm is the largest margin seen, at MaxAt.
type Window struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	MaxAt      time.Time `json:"max_at"`
	MaxDeltaKm float64   `json:"max_delta_km"`
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t lies in [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// LOSRadiusMeters returns the maximum ground distance (meters) at which a
// satellite at satAltKm and an observer at obsAltKm can see each other. The
// observer term is zero when obsAltKm <= 0. ok is false when the satellite
// altitude is not positive and finite.
func LOSRadiusMeters(satAltKm, obsAltKm float64) (float64, bool) {
	satPsi, ok := geodesy.HorizonAngle(satAltKm)
	if !ok {
		return 0, false
	}
	var obsPsi float64
	if obsAltKm > 0 {
		if psi, ok := geodesy.HorizonAngle(obsAltKm); ok {
			obsPsi = psi
		}
	}
	return geodesy.EarthRadiusKm * (satPsi + obsPsi) * 1000, true
}

// DeltaKm returns LOS radius minus ground distance at t. Non-negative means
// inside the footprint. ok is false when the satellite has no position at t or
// the geometry is degenerate.
func DeltaKm(sat orbit.Satellite, obs orbit.Observer, t time.Time) (float64, bool) {
	pos, ok := sat.Position(t)
	if !ok {
		return 0, false
	}
	return deltaFor(pos, obs)
}

func deltaFor(pos orbit.SubPoint, obs orbit.Observer) (float64, bool) {
	if !geodesy.ValidCoordinate(pos.LatitudeDeg, pos.LongitudeDeg) {
		return 0, false
	}
	radiusM, ok := LOSRadiusMeters(pos.AltitudeKm, obs.AltitudeKm())
	if !ok {
		return 0, false
	}
	dist := geodesy.GreatCircleDistanceKm(obs.LatitudeDeg, obs.LongitudeDeg, pos.LatitudeDeg, pos.LongitudeDeg)
	d := radiusM/1000 - dist
	if math.IsNaN(d) {
		return 0, false
	}
	return d, true
}

// FindWindows scans [start, end] every step and returns the footprint
// windows in chronological order. Entry and exit instants are interpolated
// linearly between the bracketing samples. A window still open at end is
// closed at end.
//
// Samples where the satellite has no position are skipped. Samples with
// degenerate geometry count as outside the footprint and close an open window
// at that sample.
func FindWindows(sat orbit.Satellite, obs orbit.Observer, start, end time.Time, step time.Duration) []Window {
	if step <= 0 {
		step = DefaultStep
	}

	var (
		windows  []Window
		cur      Window
		open     bool
		prevT    time.Time
		prevD    float64
		havePrev bool
	)

	for t := start; !t.After(end); t = t.Add(step) {
		pos, ok := sat.Position(t)
		if !ok {
			continue
		}
		d, ok := deltaFor(pos, obs)
		if !ok {
			if open {
				cur.End = t
				windows = append(windows, cur)
				open = false
			}
			havePrev = false
			continue
		}

		switch {
		case !open && d >= 0:
			open = true
			cur = Window{Start: t, MaxAt: t, MaxDeltaKm: d}
			if havePrev {
				cur.Start = geodesy.Interpolate(prevT, t, geodesy.CrossingFraction(prevD, d))
			}
		case open && d < 0:
			cur.End = geodesy.Interpolate(prevT, t, geodesy.CrossingFraction(prevD, d))
			windows = append(windows, cur)
			open = false
		case open && d > cur.MaxDeltaKm:
			cur.MaxDeltaKm = d
			cur.MaxAt = t
		}

		prevT, prevD, havePrev = t, d, true
	}

	if open {
		cur.End = end
		windows = append(windows, cur)
	}
	return windows
}

// SelectWindow picks the window matching an elevation pass peaking at peak
// and spanning [start, end]: the window containing peak, else the one with the
// largest overlap with [start, end], else the one nearest to peak. Ties keep
// the earlier window.
func SelectWindow(windows []Window, start, peak, end time.Time) (Window, bool) {
	if len(windows) == 0 {
		return Window{}, false
	}

	for _, w := range windows {
		if w.Contains(peak) {
			return w, true
		}
	}

	best, bestOverlap := -1, time.Duration(0)
	for i, w := range windows {
		if o := overlap(w, start, end); o > bestOverlap {
			best, bestOverlap = i, o
		}
	}
	if best >= 0 {
		return windows[best], true
	}

	best = 0
	bestGap := gap(windows[0], peak)
	for i, w := range windows[1:] {
		if g := gap(w, peak); g < bestGap {
			best, bestGap = i+1, g
		}
	}
	return windows[best], true
}

func overlap(w Window, start, end time.Time) time.Duration {
	lo, hi := w.Start, w.End
	if start.After(lo) {
		lo = start
	}
	if end.Before(hi) {
		hi = end
	}
	if !hi.After(lo) {
		return 0
	}
	return hi.Sub(lo)
}

func gap(w Window, t time.Time) time.Duration {
	switch {
	case t.Before(w.Start):
		return w.Start.Sub(t)
	case t.After(w.End):
		return t.Sub(w.End)
	default:
		return 0
	}
}
