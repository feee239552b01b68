// Package passes finds the intervals during which a satellite is above a
// minimum elevation for an observer, and decorates them for display.
package passes

import (
	"context"
	"time"

	"github.com/star/sattrack/internal/geodesy"
	"github.com/star/sattrack/internal/metrics"
	"github.com/star/sattrack/internal/orbit"
)

// DefaultStep is the elevation sampling step. Rise and set are interpolated
// between samples, so the step bounds which short passes can be missed rather
// than the timing error.
const DefaultStep = 5 * time.Second

// Pass is one contiguous interval with elevation at or above the threshold
// used to find it. Start <= MaxAt <= End.
type Pass struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	MaxElevationDeg float64   `json:"max_elevation_deg"`
	MaxAt           time.Time `json:"max_at"`
}

// Duration returns End - Start.
func (p Pass) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// ScanOptions configures Scan.
type ScanOptions struct {
	Start           time.Time
	Window          time.Duration
	MinElevationDeg float64
	MaxPasses       int           // 0 means no limit
	Step            time.Duration // 0 means DefaultStep
}

// ComputeNextPasses returns up to maxPasses passes starting within
// hoursWindow hours of start, sampled every DefaultStep.
func ComputeNextPasses(sat orbit.Satellite, obs orbit.Observer, start time.Time, hoursWindow, minElevationDeg float64, maxPasses int) []Pass {
	if maxPasses <= 0 || !(hoursWindow > 0) {
		return nil
	}
	return Scan(sat, obs, ScanOptions{
		Start:           start,
		Window:          time.Duration(hoursWindow * float64(time.Hour)),
		MinElevationDeg: minElevationDeg,
		MaxPasses:       maxPasses,
	})
}

// Scan runs the pass state machine over [opts.Start, opts.Start+opts.Window].
func Scan(sat orbit.Satellite, obs orbit.Observer, opts ScanOptions) []Pass {
	passes, _ := scan(context.Background(), sat, obs, opts)
	return passes
}

// scan walks the elevation function at a fixed step. Samples without a
// position are skipped and do not reset the Idle/InPass state. A pass is kept
// only if at least one sample was strictly above the threshold.
func scan(ctx context.Context, sat orbit.Satellite, obs orbit.Observer, opts ScanOptions) ([]Pass, error) {
	step := opts.Step
	if step <= 0 {
		step = DefaultStep
	}
	minEl := opts.MinElevationDeg
	end := opts.Start.Add(opts.Window)
	began := time.Now()

	var (
		passes   []Pass
		cur      Pass
		inPass   bool
		above    bool
		prevT    time.Time
		prevEl   float64
		havePrev bool
		misses   int
		samples  int
	)

	full := func() bool {
		return opts.MaxPasses > 0 && len(passes) >= opts.MaxPasses
	}

	for t := opts.Start; !t.After(end) && !full(); t = t.Add(step) {
		samples++
		if samples%4096 == 0 && ctx.Err() != nil {
			return passes, ctx.Err()
		}

		la, ok := orbit.LookAnglesAt(sat, obs, t)
		if !ok {
			misses++
			continue
		}
		el := la.ElevationDeg

		if !inPass {
			if el >= minEl {
				inPass = true
				above = el > minEl
				cur = Pass{Start: t, MaxElevationDeg: el, MaxAt: t}
				if havePrev {
					cur.Start = geodesy.Interpolate(prevT, t, geodesy.CrossingFraction(prevEl-minEl, el-minEl))
				}
			}
		} else {
			if el > cur.MaxElevationDeg {
				cur.MaxElevationDeg = el
				cur.MaxAt = t
			}
			if el > minEl {
				above = true
			}
			if el < minEl {
				cur.End = geodesy.Interpolate(prevT, t, geodesy.CrossingFraction(prevEl-minEl, el-minEl))
				if above {
					passes = append(passes, cur)
				}
				inPass = false
			}
		}

		prevT, prevEl, havePrev = t, el, true
	}

	if inPass && above && !full() {
		cur.End = end
		passes = append(passes, cur)
	}

	metrics.ObservePassScan(time.Since(began), len(passes), misses)
	return passes, nil
}
