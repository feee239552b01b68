// Package fleet evaluates every catalog satellite at one instant with a
// bounded worker pool.
package fleet

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/star/sattrack/internal/metrics"
	"github.com/star/sattrack/internal/orbit"
)

// Position is one satellite's sub-point at the snapshot time. Elevation is
// present only when the snapshot was taken for an observer.
type Position struct {
	NORADID     int            `json:"norad_id"`
	Name        string         `json:"name"`
	Category    string         `json:"category"`
	SubPoint    orbit.SubPoint `json:"sub_point"`
	Elevation   *float64       `json:"elevation_deg,omitempty"`
	Visible     bool           `json:"visible"`
	Approximate bool           `json:"approximate,omitempty"`
}

// Snapshot holds the positions of all satellites at one time, sorted by
// NORAD id. Failed counts satellites without a position at Time.
type Snapshot struct {
	Time      time.Time  `json:"time"`
	Positions []Position `json:"positions"`
	Failed    int        `json:"failed"`
}

// Request selects what a snapshot evaluates.
type Request struct {
	Satellites      []orbit.Satellite
	Time            time.Time
	Observer        *orbit.Observer
	MinElevationDeg float64
}

type job struct {
	sat orbit.Satellite
}

type result struct {
	pos Position
	ok  bool
}

// Pool runs position evaluations on a fixed number of goroutines.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// NewPool creates a pool. workers <= 0 uses runtime.NumCPU().
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers, logger: logger}
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// Snapshot evaluates req.Satellites at req.Time. Cancellation returns the
// positions computed so far.
func (p *Pool) Snapshot(ctx context.Context, req Request) Snapshot {
	snap := Snapshot{Time: req.Time, Positions: []Position{}}
	if len(req.Satellites) == 0 {
		return snap
	}
	start := time.Now()

	jobs := make(chan job, p.workers*2)
	results := make(chan result, p.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				r := evaluate(j.sat, req)
				select {
				case results <- r:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, sat := range req.Satellites {
			select {
			case jobs <- job{sat: sat}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if !r.ok {
			snap.Failed++
			continue
		}
		snap.Positions = append(snap.Positions, r.pos)
	}
	slices.SortFunc(snap.Positions, func(a, b Position) int { return a.NORADID - b.NORADID })

	duration := time.Since(start)
	metrics.ObserveFleetSnapshot(duration, len(snap.Positions), snap.Failed)
	p.logger.Debug("fleet snapshot",
		"component", "fleet",
		"satellites", len(req.Satellites),
		"positions", len(snap.Positions),
		"failed", snap.Failed,
		"duration_ms", duration.Milliseconds(),
	)
	return snap
}

func evaluate(sat orbit.Satellite, req Request) result {
	sp, ok := sat.Position(req.Time)
	if !ok {
		return result{}
	}
	pos := Position{
		NORADID:     sat.NORADID,
		Name:        sat.Name,
		Category:    sat.Category,
		SubPoint:    sp,
		Approximate: sat.Approximate(),
	}
	if req.Observer != nil {
		if la, ok := sat.LookAngles(*req.Observer, req.Time); ok {
			el := la.ElevationDeg
			pos.Elevation = &el
			pos.Visible = el >= req.MinElevationDeg
		}
	}
	return result{pos: pos, ok: true}
}
