package passes

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/star/sattrack/internal/orbit"
)

var errNoModel = errors.New("no position model")

// SatellitePasses holds the predicted passes for one satellite.
type SatellitePasses struct {
	NORADID int    `json:"norad_id"`
	Name    string `json:"name"`
	Passes  []Pass `json:"passes"`
	Error   string `json:"error,omitempty"`
}

// Request holds the parameters for a multi-satellite prediction.
type Request struct {
	Observer     orbit.Observer
	Satellites   []orbit.Satellite
	Start        time.Time
	HorizonHours float64
	MinElevation float64 // degrees
	MaxPasses    int
	Step         time.Duration // 0 means DefaultStep
}

// Predict computes passes for every satellite in req. Each satellite is
// scanned in its own goroutine, bounded by a semaphore. Results keep the
// order of req.Satellites; failures are reported per satellite.
func Predict(ctx context.Context, req Request) []SatellitePasses {
	results := make([]SatellitePasses, len(req.Satellites))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, sat := range req.Satellites {
		wg.Add(1)
		go func(idx int, s orbit.Satellite) {
			defer wg.Done()
			results[idx] = SatellitePasses{NORADID: s.NORADID, Name: s.Name}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx].Error = "cancelled"
				return
			}

			passes, err := predictSatellite(ctx, req, s)
			if err != nil {
				results[idx].Error = err.Error()
				return
			}
			results[idx].Passes = passes
		}(i, sat)
	}

	wg.Wait()
	return results
}

func predictSatellite(ctx context.Context, req Request, sat orbit.Satellite) ([]Pass, error) {
	if sat.Provider == nil {
		return nil, errNoModel
	}
	if req.MaxPasses <= 0 || !(req.HorizonHours > 0) {
		return nil, nil
	}
	passes, err := scan(ctx, sat, req.Observer, ScanOptions{
		Start:           req.Start,
		Window:          time.Duration(req.HorizonHours * float64(time.Hour)),
		MinElevationDeg: req.MinElevation,
		MaxPasses:       req.MaxPasses,
		Step:            req.Step,
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return passes, errors.New("cancelled")
	}
	return passes, err
}
