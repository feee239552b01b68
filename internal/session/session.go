// Package session holds the mutable tracking context (observer, selected
// satellite, threshold, clock) and the scheduler that re-evaluates visibility
// on every tick.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/star/sattrack/internal/metrics"
	"github.com/star/sattrack/internal/orbit"
	"github.com/star/sattrack/internal/simclock"
)

var (
	// ErrUnknownSatellite is returned when selecting an id the catalog lacks.
	ErrUnknownSatellite = errors.New("unknown satellite")
	// ErrNoObserver is returned when an operation needs an observer location.
	ErrNoObserver = errors.New("observer location not set")
	// ErrInvalidElevation is returned for thresholds outside [-90, 90].
	ErrInvalidElevation = errors.New("minimum elevation must be within [-90, 90]")
)

// DefaultMinElevationDeg is the pass threshold used until one is set.
const DefaultMinElevationDeg = 10.0

// Catalog resolves NORAD ids to satellites.
type Catalog interface {
	Lookup(id int) (orbit.Satellite, bool)
}

// View is an immutable copy of the session taken for one computation.
type View struct {
	Observer        orbit.Observer
	HasObserver     bool
	Satellite       orbit.Satellite
	HasSatellite    bool
	MinElevationDeg float64
}

// Session is the explicit tracking context. Observer and selection are
// last-writer-wins values replaced whole.
type Session struct {
	clock   *simclock.Clock
	catalog Catalog
	logger  *slog.Logger

	mu           sync.RWMutex
	observer     orbit.Observer
	hasObserver  bool
	selectedID   int
	minElevation float64

	altitude Token
	// afterSnapshot runs between the altitude refresh capturing the observer
	// and starting its lookup. Tests use it to interleave writers.
	afterSnapshot func()
}

// New creates a session with no observer and no selection.
func New(clock *simclock.Clock, catalog Catalog, logger *slog.Logger) *Session {
	return &Session{
		clock:        clock,
		catalog:      catalog,
		logger:       logger,
		minElevation: DefaultMinElevationDeg,
	}
}

// Clock returns the session's simulated clock.
func (s *Session) Clock() *simclock.Clock {
	return s.clock
}

// Catalog returns the satellite lookup.
func (s *Session) Catalog() Catalog {
	return s.catalog
}

// SetObserver validates and replaces the observer. Pending altitude lookups
// for the previous location are superseded.
func (s *Session) SetObserver(obs orbit.Observer) error {
	if err := obs.Validate(); err != nil {
		return err
	}
	s.altitude.Issue(func() {
		s.mu.Lock()
		s.observer = obs
		s.hasObserver = true
		s.mu.Unlock()
	})
	return nil
}

// Observer returns the current observer.
func (s *Session) Observer() (orbit.Observer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observer, s.hasObserver
}

// Select makes id the tracked satellite. Zero clears the selection.
func (s *Session) Select(id int) error {
	if id != 0 {
		if _, ok := s.catalog.Lookup(id); !ok {
			return fmt.Errorf("%w: %d", ErrUnknownSatellite, id)
		}
	}
	s.mu.Lock()
	s.selectedID = id
	s.mu.Unlock()
	return nil
}

// SelectedID returns the tracked NORAD id, or 0.
func (s *Session) SelectedID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// SetMinElevation sets the pass threshold in degrees.
func (s *Session) SetMinElevation(deg float64) error {
	if math.IsNaN(deg) || deg < -90 || deg > 90 {
		return fmt.Errorf("%w: %v", ErrInvalidElevation, deg)
	}
	s.mu.Lock()
	s.minElevation = deg
	s.mu.Unlock()
	return nil
}

// MinElevation returns the pass threshold in degrees.
func (s *Session) MinElevation() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minElevation
}

// View snapshots the session. The selected satellite is resolved against the
// catalog at call time, so a catalog refresh is picked up on the next view.
func (s *Session) View() View {
	s.mu.RLock()
	v := View{
		Observer:        s.observer,
		HasObserver:     s.hasObserver,
		MinElevationDeg: s.minElevation,
	}
	id := s.selectedID
	s.mu.RUnlock()

	if id != 0 {
		v.Satellite, v.HasSatellite = s.catalog.Lookup(id)
	}
	return v
}

// AltitudeLookup returns the ground elevation in meters at a location.
type AltitudeLookup func(ctx context.Context, latDeg, lonDeg float64) (float64, error)

// RefreshObserverAltitude looks up the observer's altitude and applies it
// only if no newer observer or lookup replaced the request meanwhile.
func (s *Session) RefreshObserverAltitude(ctx context.Context, lookup AltitudeLookup) error {
	var (
		obs orbit.Observer
		ok  bool
	)
	tok := s.altitude.Issue(func() { obs, ok = s.Observer() })
	if !ok {
		return ErrNoObserver
	}
	if s.afterSnapshot != nil {
		s.afterSnapshot()
	}
	start := time.Now()

	alt, err := lookup(ctx, obs.LatitudeDeg, obs.LongitudeDeg)
	if err != nil {
		return fmt.Errorf("altitude lookup: %w", err)
	}
	if math.IsNaN(alt) || math.IsInf(alt, 0) {
		return fmt.Errorf("altitude lookup returned %v", alt)
	}

	err = s.altitude.Apply(tok, func() {
		s.mu.Lock()
		s.observer = orbit.Observer{LatitudeDeg: obs.LatitudeDeg, LongitudeDeg: obs.LongitudeDeg, AltitudeMeters: alt}
		s.mu.Unlock()
	})
	if err != nil {
		metrics.StaleDiscard("altitude")
		s.logger.Debug("discarding superseded altitude", "component", "session", "alt_m", alt)
		return err
	}
	s.logger.Info("observer altitude updated",
		"component", "session",
		"alt_m", alt,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
