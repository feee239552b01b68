// Package orbit defines the satellite handle used by the visibility engine and
// the two position models behind it: SGP4 propagation of a real element set
// and a synthetic circular orbit for satellites without one.
//
// The model is picked once, when the Satellite is built; callers only ever see
// the PositionProvider capability.
package orbit

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/star/sattrack/internal/geodesy"
)

// ErrInvalidObserver is returned for observer coordinates outside the valid range.
var ErrInvalidObserver = errors.New("invalid observer location")

// Observer is a ground location. Values are replaced whole, never patched.
type Observer struct {
	LatitudeDeg    float64 `json:"lat"`
	LongitudeDeg   float64 `json:"lon"`
	AltitudeMeters float64 `json:"alt_m"`
}

// NewObserver validates and returns an Observer.
func NewObserver(latDeg, lonDeg, altM float64) (Observer, error) {
	o := Observer{LatitudeDeg: latDeg, LongitudeDeg: lonDeg, AltitudeMeters: altM}
	if err := o.Validate(); err != nil {
		return Observer{}, err
	}
	return o, nil
}

// Validate checks latitude/longitude ranges and that altitude is finite.
func (o Observer) Validate() error {
	if !geodesy.ValidCoordinate(o.LatitudeDeg, o.LongitudeDeg) {
		return fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidObserver, o.LatitudeDeg, o.LongitudeDeg)
	}
	if math.IsNaN(o.AltitudeMeters) || math.IsInf(o.AltitudeMeters, 0) {
		return fmt.Errorf("%w: altitude %v", ErrInvalidObserver, o.AltitudeMeters)
	}
	return nil
}

// AltitudeKm returns the observer altitude in kilometers.
func (o Observer) AltitudeKm() float64 {
	return o.AltitudeMeters / 1000.0
}

// SubPoint is the geodetic point directly beneath a satellite.
type SubPoint struct {
	LatitudeDeg  float64 `json:"lat"`
	LongitudeDeg float64 `json:"lon"`
	AltitudeKm   float64 `json:"alt_km"`
}

// LookAngles is the direction from an observer to a satellite at one instant.
// When Approximate is set, only ElevationDeg is meaningful.
type LookAngles struct {
	ElevationDeg float64
	AzimuthDeg   float64
	RangeKm      float64
	Approximate  bool
}

// Azimuth returns the azimuth in degrees, or false for approximate angles.
func (l LookAngles) Azimuth() (float64, bool) {
	if l.Approximate {
		return 0, false
	}
	return l.AzimuthDeg, true
}

// Range returns the slant range in km, or false for approximate angles.
func (l LookAngles) Range() (float64, bool) {
	if l.Approximate {
		return 0, false
	}
	return l.RangeKm, true
}

// PositionProvider answers where a satellite is and how it looks from the
// ground. A false return means "no data" for that instant (decayed orbit,
// failed propagation); it is never fatal.
type PositionProvider interface {
	Propagate(t time.Time) (SubPoint, bool)
	LookAngles(obs Observer, t time.Time) (LookAngles, bool)
	Period() time.Duration
}

// Satellite is an immutable catalog entry bound to its position model.
type Satellite struct {
	NORADID  int
	Name     string
	Category string
	Provider PositionProvider
}

// Position returns the sub-satellite point at t.
func (s Satellite) Position(t time.Time) (SubPoint, bool) {
	if s.Provider == nil {
		return SubPoint{}, false
	}
	return s.Provider.Propagate(t)
}

// LookAngles returns look angles from obs to the satellite at t.
func (s Satellite) LookAngles(obs Observer, t time.Time) (LookAngles, bool) {
	if s.Provider == nil {
		return LookAngles{}, false
	}
	return s.Provider.LookAngles(obs, t)
}

// Period returns the orbital period, or 0 when unknown.
func (s Satellite) Period() time.Duration {
	if s.Provider == nil {
		return 0
	}
	return s.Provider.Period()
}

// Approximate reports whether the satellite uses the synthetic circular model.
func (s Satellite) Approximate() bool {
	_, ok := s.Provider.(*Circular)
	return ok
}

// LookAnglesAt is the look-angle calculator entry point. A false return is
// "no data": the provider had no position for t.
func LookAnglesAt(sat Satellite, obs Observer, t time.Time) (LookAngles, bool) {
	la, ok := sat.LookAngles(obs, t)
	if !ok || math.IsNaN(la.ElevationDeg) {
		return LookAngles{}, false
	}
	return la, true
}
