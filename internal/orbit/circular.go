package orbit

import (
	"errors"
	"math"
	"time"

	"github.com/star/sattrack/internal/geodesy"
)

// BelowHorizonDeg is the elevation reported by the circular model when the
// satellite is outside the observer's horizon cap.
const BelowHorizonDeg = -5.0

// Circular is a synthetic circular orbit used when no element set exists.
// The satellite moves uniformly on a great circle of the given inclination
// over a spherical Earth that rotates beneath it; it ignores perturbations.
type Circular struct {
	PeriodMin      float64
	InclinationDeg float64
	RAANDeg        float64
	PhaseDeg       float64
	AltitudeKm     float64

	// Epoch is the instant at which the phase angle applies. Zero means the
	// Unix epoch.
	Epoch time.Time
}

// NewCircular validates the orbit parameters.
func NewCircular(c Circular) (*Circular, error) {
	if !(c.PeriodMin > 0) || math.IsInf(c.PeriodMin, 0) {
		return nil, errors.New("circular orbit: period must be positive")
	}
	if !(c.AltitudeKm > 0) || math.IsInf(c.AltitudeKm, 0) {
		return nil, errors.New("circular orbit: altitude must be positive")
	}
	if math.IsNaN(c.InclinationDeg) || math.IsNaN(c.RAANDeg) || math.IsNaN(c.PhaseDeg) {
		return nil, errors.New("circular orbit: angles must be finite")
	}
	return &c, nil
}

func (c *Circular) epoch() time.Time {
	if c.Epoch.IsZero() {
		return time.Unix(0, 0)
	}
	return c.Epoch
}

// Propagate implements PositionProvider.
func (c *Circular) Propagate(t time.Time) (SubPoint, bool) {
	tMin := t.Sub(c.epoch()).Minutes()
	// u is the argument of latitude, measured from the ascending node.
	u := 2*math.Pi*tMin/c.PeriodMin + c.PhaseDeg*math.Pi/180
	sinI, cosI := math.Sincos(c.InclinationDeg * math.Pi / 180)
	sinU, cosU := math.Sincos(u)

	lat := math.Asin(max(-1, min(1, sinI*sinU))) * 180 / math.Pi
	lon := c.RAANDeg + math.Atan2(cosI*sinU, cosU)*180/math.Pi - 360*tMin/1440

	return SubPoint{
		LatitudeDeg:  lat,
		LongitudeDeg: geodesy.NormalizeLongitude(lon),
		AltitudeKm:   c.AltitudeKm,
	}, true
}

// LookAngles implements PositionProvider. Elevation falls linearly from 90°
// at the sub-satellite point to 0° at the edge of the horizon cap; outside the
// cap it is BelowHorizonDeg. Azimuth and range are absent.
func (c *Circular) LookAngles(obs Observer, t time.Time) (LookAngles, bool) {
	pos, ok := c.Propagate(t)
	if !ok {
		return LookAngles{}, false
	}
	psi, ok := geodesy.HorizonAngle(pos.AltitudeKm)
	if !ok {
		return LookAngles{}, false
	}

	sep := geodesy.AngularSeparation(obs.LatitudeDeg, obs.LongitudeDeg, pos.LatitudeDeg, pos.LongitudeDeg)
	el := BelowHorizonDeg
	if sep <= psi {
		el = (psi - sep) / psi * 90
	}
	return LookAngles{ElevationDeg: el, Approximate: true}, true
}

// Period implements PositionProvider.
func (c *Circular) Period() time.Duration {
	return time.Duration(c.PeriodMin * float64(time.Minute))
}
