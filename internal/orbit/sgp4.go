package orbit

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/star/sattrack/internal/transform"
)

// SGP4 library: github.com/joshuaferrara/go-satellite.
//
// satellite.Propagate takes the Satellite by value and resolves time to whole
// seconds, so SGP4 error codes are not visible here. Failures are detected by
// NaN/Inf output and implausible radii.

// ErrInvalidTLE is returned when element set lines cannot be used for SGP4.
var ErrInvalidTLE = errors.New("invalid TLE")

// SGP4 propagates a real two-line element set.
type SGP4 struct {
	sat     satellite.Satellite
	noradID int
	period  time.Duration
}

// NewSGP4 builds a propagator from TLE lines.
//
// The lines are checked before they reach go-satellite, which calls log.Fatal
// on unparsable input.
func NewSGP4(line1, line2 string, noradID int) (*SGP4, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	revsPerDay, err := validateTLELines(line1, line2)
	if err != nil {
		return nil, fmt.Errorf("%w for NORAD %d: %v", ErrInvalidTLE, noradID, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w for NORAD %d: sgp4 init code=%d %s", ErrInvalidTLE, noradID, sat.Error, sat.ErrorStr)
	}

	return &SGP4{
		sat:     sat,
		noradID: noradID,
		period:  time.Duration(float64(24*time.Hour) / revsPerDay),
	}, nil
}

// validateTLELines checks length, line numbers and the numeric fields
// go-satellite parses, and returns the mean motion in revolutions per day.
func validateTLELines(line1, line2 string) (float64, error) {
	if len(line1) != 69 {
		return 0, fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return 0, fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return 0, fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return 0, fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}

	fields := []struct {
		name string
		text string
	}{
		{"epoch", line1[18:32]},
		{"inclination", line2[8:16]},
		{"raan", line2[17:25]},
		{"arg of perigee", line2[34:42]},
		{"mean anomaly", line2[43:51]},
	}
	for _, f := range fields {
		if _, err := strconv.ParseFloat(strings.TrimSpace(f.text), 64); err != nil {
			return 0, fmt.Errorf("%s %q: %w", f.name, f.text, err)
		}
	}

	mm, err := strconv.ParseFloat(strings.TrimSpace(line2[52:63]), 64)
	if err != nil {
		return 0, fmt.Errorf("mean motion %q: %w", line2[52:63], err)
	}
	if mm <= 0 || math.IsNaN(mm) || math.IsInf(mm, 0) {
		return 0, fmt.Errorf("mean motion %v must be positive", mm)
	}
	return mm, nil
}

// PropagateTEME returns the TEME state (km, km/s) at t. go-satellite only
// takes whole seconds, so sub-second instants interpolate linearly between the
// neighbouring seconds.
func (p *SGP4) PropagateTEME(t time.Time) (transform.PositionTEME, error) {
	t = t.UTC()
	base := t.Truncate(time.Second)
	a, err := p.propagateSecond(base)
	if err != nil {
		return a, err
	}
	frac := t.Sub(base).Seconds()
	if frac == 0 {
		return a, nil
	}
	b, err := p.propagateSecond(base.Add(time.Second))
	if err != nil {
		return b, err
	}
	lerp := func(x, y float64) float64 { return x + (y-x)*frac }
	return transform.PositionTEME{
		X: lerp(a.X, b.X), Y: lerp(a.Y, b.Y), Z: lerp(a.Z, b.Z),
		VX: lerp(a.VX, b.VX), VY: lerp(a.VY, b.VY), VZ: lerp(a.VZ, b.VZ),
	}, nil
}

func (p *SGP4) propagateSecond(t time.Time) (transform.PositionTEME, error) {
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return transform.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", p.noradID)
	}

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return transform.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km", p.noradID, mag)
	}

	return transform.PositionTEME{X: pos.X, Y: pos.Y, Z: pos.Z, VX: vel.X, VY: vel.Y, VZ: vel.Z}, nil
}

// PropagateECEF returns the ECEF state (m, m/s) at t.
func (p *SGP4) PropagateECEF(t time.Time) (transform.PositionECEF, error) {
	teme, err := p.PropagateTEME(t)
	if err != nil {
		return transform.PositionECEF{}, err
	}
	ecef := transform.TEMEToECEF(teme, t)
	if !transform.ValidECEF(ecef) {
		return transform.PositionECEF{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: invalid ECEF position", p.noradID)
	}
	return ecef, nil
}

// Propagate implements PositionProvider.
func (p *SGP4) Propagate(t time.Time) (SubPoint, bool) {
	ecef, err := p.PropagateECEF(t)
	if err != nil {
		return SubPoint{}, false
	}
	geo := transform.ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)
	return SubPoint{
		LatitudeDeg:  geo.LatDeg,
		LongitudeDeg: geo.LonDeg,
		AltitudeKm:   geo.AltM / 1000.0,
	}, true
}

// LookAngles implements PositionProvider using the exact SEZ transform.
func (p *SGP4) LookAngles(obs Observer, t time.Time) (LookAngles, bool) {
	ecef, err := p.PropagateECEF(t)
	if err != nil {
		return LookAngles{}, false
	}
	site := transform.NewSite(obs.LatitudeDeg, obs.LongitudeDeg, obs.AltitudeMeters)
	topo := site.Look(ecef.X, ecef.Y, ecef.Z)
	return LookAngles{
		ElevationDeg: topo.ElevationDeg,
		AzimuthDeg:   topo.AzimuthDeg,
		RangeKm:      topo.RangeKm,
	}, true
}

// Period implements PositionProvider from the element set's mean motion.
func (p *SGP4) Period() time.Duration {
	return p.period
}

// NORADID returns the catalog number the propagator was built for.
func (p *SGP4) NORADID() int {
	return p.noradID
}
