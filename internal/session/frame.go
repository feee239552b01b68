package session

import (
	"time"

	"github.com/star/sattrack/internal/footprint"
	"github.com/star/sattrack/internal/orbit"
)

// Frame is the visibility of the tracked satellite at one clock instant.
// Pointer fields are absent (null) when they could not be computed.
type Frame struct {
	Time        time.Time       `json:"time"`
	NORADID     int             `json:"norad_id,omitempty"`
	Name        string          `json:"name,omitempty"`
	SubPoint    *orbit.SubPoint `json:"sub_point,omitempty"`
	Elevation   *float64        `json:"elevation_deg,omitempty"`
	Azimuth     *float64        `json:"azimuth_deg,omitempty"`
	RangeKm     *float64        `json:"range_km,omitempty"`
	Approximate bool            `json:"approximate,omitempty"`
	AboveMin    bool            `json:"above_min_elevation"`
	DeltaKm     *float64        `json:"footprint_delta_km,omitempty"`
	LOSRadiusKm *float64        `json:"los_radius_km,omitempty"`
	InFootprint bool            `json:"in_footprint"`
}

// Evaluate computes the frame for v at t. It never fails: missing data leaves
// fields absent.
func Evaluate(v View, t time.Time) Frame {
	f := Frame{Time: t}
	if !v.HasSatellite {
		return f
	}
	sat := v.Satellite
	f.NORADID = sat.NORADID
	f.Name = sat.Name

	pos, ok := sat.Position(t)
	if !ok {
		return f
	}
	f.SubPoint = &pos
	if !v.HasObserver {
		return f
	}

	if la, ok := orbit.LookAnglesAt(sat, v.Observer, t); ok {
		el := la.ElevationDeg
		f.Elevation = &el
		f.Approximate = la.Approximate
		f.AboveMin = el >= v.MinElevationDeg
		if az, ok := la.Azimuth(); ok {
			f.Azimuth = &az
		}
		if rg, ok := la.Range(); ok {
			f.RangeKm = &rg
		}
	}

	if r, ok := footprint.LOSRadiusMeters(pos.AltitudeKm, v.Observer.AltitudeKm()); ok {
		rk := r / 1000
		f.LOSRadiusKm = &rk
	}
	if d, ok := footprint.DeltaKm(sat, v.Observer, t); ok {
		f.DeltaKm = &d
		f.InFootprint = d >= 0
	}
	return f
}
