// Package geodesy provides spherical-Earth distance and horizon geometry used by
// the visibility and footprint calculations.
//
// All functions use a spherical Earth of radius EarthRadiusKm (the WGS-84
// equatorial radius). The ellipsoidal model lives in package transform and is
// only used for the exact look-angle transform.
package geodesy

import (
	"math"

	"github.com/soniakeys/unit"
)

// EarthRadiusKm is the WGS-84 equatorial radius in kilometers.
const EarthRadiusKm = 6378.137

// GreatCircleDistanceKm returns the haversine distance in km between two
// geodetic points given in degrees.
func GreatCircleDistanceKm(latA, lonA, latB, lonB float64) float64 {
	φ1 := unit.AngleFromDeg(latA)
	φ2 := unit.AngleFromDeg(latB)
	Δφ := unit.AngleFromDeg(latB - latA)
	Δλ := unit.AngleFromDeg(lonB - lonA)

	sinHalfLat := math.Sin(Δφ.Rad() / 2)
	sinHalfLon := math.Sin(Δλ.Rad() / 2)
	a := sinHalfLat*sinHalfLat + φ1.Cos()*φ2.Cos()*sinHalfLon*sinHalfLon

	// Rounding can push a slightly outside [0,1] near antipodal or coincident points.
	arg := math.Sqrt(clamp(a, 0, 1))
	return 2 * EarthRadiusKm * math.Asin(clamp(arg, 0, 1))
}

// AngularSeparation returns the central angle in radians between two points.
func AngularSeparation(latA, lonA, latB, lonB float64) float64 {
	return GreatCircleDistanceKm(latA, lonA, latB, lonB) / EarthRadiusKm
}

// HorizonAngle returns the angular radius (radians) of the horizon cap seen
// from an object at altitudeKm above the sphere. ok is false when the altitude
// is not a positive finite number.
func HorizonAngle(altitudeKm float64) (float64, bool) {
	if !isFinite(altitudeKm) || altitudeKm <= 0 {
		return 0, false
	}
	return math.Acos(EarthRadiusKm / (EarthRadiusKm + altitudeKm)), true
}

// ValidCoordinate reports whether lat/lon are finite and inside
// [-90,90] x [-180,180].
func ValidCoordinate(lat, lon float64) bool {
	if !isFinite(lat) || !isFinite(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// NormalizeLongitude wraps lon into [-180, 180).
func NormalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
