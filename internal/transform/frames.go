// Package transform converts SGP4 output into Earth-fixed, geodetic and
// observer-relative coordinates.
//
// TEME → ECEF uses a GMST-only rotation (TEME → PEF ≈ ECEF). Polar motion and
// the equation of the equinoxes are ignored; the resulting error is tens of
// meters, far below what matters for rise/set prediction.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3-4.
package transform

import (
	"math"
	"time"
)

// PositionTEME is a position/velocity in the TEME frame (km, km/s).
type PositionTEME struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// PositionECEF is a position/velocity in the ECEF frame (m, m/s).
type PositionECEF struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// TEMEToECEF rotates a TEME state into ECEF at UTC time t.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST rotates with a precomputed GMST angle (radians):
//
//	r_ECEF = R3(θ) r_TEME
//	v_ECEF = R3(θ) v_TEME − ω × r_ECEF
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	x := teme.X*cosG + teme.Y*sinG
	y := -teme.X*sinG + teme.Y*cosG
	z := teme.Z

	vx := teme.VX*cosG + teme.VY*sinG + OmegaEarth*y
	vy := -teme.VX*sinG + teme.VY*cosG - OmegaEarth*x
	vz := teme.VZ

	return PositionECEF{
		X:  x * 1000.0,
		Y:  y * 1000.0,
		Z:  z * 1000.0,
		VX: vx * 1000.0,
		VY: vy * 1000.0,
		VZ: vz * 1000.0,
	}
}

// ValidECEF reports whether pos is finite and between 6200 km and 50000 km
// from the geocenter, i.e. plausible for an Earth-orbiting object.
func ValidECEF(pos PositionECEF) bool {
	for _, v := range [...]float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	const minRadius = 6200.0 * 1000.0
	const maxRadius = 50000.0 * 1000.0

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	return mag >= minRadius && mag <= maxRadius
}
