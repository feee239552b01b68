package transform

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

const (
	jdJ2000        = 2451545.0
	daysPerCentury = 36525.0
	secondsPerDay  = 86400.0
	OmegaEarth     = 7.292115146706979e-5 // rad/s, IAU
)

// IAU-82 GMST polynomial in seconds of time, lowest order first.
var gmstCoeffs = [4]float64{67310.54841, 876600*3600 + 8640184.812866, 0.093104, -6.2e-6}

// JulianDate converts t to a Julian Date.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// GMST is the Greenwich Mean Sidereal Time at t in radians, [0, 2π).
// UTC stands in for UT1.
func GMST(t time.Time) float64 {
	c := (JulianDate(t) - jdJ2000) / daysPerCentury
	sec := gmstCoeffs[3]
	for i := 2; i >= 0; i-- {
		sec = sec*c + gmstCoeffs[i]
	}
	sec = math.Mod(sec, secondsPerDay)
	if sec < 0 {
		sec += secondsPerDay
	}
	return 2 * math.Pi * sec / secondsPerDay
}
