package geodesy

import (
	"math"
	"time"
)

// CrossingFraction returns where, between two samples, a linearly varying
// quantity crosses zero: prev/(prev-next), clamped to [0,1].
// Equal samples return 0.
func CrossingFraction(prev, next float64) float64 {
	den := prev - next
	if den == 0 || !isFinite(den) {
		return 0
	}
	return clamp(prev/den, 0, 1)
}

// Interpolate returns the instant frac of the way from a to b.
func Interpolate(a, b time.Time, frac float64) time.Time {
	span := b.Sub(a)
	return a.Add(time.Duration(math.Round(float64(span) * frac)))
}
