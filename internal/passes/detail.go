package passes

import (
	"math"
	"time"

	"github.com/star/sattrack/internal/footprint"
	"github.com/star/sattrack/internal/metrics"
	"github.com/star/sattrack/internal/orbit"
)

const (
	// losLead and losSpan bound the footprint search around a pass.
	losLead = 45 * time.Minute
	losSpan = 6 * time.Hour

	// DayMaxPasses caps the passes listed for one calendar day.
	DayMaxPasses = 128
)

// Detail is a pass with the directions and radio window shown in pass lists.
// Azimuths are nil when the satellite only has an approximate position model.
type Detail struct {
	Pass
	DurationSeconds float64           `json:"duration_seconds"`
	RiseAzimuthDeg  *float64          `json:"rise_azimuth_deg,omitempty"`
	MaxAzimuthDeg   *float64          `json:"max_azimuth_deg,omitempty"`
	SetAzimuthDeg   *float64          `json:"set_azimuth_deg,omitempty"`
	RiseDirection   string            `json:"rise_direction"`
	MaxDirection    string            `json:"max_direction"`
	SetDirection    string            `json:"set_direction"`
	LOS             *footprint.Window `json:"los_window,omitempty"`
}

// Describe matches pass to its LOS window and resolves the rise, peak and set
// directions. Rise and set azimuths are taken at the LOS window edges when a
// window was found, else at the pass edges.
func Describe(sat orbit.Satellite, obs orbit.Observer, pass Pass) Detail {
	d := Detail{
		Pass:            pass,
		DurationSeconds: pass.Duration().Seconds(),
	}

	riseAt, setAt := pass.Start, pass.End
	if w, ok := LOSWindowFor(sat, obs, pass); ok {
		d.LOS = &w
		riseAt, setAt = w.Start, w.End
	}

	d.RiseAzimuthDeg, d.RiseDirection = azimuthAt(sat, obs, riseAt)
	d.MaxAzimuthDeg, d.MaxDirection = azimuthAt(sat, obs, pass.MaxAt)
	d.SetAzimuthDeg, d.SetDirection = azimuthAt(sat, obs, setAt)
	return d
}

func azimuthAt(sat orbit.Satellite, obs orbit.Observer, t time.Time) (*float64, string) {
	la, ok := orbit.LookAnglesAt(sat, obs, t)
	if !ok {
		return nil, Cardinal(0, false)
	}
	az, ok := la.Azimuth()
	if !ok {
		return nil, Cardinal(0, false)
	}
	return &az, Cardinal(az, true)
}

var rose = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Cardinal returns the 8-point compass direction for an azimuth in degrees,
// or "N/A" when the azimuth is absent or not finite.
func Cardinal(deg float64, ok bool) string {
	if !ok || math.IsNaN(deg) || math.IsInf(deg, 0) {
		return "N/A"
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return rose[int(math.Round(deg/45))%8]
}

// LOSWindowFor searches the footprint criterion from 45 minutes before the
// pass over six hours and returns the window matching the pass.
func LOSWindowFor(sat orbit.Satellite, obs orbit.Observer, pass Pass) (footprint.Window, bool) {
	from := pass.Start.Add(-losLead)
	windows := footprint.FindWindows(sat, obs, from, from.Add(losSpan), footprint.DefaultStep)
	metrics.AddFootprintWindows(len(windows))
	return footprint.SelectWindow(windows, pass.Start, pass.MaxAt, pass.End)
}

// PassesOnDay returns the passes starting on now's calendar day (in now's
// location), scanning from local midnight over 24 hours.
func PassesOnDay(sat orbit.Satellite, obs orbit.Observer, now time.Time, minElevationDeg float64) []Pass {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	all := ComputeNextPasses(sat, obs, midnight, 24, minElevationDeg, DayMaxPasses)
	out := all[:0]
	for _, p := range all {
		py, pm, pd := p.Start.In(now.Location()).Date()
		if py == y && pm == m && pd == d {
			out = append(out, p)
		}
	}
	return out
}
