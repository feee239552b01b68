package transform

import (
	"math"
	"testing"
)

func magnitude(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}

func TestNewSiteECEFMagnitude(t *testing.T) {
	equator := NewSite(0, 0, 0)
	if got := magnitude(equator.ECEFx, equator.ECEFy, equator.ECEFz); math.Abs(got-6378137.0) > 1.0 {
		t.Errorf("equatorial site ECEF magnitude = %.1f m, want ~6378137 m", got)
	}

	pole := NewSite(90, 0, 0)
	if got := magnitude(pole.ECEFx, pole.ECEFy, pole.ECEFz); math.Abs(got-6356752.3) > 1.0 {
		t.Errorf("polar site ECEF magnitude = %.1f m, want ~6356752 m", got)
	}
}

func TestNewSiteAltitude(t *testing.T) {
	s0 := NewSite(0, 0, 0)
	s100 := NewSite(0, 0, 100)

	diff := magnitude(s100.ECEFx, s100.ECEFy, s100.ECEFz) - magnitude(s0.ECEFx, s0.ECEFy, s0.ECEFz)
	if math.Abs(diff-100.0) > 0.01 {
		t.Errorf("altitude difference = %.3f m, want 100 m", diff)
	}
}

func TestLookDirectlyOverhead(t *testing.T) {
	site := NewSite(0, 0, 0)
	la := site.Look(site.ECEFx+550000.0, site.ECEFy, site.ECEFz)

	if math.Abs(la.ElevationDeg-90.0) > 0.1 {
		t.Errorf("overhead elevation = %.2f deg, want ~90", la.ElevationDeg)
	}
	if math.Abs(la.RangeKm-550.0) > 1.0 {
		t.Errorf("overhead range = %.2f km, want ~550", la.RangeKm)
	}
}

func TestLookOverheadMidLatitude(t *testing.T) {
	site := NewSite(47.5, 8.5, 420)
	sat := NewSite(47.5, 8.5, 420+550000)
	la := site.Look(sat.ECEFx, sat.ECEFy, sat.ECEFz)

	if math.Abs(la.ElevationDeg-90.0) > 0.01 {
		t.Errorf("overhead elevation = %.4f deg, want 90", la.ElevationDeg)
	}
}

func TestLookBelowHorizon(t *testing.T) {
	site := NewSite(0, 0, 0)
	far := NewSite(0, 60, 400000)
	la := site.Look(far.ECEFx, far.ECEFy, far.ECEFz)

	if la.ElevationDeg >= 0 {
		t.Errorf("elevation for target 60 deg away at 400 km = %.2f, want negative", la.ElevationDeg)
	}
}

func TestLookAzimuthDirections(t *testing.T) {
	site := NewSite(0, 0, 0)

	tests := []struct {
		name     string
		lat, lon float64
		want     float64
	}{
		{"north", 10, 0, 0},
		{"east", 0, 10, 90},
		{"south", -10, 0, 180},
		{"west", 0, -10, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := NewSite(tt.lat, tt.lon, 400000)
			la := site.Look(target.ECEFx, target.ECEFy, target.ECEFz)

			diff := math.Abs(la.AzimuthDeg - tt.want)
			if diff > 180 {
				diff = 360 - diff
			}
			if diff > 1 {
				t.Errorf("azimuth = %.2f deg, want ~%.0f", la.AzimuthDeg, tt.want)
			}
			if la.AzimuthDeg < 0 || la.AzimuthDeg >= 360 {
				t.Errorf("azimuth %.2f outside [0,360)", la.AzimuthDeg)
			}
		})
	}
}

func TestLookZeroRange(t *testing.T) {
	site := NewSite(10, 10, 0)
	la := site.Look(site.ECEFx, site.ECEFy, site.ECEFz)
	if math.IsNaN(la.ElevationDeg) || la.RangeKm != 0 {
		t.Errorf("zero-range look = %+v, want finite with zero range", la)
	}
}

func TestECEFToGeodeticRoundTrip(t *testing.T) {
	tests := []GeodeticPoint{
		{0, 0, 0},
		{40.7128, -74.006, 10},
		{-33.8688, 151.2093, 550000},
		{89.5, 45, 800000},
		{-60, -179.5, 35786000},
	}

	for _, want := range tests {
		s := NewSite(want.LatDeg, want.LonDeg, want.AltM)
		got := ECEFToGeodetic(s.ECEFx, s.ECEFy, s.ECEFz)

		if math.Abs(got.LatDeg-want.LatDeg) > 1e-6 || math.Abs(got.LonDeg-want.LonDeg) > 1e-6 {
			t.Errorf("round trip %+v -> %+v", want, got)
		}
		if math.Abs(got.AltM-want.AltM) > 0.01 {
			t.Errorf("round trip altitude %+v -> %.3f m", want, got.AltM)
		}
	}
}
