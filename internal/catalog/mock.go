package catalog

import "github.com/star/sattrack/internal/orbit"

// MockSource is the Source of the built-in synthetic fleet.
const MockSource = "mock"

type mockSpec struct {
	name      string
	noradID   int
	category  string
	periodMin float64
	incl      float64
	raan      float64
	phase     float64
	altKm     float64
}

var mockFleet = []mockSpec{
	{"ISS (MOCK)", 25544, CategoryISS, 92.7, 51.6, -20, 0, 420},
	{"AO-91 (MOCK)", 43017, CategoryAmateur, 97.0, 97.7, 40, 65, 500},
	{"LILACSAT-2 (MOCK)", 40908, CategoryAmateur, 94.8, 97.3, 120, 130, 470},
	{"STARLINK-3001 (MOCK)", 72001, CategoryStarlink, 95.2, 53.0, -70, 30, 550},
	{"STARLINK-3002 (MOCK)", 72002, CategoryStarlink, 95.4, 53.1, -85, 120, 550},
	{"STARLINK-3003 (MOCK)", 72003, CategoryStarlink, 95.0, 53.2, -100, 220, 550},
	{"NOAA-19 (MOCK)", 33591, CategoryWeather, 102.1, 99.2, 10, 85, 870},
	{"METOP-B (MOCK)", 38771, CategoryWeather, 101.4, 98.7, 75, 160, 815},
	{"HST (MOCK)", 20580, CategoryOther, 95.4, 28.5, 135, 260, 540},
	{"TIANGONG (MOCK)", 48274, CategoryOther, 92.1, 41.5, -145, 300, 390},
}

// MockSatellites returns the synthetic circular-orbit fleet used when no
// element sets are available. Phases are relative to the Unix epoch.
func MockSatellites() []orbit.Satellite {
	out := make([]orbit.Satellite, 0, len(mockFleet))
	for _, s := range mockFleet {
		c, err := orbit.NewCircular(orbit.Circular{
			PeriodMin:      s.periodMin,
			InclinationDeg: s.incl,
			RAANDeg:        s.raan,
			PhaseDeg:       s.phase,
			AltitudeKm:     s.altKm,
		})
		if err != nil {
			// Fleet parameters are constants.
			panic(err)
		}
		out = append(out, orbit.Satellite{
			NORADID:  s.noradID,
			Name:     s.name,
			Category: s.category,
			Provider: c,
		})
	}
	return out
}

// Mock returns a catalog of the synthetic fleet.
func Mock() *Catalog {
	c := newCatalog(MockSource)
	for _, s := range MockSatellites() {
		c.add(s)
	}
	return c
}
