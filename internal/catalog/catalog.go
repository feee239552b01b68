// Package catalog turns element sets into the immutable satellite snapshot the
// engine reads, and keeps it refreshed.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/star/sattrack/internal/orbit"
	"github.com/star/sattrack/internal/tle"
)

// ErrNotFound is returned for an unknown NORAD id.
var ErrNotFound = errors.New("satellite not found")

// Categories, in display order.
const (
	CategoryISS      = "iss"
	CategoryAmateur  = "amateur"
	CategoryStarlink = "starlink"
	CategoryWeather  = "weather"
	CategoryOther    = "other"
)

// Categories lists every category tag.
var Categories = []string{CategoryISS, CategoryAmateur, CategoryStarlink, CategoryWeather, CategoryOther}

const issNORADID = 25544

// Catalog is an immutable snapshot of satellites keyed by NORAD id.
type Catalog struct {
	source string
	order  []int
	byID   map[int]orbit.Satellite
}

// Info is the JSON summary of a catalog entry.
type Info struct {
	NORADID     int     `json:"norad_id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Approximate bool    `json:"approximate"`
	PeriodMin   float64 `json:"period_min"`
}

func newCatalog(source string) *Catalog {
	return &Catalog{source: source, byID: make(map[int]orbit.Satellite)}
}

// add keeps the first satellite seen for an id.
func (c *Catalog) add(sat orbit.Satellite) bool {
	if _, dup := c.byID[sat.NORADID]; dup {
		return false
	}
	c.byID[sat.NORADID] = sat
	c.order = append(c.order, sat.NORADID)
	return true
}

// New builds a catalog from element sets. Entries SGP4 cannot initialize are
// logged and skipped; for duplicate NORAD ids the first entry wins.
func New(source string, entries []tle.Entry, logger *slog.Logger) *Catalog {
	c := newCatalog(source)
	var skipped, dups int
	for _, e := range entries {
		prop, err := orbit.NewSGP4(e.Line1, e.Line2, e.NORADID)
		if err != nil {
			logger.Warn("skipping satellite", "component", "catalog", "norad_id", e.NORADID, "name", e.Name, "error", err)
			skipped++
			continue
		}
		name := e.Name
		if e.NORADID == issNORADID {
			name = "ISS"
		}
		if !c.add(orbit.Satellite{
			NORADID:  e.NORADID,
			Name:     name,
			Category: CategoryFromName(e.NORADID, e.Name),
			Provider: prop,
		}) {
			dups++
		}
	}
	logger.Info("catalog built",
		"component", "catalog",
		"source", source,
		"satellites", c.Len(),
		"skipped", skipped,
		"duplicates", dups,
	)
	return c
}

var (
	amateurMarkers = []string{"AO-", "FO-", "SO-", "RS-", "IO-", "CAS-", "XW-", "LILACSAT", "FUNCUBE", "OSCAR", "CUBESAT"}
	weatherMarkers = []string{"NOAA", "METOP", "GOES", "METEOR", "FENGYUN", "HIMAWARI", "DMSP", "SUOMI", "JPSS", "METEOSAT"}
)

// CategoryFromName derives a category tag for a real element set.
func CategoryFromName(noradID int, name string) string {
	upper := strings.ToUpper(name)
	switch {
	case noradID == issNORADID || upper == "ISS" || strings.HasPrefix(upper, "ISS "):
		return CategoryISS
	case strings.HasPrefix(upper, "STARLINK"):
		return CategoryStarlink
	case containsAny(upper, weatherMarkers):
		return CategoryWeather
	case containsAny(upper, amateurMarkers):
		return CategoryAmateur
	default:
		return CategoryOther
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Source names where the catalog came from.
func (c *Catalog) Source() string { return c.source }

// Len returns the number of satellites.
func (c *Catalog) Len() int { return len(c.order) }

// Lookup returns the satellite with the given id.
func (c *Catalog) Lookup(id int) (orbit.Satellite, bool) {
	sat, ok := c.byID[id]
	return sat, ok
}

// Get is Lookup with an error for HTTP handlers.
func (c *Catalog) Get(id int) (orbit.Satellite, error) {
	sat, ok := c.byID[id]
	if !ok {
		return orbit.Satellite{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return sat, nil
}

// All returns satellites in insertion order.
func (c *Catalog) All() []orbit.Satellite {
	out := make([]orbit.Satellite, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// ByCategory returns satellites tagged category. An empty category returns all.
func (c *Catalog) ByCategory(category string) []orbit.Satellite {
	if category == "" {
		return c.All()
	}
	var out []orbit.Satellite
	for _, id := range c.order {
		if sat := c.byID[id]; sat.Category == category {
			out = append(out, sat)
		}
	}
	return out
}

// Infos summarizes satellites sorted by name.
func Infos(sats []orbit.Satellite) []Info {
	out := make([]Info, 0, len(sats))
	for _, s := range sats {
		out = append(out, Info{
			NORADID:     s.NORADID,
			Name:        s.Name,
			Category:    s.Category,
			Approximate: s.Approximate(),
			PeriodMin:   s.Period().Minutes(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
