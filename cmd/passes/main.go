// Command passes prints upcoming passes for catalog satellites over one
// observer, reading element sets from a TLE file or using the synthetic fleet.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/star/sattrack/internal/catalog"
	"github.com/star/sattrack/internal/orbit"
	"github.com/star/sattrack/internal/passes"
	"github.com/star/sattrack/internal/tle"
)

type options struct {
	tleFile   string
	ids       string
	category  string
	lat, lon  float64
	altM      float64
	hours     float64
	minEl     float64
	maxPasses int
	start     string
	asJSON    bool
}

func main() {
	var o options
	flag.StringVar(&o.tleFile, "tle", "", "3-line TLE file (default: synthetic fleet)")
	flag.StringVar(&o.ids, "norad", "25544", "comma-separated NORAD ids, or \"all\"")
	flag.StringVar(&o.category, "category", "", "limit \"all\" to one category")
	flag.Float64Var(&o.lat, "lat", 39.7392, "observer latitude in degrees")
	flag.Float64Var(&o.lon, "lon", -104.9903, "observer longitude in degrees")
	flag.Float64Var(&o.altM, "alt", 1609, "observer altitude in meters")
	flag.Float64Var(&o.hours, "hours", 24, "prediction window in hours")
	flag.Float64Var(&o.minEl, "min-el", 10, "minimum elevation in degrees")
	flag.IntVar(&o.maxPasses, "max", 10, "maximum passes per satellite")
	flag.StringVar(&o.start, "start", "", "start time, RFC 3339 (default: now)")
	flag.BoolVar(&o.asJSON, "json", false, "print JSON instead of a table")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o, logger); err != nil {
		fmt.Fprintln(os.Stderr, "passes:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, logger *slog.Logger) error {
	obs, err := orbit.NewObserver(o.lat, o.lon, o.altM)
	if err != nil {
		return err
	}
	start := time.Now().UTC()
	if o.start != "" {
		if start, err = time.Parse(time.RFC3339, o.start); err != nil {
			return fmt.Errorf("invalid -start: %w", err)
		}
	}

	cat, err := loadCatalog(o.tleFile, logger)
	if err != nil {
		return err
	}
	sats, err := selectSatellites(cat, o.ids, o.category)
	if err != nil {
		return err
	}

	results := passes.Predict(ctx, passes.Request{
		Observer:     obs,
		Satellites:   sats,
		Start:        start,
		HorizonHours: o.hours,
		MinElevation: o.minEl,
		MaxPasses:    o.maxPasses,
	})

	byID := make(map[int]orbit.Satellite, len(sats))
	for _, s := range sats {
		byID[s.NORADID] = s
	}
	report := make([]satelliteReport, 0, len(results))
	for _, r := range results {
		rep := satelliteReport{NORADID: r.NORADID, Name: r.Name, Error: r.Error}
		for _, p := range r.Passes {
			rep.Passes = append(rep.Passes, passes.Describe(byID[r.NORADID], obs, p))
		}
		report = append(report, rep)
	}

	if o.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printTable(report, cat.Source(), start)
	return nil
}

type satelliteReport struct {
	NORADID int             `json:"norad_id"`
	Name    string          `json:"name"`
	Passes  []passes.Detail `json:"passes"`
	Error   string          `json:"error,omitempty"`
}

func loadCatalog(path string, logger *slog.Logger) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Mock(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening TLE file: %w", err)
	}
	defer f.Close()
	entries, err := tle.Parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("parsing TLE file: %w", err)
	}
	return catalog.New(path, entries, logger), nil
}

func selectSatellites(cat *catalog.Catalog, ids, category string) ([]orbit.Satellite, error) {
	if ids == "all" {
		sats := cat.ByCategory(category)
		if len(sats) == 0 {
			return nil, fmt.Errorf("no satellites in category %q", category)
		}
		return sats, nil
	}
	var out []orbit.Satellite
	for _, field := range strings.Split(ids, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("invalid NORAD id %q", field)
		}
		sat, err := cat.Get(id)
		if err != nil {
			return nil, fmt.Errorf("NORAD %d: %w", id, err)
		}
		out = append(out, sat)
	}
	return out, nil
}

func printTable(report []satelliteReport, source string, start time.Time) {
	fmt.Printf("catalog %s, from %s\n", source, start.Format(time.RFC3339))
	total := 0
	for _, sat := range report {
		if sat.Error != "" {
			fmt.Printf("\n%s (NORAD %d): ERROR %s\n", sat.Name, sat.NORADID, sat.Error)
			continue
		}
		fmt.Printf("\n%s (NORAD %d): %d passes\n", sat.Name, sat.NORADID, len(sat.Passes))
		total += len(sat.Passes)
		for _, p := range sat.Passes {
			fmt.Printf("  %s  %5.0fs  max %5.1f°  %s -> %s -> %s",
				p.Start.Format("2006-01-02 15:04:05"), p.DurationSeconds, p.MaxElevationDeg,
				p.RiseDirection, p.MaxDirection, p.SetDirection)
			if p.LOS != nil {
				fmt.Printf("  LOS %s-%s", p.LOS.Start.Format("15:04:05"), p.LOS.End.Format("15:04:05"))
			}
			fmt.Println()
		}
	}
	fmt.Printf("\ntotal passes: %d\n", total)
}
