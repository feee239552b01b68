// Package track prepares sampled ground tracks for map rendering.
package track

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Point is one ground-track sample.
type Point struct {
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
	Time time.Time `json:"time,omitempty"`
}

// SplitOnAntimeridian splits an ordered point sequence wherever consecutive
// longitudes differ by more than 180°, so no segment wraps across the map.
// Segments with a single point are dropped.
func SplitOnAntimeridian(points []Point) [][]Point {
	var (
		segments [][]Point
		cur      []Point
	)
	flush := func() {
		if len(cur) > 1 {
			segments = append(segments, cur)
		}
		cur = nil
	}

	for i, p := range points {
		if i > 0 && math.Abs(p.Lon-points[i-1].Lon) > 180 {
			flush()
		}
		cur = append(cur, p)
	}
	flush()
	return segments
}

// Densify inserts insertsPerEdge linearly interpolated points between each
// consecutive pair. Original points, including both endpoints, are kept
// exactly.
func Densify(segment []Point, insertsPerEdge int) []Point {
	if insertsPerEdge <= 0 || len(segment) < 2 {
		return append([]Point(nil), segment...)
	}

	n := insertsPerEdge + 2
	lats := make([]float64, n)
	lons := make([]float64, n)
	out := make([]Point, 0, (len(segment)-1)*(insertsPerEdge+1)+1)

	for i := 0; i < len(segment)-1; i++ {
		a, b := segment[i], segment[i+1]
		floats.Span(lats, a.Lat, b.Lat)
		floats.Span(lons, a.Lon, b.Lon)

		out = append(out, a)
		for k := 1; k <= insertsPerEdge; k++ {
			p := Point{Lat: lats[k], Lon: lons[k]}
			if !a.Time.IsZero() && !b.Time.IsZero() {
				frac := float64(k) / float64(n-1)
				p.Time = a.Time.Add(time.Duration(float64(b.Time.Sub(a.Time)) * frac))
			}
			out = append(out, p)
		}
	}
	return append(out, segment[len(segment)-1])
}

// Bounds returns the latitude and longitude extent of points. ok is false for
// an empty slice.
func Bounds(points []Point) (minLat, minLon, maxLat, maxLon float64, ok bool) {
	if len(points) == 0 {
		return 0, 0, 0, 0, false
	}
	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for i, p := range points {
		lats[i], lons[i] = p.Lat, p.Lon
	}
	return floats.Min(lats), floats.Min(lons), floats.Max(lats), floats.Max(lons), true
}
