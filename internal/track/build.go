package track

import (
	"time"

	"github.com/star/sattrack/internal/orbit"
	"github.com/star/sattrack/internal/passes"
)

const (
	minOrbitStep  = 20 * time.Second
	orbitSamples  = 120
	passTrackPad  = 15 * time.Minute
	passTrackStep = time.Minute
)

// Build samples sub-satellite points over [from, to] every step. Instants
// where the satellite has no position are skipped.
func Build(sat orbit.Satellite, from, to time.Time, step time.Duration) []Point {
	if step <= 0 || to.Before(from) {
		return nil
	}
	var pts []Point
	for t := from; !t.After(to); t = t.Add(step) {
		pos, ok := sat.Position(t)
		if !ok {
			continue
		}
		pts = append(pts, Point{Lat: pos.LatitudeDeg, Lon: pos.LongitudeDeg, Time: t})
	}
	return pts
}

// Path is an orbit split around the current instant, each half already split
// on the antimeridian.
type Path struct {
	Past   [][]Point `json:"past"`
	Future [][]Point `json:"future"`
}

// OrbitPath returns half an orbital period either side of now, sampled at
// max(20s, period/120). A satellite with unknown period yields an empty path.
func OrbitPath(sat orbit.Satellite, now time.Time) Path {
	period := sat.Period()
	if period <= 0 {
		return Path{}
	}
	step := period / orbitSamples
	if step < minOrbitStep {
		step = minOrbitStep
	}
	half := period / 2
	return Path{
		Past:   SplitOnAntimeridian(Build(sat, now.Add(-half), now, step)),
		Future: SplitOnAntimeridian(Build(sat, now, now.Add(half), step)),
	}
}

// PassTrack samples the ground track from 15 minutes before a pass to 15
// minutes after it, once a minute.
func PassTrack(sat orbit.Satellite, p passes.Pass) [][]Point {
	pts := Build(sat, p.Start.Add(-passTrackPad), p.End.Add(passTrackPad), passTrackStep)
	return SplitOnAntimeridian(pts)
}
