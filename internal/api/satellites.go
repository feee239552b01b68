package api

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/star/sattrack/internal/cache"
	"github.com/star/sattrack/internal/catalog"
	"github.com/star/sattrack/internal/fleet"
	"github.com/star/sattrack/internal/footprint"
	"github.com/star/sattrack/internal/orbit"
	"github.com/star/sattrack/internal/passes"
	"github.com/star/sattrack/internal/session"
	"github.com/star/sattrack/internal/track"
)

const (
	defaultPassHours = 24
	maxPassHours     = 168
	defaultMaxPasses = 10
	maxMaxPasses     = 100
	maxFootprintHrs  = 72
	maxDensify       = 20
	maxPassSpan      = 24 * time.Hour
)

// satelliteFromPath resolves {norad_id}, writing the error response itself.
func (s *Server) satelliteFromPath(w http.ResponseWriter, r *http.Request) (orbit.Satellite, bool) {
	id, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid NORAD ID")
		return orbit.Satellite{}, false
	}
	sat, err := s.deps.Loader.Current().Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return orbit.Satellite{}, false
	}
	return sat, true
}

// observerFor returns the observer from lat/lon/alt query parameters when
// given, else the session observer.
func (s *Server) observerFor(w http.ResponseWriter, r *http.Request) (orbit.Observer, bool) {
	q := r.URL.Query()
	if q.Has("lat") || q.Has("lon") {
		lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
		lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
		alt := 0.0
		var err3 error
		if v := q.Get("alt"); v != "" {
			alt, err3 = strconv.ParseFloat(v, 64)
		}
		if err := errors.Join(err1, err2, err3); err != nil {
			writeError(w, http.StatusBadRequest, "invalid lat/lon/alt parameters")
			return orbit.Observer{}, false
		}
		obs, err := orbit.NewObserver(lat, lon, alt)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return orbit.Observer{}, false
		}
		return obs, true
	}
	obs, ok := s.deps.Session.Observer()
	if !ok {
		writeError(w, http.StatusConflict, session.ErrNoObserver.Error())
		return orbit.Observer{}, false
	}
	return obs, true
}

// GET /api/v1/satellites?category=
func (s *Server) handleSatellites(w http.ResponseWriter, r *http.Request) {
	cat := s.deps.Loader.Current()
	category := r.URL.Query().Get("category")
	if category != "" && !validCategory(category) {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}
	infos := catalog.Infos(cat.ByCategory(category))
	writeJSON(w, http.StatusOK, map[string]any{
		"source":     cat.Source(),
		"count":      len(infos),
		"satellites": infos,
	})
}

func validCategory(c string) bool {
	for _, known := range catalog.Categories {
		if c == known {
			return true
		}
	}
	return false
}

// GET /api/v1/positions?t=&category=
//
// Elevations are included when the session has an observer or one is given
// with lat/lon.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category != "" && !validCategory(category) {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}
	t, err := queryTime(r, "t", s.deps.Session.Clock().Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := fleet.Request{
		Satellites:      s.deps.Loader.Current().ByCategory(category),
		Time:            t,
		MinElevationDeg: s.deps.Session.MinElevation(),
	}
	if r.URL.Query().Has("lat") || r.URL.Query().Has("lon") {
		obs, ok := s.observerFor(w, r)
		if !ok {
			return
		}
		req.Observer = &obs
	} else if obs, ok := s.deps.Session.Observer(); ok {
		req.Observer = &obs
	}
	writeJSON(w, http.StatusOK, s.deps.Fleet.Snapshot(r.Context(), req))
}

// GET /api/v1/satellites/{norad_id}
func (s *Server) handleSatellite(w http.ResponseWriter, r *http.Request) {
	sat, ok := s.satelliteFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, catalog.Infos([]orbit.Satellite{sat})[0])
}

// GET /api/v1/satellites/{norad_id}/look?t=
func (s *Server) handleLook(w http.ResponseWriter, r *http.Request) {
	sat, ok := s.satelliteFromPath(w, r)
	if !ok {
		return
	}
	t, err := queryTime(r, "t", s.deps.Session.Clock().Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v := s.deps.Session.View()
	if r.URL.Query().Has("lat") || r.URL.Query().Has("lon") {
		obs, ok := s.observerFor(w, r)
		if !ok {
			return
		}
		v.Observer, v.HasObserver = obs, true
	}
	v.Satellite, v.HasSatellite = sat, true
	writeJSON(w, http.StatusOK, session.Evaluate(v, t))
}

type passesResponse struct {
	NORADID         int             `json:"norad_id"`
	Name            string          `json:"name"`
	Observer        orbit.Observer  `json:"observer"`
	Start           time.Time       `json:"start"`
	MinElevationDeg float64         `json:"min_elevation_deg"`
	Approximate     bool            `json:"approximate"`
	Passes          []passes.Detail `json:"passes"`
}

// GET /api/v1/satellites/{norad_id}/passes?hours=&min_elevation=&max_passes=
func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	sat, ok := s.satelliteFromPath(w, r)
	if !ok {
		return
	}
	obs, ok := s.observerFor(w, r)
	if !ok {
		return
	}
	hours, err := queryFloat(r, "hours", defaultPassHours, 0.1, maxPassHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minEl, err := queryFloat(r, "min_elevation", s.deps.Session.MinElevation(), -90, 90)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxPasses, err := queryInt(r, "max_passes", defaultMaxPasses, 1, maxMaxPasses)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := s.deps.Session.Clock().Now().Truncate(time.Minute)
	compute := func() []passes.Detail {
		found := passes.ComputeNextPasses(sat, obs, start, hours, minEl, maxPasses)
		return describeAll(sat, obs, found)
	}
	details := s.cached(cache.NewKey("next", sat.NORADID, obs, start, hours, minEl, maxPasses), compute)

	writeJSON(w, http.StatusOK, passesResponse{
		NORADID:         sat.NORADID,
		Name:            sat.Name,
		Observer:        obs,
		Start:           start,
		MinElevationDeg: minEl,
		Approximate:     sat.Approximate(),
		Passes:          details,
	})
}

// GET /api/v1/satellites/{norad_id}/passes/today?tz=&min_elevation=
func (s *Server) handlePassesToday(w http.ResponseWriter, r *http.Request) {
	sat, ok := s.satelliteFromPath(w, r)
	if !ok {
		return
	}
	obs, ok := s.observerFor(w, r)
	if !ok {
		return
	}
	minEl, err := queryFloat(r, "min_elevation", s.deps.Session.MinElevation(), -90, 90)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid tz parameter")
			return
		}
	}

	now := s.deps.Session.Clock().Now().In(loc)
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	compute := func() []passes.Detail {
		return describeAll(sat, obs, passes.PassesOnDay(sat, obs, now, minEl))
	}
	details := s.cached(cache.NewKey("today", sat.NORADID, obs, midnight, 24, minEl, passes.DayMaxPasses), compute)

	writeJSON(w, http.StatusOK, passesResponse{
		NORADID:         sat.NORADID,
		Name:            sat.Name,
		Observer:        obs,
		Start:           midnight,
		MinElevationDeg: minEl,
		Approximate:     sat.Approximate(),
		Passes:          details,
	})
}

func describeAll(sat orbit.Satellite, obs orbit.Observer, found []passes.Pass) []passes.Detail {
	out := make([]passes.Detail, 0, len(found))
	for _, p := range found {
		out = append(out, passes.Describe(sat, obs, p))
	}
	return out
}

func (s *Server) cached(k cache.Key, compute func() []passes.Detail) []passes.Detail {
	if s.deps.Cache == nil {
		return compute()
	}
	return s.deps.Cache.GetOrCompute(k, compute)
}

// GET /api/v1/satellites/{norad_id}/footprint?hours=&step=
func (s *Server) handleFootprint(w http.ResponseWriter, r *http.Request) {
	sat, ok := s.satelliteFromPath(w, r)
	if !ok {
		return
	}
	obs, ok := s.observerFor(w, r)
	if !ok {
		return
	}
	hours, err := queryFloat(r, "hours", defaultPassHours, 0.1, maxFootprintHrs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stepSec, err := queryInt(r, "step", int(footprint.DefaultStep/time.Second), 5, 600)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := s.deps.Session.Clock().Now()
	end := start.Add(time.Duration(hours * float64(time.Hour)))
	windows := footprint.FindWindows(sat, obs, start, end, time.Duration(stepSec)*time.Second)
	if windows == nil {
		windows = []footprint.Window{}
	}

	var current *footprint.Window
	for i := range windows {
		if windows[i].Contains(start) {
			current = &windows[i]
			break
		}
	}
	resp := map[string]any{
		"norad_id": sat.NORADID,
		"start":    start,
		"end":      end,
		"windows":  windows,
		"current":  current,
	}
	if pos, ok := sat.Position(start); ok {
		if radius, ok := footprint.LOSRadiusMeters(pos.AltitudeKm, obs.AltitudeKm()); ok {
			resp["los_radius_km"] = radius / 1000
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/satellites/{norad_id}/track?dense=&pass_start=&pass_end=
//
// Without pass bounds the response is the orbit path around the clock
// instant; with them it is the ground track around that pass.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	sat, ok := s.satelliteFromPath(w, r)
	if !ok {
		return
	}
	dense, err := queryInt(r, "dense", 0, 0, maxDensify)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	if q.Has("pass_start") || q.Has("pass_end") {
		ps, err1 := queryTime(r, "pass_start", time.Time{})
		pe, err2 := queryTime(r, "pass_end", time.Time{})
		if err := errors.Join(err1, err2); err != nil || ps.IsZero() || pe.Before(ps) {
			writeError(w, http.StatusBadRequest, "pass_start and pass_end must both be RFC 3339 with pass_end >= pass_start")
			return
		}
		if pe.Sub(ps) > maxPassSpan {
			writeError(w, http.StatusBadRequest, "pass_end - pass_start must not exceed 24h")
			return
		}
		segments := densifyAll(track.PassTrack(sat, passes.Pass{Start: ps, End: pe}), dense)
		writeJSON(w, http.StatusOK, map[string]any{
			"norad_id": sat.NORADID,
			"segments": segments,
		})
		return
	}

	now := s.deps.Session.Clock().Now()
	path := track.OrbitPath(sat, now)
	path.Past = densifyAll(path.Past, dense)
	path.Future = densifyAll(path.Future, dense)

	resp := map[string]any{
		"norad_id": sat.NORADID,
		"time":     now,
		"past":     path.Past,
		"future":   path.Future,
	}
	var all []track.Point
	for _, seg := range slices.Concat(path.Past, path.Future) {
		all = append(all, seg...)
	}
	if minLat, minLon, maxLat, maxLon, ok := track.Bounds(all); ok {
		resp["bounds"] = [4]float64{minLat, minLon, maxLat, maxLon}
	}
	writeJSON(w, http.StatusOK, resp)
}

func densifyAll(segments [][]track.Point, n int) [][]track.Point {
	if segments == nil {
		return [][]track.Point{}
	}
	if n <= 0 {
		return segments
	}
	out := make([][]track.Point, len(segments))
	for i, seg := range segments {
		out[i] = track.Densify(seg, n)
	}
	return out
}
