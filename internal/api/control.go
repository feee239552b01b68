package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/star/sattrack/internal/orbit"
	"github.com/star/sattrack/internal/prefs"
	"github.com/star/sattrack/internal/session"
)

const altitudeLookupTimeout = 15 * time.Second

type observerRequest struct {
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
	AltM *float64 `json:"alt_m"`
}

type observerResponse struct {
	Observer       *orbit.Observer `json:"observer"`
	AltitudeLookup bool            `json:"altitude_lookup,omitempty"`
}

// GET /api/v1/observer
func (s *Server) handleGetObserver(w http.ResponseWriter, r *http.Request) {
	resp := observerResponse{}
	if obs, ok := s.deps.Session.Observer(); ok {
		resp.Observer = &obs
	}
	writeJSON(w, http.StatusOK, resp)
}

// PUT /api/v1/observer {"lat":..,"lon":..,"alt_m":..}
//
// When alt_m is omitted and an altitude lookup is configured, the ground
// elevation is fetched in the background; a newer PUT supersedes it.
func (s *Server) handlePutObserver(w http.ResponseWriter, r *http.Request) {
	var req observerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}
	alt := 0.0
	if req.AltM != nil {
		alt = *req.AltM
	}
	obs, err := orbit.NewObserver(*req.Lat, *req.Lon, alt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Session.SetObserver(obs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.savePrefs()

	lookup := req.AltM == nil && s.deps.Altitude != nil
	if lookup {
		go s.refreshAltitude()
	}
	writeJSON(w, http.StatusOK, observerResponse{Observer: &obs, AltitudeLookup: lookup})
}

func (s *Server) refreshAltitude() {
	ctx, cancel := context.WithTimeout(s.bg, altitudeLookupTimeout)
	defer cancel()

	err := s.deps.Session.RefreshObserverAltitude(ctx, s.deps.Altitude)
	switch {
	case err == nil:
		s.savePrefs()
	case errors.Is(err, session.ErrStale):
	default:
		s.logger.Warn("observer altitude lookup failed", "component", "api", "error", err)
	}
}

type selectionRequest struct {
	NORADID         *int     `json:"norad_id"`
	MinElevationDeg *float64 `json:"min_elevation_deg"`
}

type selectionResponse struct {
	NORADID         int     `json:"norad_id"`
	Name            string  `json:"name,omitempty"`
	MinElevationDeg float64 `json:"min_elevation_deg"`
}

func (s *Server) selection() selectionResponse {
	v := s.deps.Session.View()
	resp := selectionResponse{MinElevationDeg: v.MinElevationDeg}
	if v.HasSatellite {
		resp.NORADID = v.Satellite.NORADID
		resp.Name = v.Satellite.Name
	}
	return resp
}

// GET /api/v1/selection
func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.selection())
}

// PUT /api/v1/selection {"norad_id":25544,"min_elevation_deg":10}
func (s *Server) handlePutSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.NORADID == nil && req.MinElevationDeg == nil {
		writeError(w, http.StatusBadRequest, "norad_id or min_elevation_deg is required")
		return
	}
	if req.MinElevationDeg != nil {
		if err := s.deps.Session.SetMinElevation(*req.MinElevationDeg); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.NORADID != nil {
		if err := s.deps.Session.Select(*req.NORADID); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, session.ErrUnknownSatellite) {
				status = http.StatusNotFound
			}
			writeError(w, status, err.Error())
			return
		}
	}
	s.savePrefs()
	writeJSON(w, http.StatusOK, s.selection())
}

// GET /api/v1/clock
func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Session.Clock().Snapshot())
}

// POST /api/v1/clock/play
func (s *Server) handleClockPlay(w http.ResponseWriter, r *http.Request) {
	s.deps.Session.Clock().Resume()
	writeJSON(w, http.StatusOK, s.deps.Session.Clock().Snapshot())
}

// POST /api/v1/clock/pause
func (s *Server) handleClockPause(w http.ResponseWriter, r *http.Request) {
	s.deps.Session.Clock().Pause()
	writeJSON(w, http.StatusOK, s.deps.Session.Clock().Snapshot())
}

// POST /api/v1/clock/reset
func (s *Server) handleClockReset(w http.ResponseWriter, r *http.Request) {
	s.deps.Session.Clock().ResetToLive()
	writeJSON(w, http.StatusOK, s.deps.Session.Clock().Snapshot())
}

// POST /api/v1/clock/speed {"speed":60}
func (s *Server) handleClockSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed *float64 `json:"speed"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Speed == nil {
		writeError(w, http.StatusBadRequest, "speed is required")
		return
	}
	if err := s.deps.Session.Clock().SetSpeed(*req.Speed); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.savePrefs()
	writeJSON(w, http.StatusOK, s.deps.Session.Clock().Snapshot())
}

// POST /api/v1/clock/scrub {"time":"..."} or {"offset_seconds":3600}
func (s *Server) handleClockScrub(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time          *time.Time `json:"time"`
		OffsetSeconds *float64   `json:"offset_seconds"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	clock := s.deps.Session.Clock()
	switch {
	case req.Time != nil && req.OffsetSeconds != nil:
		writeError(w, http.StatusBadRequest, "give either time or offset_seconds, not both")
		return
	case req.Time != nil:
		clock.Scrub(*req.Time)
	case req.OffsetSeconds != nil:
		off := *req.OffsetSeconds
		if math.IsNaN(off) || math.IsInf(off, 0) || math.Abs(off) > 366*24*3600 {
			writeError(w, http.StatusBadRequest, "offset_seconds out of range")
			return
		}
		clock.ScrubOffset(time.Duration(off * float64(time.Second)))
	default:
		writeError(w, http.StatusBadRequest, "time or offset_seconds is required")
		return
	}
	writeJSON(w, http.StatusOK, clock.Snapshot())
}

// POST /api/v1/clock/jog {"steps":-1.5}
func (s *Server) handleClockJog(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Steps *float64 `json:"steps"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Steps == nil || math.IsNaN(*req.Steps) || math.IsInf(*req.Steps, 0) || math.Abs(*req.Steps) > 1e6 {
		writeError(w, http.StatusBadRequest, "steps must be a finite number")
		return
	}
	applied := s.deps.Session.Clock().Jog(*req.Steps)
	writeJSON(w, http.StatusOK, map[string]any{
		"applied_steps": applied,
		"clock":         s.deps.Session.Clock().Snapshot(),
	})
}

// POST /api/v1/tle/fetch
func (s *Server) handleTLEFetch(w http.ResponseWriter, r *http.Request) {
	cat, err := s.deps.Loader.Refresh(r.Context())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, session.ErrStale) {
			status = http.StatusConflict
		}
		s.logger.Warn("manual TLE refresh failed", "component", "api", "error", err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":     cat.Source(),
		"satellites": cat.Len(),
	})
}

// GET /api/v1/tle/metadata
func (s *Server) handleTLEMetadata(w http.ResponseWriter, r *http.Request) {
	cat := s.deps.Loader.Current()
	resp := map[string]any{
		"source":     cat.Source(),
		"satellites": cat.Len(),
	}
	if store := s.deps.Loader.Store(); store != nil {
		if ds := store.Get(); ds != nil {
			resp["dataset"] = ds
			resp["age_seconds"] = int(store.Age(time.Now()).Seconds())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/cache/stats
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{}
	if s.deps.Cache != nil {
		resp["pass_cache"] = s.deps.Cache.Stats()
	}
	if s.deps.Stream != nil {
		resp["active_streams"] = s.deps.Stream.Active()
	}
	writeJSON(w, http.StatusOK, resp)
}

// savePrefs persists the session settings. Failures are logged only.
func (s *Server) savePrefs() {
	if s.deps.Prefs == nil {
		return
	}
	if err := s.deps.Prefs.Save(CurrentPrefs(s.deps.Session)); err != nil {
		s.logger.Warn("saving preferences failed", "component", "api", "error", err)
	}
}

// CurrentPrefs captures the persisted settings of sess.
func CurrentPrefs(sess *session.Session) prefs.Preferences {
	p := prefs.Preferences{
		Speed:           sess.Clock().Speed(),
		MinElevationDeg: sess.MinElevation(),
	}
	if obs, ok := sess.Observer(); ok {
		p.Observer = &obs
	}
	return p
}

// ApplyPrefs restores persisted settings into sess. Invalid values are
// skipped and reported together.
func ApplyPrefs(sess *session.Session, p prefs.Preferences) error {
	var errs []error
	if err := sess.Clock().SetSpeed(p.Speed); err != nil {
		errs = append(errs, err)
	}
	if err := sess.SetMinElevation(p.MinElevationDeg); err != nil {
		errs = append(errs, err)
	}
	if p.Observer != nil {
		if err := sess.SetObserver(*p.Observer); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
