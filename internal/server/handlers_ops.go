package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/summitchronicles/internal/cache"
	"github.com/claude/summitchronicles/internal/weather"
)

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := s.weatherCoords(w, r)
	if !ok {
		return
	}
	raw, err := s.weather.Current(r.Context(), lat, lon)
	if err != nil {
		s.weatherError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

// handleConditions serves the decoded current conditions instead of the
// upstream body.
func (s *Server) handleConditions(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := s.weatherCoords(w, r)
	if !ok {
		return
	}
	cond, err := s.weather.Conditions(r.Context(), lat, lon)
	if err != nil {
		s.weatherError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cond)
}

// weatherCoords reads lat and lon, writing the error response itself when
// they are missing or out of range.
func (s *Server) weatherCoords(w http.ResponseWriter, r *http.Request) (lat, lon float64, ok bool) {
	if s.weather == nil {
		writeError(w, http.StatusServiceUnavailable, "weather lookups are disabled")
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon parameters required")
		return 0, 0, false
	}
	if err := weather.ValidateCoords(lat, lon); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return lat, lon, true
}

func (s *Server) weatherError(w http.ResponseWriter, err error) {
	var httpErr *cache.HTTPError
	if errors.As(err, &httpErr) {
		s.log.Warn("weather upstream error", "status", httpErr.StatusCode)
		writeError(w, http.StatusBadGateway, "weather service returned "+strconv.Itoa(httpErr.StatusCode))
		return
	}
	s.log.Warn("weather lookup failed", "error", err)
	writeError(w, http.StatusBadGateway, "weather service unavailable")
}

// handleHealth reports liveness and, when configured, database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok", "database": "disabled", "cache_entries": s.queries.Cache().Len()}
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.log.Warn("health: database unreachable", "error", err)
			status["status"] = "degraded"
			status["database"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	s.queries.Invalidate(r.Context(), prefix)
	s.log.Info("cache invalidated", "prefix", prefix)
	writeJSON(w, http.StatusOK, map[string]string{"invalidated": prefix})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
