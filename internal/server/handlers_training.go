package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/summitchronicles/internal/ingest/schedule"
	"github.com/claude/summitchronicles/internal/models"
	"github.com/go-chi/chi/v5"
)

// workoutsResponse is the schedule envelope the site consumes.
type workoutsResponse struct {
	Success     bool                    `json:"success"`
	Error       string                  `json:"error,omitempty"`
	CurrentWeek models.WeeklySchedule   `json:"currentWeek"`
	AllWeeks    []models.WeeklySchedule `json:"allWeeks"`
	Source      string                  `json:"source"`
	LastUpdated time.Time               `json:"lastUpdated"`
}

func (s *Server) handleWorkouts(w http.ResponseWriter, r *http.Request) {
	week1 := s.loader.Options().Week1Start
	if week1.IsZero() {
		week1 = schedule.DefaultWeek1Start
	}

	loaded, err := s.loader.Load(r.Context())
	if err != nil {
		if !errors.Is(err, schedule.ErrNoSchedule) {
			s.log.Error("loading schedule", "error", err)
		}
		fallback := schedule.Fallback(week1)
		writeJSON(w, http.StatusOK, workoutsResponse{
			Success:     false,
			Error:       "Failed to load workout schedule",
			CurrentWeek: fallback,
			AllWeeks:    []models.WeeklySchedule{fallback},
			Source:      schedule.SourceFallback,
			LastUpdated: s.now().UTC(),
		})
		return
	}

	current, _ := schedule.CurrentWeek(loaded.Weeks, s.now(), week1)
	writeJSON(w, http.StatusOK, workoutsResponse{
		Success:     true,
		CurrentWeek: current,
		AllWeeks:    loaded.Weeks,
		Source:      loaded.Source,
		LastUpdated: loaded.LastUpdated,
	})
}

func (s *Server) handleWorkoutWeek(w http.ResponseWriter, r *http.Request) {
	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil || week < 1 {
		writeError(w, http.StatusBadRequest, "week must be a positive integer")
		return
	}

	loaded, err := s.loader.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	ws, ok := schedule.FindWeek(loaded.Weeks, week)
	if !ok {
		writeError(w, http.StatusNotFound, "week "+strconv.Itoa(week)+" not in plan")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}
