package server

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/summitchronicles/internal/ingest"
	"github.com/claude/summitchronicles/internal/ingest/schedule"
	"github.com/claude/summitchronicles/internal/models"
	"github.com/claude/summitchronicles/internal/storage"
	"github.com/google/uuid"
)

// handleUploadPlan accepts a plan as a multipart "file" field or as the raw
// request body with ?filename=.
func (s *Server) handleUploadPlan(w http.ResponseWriter, r *http.Request) {
	if s.plans == nil {
		writeError(w, http.StatusServiceUnavailable, "plan uploads require a database")
		return
	}

	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, schedule.MaxPlanSize+(1<<20))

	filename := r.URL.Query().Get("filename")
	contentType := r.Header.Get("Content-Type")
	var body io.Reader = r.Body

	if mt, _, _ := mime.ParseMediaType(contentType); mt == "multipart/form-data" {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "multipart upload needs a file field: "+err.Error())
			return
		}
		defer f.Close()
		body = f
		filename = hdr.Filename
		contentType = hdr.Header.Get("Content-Type")
	}
	if filename == "" {
		filename = "plan.csv"
	}

	logID := s.startImport(filename)
	result, err := s.plans.Ingest(r.Context(), filename, contentType, body)
	s.finishImport(logID, filename, result, err, int(time.Since(start).Milliseconds()))
	if err != nil {
		s.log.Error("plan upload failed", "filename", filename, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, schedule.ErrInvalidPlan) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	s.loader.Invalidate(r.Context())
	result.Message = "plan is now active"
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []storage.ImportLog{})
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.logs.QueryImportLogs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []storage.ImportLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleStoredPlans(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeJSON(w, http.StatusOK, []models.TrainingPlan{})
		return
	}
	plans, err := s.catalog.ListPlans(r.Context(), 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if plans == nil {
		plans = []models.TrainingPlan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

// startImport records a "running" import log row and returns its ID, or 0
// when the row could not be written.
func (s *Server) startImport(filename string) int64 {
	if s.logs == nil {
		return 0
	}
	ctx, cancel := contextWithTimeout()
	defer cancel()

	id, err := s.logs.InsertImportLog(ctx, storage.ImportLog{
		Source:   "upload",
		Filename: filename,
		Status:   "running",
	})
	if err != nil {
		s.log.Error("failed to log import start", "filename", filename, "error", err)
		return 0
	}
	return id
}

// finishImport moves the import log row to its final status. Without a
// running row it inserts the final row instead.
func (s *Server) finishImport(id int64, filename string, result *ingest.Result, importErr error, durationMs int) {
	if s.logs == nil {
		return
	}

	entry := storage.ImportLog{
		Source:     "upload",
		Filename:   filename,
		Status:     "success",
		DurationMs: &durationMs,
	}
	if importErr != nil {
		entry.Status = "error"
		msg := importErr.Error()
		entry.ErrorMessage = &msg
	}
	if result != nil {
		entry.WeeksParsed = result.WeeksParsed
		entry.WorkoutsParsed = result.WorkoutsParsed
		entry.RestDays = result.RestDays
		if planID, err := uuid.Parse(result.PlanID); err == nil {
			entry.PlanID = &planID
		}
	}

	ctx, cancel := contextWithTimeout()
	defer cancel()

	if id == 0 {
		if _, err := s.logs.InsertImportLog(ctx, entry); err != nil {
			s.log.Error("failed to log import", "filename", filename, "error", err)
		}
		return
	}
	if err := s.logs.UpdateImportLog(ctx, id, entry); err != nil {
		s.log.Error("failed to update import log", "id", id, "filename", filename, "error", err)
	}
}

// contextWithTimeout returns a background context with a 5-second timeout
// so import logging survives a cancelled request.
func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
