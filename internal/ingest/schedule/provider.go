package schedule

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/claude/summitchronicles/internal/ingest"
	"github.com/claude/summitchronicles/internal/models"
	"github.com/claude/summitchronicles/internal/storage"
	"github.com/google/uuid"
)

// Plan file formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MaxPlanSize caps an uploaded plan file.
const MaxPlanSize = 10 << 20

// ErrInvalidPlan marks upload failures caused by the file itself rather than
// by storage.
var ErrInvalidPlan = errors.New("invalid plan")

// ErrEmptyPlan is returned when a plan file contains no usable week rows.
var ErrEmptyPlan = fmt.Errorf("%w: no week rows", ErrInvalidPlan)

// PlanStore persists uploaded plans.
type PlanStore interface {
	ActivePlan(ctx context.Context) (*models.TrainingPlan, error)
	SavePlan(ctx context.Context, plan *models.TrainingPlan) error
}

// Compile-time check: *storage.DB satisfies PlanStore.
var _ PlanStore = (*storage.DB)(nil)

// DetectFormat picks the plan format from the file name, then the content type.
func DetectFormat(filename, contentType string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv", ".txt":
		return FormatCSV
	}
	if strings.HasPrefix(contentType, xlsxContentType) {
		return FormatXLSX
	}
	return FormatCSV
}

// Decode parses plan bytes in the given format.
func Decode(format string, data []byte, opts Options) ([]models.WeeklySchedule, error) {
	if format == FormatXLSX {
		return ParseXLSX(bytes.NewReader(data), opts)
	}
	return Parse(bytes.NewReader(data), opts)
}

// Provider ingests uploaded training plans.
type Provider struct {
	plans PlanStore
	opts  Options
	log   *slog.Logger
}

// NewProvider creates a new training plan ingest provider.
func NewProvider(plans PlanStore, opts Options, log *slog.Logger) *Provider {
	return &Provider{plans: plans, opts: opts, log: log}
}

// Ingest parses an uploaded plan and stores it as the active plan. The plan
// is rejected only if it cannot be read or yields no weeks.
func (p *Provider) Ingest(ctx context.Context, filename, contentType string, r io.Reader) (*ingest.Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPlanSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading: %w", ErrInvalidPlan, err)
	}
	if len(data) > MaxPlanSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrInvalidPlan, MaxPlanSize)
	}

	format := DetectFormat(filename, contentType)
	weeks, err := Decode(format, data, p.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidPlan, format, err)
	}
	if len(weeks) == 0 {
		return nil, ErrEmptyPlan
	}

	result := summarize(weeks)
	result.Filename = filename
	result.Format = format

	sum := sha256.Sum256(data)
	plan := &models.TrainingPlan{
		ID:          uuid.New(),
		Filename:    filename,
		ContentType: contentType,
		Content:     data,
		SHA256:      hex.EncodeToString(sum[:]),
		IsActive:    true,
		UploadedAt:  time.Now().UTC(),
	}
	if err := p.plans.SavePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("saving plan: %w", err)
	}
	result.PlanID = plan.ID.String()

	p.log.Info("training plan ingested",
		"plan_id", result.PlanID,
		"filename", filename,
		"weeks", result.WeeksParsed,
		"workouts", result.WorkoutsParsed,
	)
	return result, nil
}

// summarize counts weeks, workouts and synthetic rest days.
func summarize(weeks []models.WeeklySchedule) *ingest.Result {
	result := &ingest.Result{WeeksParsed: len(weeks)}
	for _, ws := range weeks {
		for _, workouts := range ws.Workouts {
			for _, w := range workouts {
				if w.Type == models.WorkoutRest && w.Title == "Rest Day" {
					result.RestDays++
					continue
				}
				result.WorkoutsParsed++
			}
		}
	}
	return result
}
