package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/summitchronicles/internal/cache"
	"github.com/claude/summitchronicles/internal/models"
	"github.com/claude/summitchronicles/internal/storage"
)

// Where a loaded schedule came from.
const (
	SourceDatabase = "database"
	SourceXLSX     = "xlsx"
	SourceCSV      = "csv"
	SourceFallback = "fallback"
)

// CacheKey is the cache entry holding the resolved schedule.
const CacheKey = "schedule:active"

// ErrNoSchedule is returned when no source yields any weeks.
var ErrNoSchedule = errors.New("no training schedule available")

// Loaded is a resolved schedule and its origin.
type Loaded struct {
	Weeks       []models.WeeklySchedule `json:"weeks"`
	Source      string                  `json:"source"`
	LastUpdated time.Time               `json:"lastUpdated"`
}

// LoaderConfig lists the schedule sources and how long a result is cached.
type LoaderConfig struct {
	XLSXPath string
	CSVPath  string
	Options  Options
	Cache    cache.Config
}

// Loader resolves the active schedule from the database, then the XLSX
// file, then the CSV file.
type Loader struct {
	plans   PlanStore
	queries *cache.Queries
	cfg     LoaderConfig
	log     *slog.Logger
}

// NewLoader creates a Loader. plans may be nil when no database is configured.
func NewLoader(plans PlanStore, q *cache.Queries, cfg LoaderConfig, log *slog.Logger) *Loader {
	if cfg.Cache.TTL == 0 {
		cfg.Cache = cache.Static
	}
	return &Loader{plans: plans, queries: q, cfg: cfg, log: log}
}

// Options returns the parse options used for every source.
func (l *Loader) Options() Options {
	return l.cfg.Options
}

// Load returns the cached schedule, resolving it on a miss.
func (l *Loader) Load(ctx context.Context) (Loaded, error) {
	return cache.Query(ctx, l.queries, CacheKey, l.resolve, l.cfg.Cache)
}

// Invalidate drops the cached schedule so the next Load re-reads its sources.
func (l *Loader) Invalidate(ctx context.Context) {
	l.queries.Invalidate(ctx, CacheKey)
}

func (l *Loader) resolve(ctx context.Context) (Loaded, error) {
	if l.plans != nil {
		loaded, err := l.fromDatabase(ctx)
		switch {
		case err == nil:
			return loaded, nil
		case errors.Is(err, storage.ErrNoActivePlan):
		default:
			l.log.Warn("schedule: active plan unusable", "error", err)
		}
	}

	for _, src := range []struct {
		path, format, source string
	}{
		{l.cfg.XLSXPath, FormatXLSX, SourceXLSX},
		{l.cfg.CSVPath, FormatCSV, SourceCSV},
	} {
		if src.path == "" {
			continue
		}
		loaded, err := l.fromFile(src.path, src.format, src.source)
		if err == nil {
			return loaded, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			l.log.Warn("schedule: plan file unusable", "path", src.path, "error", err)
		}
	}

	return Loaded{}, ErrNoSchedule
}

func (l *Loader) fromDatabase(ctx context.Context) (Loaded, error) {
	plan, err := l.plans.ActivePlan(ctx)
	if err != nil {
		return Loaded{}, err
	}
	weeks, err := Decode(DetectFormat(plan.Filename, plan.ContentType), plan.Content, l.cfg.Options)
	if err != nil {
		return Loaded{}, fmt.Errorf("plan %s: %w", plan.ID, err)
	}
	if len(weeks) == 0 {
		return Loaded{}, fmt.Errorf("plan %s: %w", plan.ID, ErrEmptyPlan)
	}
	return Loaded{Weeks: weeks, Source: SourceDatabase, LastUpdated: plan.UploadedAt}, nil
}

func (l *Loader) fromFile(path, format, source string) (Loaded, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Loaded{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	weeks, err := Decode(format, data, l.cfg.Options)
	if err != nil {
		return Loaded{}, err
	}
	if len(weeks) == 0 {
		return Loaded{}, ErrEmptyPlan
	}
	l.log.Debug("schedule: loaded plan file", "path", path, "weeks", len(weeks))
	return Loaded{Weeks: weeks, Source: source, LastUpdated: info.ModTime().UTC()}, nil
}
