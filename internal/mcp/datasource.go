package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/claude/summitchronicles/internal/ingest/schedule"
	"github.com/claude/summitchronicles/internal/models"
	"github.com/claude/summitchronicles/internal/weather"
)

// Schedule is the training plan as the MCP tools see it.
type Schedule struct {
	Weeks       []models.WeeklySchedule `json:"allWeeks"`
	CurrentWeek models.WeeklySchedule   `json:"currentWeek"`
	Source      string                  `json:"source"`
	LastUpdated time.Time               `json:"lastUpdated"`
}

// DataSource abstracts where tool data comes from. Local serves the
// in-process loader; HTTPClient calls a remote summit server.
type DataSource interface {
	Schedule(ctx context.Context) (*Schedule, error)
	Weather(ctx context.Context, lat, lon float64) (json.RawMessage, error)
}

// ErrWeatherDisabled is returned when no weather client is configured.
var ErrWeatherDisabled = errors.New("weather lookups are disabled")

// Local is a DataSource backed by the schedule loader and weather client of
// the running process. WeatherClient may be nil.
type Local struct {
	Loader        *schedule.Loader
	WeatherClient *weather.Client
	Now           func() time.Time
}

// Compile-time check: *Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

func (l *Local) Schedule(ctx context.Context) (*Schedule, error) {
	loaded, err := l.Loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	week1 := l.Loader.Options().Week1Start
	if week1.IsZero() {
		week1 = schedule.DefaultWeek1Start
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	current, _ := schedule.CurrentWeek(loaded.Weeks, now(), week1)
	return &Schedule{
		Weeks:       loaded.Weeks,
		CurrentWeek: current,
		Source:      loaded.Source,
		LastUpdated: loaded.LastUpdated,
	}, nil
}

func (l *Local) Weather(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	if l.WeatherClient == nil {
		return nil, ErrWeatherDisabled
	}
	return l.WeatherClient.Current(ctx, lat, lon)
}
