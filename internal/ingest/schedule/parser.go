// Package schedule parses weekly training plans (one row per week, one
// free-text cell per weekday) into structured workouts.
package schedule

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/claude/summitchronicles/internal/models"
)

// rowFields is the week number plus seven day cells.
const rowFields = 1 + len(models.Weekdays)

// DefaultWeek1Start is the Monday the base training block started.
var DefaultWeek1Start = time.Date(2025, time.September, 29, 0, 0, 0, 0, time.UTC)

// Options controls how a plan is interpreted.
type Options struct {
	// Week1Start is the start date of week 1. Zero means DefaultWeek1Start.
	Week1Start time.Time
	// Sheet selects the worksheet of an XLSX plan. Empty means the first sheet.
	Sheet string
	// Week numbers a single-week XLSX session plan, which carries no dates.
	// Zero means the week containing the current date.
	Week int
}

func (o Options) week1Start() time.Time {
	if o.Week1Start.IsZero() {
		return DefaultWeek1Start
	}
	return o.Week1Start
}

// Parse reads a CSV plan and returns one schedule per valid week row.
// Malformed rows are skipped; the only error is a failure to read r.
func Parse(r io.Reader, opts Options) ([]models.WeeklySchedule, error) {
	rows, err := tokenizeRows(r)
	if err != nil {
		return nil, fmt.Errorf("reading schedule: %w", err)
	}
	return ParseRows(rows, opts), nil
}

// ParseRows assembles schedules from already tokenized rows. The first row
// is a header and is skipped, as are short rows and rows whose first field
// is not a positive week number.
func ParseRows(rows [][]string, opts Options) []models.WeeklySchedule {
	schedules := make([]models.WeeklySchedule, 0, len(rows))
	start := opts.week1Start()

	for i, row := range rows {
		if i == 0 || len(row) < rowFields {
			continue
		}
		week, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil || week < 1 {
			continue
		}

		ws := models.WeeklySchedule{
			Week:      week,
			StartDate: WeekStart(start, week).Format(time.DateOnly),
			Workouts:  make(map[string][]models.ParsedWorkout, len(models.Weekdays)),
		}
		for d, day := range models.Weekdays {
			ws.Workouts[day] = parseCell(row[d+1], fmt.Sprintf("%d-%d", week, d))
		}
		schedules = append(schedules, ws)
	}

	return schedules
}
