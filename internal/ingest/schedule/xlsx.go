package schedule

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/claude/summitchronicles/internal/models"
	"github.com/xuri/excelize/v2"
)

// layout is the shape of a plan worksheet, detected from its header row.
type layout int

const (
	// layoutGrid is the CSV shape: week number then seven day cells.
	layoutGrid layout = iota
	// layoutSessions is one row per session: Day | Session Type | Focus Area |
	// Duration | Key Metrics | Equipment | Recovery.
	layoutSessions
	// layoutLog is a dated session log: Date | Day | Block | Session |
	// Modality | Exercise | Sets | Reps | Tempo | RPE | Duration | Target HR |
	// Pace | Incline | Load | Cadence | Notes.
	layoutLog
)

// Session log columns.
const (
	logDate = iota
	logDay
	logBlock
	logSession
	logModality
	logExercise
	logSets
	logReps
	logTempo
	logRPE
	logDuration
	logTargetHR
	logPace
	logIncline
	logLoad
	logCadence
	logNotes
)

var sessionTypeRules = []typeRule{
	{keywords: []string{"run", "treadmill", "stair", "climb"}, result: models.WorkoutCardio},
	{keywords: []string{"strength", "squat", "press", "lift"}, result: models.WorkoutStrength},
	{keywords: []string{"mobility", "core", "stretching"}, result: models.WorkoutCustom},
	{keywords: []string{"rest", "recovery"}, result: models.WorkoutRest},
}

// metricIntensityRules read the free-text Key Metrics column.
var metricIntensityRules = []intensityRule{
	{keywords: []string{"z1", "130 bpm", "recovery", "rpe 6"}, result: models.IntensityLow},
	{keywords: []string{"z2", "130–145", "135–145", "rpe 7", "rpe 8"}, result: models.IntensityMedium},
	{keywords: []string{"z3", "z4", "155–165", "rpe 9"}, result: models.IntensityHigh},
}

// logDateLayouts are the text date forms accepted in a session log.
var logDateLayouts = []string{time.DateOnly, "01/02/2006", "1/2/2006", "2 Jan 2006", "Jan 2, 2006", "January 2, 2006"}

// ParseXLSX reads a plan from an Excel workbook. The header row selects the
// layout: a weekly grid like the CSV, a one-week session plan, or a dated
// session log. The last two each produce a single week.
func ParseXLSX(r io.Reader, opts Options) ([]models.WeeklySchedule, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	// Raw values keep date cells as serial numbers instead of the
	// workbook's display format.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	switch detectLayout(rows[0]) {
	case layoutSessions:
		return oneWeek(parseSessionPlan(rows[1:], opts)), nil
	case layoutLog:
		return oneWeek(parseSessionLog(rows[1:], opts)), nil
	}

	// excelize drops trailing empty cells, so a week with a blank Sunday
	// comes back short.
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		for len(row) < rowFields {
			row = append(row, "")
		}
		rows[i] = row
	}

	return ParseRows(rows, opts), nil
}

func detectLayout(header []string) layout {
	h := func(i int) string { return strings.ToLower(cellAt(header, i)) }
	switch {
	case h(0) == "day" && strings.Contains(h(1), "session") && strings.Contains(h(3), "duration"):
		return layoutSessions
	case strings.Contains(h(0), "date"):
		return layoutLog
	}
	return layoutGrid
}

func oneWeek(ws models.WeeklySchedule, ok bool) []models.WeeklySchedule {
	if !ok {
		return nil
	}
	return []models.WeeklySchedule{ws}
}

// newWeek returns an empty schedule for week with every day key present.
func newWeek(week int, opts Options) models.WeeklySchedule {
	return models.WeeklySchedule{
		Week:      week,
		StartDate: WeekStart(opts.week1Start(), week).Format(time.DateOnly),
		Workouts:  make(map[string][]models.ParsedWorkout, len(models.Weekdays)),
	}
}

// fillRestDays gives every day without a session a rest day.
func fillRestDays(ws *models.WeeklySchedule) {
	for d, day := range models.Weekdays {
		if len(ws.Workouts[day]) == 0 {
			ws.Workouts[day] = []models.ParsedWorkout{restDay(fmt.Sprintf("%d-%d-0", ws.Week, d), "Rest Day")}
		}
	}
}

// parseSessionPlan reads one session per row. Rows whose Day is not a
// weekday name are skipped.
func parseSessionPlan(rows [][]string, opts Options) (models.WeeklySchedule, bool) {
	week := opts.Week
	if week < 1 {
		week = WeekNumber(opts.week1Start(), time.Now())
	}
	ws := newWeek(week, opts)

	found := false
	for _, row := range rows {
		d, ok := weekdayIndex(cellAt(row, 0))
		if !ok {
			continue
		}
		day := models.Weekdays[d]
		sessionType := cellAt(row, 1)
		focus := cellAt(row, 2)
		metrics := cellAt(row, 4)
		equipment := cellAt(row, 5)
		recovery := cellAt(row, 6)

		title := sessionType
		if focus != "" {
			title = sessionType + " - " + focus
		}
		if title == "" {
			title = "Training Session"
		}

		duration := defaultDuration
		if n, ok := parseNumber(cellAt(row, 3)); ok && n > 0 {
			duration = n
		}

		desc := metrics
		if equipment != "" {
			desc = strings.TrimPrefix(desc+" • "+equipment, " • ")
		}
		if recovery != "" {
			desc = strings.TrimSpace(desc + "\nRecovery: " + recovery)
		}

		exercises := []string{}
		for _, e := range strings.Split(equipment, ",") {
			if e = strings.TrimSpace(e); e != "" {
				exercises = append(exercises, e)
			}
		}

		ws.Workouts[day] = append(ws.Workouts[day], models.ParsedWorkout{
			ID:          fmt.Sprintf("%d-%d-%d", week, d, len(ws.Workouts[day])),
			Title:       title,
			Type:        classifyTypeWith(sessionTypeRules, sessionType+" "+focus),
			Duration:    duration,
			Intensity:   classifyIntensityWith(metricIntensityRules, metrics, nil),
			Description: desc,
			Exercises:   exercises,
			Zones:       extractZones(metrics),
		})
		found = true
	}
	if !found {
		return models.WeeklySchedule{}, false
	}
	fillRestDays(&ws)
	return ws, true
}

// logEntry is one row of a session log.
type logEntry struct {
	date     time.Time
	title    string
	modality string
	exercise string
	sets     string
	reps     string
	rpe      string
	duration int
	targetHR string
	load     string
	notes    string
}

// parseSessionLog groups dated rows into workouts: one per session title per
// date. The week is the one containing the earliest date unless opts.Week
// is set. Rows without a readable date are skipped.
func parseSessionLog(rows [][]string, opts Options) (models.WeeklySchedule, bool) {
	type group struct {
		date    time.Time
		title   string
		entries []logEntry
	}
	var (
		groups []*group
		index  = make(map[string]*group)
		first  time.Time
	)
	for _, row := range rows {
		date, ok := parseLogDate(cellAt(row, logDate))
		if !ok {
			continue
		}
		e := logEntry{
			date:     date,
			title:    cellAt(row, logSession),
			modality: cellAt(row, logModality),
			exercise: cellAt(row, logExercise),
			sets:     cellAt(row, logSets),
			reps:     cellAt(row, logReps),
			rpe:      cellAt(row, logRPE),
			targetHR: cellAt(row, logTargetHR),
			load:     cellAt(row, logLoad),
			notes:    cellAt(row, logNotes),
		}
		if e.title == "" {
			e.title = "Untitled"
		}
		if n, ok := parseNumber(cellAt(row, logDuration)); ok {
			e.duration = n
		}
		if first.IsZero() || date.Before(first) {
			first = date
		}

		key := date.Format(time.DateOnly) + "\x00" + e.title
		g := index[key]
		if g == nil {
			g = &group{date: date, title: e.title}
			index[key] = g
			groups = append(groups, g)
		}
		g.entries = append(g.entries, e)
	}
	if len(groups) == 0 {
		return models.WeeklySchedule{}, false
	}

	week := opts.Week
	if week < 1 {
		week = WeekNumber(opts.week1Start(), first)
	}
	ws := newWeek(week, opts)
	for _, g := range groups {
		d := (int(g.date.Weekday()) + 6) % 7
		day := models.Weekdays[d]
		id := fmt.Sprintf("%d-%d-%d", week, d, len(ws.Workouts[day]))
		ws.Workouts[day] = append(ws.Workouts[day], logWorkout(g.entries, id, g.title))
	}
	fillRestDays(&ws)
	return ws, true
}

func logWorkout(entries []logEntry, id, title string) models.ParsedWorkout {
	var (
		duration  int
		desc      []string
		exercises = []string{}
		zones     = []string{}
		seenZone  = make(map[string]bool)
	)
	for _, e := range entries {
		duration += e.duration

		line := e.modality + ": " + e.exercise
		if e.duration > 0 {
			line += fmt.Sprintf(" (%d min)", e.duration)
		}
		if e.notes != "" {
			line += " - " + e.notes
		}
		desc = append(desc, line)

		if e.exercise != "" {
			ex := e.exercise
			if e.sets != "" {
				ex += " " + e.sets + " sets"
			}
			if e.reps != "" {
				ex += " x " + e.reps
			}
			if e.load != "" {
				ex += " @ " + e.load
			}
			exercises = append(exercises, ex)
		}

		if strings.Contains(e.targetHR, "Z") && !seenZone[e.targetHR] {
			seenZone[e.targetHR] = true
			zones = append(zones, e.targetHR)
		}
	}

	return models.ParsedWorkout{
		ID:          id,
		Title:       title,
		Type:        modalityType(entries),
		Duration:    duration,
		Intensity:   logIntensity(entries),
		Description: strings.Join(desc, "\n"),
		Exercises:   exercises,
		Zones:       zones,
	}
}

// modalityType is strength or cardio when the session is purely one of
// them and custom otherwise.
func modalityType(entries []logEntry) models.WorkoutType {
	var strength, cardio bool
	for _, e := range entries {
		m := strings.ToLower(e.modality)
		strength = strength || containsAny(m, []string{"strength", "core", "prehab"})
		cardio = cardio || containsAny(m, []string{"run", "bike", "hike", "cardio"})
	}
	switch {
	case strength && !cardio:
		return models.WorkoutStrength
	case cardio && !strength:
		return models.WorkoutCardio
	}
	return models.WorkoutCustom
}

// logIntensity averages RPE when any row has one and falls back to the
// target heart-rate zones and exercise wording.
func logIntensity(entries []logEntry) models.Intensity {
	var sum float64
	var n int
	for _, e := range entries {
		if v, ok := parseFloat(e.rpe); ok {
			sum += v
			n++
		}
	}
	if n > 0 {
		switch avg := sum / float64(n); {
		case avg >= 8:
			return models.IntensityHigh
		case avg >= 6:
			return models.IntensityMedium
		}
		return models.IntensityLow
	}

	var low bool
	for _, e := range entries {
		if containsAny(e.targetHR, []string{"Z3", "Z4", "Z5"}) {
			return models.IntensityHigh
		}
		ex := strings.ToLower(e.exercise)
		low = low || strings.Contains(e.targetHR, "Z1") || strings.Contains(ex, "easy") || strings.Contains(ex, "recovery")
	}
	if low {
		return models.IntensityLow
	}
	return models.IntensityMedium
}

// parseLogDate accepts an Excel serial date or a text date.
func parseLogDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	for _, form := range logDateLayouts {
		if t, err := time.Parse(form, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func weekdayIndex(s string) (int, bool) {
	for d, day := range models.Weekdays {
		if strings.EqualFold(s, day) {
			return d, true
		}
	}
	return 0, false
}

// parseFloat reads the number in strings like "7", "RPE 7.5" or "45 min".
func parseFloat(s string) (float64, bool) {
	digits := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseNumber(s string) (int, bool) {
	v, ok := parseFloat(s)
	if !ok {
		return 0, false
	}
	return int(math.Round(v)), true
}

func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
