package schedule

import (
	"bytes"
	"testing"
	"time"

	"github.com/claude/summitchronicles/internal/models"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheet string, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatal(err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

// TestParseXLSX verifies a workbook with the CSV layout parses the same way,
// including multi-line cells and a trailing blank Sunday.
func TestParseXLSX(t *testing.T) {
	buf := buildWorkbook(t, "Sheet1", [][]any{
		{"Week", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
		{1, "running: Treadmill Hike Z2 30\ngo: 05:00; easy pace", "", "Strength Upper Body 40", "", "", "cycling: Long Ride 120"},
	})

	weeks, err := ParseXLSX(buf, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(weeks) != 1 {
		t.Fatalf("weeks = %d, want 1", len(weeks))
	}
	ws := weeks[0]

	mon := ws.Workouts["Monday"][0]
	if mon.Title != "Treadmill Hike Z2" || mon.MainWork == nil || *mon.MainWork != 5 {
		t.Errorf("Monday = %+v", mon)
	}
	if sat := ws.Workouts["Saturday"][0]; sat.Duration != 120 || sat.Type != models.WorkoutCardio {
		t.Errorf("Saturday = %+v", sat)
	}
	if sun := ws.Workouts["Sunday"][0]; sun.Type != models.WorkoutRest {
		t.Errorf("Sunday = %+v, want rest day", sun)
	}
}

// TestParseXLSXNamedSheet verifies Options.Sheet selects the worksheet.
func TestParseXLSXNamedSheet(t *testing.T) {
	buf := buildWorkbook(t, "Plan", [][]any{
		{"Week"},
		{7, "running: Tempo 40"},
	})
	weeks, err := ParseXLSX(buf, Options{Sheet: "Plan"})
	if err != nil {
		t.Fatal(err)
	}
	if len(weeks) != 1 || weeks[0].Week != 7 {
		t.Fatalf("weeks = %+v", weeks)
	}
}

// TestParseXLSXMissingSheet verifies an unknown sheet name is an error.
func TestParseXLSXMissingSheet(t *testing.T) {
	buf := buildWorkbook(t, "Sheet1", [][]any{{"Week"}})
	if _, err := ParseXLSX(buf, Options{Sheet: "Nope"}); err == nil {
		t.Error("expected error for missing sheet")
	}
}

// TestParseXLSXNotAWorkbook verifies garbage input is an error.
func TestParseXLSXNotAWorkbook(t *testing.T) {
	if _, err := ParseXLSX(bytes.NewReader([]byte("week,mon\n1,a")), Options{}); err == nil {
		t.Error("expected error for non-xlsx input")
	}
}

// TestParseXLSXSessionPlan verifies the one-row-per-session layout builds a
// single week, with days that have no session filled as rest days.
func TestParseXLSXSessionPlan(t *testing.T) {
	buf := buildWorkbook(t, "Sheet1", [][]any{
		{"Day", "Session Type", "Focus Area", "Duration", "Key Metrics", "Equipment/Notes", "Recovery Protocol"},
		{"Monday", "Treadmill Hike", "Aerobic Base", "60 min", "Z2, 135–145 bpm", "Weighted pack, poles", "Stretch 10 min"},
		{"Monday", "Core", "", "", "RPE 6", "", ""},
		{"Wednesday", "Strength", "Lower Body", 45, "RPE 9", "Squat, step-ups", ""},
		{"Someday", "Run", "", 30, "", "", ""},
		{"Sunday", "Rest", "", "", "Recovery", "", ""},
	})

	weeks, err := ParseXLSX(buf, Options{Week: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(weeks) != 1 {
		t.Fatalf("weeks = %d, want 1", len(weeks))
	}
	ws := weeks[0]
	if ws.Week != 3 || ws.StartDate != "2025-10-13" {
		t.Errorf("week = %d start = %s, want 3 2025-10-13", ws.Week, ws.StartDate)
	}
	if len(ws.Workouts) != 7 {
		t.Errorf("days = %d, want 7", len(ws.Workouts))
	}

	mon := ws.Workouts["Monday"]
	if len(mon) != 2 {
		t.Fatalf("Monday sessions = %d, want 2", len(mon))
	}
	hike := mon[0]
	if hike.ID != "3-0-0" || hike.Title != "Treadmill Hike - Aerobic Base" {
		t.Errorf("hike id/title = %q %q", hike.ID, hike.Title)
	}
	if hike.Type != models.WorkoutCardio || hike.Intensity != models.IntensityMedium || hike.Duration != 60 {
		t.Errorf("hike = %+v", hike)
	}
	if len(hike.Zones) != 1 || hike.Zones[0] != "Z2" {
		t.Errorf("hike zones = %v", hike.Zones)
	}
	if len(hike.Exercises) != 2 || hike.Exercises[0] != "Weighted pack" || hike.Exercises[1] != "poles" {
		t.Errorf("hike exercises = %v", hike.Exercises)
	}
	if hike.Description != "Z2, 135–145 bpm • Weighted pack, poles\nRecovery: Stretch 10 min" {
		t.Errorf("hike description = %q", hike.Description)
	}
	if core := mon[1]; core.Duration != 30 || core.Intensity != models.IntensityLow || core.Type != models.WorkoutCustom {
		t.Errorf("core = %+v", core)
	}

	if wed := ws.Workouts["Wednesday"][0]; wed.Type != models.WorkoutStrength || wed.Intensity != models.IntensityHigh || wed.Duration != 45 {
		t.Errorf("Wednesday = %+v", wed)
	}
	if sun := ws.Workouts["Sunday"][0]; sun.Type != models.WorkoutRest || sun.Intensity != models.IntensityLow {
		t.Errorf("Sunday = %+v", sun)
	}
	if tue := ws.Workouts["Tuesday"]; len(tue) != 1 || tue[0].Type != models.WorkoutRest {
		t.Errorf("Tuesday = %+v, want rest day", tue)
	}
}

// TestParseXLSXSessionLog verifies dated rows group into one workout per
// session per day, and the week follows the earliest date.
func TestParseXLSXSessionLog(t *testing.T) {
	header := []any{"Date", "Day", "Block", "Session Title", "Modality", "Exercise", "Sets", "Reps", "Tempo", "RPE", "Duration (min)", "Target HR", "Pace", "Incline", "Load", "Cadence", "Notes"}
	buf := buildWorkbook(t, "Sheet1", [][]any{
		header,
		{"2025-10-13", "Mon", "Base", "Lower Body", "Strength", "Goblet Squat", 3, "10", "", 7, 20, "", "", "", "16kg", "", ""},
		{"2025-10-13", "Mon", "Base", "Lower Body", "Core", "Plank", 3, "45s", "", 8, 25, "", "", "", "", "", "hold form"},
		{time.Date(2025, time.October, 15, 0, 0, 0, 0, time.UTC), "Wed", "Base", "Aerobic", "Run", "Easy run", "", "", "", "", 40, "Z2", "", "", "", "", ""},
		{"", "Thu", "Base", "Missing date", "Run", "Tempo", "", "", "", 9, 30},
		{"not a date", "Fri", "Base", "Bad date", "Run", "Tempo", "", "", "", 9, 30},
	})

	weeks, err := ParseXLSX(buf, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(weeks) != 1 {
		t.Fatalf("weeks = %d, want 1", len(weeks))
	}
	ws := weeks[0]
	if ws.Week != 3 || ws.StartDate != "2025-10-13" {
		t.Errorf("week = %d start = %s, want 3 2025-10-13", ws.Week, ws.StartDate)
	}

	mon := ws.Workouts["Monday"]
	if len(mon) != 1 {
		t.Fatalf("Monday sessions = %d, want 1", len(mon))
	}
	lower := mon[0]
	if lower.Title != "Lower Body" || lower.Duration != 45 || lower.Type != models.WorkoutStrength || lower.Intensity != models.IntensityMedium {
		t.Errorf("Monday = %+v", lower)
	}
	if len(lower.Exercises) != 2 || lower.Exercises[0] != "Goblet Squat 3 sets x 10 @ 16kg" {
		t.Errorf("Monday exercises = %v", lower.Exercises)
	}
	if lower.Description != "Strength: Goblet Squat (20 min)\nCore: Plank (25 min) - hold form" {
		t.Errorf("Monday description = %q", lower.Description)
	}

	wed := ws.Workouts["Wednesday"]
	if len(wed) != 1 {
		t.Fatalf("Wednesday sessions = %d, want 1", len(wed))
	}
	if run := wed[0]; run.Type != models.WorkoutCardio || run.Intensity != models.IntensityLow || run.Duration != 40 || len(run.Zones) != 1 || run.Zones[0] != "Z2" {
		t.Errorf("Wednesday = %+v", run)
	}

	for _, day := range []string{"Thursday", "Friday"} {
		if w := ws.Workouts[day]; len(w) != 1 || w[0].Type != models.WorkoutRest {
			t.Errorf("%s = %+v, want rest day", day, w)
		}
	}
}

// TestParseXLSXSessionPlanNoSessions verifies a session plan header with no
// weekday rows yields no weeks.
func TestParseXLSXSessionPlanNoSessions(t *testing.T) {
	buf := buildWorkbook(t, "Sheet1", [][]any{
		{"Day", "Session Type", "Focus Area", "Duration"},
		{"Notes", "bring water"},
	})
	weeks, err := ParseXLSX(buf, Options{Week: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(weeks) != 0 {
		t.Errorf("weeks = %+v, want none", weeks)
	}
}
