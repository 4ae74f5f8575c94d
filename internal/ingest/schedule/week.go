package schedule

import (
	"fmt"
	"time"

	"github.com/claude/summitchronicles/internal/models"
)

// WeekStart returns the first day of the given week.
func WeekStart(week1Start time.Time, week int) time.Time {
	return week1Start.AddDate(0, 0, 7*(week-1))
}

// WeekNumber returns the plan week that contains t. Dates before week 1 map to week 1.
func WeekNumber(week1Start, t time.Time) int {
	if t.Before(week1Start) {
		return 1
	}
	days := int(t.Sub(week1Start).Hours() / 24)
	return days/7 + 1
}

// CurrentWeek picks the schedule for the week containing now, falling back
// to the first week. ok is false only when schedules is empty.
func CurrentWeek(schedules []models.WeeklySchedule, now, week1Start time.Time) (models.WeeklySchedule, bool) {
	if len(schedules) == 0 {
		return models.WeeklySchedule{}, false
	}
	want := WeekNumber(week1Start, now)
	for _, ws := range schedules {
		if ws.Week == want {
			return ws, true
		}
	}
	return schedules[0], true
}

// FindWeek returns the schedule with the given week number.
func FindWeek(schedules []models.WeeklySchedule, week int) (models.WeeklySchedule, bool) {
	for _, ws := range schedules {
		if ws.Week == week {
			return ws, true
		}
	}
	return models.WeeklySchedule{}, false
}

// fallbackTitles are the placeholder sessions shown when no plan loads.
var fallbackTitles = [7]string{
	"Rest Day",
	"Base Training",
	"Recovery Walk",
	"Treadmill Hike",
	"Strength Training",
	"Saturday Endurance",
	"Easy Recovery",
}

// Fallback returns the static week 1 placeholder schedule.
func Fallback(week1Start time.Time) models.WeeklySchedule {
	if week1Start.IsZero() {
		week1Start = DefaultWeek1Start
	}
	ws := models.WeeklySchedule{
		Week:      1,
		StartDate: week1Start.Format(time.DateOnly),
		Workouts:  make(map[string][]models.ParsedWorkout, len(models.Weekdays)),
	}
	for d, day := range models.Weekdays {
		ws.Workouts[day] = []models.ParsedWorkout{restDay(fmt.Sprintf("1-%d-0", d), fallbackTitles[d])}
	}
	return ws
}
