package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkoutType is the coarse category of a planned workout.
type WorkoutType string

const (
	WorkoutCardio    WorkoutType = "cardio"
	WorkoutStrength  WorkoutType = "strength"
	WorkoutTechnical WorkoutType = "technical"
	WorkoutRest      WorkoutType = "rest"
	WorkoutCustom    WorkoutType = "custom"
)

// Intensity is the planned effort level of a workout.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// Weekdays lists the day keys of a WeeklySchedule in calendar order.
var Weekdays = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ParsedWorkout is a single planned workout extracted from a schedule cell.
// Phase durations are in minutes and nil when the text does not mention them.
type ParsedWorkout struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Type        WorkoutType `json:"type"`
	Duration    int         `json:"duration"`
	Intensity   Intensity   `json:"intensity"`
	Description string      `json:"description"`
	Exercises   []string    `json:"exercises"`
	Zones       []string    `json:"zones"`
	Warmup      *int        `json:"warmup,omitempty"`
	Cooldown    *int        `json:"cooldown,omitempty"`
	MainWork    *int        `json:"mainWork,omitempty"`
}

// WeeklySchedule is one week of a training plan. Workouts always holds all
// seven Weekdays keys.
type WeeklySchedule struct {
	Week      int                        `json:"week"`
	StartDate string                     `json:"startDate"` // YYYY-MM-DD
	Workouts  map[string][]ParsedWorkout `json:"workouts"`
}

// TrainingPlan is an uploaded plan file. Content holds the raw CSV or XLSX bytes.
type TrainingPlan struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Content     []byte    `json:"-"`
	SHA256      string    `json:"sha256"`
	IsActive    bool      `json:"is_active"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
