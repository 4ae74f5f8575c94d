package ingest

// Result holds the outcome of an ingest operation.
type Result struct {
	PlanID   string `json:"plan_id,omitempty"`
	Filename string `json:"filename"`
	Format   string `json:"format"`

	WeeksParsed    int `json:"weeks_parsed"`
	WorkoutsParsed int `json:"workouts_parsed"`
	RestDays       int `json:"rest_days"`

	Message string `json:"message,omitempty"`
}
