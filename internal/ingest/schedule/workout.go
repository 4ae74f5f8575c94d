package schedule

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/claude/summitchronicles/internal/models"
)

const defaultDuration = 30

var (
	// headerRe matches the first line of a workout: "running: Treadmill Hike Z2 30"
	headerRe = regexp.MustCompile(`(?i)^(running|custom|cycling|strength|mobility|recovery|treadmill|stair|berghaus|easy).*\d+$`)

	// trailingIntRe matches a whitespace-separated integer at the end of a line.
	trailingIntRe = regexp.MustCompile(`(?:^|\s)(\d+)$`)

	// titlePrefixRe matches the Garmin-style activity prefix: "running: ", "Strength "
	titlePrefixRe = regexp.MustCompile(`(?i)^(running|custom|cycling|strength):?\s*`)

	// zoneRe matches Z1..Z5 tags, with or without a leading @.
	zoneRe = regexp.MustCompile(`(?i)\bz([1-5])\b`)

	// exercisePrefixRe matches a list marker and an optional "go: 00:45;" step prefix.
	exercisePrefixRe = regexp.MustCompile(`(?i)^(?:[-*•]\s*)?(?:go:\s*\d+:\d+;\s*)?`)
)

// phaseRes maps a phase label to its "label: MM:SS" pattern.
var phaseRes = map[string]*regexp.Regexp{
	"warmup":   phaseRe("warmup"),
	"cooldown": phaseRe("cooldown"),
	"go":       phaseRe("go"),
	"run":      phaseRe("run"),
	"bike":     phaseRe("bike"),
}

// mainWorkLabels are tried in order; the first match wins.
var mainWorkLabels = []string{"go", "run", "bike"}

func phaseRe(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + label + `:\s*(\d+):(\d+)`)
}

var exerciseKeywords = []string{"squat", "press", "step", "bridge", "plank", "dead bug"}

// typeRule classifies a workout when any keyword occurs in its text.
type typeRule struct {
	keywords []string
	result   models.WorkoutType
}

// typeRules are evaluated top to bottom; the first match wins.
var typeRules = []typeRule{
	{keywords: []string{"running", "cycling", "bike", "cardio"}, result: models.WorkoutCardio},
	{keywords: []string{"strength", "squat", "press"}, result: models.WorkoutStrength},
	{keywords: []string{"mobility", "core", "stretching"}, result: models.WorkoutCustom},
	{keywords: []string{"rest", "recovery", "easy"}, result: models.WorkoutRest},
}

// intensityRule matches on a zone tag or a keyword.
type intensityRule struct {
	zones    []string
	keywords []string
	result   models.Intensity
}

var intensityRules = []intensityRule{
	{zones: []string{"Z1"}, keywords: []string{"recovery", "easy", "rpe6"}, result: models.IntensityLow},
	{zones: []string{"Z2"}, keywords: []string{"moderate", "rpe7", "rpe8"}, result: models.IntensityMedium},
	{zones: []string{"Z3", "Z4"}, keywords: []string{"hard", "rpe9"}, result: models.IntensityHigh},
}

// line is one trimmed, non-empty physical line of a day cell.
type line struct {
	text   string
	header bool
}

// block is the group of lines that make up one workout.
type block []line

func (b block) text() string {
	parts := make([]string, len(b))
	for i, l := range b {
		parts[i] = l.text
	}
	return strings.Join(parts, "\n")
}

// classifyLines splits a cell into lines and marks workout headers.
func classifyLines(cell string) []line {
	var lines []line
	for _, raw := range strings.Split(cell, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		lines = append(lines, line{text: text, header: headerRe.MatchString(text)})
	}
	return lines
}

// splitWorkouts groups lines into blocks. A header starts a new block only
// once the current block has at least one line.
func splitWorkouts(lines []line) []block {
	var (
		blocks  []block
		current block
	)
	for _, l := range lines {
		if l.header && len(current) > 0 {
			blocks = append(blocks, current)
			current = nil
		}
		current = append(current, l)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

// parseCell turns one day cell into workouts with ids "{dayID}-{n}".
// A cell without any workout text yields a single rest day.
func parseCell(cell, dayID string) []models.ParsedWorkout {
	blocks := splitWorkouts(classifyLines(cell))
	if len(blocks) == 0 {
		return []models.ParsedWorkout{restDay(dayID+"-0", "Rest Day")}
	}

	workouts := make([]models.ParsedWorkout, 0, len(blocks))
	for i, b := range blocks {
		workouts = append(workouts, parseBlock(b, dayID+"-"+strconv.Itoa(i)))
	}
	return workouts
}

// parseBlock builds a workout from its lines. It never fails; anything it
// cannot read falls back to a default.
func parseBlock(b block, id string) models.ParsedWorkout {
	text := b.text()
	head := b[0].text

	duration := defaultDuration
	typeAndTitle := head
	if m := trailingIntRe.FindStringSubmatchIndex(head); m != nil {
		if n, err := strconv.Atoi(head[m[2]:m[3]]); err == nil && n > 0 {
			duration = n
		}
		typeAndTitle = strings.TrimSpace(head[:m[0]])
	}

	zones := extractZones(text)

	return models.ParsedWorkout{
		ID:          id,
		Title:       extractTitle(typeAndTitle),
		Type:        classifyType(text),
		Duration:    duration,
		Intensity:   classifyIntensity(text, zones),
		Description: text,
		Exercises:   extractExercises(b),
		Zones:       zones,
		Warmup:      phaseMinutes(text, "warmup"),
		Cooldown:    phaseMinutes(text, "cooldown"),
		MainWork:    mainWorkMinutes(text),
	}
}

// extractTitle: "running: Treadmill Hike Z2" -> "Treadmill Hike Z2"
func extractTitle(typeAndTitle string) string {
	if _, after, ok := strings.Cut(typeAndTitle, ":"); ok {
		if title := strings.TrimSpace(after); title != "" {
			return title
		}
	}
	if title := strings.TrimSpace(titlePrefixRe.ReplaceAllString(typeAndTitle, "")); title != "" {
		return title
	}
	return typeAndTitle
}

func classifyType(text string) models.WorkoutType {
	return classifyTypeWith(typeRules, text)
}

func classifyTypeWith(rules []typeRule, text string) models.WorkoutType {
	lower := strings.ToLower(text)
	for _, rule := range rules {
		if containsAny(lower, rule.keywords) {
			return rule.result
		}
	}
	return models.WorkoutCustom
}

func classifyIntensity(text string, zones []string) models.Intensity {
	return classifyIntensityWith(intensityRules, text, zones)
}

func classifyIntensityWith(rules []intensityRule, text string, zones []string) models.Intensity {
	lower := strings.ToLower(text)
	for _, rule := range rules {
		for _, z := range rule.zones {
			for _, have := range zones {
				if z == have {
					return rule.result
				}
			}
		}
		if containsAny(lower, rule.keywords) {
			return rule.result
		}
	}
	return models.IntensityMedium
}

func extractExercises(b block) []string {
	exercises := []string{}
	for _, l := range b {
		if !containsAny(strings.ToLower(l.text), exerciseKeywords) {
			continue
		}
		exercises = append(exercises, strings.TrimSpace(exercisePrefixRe.ReplaceAllString(l.text, "")))
	}
	return exercises
}

// extractZones returns upper-cased zone tags in first-seen order, without duplicates.
func extractZones(text string) []string {
	zones := []string{}
	seen := make(map[string]bool)
	for _, m := range zoneRe.FindAllStringSubmatch(text, -1) {
		z := "Z" + m[1]
		if seen[z] {
			continue
		}
		seen[z] = true
		zones = append(zones, z)
	}
	return zones
}

func mainWorkMinutes(text string) *int {
	for _, label := range mainWorkLabels {
		if m := phaseMinutes(text, label); m != nil {
			return m
		}
	}
	return nil
}

// phaseMinutes finds "label: MM:SS" and returns whole minutes, rounding
// seconds to the nearest minute.
func phaseMinutes(text, label string) *int {
	m := phaseRes[label].FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	mins, _ := strconv.Atoi(m[1])
	secs, _ := strconv.Atoi(m[2])
	total := mins + (secs+30)/60
	return &total
}

func restDay(id, title string) models.ParsedWorkout {
	return models.ParsedWorkout{
		ID:          id,
		Title:       title,
		Type:        models.WorkoutRest,
		Duration:    defaultDuration,
		Intensity:   models.IntensityLow,
		Description: "Rest and recovery day",
		Exercises:   []string{},
		Zones:       []string{},
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
