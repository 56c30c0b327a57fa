// Package content holds the static conversation catalogs for AllyBot.
//
// The scenario list and the "What Would You Do?" track lessons are supplied
// data, embedded at build time. Loading happens once at init; a malformed
// catalog is a programming error and panics at startup.
package content

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

// TotalDays is the number of lessons in every track.
const TotalDays = 4

// PointsPerLesson is the fixed award for completing a lesson.
const PointsPerLesson = 10

//go:embed scenarios.json
var scenariosJSON []byte

//go:embed tracks.json
var tracksJSON []byte

// Scenario is a single entry in the scenario catalog.
type Scenario struct {
	Category string `json:"category"`
	Scenario string `json:"scenario"`
}

// Lesson is one day of a track.
type Lesson struct {
	Title      string            `json:"title,omitempty"`
	Scenario   string            `json:"scenario"`
	Options    map[string]string `json:"options"`
	Feedback   map[string]string `json:"feedback"`
	MiniLesson string            `json:"mini_lesson"`
	Challenge  string            `json:"challenge"`
}

var (
	scenarios []Scenario
	tracks    map[string][]Lesson
)

func init() {
	if err := json.Unmarshal(scenariosJSON, &scenarios); err != nil {
		panic(fmt.Sprintf("content: invalid scenarios.json: %v", err))
	}
	if err := json.Unmarshal(tracksJSON, &tracks); err != nil {
		panic(fmt.Sprintf("content: invalid tracks.json: %v", err))
	}
}

// ScenariosFor returns the scenario descriptions for a category, in catalog order.
func ScenariosFor(category string) []string {
	var out []string
	for _, s := range scenarios {
		if s.Category == category {
			out = append(out, s.Scenario)
		}
	}
	return out
}

// Track returns the ordered lessons for a track name.
func Track(name string) ([]Lesson, bool) {
	lessons, ok := tracks[name]
	return lessons, ok
}

// TrackLesson returns the lesson for a 1-based day within a track.
func TrackLesson(name string, day int) (Lesson, bool) {
	lessons, ok := tracks[name]
	if !ok || day < 1 || day > len(lessons) {
		return Lesson{}, false
	}
	return lessons[day-1], true
}
