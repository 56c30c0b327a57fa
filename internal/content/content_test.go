package content

import "testing"

var allCategories = []string{
	"Romantic Partner Issues",
	"Friendship Challenges",
	"Family Tensions",
	"Building Self-Confidence",
	"Overcoming Insecurity",
	"Urgent Advice",
}

var allTracks = []string{
	"Building Confidence",
	"Recognizing Red Flags",
	"Setting Boundaries & Saying No",
}

func TestEveryCategoryHasScenarios(t *testing.T) {
	for _, cat := range allCategories {
		if got := ScenariosFor(cat); len(got) == 0 {
			t.Errorf("category %q has no scenarios", cat)
		}
	}
}

func TestScenariosForUnknownCategory(t *testing.T) {
	if got := ScenariosFor("Nonexistent"); len(got) != 0 {
		t.Errorf("unknown category returned %d scenarios", len(got))
	}
}

func TestTracksHaveFullLessonPlans(t *testing.T) {
	for _, name := range allTracks {
		lessons, ok := Track(name)
		if !ok {
			t.Fatalf("track %q missing", name)
		}
		if len(lessons) != TotalDays {
			t.Errorf("track %q has %d lessons, want %d", name, len(lessons), TotalDays)
		}
		for day, lesson := range lessons {
			for _, letter := range []string{"A", "B", "C"} {
				if _, ok := lesson.Options[letter]; !ok {
					t.Errorf("track %q day %d missing option %s", name, day+1, letter)
				}
				if _, ok := lesson.Feedback[letter]; !ok {
					t.Errorf("track %q day %d missing feedback %s", name, day+1, letter)
				}
			}
			if lesson.Scenario == "" || lesson.MiniLesson == "" || lesson.Challenge == "" {
				t.Errorf("track %q day %d has empty content fields", name, day+1)
			}
		}
	}
}

func TestTrackLessonBounds(t *testing.T) {
	if _, ok := TrackLesson("Building Confidence", 0); ok {
		t.Error("day 0 should be out of range")
	}
	if _, ok := TrackLesson("Building Confidence", TotalDays+1); ok {
		t.Error("day past the end should be out of range")
	}
	if _, ok := TrackLesson("No Such Track", 1); ok {
		t.Error("unknown track should not resolve")
	}
	lesson, ok := TrackLesson("Building Confidence", 1)
	if !ok || lesson.Scenario == "" {
		t.Error("day 1 of a real track should resolve with content")
	}
}
