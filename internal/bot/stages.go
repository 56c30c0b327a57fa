// Package bot implements the AllyBot conversation state machine.
//
// This file holds the menu-driven stage handlers: path choice, assessment
// delegation, scenario selection, and the "What Would You Do?" track game.
package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/allyai/AllyBot/internal/assessment"
	"github.com/allyai/AllyBot/internal/content"
	"github.com/allyai/AllyBot/internal/models"
	"github.com/allyai/AllyBot/internal/session"
)

var trackChoices = map[string]string{
	"1": "Building Confidence",
	"2": "Recognizing Red Flags",
	"3": "Setting Boundaries & Saying No",
}

var categoryChoices = map[string]string{
	"1": "Romantic Partner Issues",
	"2": "Friendship Challenges",
	"3": "Family Tensions",
	"4": "Building Self-Confidence",
	"5": "Overcoming Insecurity",
	"6": "Urgent Advice",
}

// customScenarioOption is always appended to the scenario list; choosing it
// routes to free-form coaching instead of a scripted scenario.
const customScenarioOption = "Something else — I want to describe my situation in my own words."

func (c *Coach) handleChoosePath(from string, sess *session.Session, input string) string {
	switch input {
	case "1":
		sess.Stage = session.StageChooseCategory
		c.sessions.Put(from, sess)
		return categoryMenu
	case "2":
		as := c.assessments.Begin(from)
		sess.Stage = session.StageAssessment
		c.sessions.Put(from, sess)
		c.logEvent(from, "assessment_started", nil)
		question, _ := assessment.NextQuestion(as)
		return "Let's begin! ✨\n\n" + question
	case "3":
		return c.handleTrackEntry(from, sess)
	default:
		return "Please reply with 1, 2, or 3."
	}
}

// handleTrackEntry branches on durable track progress: no track yet, track
// in progress, or track completed.
func (c *Coach) handleTrackEntry(from string, sess *session.Session) string {
	profile := c.profile(from)
	track, day, points := trackProgress(profile)

	switch {
	case track != "" && day > content.TotalDays:
		sess.Stage = session.StageChoosePath
		c.sessions.Put(from, sess)
		return fmt.Sprintf(
			"🎉 You've already completed all %d lessons in *%s*! 💛\nFinal Score: %d points 🎯\n\nBack to the main menu:\n%s",
			content.TotalDays, track, points, mainMenu)
	case track != "":
		sess.Stage = session.StageTrackProgressOptions
		c.sessions.Put(from, sess)
		return fmt.Sprintf(
			"✨ You're currently on *Day %d* of the *%s* track.\n\nWhat would you like to do?\n1. Continue to your next lesson\n2. Back to main menu",
			day, track)
	default:
		sess.Stage = session.StageChooseTrack
		c.sessions.Put(from, sess)
		return trackMenu
	}
}

func (c *Coach) handleChooseTrack(from string, sess *session.Session, input string) string {
	selected, ok := trackChoices[input]
	if !ok {
		return "Please choose a valid track: 1, 2, or 3."
	}
	lesson, ok := content.TrackLesson(selected, 1)
	if !ok {
		return "Please choose a valid track: 1, 2, or 3."
	}

	err := c.store.UpsertProfile(from, models.ProfileUpdate{
		ChosenTrack: models.StringPtr(selected),
		CurrentDay:  models.IntPtr(1),
		Points:      models.IntPtr(0),
		Streak:      models.IntPtr(0),
	})
	if err != nil {
		return completionFailureReply
	}

	sess.Stage = session.StageTrackActive
	c.sessions.Put(from, sess)
	c.logEvent(from, "track_chosen", map[string]string{"track": selected})
	return fmt.Sprintf("🎯 You chose *%s*!\n\n📘 Day 1 — %s\n\n%s\n\n👉 Reply with A, B, or C",
		selected, lesson.Scenario, formatLessonOptions(lesson))
}

func (c *Coach) handleTrackProgressOptions(from string, sess *session.Session, input string) string {
	profile := c.profile(from)
	track, day, points := trackProgress(profile)

	switch input {
	case "1":
		lesson, ok := content.TrackLesson(track, day)
		if day > content.TotalDays || !ok {
			sess.Stage = session.StageChoosePath
			c.sessions.Put(from, sess)
			return fmt.Sprintf(
				"🎉 You've already completed all %d lessons! 💛\nFinal Score: %d points 🎯\n\nBack to the main menu:\n%s",
				content.TotalDays, points, mainMenu)
		}
		sess.Stage = session.StageTrackActive
		c.sessions.Put(from, sess)
		title := lesson.Title
		if title == "" {
			title = lesson.Scenario
		}
		return fmt.Sprintf("📘 Day %d: %s\n\n%s\n\n%s\n\n👉 Reply with A, B, or C",
			day, title, lesson.Scenario, formatLessonOptions(lesson))
	case "2":
		sess.Stage = session.StageChoosePath
		c.sessions.Put(from, sess)
		return "Okay 💛 Sending you back to the main menu!\n\n" + mainMenu
	default:
		return "Please reply with 1 or 2."
	}
}

func (c *Coach) handleTrackActive(from string, sess *session.Session, input string) string {
	profile := c.profile(from)
	track, day, points := trackProgress(profile)

	lesson, ok := content.TrackLesson(track, day)
	if !ok {
		// Track state drifted (e.g. profile wiped); recover to the menu.
		sess.Stage = session.StageChoosePath
		c.sessions.Put(from, sess)
		return "Hmm, I lost track of your lesson. Back to the main menu:\n" + mainMenu
	}

	choice := strings.ToUpper(input)
	feedback, ok := lesson.Feedback[choice]
	if !ok {
		return "Please reply with A, B, or C."
	}

	points += content.PointsPerLesson
	nextDay := day + 1
	err := c.store.UpsertProfile(from, models.ProfileUpdate{
		ChosenTrack: models.StringPtr(track),
		CurrentDay:  models.IntPtr(nextDay),
		Points:      models.IntPtr(points),
	})
	if err != nil {
		return completionFailureReply
	}
	c.logEvent(from, "lesson_completed", map[string]string{
		"track": track, "day": strconv.Itoa(day), "choice": choice,
	})

	body := fmt.Sprintf("💡 Feedback:\n%s\n\n📘 Mini Lesson:\n%s\n\n🔥 Challenge:\n%s\n\n",
		feedback, lesson.MiniLesson, lesson.Challenge)

	if nextDay <= content.TotalDays {
		sess.Stage = session.StageTrackProgressOptions
		c.sessions.Put(from, sess)
		return body + fmt.Sprintf(
			"🏆 You earned +%d points! (Total: %d)\n\n✨ What would you like to do?\n1. Go to the next lesson\n2. Back to the main menu",
			content.PointsPerLesson, points)
	}

	sess.Stage = session.StageChoosePath
	c.sessions.Put(from, sess)
	return body + fmt.Sprintf(
		"🏆 You earned +%d points! (Final: %d)\n\n🎉 Congratulations! You've completed all lessons in this track! 💛\n\nBack to the main menu:\n%s",
		content.PointsPerLesson, points, mainMenu)
}

func (c *Coach) handleChooseCategory(from string, sess *session.Session, input string) string {
	selected, ok := categoryChoices[input]
	if !ok {
		return "Please choose a valid number from the list above."
	}

	options := append(content.ScenariosFor(selected), customScenarioOption)
	sess.Category = selected
	sess.ScenarioOptions = options
	sess.Stage = session.StageChooseScenario
	c.sessions.Put(from, sess)
	c.logEvent(from, "category_selected", map[string]string{"category": selected})

	var list strings.Builder
	for i, s := range options {
		if i > 0 {
			list.WriteString("\n")
		}
		fmt.Fprintf(&list, "%d. %s", i+1, s)
	}
	return fmt.Sprintf(
		"Thanks! Here are some common situations under *%s*:\n\n%s\n\nReply with the number that fits your situation.",
		selected, list.String())
}

func (c *Coach) handleChooseScenario(from string, sess *session.Session, input string) string {
	n, err := strconv.Atoi(input)
	if err != nil {
		return "Please reply with the number of your choice."
	}
	idx := n - 1
	options := sess.ScenarioOptions

	switch {
	case idx >= 0 && idx < len(options)-1:
		sess.Scenario = options[idx]
		sess.Stage = session.StageGPTMode
		c.sessions.Put(from, sess)
		c.logEvent(from, "scenario_selected", map[string]string{
			"category": sess.Category, "scenario": sess.Scenario,
		})
		return "Thanks for sharing that. I'm here for you 💛 Just tell me a bit more about what's been going on, and we'll work through it together."
	case idx == len(options)-1 && len(options) > 0:
		sess.Stage = session.StageGPTModeCustom
		c.sessions.Put(from, sess)
		return "No problem — just type out what's going on and I'll do my best to help 💬"
	default:
		return "Please choose a valid number from the list."
	}
}

func (c *Coach) handleAssessment(from string, sess *session.Session, input string) string {
	as, ok := c.assessments.Get(from)
	if !ok {
		return "Let's start over — type 'restart'."
	}

	if as.CurrentQ < len(assessment.Questions) {
		c.logEvent(from, "assessment_answered", map[string]string{
			"question": assessment.Questions[as.CurrentQ].Text,
			"answer":   input,
		})
	}
	assessment.RecordAnswer(as, input)

	if question, more := assessment.NextQuestion(as); more {
		return question
	}

	scores := assessment.AggregateScores(as.Answers)
	identity := assessment.AssignIdentity(scores)
	feedback := assessment.Feedback(scores, identity)
	c.logEvent(from, "assessment_completed", map[string]string{"identity": identity})
	c.assessments.Delete(from)

	sess.Stage = session.StageChoosePath
	c.sessions.Put(from, sess)
	return feedback + "\n\nWhat would you like to do next?\n1. Get advice\n2. Restart"
}

// trackProgress extracts the track fields from a possibly-nil profile,
// defaulting the day to 1 as the original catalog is 1-based.
func trackProgress(profile *models.UserProfile) (track string, day, points int) {
	day = 1
	if profile == nil {
		return "", day, 0
	}
	if profile.CurrentDay > 0 {
		day = profile.CurrentDay
	}
	return profile.ChosenTrack, day, profile.Points
}

// formatLessonOptions renders the A/B/C choices in letter order.
func formatLessonOptions(lesson content.Lesson) string {
	letters := []string{"A", "B", "C"}
	parts := make([]string, 0, len(letters))
	for _, l := range letters {
		if text, ok := lesson.Options[l]; ok {
			parts = append(parts, fmt.Sprintf("%s) %s", l, text))
		}
	}
	return strings.Join(parts, "\n")
}
