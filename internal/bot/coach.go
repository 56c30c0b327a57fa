// Package bot implements the AllyBot conversation state machine.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/allyai/AllyBot/internal/assessment"
	"github.com/allyai/AllyBot/internal/models"
	"github.com/allyai/AllyBot/internal/session"
	"github.com/allyai/AllyBot/internal/store"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// completer is the minimal completion surface the coach needs.
type completer interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// guardrailLauncher starts a detached safety check.
type guardrailLauncher interface {
	Launch(userID string, history []string, latestInput string)
}

// Shared menu fragments.
const (
	mainMenu = "1. Ask for advice\n2. Take a quick assessment\n3. Play 'What Would You Do?'"

	categoryMenu = "Choose a topic you want to talk about:\n" +
		"1. Romantic Partner Issues\n" +
		"2. Friendship Challenges\n" +
		"3. Family Tensions\n" +
		"4. Building Self-Confidence\n" +
		"5. Overcoming Insecurity\n" +
		"6. Urgent Advice"

	trackMenu = "🎲 Welcome to *What Would You Do?*\n\n" +
		"Pick a growth path:\n" +
		"1. Building Confidence\n" +
		"2. Recognizing Red Flags\n" +
		"3. Setting Boundaries & Saying No"

	completionFailureReply = "Something went wrong while generating a response. Please try again or type 'restart' to start over."
)

var titleCaser = cases.Title(language.English)

// Coach is the central conversation controller. It owns the per-stage
// transition table and orchestrates the assessment engine, the completion
// client, the durable store, and the guardrail.
type Coach struct {
	sessions    session.Store
	assessments *assessment.SessionStore
	store       store.Store
	llm         completer
	guard       guardrailLauncher

	// userLocks serializes concurrent messages from the same user, so a
	// double-send cannot interleave two transitions on one session.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewCoach creates a Coach. guard may be nil to disable safety checks
// (tests, local development without an API key).
func NewCoach(sessions session.Store, st store.Store, llm completer, guard guardrailLauncher) *Coach {
	return &Coach{
		sessions:    sessions,
		assessments: assessment.NewSessionStore(),
		store:       st,
		llm:         llm,
		guard:       guard,
		userLocks:   make(map[string]*sync.Mutex),
	}
}

// lockUser returns the per-user mutex, creating it on first use.
func (c *Coach) lockUser(userID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		c.userLocks[userID] = l
	}
	return l
}

// Advance processes one inbound message and returns the reply text.
// Input errors never escape as failures: every invalid input produces a
// re-prompt and leaves the stage unchanged.
func (c *Coach) Advance(ctx context.Context, from, rawInput string) string {
	l := c.lockUser(from)
	l.Lock()
	defer l.Unlock()

	input := strings.TrimSpace(rawInput)

	sess := c.sessions.Get(from)
	stage := session.Stage("unknown")
	if sess != nil {
		stage = sess.Stage
	}
	c.logEvent(from, "message_received", map[string]string{"input": input, "stage": string(stage)})

	// Restart takes precedence over all other stage logic.
	if strings.EqualFold(input, "restart") {
		return c.handleRestart(from)
	}

	if sess == nil {
		return c.handleFirstContact(from)
	}

	switch sess.Stage {
	case session.StageIntro:
		return c.handleIntro(from, sess, input)
	case session.StageChoosePath:
		return c.handleChoosePath(from, sess, input)
	case session.StageChooseTrack:
		return c.handleChooseTrack(from, sess, input)
	case session.StageTrackProgressOptions:
		return c.handleTrackProgressOptions(from, sess, input)
	case session.StageTrackActive:
		return c.handleTrackActive(from, sess, input)
	case session.StageChooseCategory:
		return c.handleChooseCategory(from, sess, input)
	case session.StageChooseScenario:
		return c.handleChooseScenario(from, sess, input)
	case session.StageAssessment:
		return c.handleAssessment(from, sess, input)
	case session.StageGPTMode, session.StageGPTModeCustom:
		return c.handleCoaching(ctx, from, sess, input)
	default:
		return "Let's start over — type 'restart'."
	}
}

// handleRestart resets the session. A user with a saved name lands back on
// the main menu; an unknown user is asked for a name again.
func (c *Coach) handleRestart(from string) string {
	c.logEvent(from, "user_restarted", nil)
	c.assessments.Delete(from)

	profile := c.profile(from)
	if profile != nil && profile.Name != "" {
		c.sessions.Put(from, &session.Session{Stage: session.StageChoosePath})
		return "Hi " + profile.Name + " 👋 Starting fresh!\n\nHow can I help you today?\n" + mainMenu
	}
	c.sessions.Put(from, &session.Session{Stage: session.StageIntro})
	return "Let's start over. 👋 What's your name?"
}

// handleFirstContact greets a user with no in-memory session yet.
func (c *Coach) handleFirstContact(from string) string {
	profile := c.profile(from)
	if profile != nil && profile.Name != "" {
		c.sessions.Put(from, &session.Session{Stage: session.StageChoosePath})
		return "Hi " + profile.Name + " 👋 Welcome back! 💛\n\nHow can I help you today?\n" + mainMenu
	}

	c.logEvent(from, "user_started_session", nil)
	slog.Info("Coach new user detected", "from", from)
	c.sessions.Put(from, &session.Session{Stage: session.StageIntro})
	return "Hi, I'm Ally 👋\nI'm here to support you in understanding your relationships and yourself better.\n\nWhat's your name?"
}

// handleIntro treats the first non-restart message as the user's name when
// no durable name exists yet.
func (c *Coach) handleIntro(from string, sess *session.Session, input string) string {
	profile := c.profile(from)
	if profile == nil || profile.Name == "" {
		if input == "" {
			return "I'd love to know what to call you 💛 What's your name?"
		}
		name := titleCaser.String(input)
		if err := c.store.UpsertProfile(from, models.ProfileUpdate{Name: models.StringPtr(name)}); err != nil {
			slog.Error("Coach failed to save name", "from", from, "error", err)
		}
		sess.Stage = session.StageChoosePath
		c.sessions.Put(from, sess)
		return "Nice to meet you, " + name + "!\n\nHow can I help you today?\n" +
			"1. Ask for advice\n" +
			"2. Take a quick assessment to understand your relationship style\n" +
			"3. Play 'What Would You Do?'"
	}
	// Name already saved; nudge toward the menu without changing stage.
	return "Just reply with 1, 2, or 3 to continue:\n" + mainMenu
}

// profile fetches the durable profile, tolerating store failures.
func (c *Coach) profile(from string) *models.UserProfile {
	profile, err := c.store.GetProfile(from)
	if err != nil {
		slog.Error("Coach profile fetch failed", "from", from, "error", err)
		return nil
	}
	return profile
}

// logEvent records an analytics event best-effort; failures are logged and
// never surfaced to the user.
func (c *Coach) logEvent(from, eventType string, payload map[string]string) {
	err := c.store.LogEvent(models.Event{
		UserID:    from,
		EventType: eventType,
		Payload:   payload,
		Time:      time.Now(),
	})
	if err != nil {
		slog.Error("Coach analytics logging failed", "from", from, "type", eventType, "error", err)
	}
}
