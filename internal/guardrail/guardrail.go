// Package guardrail implements the background safety classifier.
//
// Every coaching exchange is classified into SAFE, DISTRESS or CRISIS after
// the synchronous reply has already been produced. The check runs detached:
// it never blocks, and its failures never reach the user-visible reply. A
// DISTRESS result sends a soft supportive message (rather than staying
// silent) so the user hears from us even below the crisis threshold.
package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/allyai/AllyBot/internal/models"
)

// RiskLevel is the classification outcome for a conversation.
type RiskLevel string

const (
	// RiskSafe means no concerning content was detected.
	RiskSafe RiskLevel = "SAFE"
	// RiskDistress means emotional distress below the crisis threshold.
	RiskDistress RiskLevel = "DISTRESS"
	// RiskCrisis means self-harm, abuse or suicidal risk signals.
	RiskCrisis RiskLevel = "CRISIS"
)

// systemPrompt instructs the classifier to answer with exactly one label.
const systemPrompt = `You are AllyAI's Safety Guardrail Agent.
Classify if the user's message and recent chat history
show emotional distress, self-harm, abuse, or suicidal risk.

Output only one label:
SAFE / DISTRESS / CRISIS`

// crisisMessage is sent out-of-band when a CRISIS is detected.
const crisisMessage = "💛 I'm really glad you told me. What you're feeling matters, and you don't have to carry it alone.\n\n" +
	"Please reach out to someone right now:\n" +
	"• Crisis Text Line: text HOME to 741741\n" +
	"• Suicide & Crisis Lifeline: call or text 988\n" +
	"• If you're in immediate danger, call your local emergency number.\n\n" +
	"I'm still here whenever you want to talk."

// distressMessage is the softer supportive nudge for DISTRESS results.
const distressMessage = "💛 Hey, I just wanted to check in. What you're going through sounds heavy, and your feelings are valid. " +
	"If it ever feels like too much, talking to someone you trust — or a counselor — can really help. I'm here for you."

// checkTimeout bounds the detached classification call.
const checkTimeout = 30 * time.Second

// classifier is the minimal completion surface the guardrail needs.
type classifier interface {
	Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// alertSender delivers out-of-band messages to the user.
type alertSender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// eventLogger records guardrail outcomes best-effort.
type eventLogger interface {
	LogEvent(event models.Event) error
}

// Checker classifies conversation history and escalates when needed.
type Checker struct {
	classifier classifier
	alerts     alertSender
	events     eventLogger
}

// NewChecker creates a Checker. events may be nil to disable outcome logging.
func NewChecker(cls classifier, alerts alertSender, events eventLogger) *Checker {
	return &Checker{classifier: cls, alerts: alerts, events: events}
}

// Launch runs Check in a detached goroutine. The caller never waits on it;
// if the process exits first, the check is simply lost.
func (c *Checker) Launch(userID string, history []string, latestInput string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Guardrail check panicked", "userID", userID, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		c.Check(ctx, userID, history, latestInput)
	}()
}

// Check classifies the conversation and sends at most one out-of-band
// message depending on the risk level. Errors are logged and swallowed.
func (c *Checker) Check(ctx context.Context, userID string, history []string, latestInput string) RiskLevel {
	userPrompt := fmt.Sprintf("Conversation so far:\n%s\n\nLatest message:\n%s\n\nClassify into: SAFE / DISTRESS / CRISIS",
		strings.Join(history, "\n"), latestInput)

	raw, err := c.classifier.Classify(ctx, systemPrompt, userPrompt)
	if err != nil {
		slog.Error("Guardrail classification failed", "userID", userID, "error", err)
		return RiskSafe
	}

	level := parseRiskLevel(raw)
	slog.Info("Guardrail classification complete", "userID", userID, "level", level)
	c.logOutcome(userID, level)

	switch level {
	case RiskCrisis:
		c.sendAlert(ctx, userID, crisisMessage)
	case RiskDistress:
		c.sendAlert(ctx, userID, distressMessage)
	}
	return level
}

// parseRiskLevel normalizes the model output, defaulting to SAFE on anything
// unrecognized. CRISIS is matched first so a verbose answer mentioning both
// labels escalates rather than downgrades.
func parseRiskLevel(raw string) RiskLevel {
	label := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(label, string(RiskCrisis)):
		return RiskCrisis
	case strings.Contains(label, string(RiskDistress)):
		return RiskDistress
	case strings.Contains(label, string(RiskSafe)):
		return RiskSafe
	default:
		slog.Warn("Guardrail returned unrecognized label, treating as SAFE", "label", raw)
		return RiskSafe
	}
}

func (c *Checker) sendAlert(ctx context.Context, userID, body string) {
	if c.alerts == nil {
		slog.Warn("Guardrail has no alert sender configured", "userID", userID)
		return
	}
	if err := c.alerts.SendMessage(ctx, userID, body); err != nil {
		slog.Error("Guardrail alert send failed", "userID", userID, "error", err)
	}
}

func (c *Checker) logOutcome(userID string, level RiskLevel) {
	if c.events == nil {
		return
	}
	err := c.events.LogEvent(models.Event{
		UserID:    userID,
		EventType: "guardrail_checked",
		Payload:   map[string]string{"level": string(level)},
		Time:      time.Now(),
	})
	if err != nil {
		slog.Error("Guardrail event logging failed", "userID", userID, "error", err)
	}
}
