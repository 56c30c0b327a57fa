// Package bot implements the AllyBot conversation state machine.
//
// This file holds the open-ended coaching flow behind gpt_mode and
// gpt_mode_custom: relevance gating, intent overrides, step progression,
// and the detached guardrail launch.
package bot

import (
	"context"
	"log/slog"

	"github.com/allyai/AllyBot/internal/intent"
	"github.com/allyai/AllyBot/internal/session"
)

const (
	needScenarioReply = "Tell me a bit about what's going on first — even a sentence or two helps 💛"
	needMoreReply     = "Could you tell me a little more? Even a few words about what's going on helps me support you 💛"
)

// handleCoaching runs one open-ended coaching turn. Invalid or trivial
// input re-prompts without touching step state; a completion failure
// returns the apology and also leaves the step where it was, so the user
// can simply try again.
func (c *Coach) handleCoaching(ctx context.Context, from string, sess *session.Session, input string) string {
	// In custom mode the first real message becomes the scenario itself.
	scenario := sess.Scenario
	if sess.Stage == session.StageGPTModeCustom {
		scenario = input
	}

	if scenario == "" {
		return needScenarioReply
	}
	if input == "" || !isRelevant(input) {
		return needMoreReply
	}

	if sess.CurrentStep == "" {
		sess.CurrentStep = session.StepValidationExploration
		sess.FreeChatMode = false
	}

	if !sess.FreeChatMode {
		applyIntentOverride(sess, intent.Detect(input))
	}

	// Once the conversation reaches the practical/closing steps, it stays
	// in free chat; overrides no longer yank it backwards.
	switch sess.CurrentStep {
	case session.StepOfferMessageHelp, session.StepDraftingMessage, session.StepClosing:
		sess.FreeChatMode = true
	}

	prompt := buildStepPrompt(sess.CurrentStep, scenario, input)
	reply, err := c.llm.GeneratePrompt(ctx, SystemPrompt, prompt)
	if err != nil {
		slog.Error("Coach completion failed", "from", from, "step", sess.CurrentStep, "error", err)
		c.sessions.Put(from, sess)
		return completionFailureReply
	}

	c.logEvent(from, "gpt_reply_sent", map[string]string{
		"step":     string(sess.CurrentStep),
		"scenario": scenario,
	})

	sess.History = append(sess.History, "User: "+input)
	sess.CurrentStep = nextStep(sess.CurrentStep)
	c.sessions.Put(from, sess)

	if c.guard != nil {
		// Copy so the detached check never races a later append.
		history := make([]string, len(sess.History))
		copy(history, sess.History)
		c.guard.Launch(from, history, input)
	}

	return reply
}

// applyIntentOverride mutates the current step based on detected intent.
// Message help always wins; advice and venting only redirect when the
// conversation has not already passed the relevant step.
func applyIntentOverride(sess *session.Session, detected intent.Intent) {
	switch detected {
	case intent.WantsMessageHelp:
		sess.CurrentStep = session.StepDraftingMessage
	case intent.WantsAdvice:
		switch sess.CurrentStep {
		case session.StepPsychoeducation, session.StepEmpowerment,
			session.StepDraftingMessage, session.StepClosing:
			// Already at or past advice territory; leave it.
		default:
			sess.CurrentStep = session.StepPsychoeducation
		}
	case intent.EmotionalVenting:
		if sess.CurrentStep != session.StepValidationExploration {
			sess.CurrentStep = session.StepValidationExploration
		}
	}
}
