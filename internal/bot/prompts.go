// Package bot implements the AllyBot conversation state machine.
//
// This file holds the persona prompt, the step-aware prompt builder, the
// step successor table, and the relevance gate for open-ended coaching.
package bot

import (
	"fmt"
	"strings"

	"github.com/allyai/AllyBot/internal/session"
)

// SystemPrompt is the AllyAI persona instruction sent with every completion.
const SystemPrompt = `You are AllyAI — a warm, emotionally intelligent coach supporting girls aged 15–25
with relationships, confidence, and mental health.

Speak like a caring older sister or therapist-coach hybrid. Be warm, validating,
and empowering. Use short, natural messages — no lectures, no long paragraphs.

Always prioritize emotional safety and empowerment. Never sound robotic or formal.`

// minRelevantLength is the relevance gate: trimmed input must be longer than
// this to be treated as a real coaching message.
const minRelevantLength = 5

// isRelevant reports whether the text is non-trivial.
func isRelevant(text string) bool {
	return len(strings.TrimSpace(text)) > minRelevantLength
}

// stepSuccessor is the fixed step progression applied after every successful
// coaching reply. closing is terminal.
var stepSuccessor = map[session.Step]session.Step{
	session.StepValidationExploration: session.StepPsychoeducation,
	session.StepPsychoeducation:       session.StepEmpowerment,
	session.StepEmpowerment:           session.StepOfferMessageHelp,
	session.StepOfferMessageHelp:      session.StepClosing,
	session.StepDraftingMessage:       session.StepClosing,
	session.StepClosing:               session.StepClosing,
}

// nextStep returns the successor of a step, defaulting to closing for any
// unknown value.
func nextStep(step session.Step) session.Step {
	if next, ok := stepSuccessor[step]; ok {
		return next
	}
	return session.StepClosing
}

// buildStepPrompt composes the step-aware user prompt for the LLM.
func buildStepPrompt(step session.Step, scenario, userInput string) string {
	base := fmt.Sprintf(
		"You are AllyAI — a warm, emotionally intelligent coach speaking like a supportive big sister.\n\nSituation: %s\nUser said: %s\n\nTASK:\n",
		scenario, userInput,
	)

	switch step {
	case session.StepValidationExploration:
		return base +
			"- Validate the user's feelings warmly and naturally.\n" +
			"- Reflect the emotions you hear (without overanalyzing).\n" +
			"- Ask one short, caring follow-up question.\n" +
			"- Keep it short (2–4 sentences)."
	case session.StepPsychoeducation:
		return base +
			"- Gently explain a relatable emotional pattern linked to the user's situation (e.g., boundaries, attachment).\n" +
			"- Be non-academic, supportive, and easy to understand.\n" +
			"- End with one short follow-up question.\n" +
			"- Keep it brief (2–4 sentences)."
	case session.StepEmpowerment:
		return base +
			"- Affirm the user's worth and normalize their feelings.\n" +
			"- Offer a positive reframe or empowering thought.\n" +
			"- Invite gentle reflection (e.g., 'How does that feel to you?').\n" +
			"- Keep it short, tender, and motivating."
	case session.StepOfferMessageHelp, session.StepDraftingMessage:
		return base +
			"- Offer to help the user craft a short message, boundary, or plan.\n" +
			"- Be very practical, specific, and reassuring.\n" +
			"- Keep it concise."
	case session.StepClosing:
		return base +
			"- Thank the user warmly for opening up.\n" +
			"- Affirm their strength and any progress they've made.\n" +
			"- Close with a short encouragement to return anytime."
	default:
		return fmt.Sprintf("You are AllyAI — be warm, validating, and brief.\nRespond naturally to: %s", userInput)
	}
}
