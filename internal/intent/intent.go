// Package intent provides keyword-based intent detection for coaching input.
//
// Detection is a deterministic, order-sensitive substring check. It is
// deliberately not an ML classifier: behavior must stay testable and stable.
package intent

import "strings"

// Intent is the detected purpose of a free-text coaching message.
type Intent string

const (
	// WantsMessageHelp means the user asked for help drafting a message.
	WantsMessageHelp Intent = "wants_message_help"
	// WantsAdvice means the user asked what to do.
	WantsAdvice Intent = "wants_advice"
	// EmotionalVenting means the user is expressing feelings.
	EmotionalVenting Intent = "emotional_venting"
	// Normal means no special intent was detected.
	Normal Intent = "normal"
)

// Phrase lists are checked in precedence order: message help wins over
// advice, advice over venting. First match decides.
var (
	messageHelpPhrases = []string{
		"help me", "craft a message", "write a message",
		"what should i say", "how should i say it", "can you write",
	}
	advicePhrases = []string{
		"advice", "what should i do", "what would you do", "can you advise",
	}
	ventingPhrases = []string{
		"i feel", "it hurts", "i'm sad", "i am sad", "i'm mad", "i am mad",
		"i'm confused", "i am confused", "i'm upset", "i am upset",
	}
)

// Detect classifies the input into one of the four intents.
func Detect(text string) Intent {
	t := strings.ToLower(text)
	if containsAny(t, messageHelpPhrases) {
		return WantsMessageHelp
	}
	if containsAny(t, advicePhrases) {
		return WantsAdvice
	}
	if containsAny(t, ventingPhrases) {
		return EmotionalVenting
	}
	return Normal
}

func containsAny(t string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}
