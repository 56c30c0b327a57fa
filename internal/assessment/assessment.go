// Package assessment implements the relationship-style self-assessment.
//
// It holds the fixed question battery, per-user answer sessions, dimension
// scoring, identity assignment, and the final feedback text.
package assessment

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Question is one multiple-choice item in the battery. Options and Scores
// share the same key set (a-d). The catalog is read-only static data.
type Question struct {
	ID        int
	Text      string
	Dimension string
	Options   map[string]string
	Scores    map[string]int
}

// Answer records the scored result of a single answered question.
type Answer struct {
	Dimension string `json:"dimension"`
	Score     int    `json:"score"`
}

// Session tracks a user's progress through the battery.
type Session struct {
	CurrentQ int
	Answers  []Answer
}

// optionLetters fixes the rendering and scoring order of choices.
var optionLetters = []string{"a", "b", "c", "d"}

// Questions is the fixed battery, one question per dimension.
var Questions = []Question{
	{
		ID:        1,
		Text:      "You just got invited to speak briefly at your school or group meeting about a topic you're passionate about. What's your first reaction?",
		Dimension: "Confidence",
		Options: map[string]string{
			"a": "I'm not good at public speaking. I'll just pass.",
			"b": "I could do it if I have time to prepare, but I'm not sure I'll be taken seriously.",
			"c": "I'll try! Even if it's not perfect, it's a good learning experience.",
			"d": "Absolutely! I love speaking up and sharing my thoughts.",
		},
		Scores: map[string]int{"a": 1, "b": 2, "c": 3, "d": 4},
	},
	{
		ID:        2,
		Text:      "Your friend is upset because she feels left out after you spent more time with another group. She brings it up to you. How do you respond?",
		Dimension: "Empathy",
		Options: map[string]string{
			"a": "Ugh, I didn't do anything wrong — she's overreacting.",
			"b": "I say sorry quickly, just to end the drama.",
			"c": "I try to understand where she's coming from and talk it through.",
			"d": "I ask her more about how she feels and tell her I want us both to feel included.",
		},
		Scores: map[string]int{"a": 1, "b": 2, "c": 3, "d": 4},
	},
	{
		ID:        3,
		Text:      "After a fight with someone close to you, how do you usually reflect on it?",
		Dimension: "Self-Awareness",
		Options: map[string]string{
			"a": "I don't really think about it — I move on fast.",
			"b": "I overthink it for days and wonder what they must think of me.",
			"c": "I try to look at what triggered me and how I reacted.",
			"d": "I notice my emotions, patterns, and talk to someone to get perspective.",
		},
		Scores: map[string]int{"a": 1, "b": 2, "c": 3, "d": 4},
	},
	{
		ID:        4,
		Text:      "You're dating someone who often makes jokes at your expense in front of others. How do you respond?",
		Dimension: "Self-Respect",
		Options: map[string]string{
			"a": "It's not a big deal — I laugh along to keep things cool.",
			"b": "It hurts, but I stay quiet and try to ignore it.",
			"c": "I bring it up later and say it made me uncomfortable.",
			"d": "I call it out calmly in the moment and let them know it's not okay.",
		},
		Scores: map[string]int{"a": 1, "b": 2, "c": 3, "d": 4},
	},
	{
		ID:        5,
		Text:      "A classmate or coworker takes credit for your idea in a group project. What do you do?",
		Dimension: "Communication",
		Options: map[string]string{
			"a": "I keep quiet — I don't want to seem rude or jealous.",
			"b": "I hint that it was actually my idea, hoping others notice.",
			"c": "I talk to them one-on-one and explain how it made me feel.",
			"d": "I address it respectfully in front of the group to clarify.",
		},
		Scores: map[string]int{"a": 1, "b": 2, "c": 3, "d": 4},
	},
	{
		ID:        6,
		Text:      "A friend constantly calls late at night to vent, even when you've told them you're tired or studying. What do you do?",
		Dimension: "Boundary-Setting",
		Options: map[string]string{
			"a": "I always pick up — they need me.",
			"b": "I ignore the call but feel guilty after.",
			"c": "I let them know I care, but can't talk at night anymore.",
			"d": "I set a firm boundary and suggest specific times to talk instead.",
		},
		Scores: map[string]int{"a": 1, "b": 2, "c": 3, "d": 4},
	},
}

// NextQuestion formats the current question with lettered options, or returns
// ok=false when the battery is exhausted.
func NextQuestion(s *Session) (string, bool) {
	return nextQuestion(s, Questions)
}

func nextQuestion(s *Session, qs []Question) (string, bool) {
	if s.CurrentQ >= len(qs) {
		return "", false
	}
	q := qs[s.CurrentQ]
	var b strings.Builder
	b.WriteString(q.Text)
	b.WriteString("\n")
	for _, letter := range optionLetters {
		text, ok := q.Options[letter]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s. %s", strings.ToUpper(letter), text)
	}
	return b.String(), true
}

// RecordAnswer scores the raw answer against the current question and advances
// the session. The letter match is case-insensitive and uses only the first
// character of the trimmed input; unrecognized letters score 0.
func RecordAnswer(s *Session, raw string) {
	recordAnswer(s, raw, Questions)
}

func recordAnswer(s *Session, raw string, qs []Question) {
	if s.CurrentQ >= len(qs) {
		slog.Warn("assessment.RecordAnswer called past end of battery", "currentQ", s.CurrentQ)
		return
	}
	q := qs[s.CurrentQ]
	letter := strings.TrimSpace(strings.ToLower(raw))
	if len(letter) > 1 {
		letter = letter[:1]
	}
	score := q.Scores[letter] // 0 for unrecognized letters
	s.Answers = append(s.Answers, Answer{Dimension: q.Dimension, Score: score})
	s.CurrentQ++
}

// AggregateScores sums recorded answers per dimension.
func AggregateScores(answers []Answer) map[string]int {
	scores := make(map[string]int)
	for _, a := range answers {
		scores[a.Dimension] += a.Score
	}
	return scores
}

// identityPair is an unordered dimension pair used as an identity table key.
type identityPair struct{ a, b string }

func pairOf(x, y string) identityPair {
	if x > y {
		x, y = y, x
	}
	return identityPair{a: x, b: y}
}

// DefaultIdentity is returned when the top-two pair has no defined identity
// or no answers were recorded.
const DefaultIdentity = "👑 The Growth Queen\nYou're on a beautiful path of self-discovery — keep showing up!"

var identityTable = map[identityPair]string{
	pairOf("Confidence", "Communication"):      "👑 The Empowered Queen\nYou own your voice and lead with unapologetic strength.",
	pairOf("Self-Awareness", "Empathy"):        "🪞 The Healer Oracle\nYour empathy is matched by deep inner wisdom.",
	pairOf("Boundary-Setting", "Self-Respect"): "🛡️ The Guardian Queen\nYou defend your peace with grace and clarity.",
}

// AssignIdentity picks an identity label from the two highest-scoring
// dimensions. Ties are broken by dimension name for determinism.
func AssignIdentity(scores map[string]int) string {
	if len(scores) < 2 {
		return DefaultIdentity
	}
	dims := make([]string, 0, len(scores))
	for d := range scores {
		dims = append(dims, d)
	}
	sort.Slice(dims, func(i, j int) bool {
		if scores[dims[i]] != scores[dims[j]] {
			return scores[dims[i]] > scores[dims[j]]
		}
		return dims[i] < dims[j]
	})
	if identity, ok := identityTable[pairOf(dims[0], dims[1])]; ok {
		return identity
	}
	return DefaultIdentity
}

// Feedback renders the final profile text: identity, per-dimension percent
// bars, the strongest dimension, and the growth area. The score*25 scaling
// assumes each dimension is answered exactly once with a 1-4 score, which
// holds for the current catalog.
func Feedback(scores map[string]int, identity string) string {
	if len(scores) == 0 {
		return "Let's try the assessment again — I didn't catch any answers yet."
	}

	dims := make([]string, 0, len(scores))
	for d := range scores {
		dims = append(dims, d)
	}
	sort.Strings(dims)

	var bars strings.Builder
	strongest, weakest := dims[0], dims[0]
	for i, d := range dims {
		if i > 0 {
			bars.WriteString("\n")
		}
		fmt.Fprintf(&bars, "%s: %d%%", d, scores[d]*25)
		if scores[d] > scores[strongest] {
			strongest = d
		}
		if scores[d] < scores[weakest] {
			weakest = d
		}
	}

	return fmt.Sprintf(
		"🌟 Your AllyAI Identity:\n%s\n\nHere's your growth profile:\n%s\n\nYour current strength is *%s*.\nWe'll also build your *%s* — that's how you become unstoppable 💫",
		identity, bars.String(), strongest, weakest,
	)
}

// SessionStore keeps in-flight assessment sessions keyed by user ID.
// Sessions are created when the user picks the assessment path and removed
// as soon as the final question is answered.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Begin creates (or replaces) a session for the user and returns it.
func (st *SessionStore) Begin(userID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := &Session{}
	st.sessions[userID] = s
	return s
}

// Get returns the user's session, if any.
func (st *SessionStore) Get(userID string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[userID]
	return s, ok
}

// Delete removes the user's session.
func (st *SessionStore) Delete(userID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, userID)
}
