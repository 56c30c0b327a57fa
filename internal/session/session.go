// Package session manages ephemeral per-user conversation state.
//
// Sessions live for the process lifetime and are reset only by the user's
// "restart" command. The Store interface allows the coach to be tested
// against the in-memory implementation and swapped for an external
// key-value backend later without touching the state machine.
package session

import (
	"log/slog"
	"sync"
)

// Stage is the coarse conversation phase a session is in.
type Stage string

const (
	StageIntro                Stage = "intro"
	StageChoosePath           Stage = "choose_path"
	StageChooseCategory       Stage = "choose_category"
	StageChooseScenario       Stage = "choose_scenario"
	StageAssessment           Stage = "assessment"
	StageChooseTrack          Stage = "choose_track"
	StageTrackProgressOptions Stage = "track_progress_options"
	StageTrackActive          Stage = "track_active"
	StageGPTMode              Stage = "gpt_mode"
	StageGPTModeCustom        Stage = "gpt_mode_custom"
)

// Step is the finer sub-phase within open-ended coaching.
type Step string

const (
	StepValidationExploration Step = "validation_exploration"
	StepPsychoeducation       Step = "psychoeducation"
	StepEmpowerment           Step = "empowerment"
	StepOfferMessageHelp      Step = "offer_message_help"
	StepDraftingMessage       Step = "drafting_message"
	StepClosing               Step = "closing"
)

// Session is the mutable conversation state for one user.
type Session struct {
	Stage           Stage
	Category        string
	Scenario        string
	ScenarioOptions []string
	CurrentStep     Step
	FreeChatMode    bool
	History         []string
}

// Store is the session storage abstraction.
type Store interface {
	// Get returns the session for a user, or nil if none exists.
	Get(userID string) *Session
	// Put stores (or replaces) the session for a user.
	Put(userID string, s *Session)
	// Delete removes the session for a user.
	Delete(userID string)
}

// InMemoryStore is a process-local Store guarded by a RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*Session)}
}

// Get returns the session for a user, or nil if none exists.
func (st *InMemoryStore) Get(userID string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[userID]
}

// Put stores (or replaces) the session for a user.
func (st *InMemoryStore) Put(userID string, s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[userID] = s
	slog.Debug("SessionStore Put", "userID", userID, "stage", s.Stage)
}

// Delete removes the session for a user.
func (st *InMemoryStore) Delete(userID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, userID)
	slog.Debug("SessionStore Delete", "userID", userID)
}
