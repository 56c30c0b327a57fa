package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/allyai/AllyBot/internal/session"
)

func coachingSession(scenario string) *session.Session {
	return &session.Session{Stage: session.StageGPTMode, Scenario: scenario}
}

func TestCoachingRejectsTrivialInput(t *testing.T) {
	llm := &mockCompleter{reply: "warm reply"}
	c, sessions, _ := newTestCoach(llm, nil)
	sessions.Put(testUser, coachingSession("breakup"))

	for _, input := range []string{"", "   ", "ok", "12345"} {
		reply := c.Advance(context.Background(), testUser, input)
		if reply != needMoreReply {
			t.Errorf("input %q: got %q, want re-prompt", input, reply)
		}
	}
	if len(llm.prompts) != 0 {
		t.Error("trivial input must not reach the completion client")
	}
	if sessions.Get(testUser).CurrentStep != "" {
		t.Error("trivial input must not initialize step state")
	}
}

func TestCoachingStepProgression(t *testing.T) {
	llm := &mockCompleter{reply: "warm reply"}
	c, sessions, _ := newTestCoach(llm, nil)
	sessions.Put(testUser, coachingSession("breakup"))

	// Neutral inputs that trip no intent phrase list.
	wantSteps := []session.Step{
		session.StepPsychoeducation,
		session.StepEmpowerment,
		session.StepOfferMessageHelp,
		session.StepClosing,
		session.StepClosing, // terminal
	}
	for i, want := range wantSteps {
		reply := c.Advance(context.Background(), testUser, "we argued about the weekend again")
		if reply != "warm reply" {
			t.Fatalf("turn %d: reply = %q", i, reply)
		}
		if got := sessions.Get(testUser).CurrentStep; got != want {
			t.Errorf("turn %d: step = %q, want %q", i, got, want)
		}
	}
}

func TestCoachingBuildsStepPrompt(t *testing.T) {
	llm := &mockCompleter{reply: "warm reply"}
	c, sessions, _ := newTestCoach(llm, nil)
	sessions.Put(testUser, coachingSession("breakup"))

	c.Advance(context.Background(), testUser, "we argued about the weekend again")
	prompt := llm.lastPrompt()
	if !strings.Contains(prompt, "Situation: breakup") {
		t.Errorf("prompt missing scenario: %q", prompt)
	}
	if !strings.Contains(prompt, "Validate the user's feelings") {
		t.Errorf("first turn should use the validation directives: %q", prompt)
	}
}

func TestCoachingCompletionFailure(t *testing.T) {
	llm := &mockCompleter{err: errors.New("api down")}
	c, sessions, _ := newTestCoach(llm, nil)
	sessions.Put(testUser, coachingSession("breakup"))

	reply := c.Advance(context.Background(), testUser, "we argued about the weekend again")
	if reply != completionFailureReply {
		t.Errorf("reply = %q, want apology", reply)
	}
	sess := sessions.Get(testUser)
	if sess.CurrentStep != session.StepValidationExploration {
		t.Errorf("step advanced despite failure: %q", sess.CurrentStep)
	}
	if len(sess.History) != 0 {
		t.Error("history appended despite failure")
	}

	// Recovery: the next successful turn runs the same step.
	llm.err = nil
	llm.reply = "better now"
	if reply := c.Advance(context.Background(), testUser, "we argued about the weekend again"); reply != "better now" {
		t.Fatalf("recovery reply = %q", reply)
	}
	if got := sessions.Get(testUser).CurrentStep; got != session.StepPsychoeducation {
		t.Errorf("step after recovery = %q, want psychoeducation", got)
	}
}

func TestCoachingMessageHelpIntentForcesDrafting(t *testing.T) {
	llm := &mockCompleter{reply: "warm reply"}
	c, sessions, _ := newTestCoach(llm, nil)
	sessions.Put(testUser, coachingSession("breakup"))

	c.Advance(context.Background(), testUser, "can you help me write a message to him")
	prompt := llm.lastPrompt()
	if !strings.Contains(prompt, "craft a short message") {
		t.Errorf("drafting directives not used: %q", prompt)
	}
	sess := sessions.Get(testUser)
	// drafting_message advances to closing, and the latch is set.
	if sess.CurrentStep != session.StepClosing {
		t.Errorf("step = %q, want closing", sess.CurrentStep)
	}
	if !sess.FreeChatMode {
		t.Error("free chat latch not set after drafting step")
	}
}

func TestCoachingVentingIntentRewindsToValidation(t *testing.T) {
	llm := &mockCompleter{reply: "warm reply"}
	c, sessions, _ := newTestCoach(llm, nil)
	sess := coachingSession("breakup")
	sess.CurrentStep = session.StepEmpowerment
	sessions.Put(testUser, sess)

	c.Advance(context.Background(), testUser, "i feel like nobody listens to me")
	if !strings.Contains(llm.lastPrompt(), "Validate the user's feelings") {
		t.Errorf("venting should rewind to validation: %q", llm.lastPrompt())
	}
}

func TestCoachingAdviceIntentDoesNotRewindPastPsychoeducation(t *testing.T) {
	llm := &mockCompleter{reply: "warm reply"}
	c, sessions, _ := newTestCoach(llm, nil)
	sess := coachingSession("breakup")
	sess.CurrentStep = session.StepEmpowerment
	sessions.Put(testUser, sess)

	c.Advance(context.Background(), testUser, "what should i do about all this")
	// Empowerment is already past psychoeducation; no override applies.
	if !strings.Contains(llm.lastPrompt(), "Affirm the user's worth") {
		t.Errorf("advice intent should not rewind from empowerment: %q", llm.lastPrompt())
	}
}

func TestCoachingFreeChatSuppressesOverrides(t *testing.T) {
	llm := &mockCompleter{reply: "warm reply"}
	c, sessions, _ := newTestCoach(llm, nil)
	sess := coachingSession("breakup")
	sess.CurrentStep = session.StepClosing
	sess.FreeChatMode = true
	sessions.Put(testUser, sess)

	c.Advance(context.Background(), testUser, "i feel terrible about everything")
	got := sessions.Get(testUser)
	if got.CurrentStep != session.StepClosing {
		t.Errorf("free chat mode must suppress overrides, step = %q", got.CurrentStep)
	}
	if !got.FreeChatMode {
		t.Error("free chat latch must never revert")
	}
}

func TestCoachingCustomModeUsesInputAsScenario(t *testing.T) {
	llm := &mockCompleter{reply: "warm reply"}
	c, sessions, _ := newTestCoach(llm, nil)
	sessions.Put(testUser, &session.Session{Stage: session.StageGPTModeCustom})

	c.Advance(context.Background(), testUser, "my roommate keeps borrowing my things")
	if !strings.Contains(llm.lastPrompt(), "Situation: my roommate keeps borrowing my things") {
		t.Errorf("custom mode should use the input as scenario: %q", llm.lastPrompt())
	}
}

func TestCoachingAppendsHistoryAndLaunchesGuardrail(t *testing.T) {
	llm := &mockCompleter{reply: "warm reply"}
	guard := &mockGuard{}
	c, sessions, _ := newTestCoach(llm, guard)
	sessions.Put(testUser, coachingSession("breakup"))

	c.Advance(context.Background(), testUser, "we argued about the weekend again")

	sess := sessions.Get(testUser)
	if len(sess.History) != 1 || sess.History[0] != "User: we argued about the weekend again" {
		t.Errorf("history = %v", sess.History)
	}

	guard.mu.Lock()
	defer guard.mu.Unlock()
	if guard.launches != 1 {
		t.Fatalf("guardrail launches = %d, want 1", guard.launches)
	}
	if guard.latest != "we argued about the weekend again" {
		t.Errorf("guardrail latest = %q", guard.latest)
	}
	if len(guard.history) != 1 {
		t.Errorf("guardrail history = %v", guard.history)
	}
}

func TestCoachingNilGuardIsTolerated(t *testing.T) {
	llm := &mockCompleter{reply: "warm reply"}
	c, sessions, _ := newTestCoach(llm, nil)
	sessions.Put(testUser, coachingSession("breakup"))

	// Must not panic without a guardrail wired.
	if reply := c.Advance(context.Background(), testUser, "we argued about the weekend again"); reply != "warm reply" {
		t.Errorf("reply = %q", reply)
	}
}
