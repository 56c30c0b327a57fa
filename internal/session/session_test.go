package session

import "testing"

func TestInMemoryStoreLifecycle(t *testing.T) {
	st := NewInMemoryStore()
	if got := st.Get("u1"); got != nil {
		t.Errorf("expected nil for unknown user, got %+v", got)
	}

	s := &Session{Stage: StageIntro}
	st.Put("u1", s)
	if got := st.Get("u1"); got != s {
		t.Error("Get did not return the stored session")
	}

	replacement := &Session{Stage: StageChoosePath}
	st.Put("u1", replacement)
	if got := st.Get("u1"); got != replacement {
		t.Error("Put did not replace the existing session")
	}

	st.Delete("u1")
	if got := st.Get("u1"); got != nil {
		t.Error("session survived Delete")
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	st := NewInMemoryStore()
	st.Put("u1", &Session{Stage: StageGPTMode, Scenario: "a"})
	st.Put("u2", &Session{Stage: StageAssessment})

	if got := st.Get("u1"); got.Stage != StageGPTMode || got.Scenario != "a" {
		t.Errorf("u1 session corrupted: %+v", got)
	}
	if got := st.Get("u2"); got.Stage != StageAssessment {
		t.Errorf("u2 session corrupted: %+v", got)
	}
}
