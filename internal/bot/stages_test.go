package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/allyai/AllyBot/internal/content"
	"github.com/allyai/AllyBot/internal/models"
	"github.com/allyai/AllyBot/internal/session"
)

func trackProgressUpdate(track string, day, points int) models.ProfileUpdate {
	return models.ProfileUpdate{
		ChosenTrack: models.StringPtr(track),
		CurrentDay:  models.IntPtr(day),
		Points:      models.IntPtr(points),
	}
}

func TestTrackEntryWithoutProgressShowsMenu(t *testing.T) {
	c, sessions, _ := newTestCoach(&mockCompleter{reply: "ok"}, nil)
	sessions.Put(testUser, &session.Session{Stage: session.StageChoosePath})

	reply := c.Advance(context.Background(), testUser, "3")
	if !strings.Contains(reply, "What Would You Do?") {
		t.Errorf("track menu missing: %q", reply)
	}
	if sessions.Get(testUser).Stage != session.StageChooseTrack {
		t.Error("expected choose_track stage")
	}
}

func TestChooseTrackStartsDayOne(t *testing.T) {
	c, sessions, st := newTestCoach(&mockCompleter{reply: "ok"}, nil)
	sessions.Put(testUser, &session.Session{Stage: session.StageChooseTrack})

	reply := c.Advance(context.Background(), testUser, "1")
	if !strings.Contains(reply, "Building Confidence") || !strings.Contains(reply, "Day 1") {
		t.Errorf("track start reply = %q", reply)
	}
	p, _ := st.GetProfile(testUser)
	if p == nil || p.ChosenTrack != "Building Confidence" || p.CurrentDay != 1 || p.Points != 0 {
		t.Errorf("profile after track choice = %+v", p)
	}
	if sessions.Get(testUser).Stage != session.StageTrackActive {
		t.Error("expected track_active stage")
	}
}

func TestChooseTrackInvalidReprompts(t *testing.T) {
	c, sessions, st := newTestCoach(&mockCompleter{reply: "ok"}, nil)
	sessions.Put(testUser, &session.Session{Stage: session.StageChooseTrack})

	c.Advance(context.Background(), testUser, "7")
	if sessions.Get(testUser).Stage != session.StageChooseTrack {
		t.Error("invalid track choice advanced the stage")
	}
	if p, _ := st.GetProfile(testUser); p != nil && p.ChosenTrack != "" {
		t.Error("invalid choice wrote a track to the profile")
	}
}

func TestLessonAnswerAwardsPointsAndAdvancesDay(t *testing.T) {
	c, sessions, st := newTestCoach(&mockCompleter{reply: "ok"}, nil)
	sessions.Put(testUser, &session.Session{Stage: session.StageChooseTrack})
	c.Advance(context.Background(), testUser, "1")

	reply := c.Advance(context.Background(), testUser, "b")
	if !strings.Contains(reply, "Feedback") || !strings.Contains(reply, "Mini Lesson") || !strings.Contains(reply, "Challenge") {
		t.Errorf("lesson reply missing sections: %q", reply)
	}
	p, _ := st.GetProfile(testUser)
	if p.Points != content.PointsPerLesson {
		t.Errorf("points = %d, want %d", p.Points, content.PointsPerLesson)
	}
	if p.CurrentDay != 2 {
		t.Errorf("current day = %d, want 2", p.CurrentDay)
	}
	if sessions.Get(testUser).Stage != session.StageTrackProgressOptions {
		t.Error("expected track_progress_options after a mid-track lesson")
	}
}

func TestLessonInvalidChoiceReprompts(t *testing.T) {
	c, sessions, st := newTestCoach(&mockCompleter{reply: "ok"}, nil)
	sessions.Put(testUser, &session.Session{Stage: session.StageChooseTrack})
	c.Advance(context.Background(), testUser, "1")

	reply := c.Advance(context.Background(), testUser, "z")
	if !strings.Contains(reply, "A, B, or C") {
		t.Errorf("invalid lesson choice reply = %q", reply)
	}
	p, _ := st.GetProfile(testUser)
	if p.Points != 0 || p.CurrentDay != 1 {
		t.Errorf("invalid choice mutated progress: %+v", p)
	}
}

func TestTrackCompletion(t *testing.T) {
	c, sessions, st := newTestCoach(&mockCompleter{reply: "ok"}, nil)
	sessions.Put(testUser, &session.Session{Stage: session.StageChooseTrack})
	c.Advance(context.Background(), testUser, "1")

	var reply string
	for day := 1; day <= content.TotalDays; day++ {
		reply = c.Advance(context.Background(), testUser, "a")
		if day < content.TotalDays {
			next := c.Advance(context.Background(), testUser, "1")
			if !strings.Contains(next, "Day") {
				t.Fatalf("day %d continuation reply = %q", day, next)
			}
		}
	}
	if !strings.Contains(reply, "Congratulations") {
		t.Errorf("final lesson reply = %q", reply)
	}
	p, _ := st.GetProfile(testUser)
	if p.Points != content.TotalDays*content.PointsPerLesson {
		t.Errorf("final points = %d", p.Points)
	}
	if p.CurrentDay != content.TotalDays+1 {
		t.Errorf("final day = %d", p.CurrentDay)
	}
	if sessions.Get(testUser).Stage != session.StageChoosePath {
		t.Error("completion should return to choose_path")
	}
}

func TestCompletedTrackEntryShowsFinalScore(t *testing.T) {
	c, sessions, st := newTestCoach(&mockCompleter{reply: "ok"}, nil)
	st.UpsertProfile(testUser, trackProgressUpdate("Building Confidence", content.TotalDays+1, 40))
	sessions.Put(testUser, &session.Session{Stage: session.StageChoosePath})

	reply := c.Advance(context.Background(), testUser, "3")
	if !strings.Contains(reply, "already completed") || !strings.Contains(reply, "40 points") {
		t.Errorf("completed track reply = %q", reply)
	}
	if sessions.Get(testUser).Stage != session.StageChoosePath {
		t.Error("completed track should stay on the main menu")
	}
}

func TestInProgressTrackEntryOffersContinue(t *testing.T) {
	c, sessions, st := newTestCoach(&mockCompleter{reply: "ok"}, nil)
	st.UpsertProfile(testUser, trackProgressUpdate("Recognizing Red Flags", 2, 10))
	sessions.Put(testUser, &session.Session{Stage: session.StageChoosePath})

	reply := c.Advance(context.Background(), testUser, "3")
	if !strings.Contains(reply, "Day 2") || !strings.Contains(reply, "Recognizing Red Flags") {
		t.Errorf("in-progress track reply = %q", reply)
	}
	if sessions.Get(testUser).Stage != session.StageTrackProgressOptions {
		t.Error("expected track_progress_options stage")
	}

	back := c.Advance(context.Background(), testUser, "2")
	if !strings.Contains(back, "main menu") {
		t.Errorf("back-to-menu reply = %q", back)
	}
	if sessions.Get(testUser).Stage != session.StageChoosePath {
		t.Error("option 2 should return to choose_path")
	}
}
