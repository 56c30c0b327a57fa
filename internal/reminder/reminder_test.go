package reminder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/allyai/AllyBot/internal/content"
	"github.com/allyai/AllyBot/internal/models"
	"github.com/allyai/AllyBot/internal/store"
)

type recordingSender struct {
	sent map[string]string
	err  error
}

func (r *recordingSender) SendMessage(ctx context.Context, to string, body string) error {
	if r.err != nil {
		return r.err
	}
	if r.sent == nil {
		r.sent = make(map[string]string)
	}
	r.sent[to] = body
	return nil
}

func seedProfile(t *testing.T, st store.Store, phone, name, track string, day int) {
	t.Helper()
	err := st.UpsertProfile(phone, models.ProfileUpdate{
		Name:        models.StringPtr(name),
		ChosenTrack: models.StringPtr(track),
		CurrentDay:  models.IntPtr(day),
	})
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func TestRunNudgesOnlyActiveTrackUsers(t *testing.T) {
	st := store.NewInMemoryStore()
	seedProfile(t, st, "15550000001", "Maya", "Building Confidence", 2)
	seedProfile(t, st, "15550000002", "Ana", "", 0)                                       // never started a track
	seedProfile(t, st, "15550000003", "Riley", "Recognizing Red Flags", content.TotalDays+1) // finished

	sender := &recordingSender{}
	New(st, sender).Run()

	if len(sender.sent) != 1 {
		t.Fatalf("sent to %d users, want 1: %v", len(sender.sent), sender.sent)
	}
	body, ok := sender.sent["15550000001"]
	if !ok {
		t.Fatal("active-track user did not get a reminder")
	}
	if !strings.Contains(body, "Maya") || !strings.Contains(body, "Day 2") || !strings.Contains(body, "Building Confidence") {
		t.Errorf("reminder body = %q", body)
	}

	events, _ := st.GetEvents()
	if len(events) != 1 || events[0].EventType != "reminder_sent" {
		t.Errorf("events = %+v", events)
	}
}

func TestRunToleratesSendFailures(t *testing.T) {
	st := store.NewInMemoryStore()
	seedProfile(t, st, "15550000001", "Maya", "Building Confidence", 1)

	sender := &recordingSender{err: errors.New("unreachable")}
	// Must not panic and must not log a reminder_sent event.
	New(st, sender).Run()

	events, _ := st.GetEvents()
	if len(events) != 0 {
		t.Errorf("failed send should not log an event, got %+v", events)
	}
}
