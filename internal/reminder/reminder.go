// Package reminder sends the daily lesson nudge to users with a track in
// progress. It runs as a scheduled job; all failures are logged and the run
// continues with the remaining users.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/allyai/AllyBot/internal/content"
	"github.com/allyai/AllyBot/internal/models"
	"github.com/allyai/AllyBot/internal/store"
)

// sendTimeout bounds each outbound reminder send.
const sendTimeout = 30 * time.Second

// sender is the outbound surface the reminder needs.
type sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Reminder sends lesson nudges to in-progress track users.
type Reminder struct {
	st  store.Store
	msg sender
}

// New creates a Reminder.
func New(st store.Store, msg sender) *Reminder {
	return &Reminder{st: st, msg: msg}
}

// Run performs one reminder sweep: every user with an unfinished track gets
// a short nudge naming their track and current day.
func (r *Reminder) Run() {
	profiles, err := r.st.ListProfiles()
	if err != nil {
		slog.Error("Reminder failed to list profiles", "error", err)
		return
	}

	var sent int
	for _, p := range profiles {
		if !needsReminder(p) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := r.msg.SendMessage(ctx, p.PhoneNumber, reminderText(p))
		cancel()
		if err != nil {
			slog.Error("Reminder send failed", "to", p.PhoneNumber, "error", err)
			continue
		}
		sent++
		r.logEvent(p.PhoneNumber)
	}
	slog.Info("Reminder sweep complete", "profiles", len(profiles), "sent", sent)
}

// needsReminder reports whether the profile has a track with lessons left.
func needsReminder(p models.UserProfile) bool {
	return p.ChosenTrack != "" && p.CurrentDay >= 1 && p.CurrentDay <= content.TotalDays
}

// reminderText builds the nudge message for a profile.
func reminderText(p models.UserProfile) string {
	name := p.Name
	if name == "" {
		name = "hey you"
	}
	return fmt.Sprintf(
		"🔥 %s, your Day %d lesson in *%s* is waiting! Reply 3 from the main menu to keep your streak going 💛",
		name, p.CurrentDay, p.ChosenTrack)
}

func (r *Reminder) logEvent(phone string) {
	err := r.st.LogEvent(models.Event{
		UserID:    phone,
		EventType: "reminder_sent",
		Time:      time.Now(),
	})
	if err != nil {
		slog.Error("Reminder event logging failed", "to", phone, "error", err)
	}
}
