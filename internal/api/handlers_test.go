package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/allyai/AllyBot/internal/bot"
	"github.com/allyai/AllyBot/internal/messaging"
	"github.com/allyai/AllyBot/internal/models"
	"github.com/allyai/AllyBot/internal/session"
	"github.com/allyai/AllyBot/internal/store"
)

// stubCompleter satisfies the coach's completion dependency.
type stubCompleter struct{ reply string }

func (s *stubCompleter) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.reply, nil
}

func newTestServer() (*Server, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	coach := bot.NewCoach(session.NewInMemoryStore(), st, &stubCompleter{reply: "ok"}, nil)
	return NewServer(":0", coach, st, messaging.NewMockService()), st
}

func postWebhook(s *Server, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/bot", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.botHandler(w, req)
	return w
}

func TestBotHandlerRepliesWithTwiML(t *testing.T) {
	s, _ := newTestServer()

	w := postWebhook(s, url.Values{
		"From": {"whatsapp:+15551234567"},
		"Body": {"hello"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("Content-Type = %q, want text/xml", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Message>") {
		t.Errorf("response is not a TwiML message envelope: %q", body)
	}
	if !strings.Contains(body, "What&#39;s your name?") && !strings.Contains(body, "What's your name?") {
		t.Errorf("first-contact greeting missing from TwiML: %q", body)
	}
}

func TestBotHandlerMissingSender(t *testing.T) {
	s, st := newTestServer()

	w := postWebhook(s, url.Values{"Body": {"hello"}})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "couldn") {
		t.Errorf("expected explanatory reply, got %q", w.Body.String())
	}
	events, _ := st.GetEvents()
	if len(events) != 0 {
		t.Errorf("missing sender must not touch the store, got %d events", len(events))
	}
}

func TestBotHandlerMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/bot", nil)
	w := httptest.NewRecorder()
	s.botHandler(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var health map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("status field = %v", health["status"])
	}
}

func TestProfilesHandler(t *testing.T) {
	s, st := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/profiles?phone=15551234567", nil)
	w := httptest.NewRecorder()
	s.profilesHandler(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown profile status = %d, want 404", w.Code)
	}

	st.UpsertProfile("15551234567", models.ProfileUpdate{Name: models.StringPtr("Maya")})
	w = httptest.NewRecorder()
	s.profilesHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Status != models.APIStatusOK {
		t.Errorf("envelope status = %q", resp.Status)
	}
	if !strings.Contains(w.Body.String(), "Maya") {
		t.Errorf("profile payload missing name: %q", w.Body.String())
	}
}

func TestProfilesHandlerInvalidPhone(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/profiles?phone=abc", nil)
	w := httptest.NewRecorder()
	s.profilesHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestEventsStatsHandler(t *testing.T) {
	s, st := newTestServer()
	st.LogEvent(models.Event{UserID: "u1", EventType: "message_received", Time: time.Now()})
	st.LogEvent(models.Event{UserID: "u1", EventType: "message_received", Time: time.Now()})
	st.LogEvent(models.Event{UserID: "u2", EventType: "track_chosen", Time: time.Now()})

	req := httptest.NewRequest(http.MethodGet, "/events/stats", nil)
	w := httptest.NewRecorder()
	s.eventsStatsHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Status string `json:"status"`
		Result struct {
			TotalEvents   int            `json:"total_events"`
			EventsPerType map[string]int `json:"events_per_type"`
			UniqueUsers   int            `json:"unique_users"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Result.TotalEvents != 3 || resp.Result.UniqueUsers != 2 {
		t.Errorf("stats = %+v", resp.Result)
	}
	if resp.Result.EventsPerType["message_received"] != 2 {
		t.Errorf("per-type counts = %v", resp.Result.EventsPerType)
	}
}

func TestBuildMessagingServiceUnknownBackend(t *testing.T) {
	if _, err := buildMessagingService("carrier-pigeon", nil, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestBuildStoreDefaultsToInMemory(t *testing.T) {
	st, err := buildStore(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := st.(*store.InMemoryStore); !ok {
		t.Errorf("expected in-memory store, got %T", st)
	}
}
