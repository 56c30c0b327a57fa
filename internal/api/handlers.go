// Package api provides HTTP handlers for AllyBot endpoints.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/allyai/AllyBot/internal/models"
	"github.com/twilio/twilio-go/twiml"
)

// unknownSenderReply is returned when the webhook request carries no usable
// sender identifier. No session or profile state is touched.
const unknownSenderReply = "Hmm, I couldn't tell who this message came from. Please try again in a moment 💛"

// botHandler is the inbound Twilio webhook (POST /bot). It accepts the
// standard form-encoded From/Body pair and answers with a TwiML message
// envelope.
func (s *Server) botHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server botHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server botHandler method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server botHandler failed to parse form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid form data"))
		return
	}

	// Twilio sends "whatsapp:+15551234567"; canonicalization reduces it to
	// bare digits, which is the key used for sessions and profiles.
	from, err := s.msgService.ValidateAndCanonicalizeRecipient(r.FormValue("From"))
	if err != nil {
		slog.Warn("Server botHandler missing or invalid sender", "error", err)
		s.writeTwiML(w, unknownSenderReply)
		return
	}

	reply := s.coach.Advance(r.Context(), from, r.FormValue("Body"))
	slog.Debug("Server botHandler reply computed", "from", from, "reply_length", len(reply))
	s.writeTwiML(w, reply)
}

// writeTwiML renders a single-message TwiML response envelope.
func (s *Server) writeTwiML(w http.ResponseWriter, body string) {
	doc, err := twiml.Messages([]twiml.Element{&twiml.MessagingMessage{Body: body}})
	if err != nil {
		slog.Error("Server failed to render TwiML", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to render response"))
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	if _, err := w.Write([]byte(doc)); err != nil {
		slog.Error("Server failed to write TwiML response", "error", err)
	}
}

// healthHandler provides a health check endpoint (GET /health).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	// The event log doubles as a cheap database liveness probe.
	if _, err := s.st.GetEvents(); err != nil {
		slog.Warn("Health check store probe failed", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to reach store"
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}

// profilesHandler returns a user profile by phone number
// (GET /profiles?phone=...).
func (s *Server) profilesHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server profilesHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	phone, err := s.msgService.ValidateAndCanonicalizeRecipient(r.URL.Query().Get("phone"))
	if err != nil {
		slog.Warn("Server profilesHandler invalid phone", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	profile, err := s.st.GetProfile(phone)
	if err != nil {
		slog.Error("Server profilesHandler store error", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch profile"))
		return
	}
	if profile == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Profile not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(profile))
}

// eventsStatsHandler returns aggregate analytics (GET /events/stats).
func (s *Server) eventsStatsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server eventsStatsHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	events, err := s.st.GetEvents()
	if err != nil {
		slog.Error("Server eventsStatsHandler store error", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch events"))
		return
	}

	perType := make(map[string]int)
	users := make(map[string]struct{})
	for _, ev := range events {
		perType[ev.EventType]++
		users[ev.UserID] = struct{}{}
	}
	stats := map[string]interface{}{
		"total_events":    len(events),
		"events_per_type": perType,
		"unique_users":    len(users),
	}
	slog.Debug("Server event stats computed", "total_events", len(events), "unique_users", len(users))
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}
