// Package models defines shared data structures for AllyBot.
//
// It contains durable profile types, analytics events, messaging primitives,
// and the standard API response envelope used by the HTTP layer.
package models

import "time"

// UserProfile is the durable per-user record, keyed by phone number.
type UserProfile struct {
	PhoneNumber      string    `json:"phone_number"`
	Name             string    `json:"name,omitempty"`
	ChosenTrack      string    `json:"chosen_track,omitempty"`
	CurrentDay       int       `json:"current_day"`
	Points           int       `json:"points"`
	Streak           int       `json:"streak"`
	WaitingForAnswer bool      `json:"waiting_for_answer"`
	LastUpdated      time.Time `json:"last_updated"`
}

// ProfileUpdate describes a partial update to a UserProfile.
// Nil fields are left untouched by the store; LastUpdated is always refreshed.
type ProfileUpdate struct {
	Name             *string
	ChosenTrack      *string
	CurrentDay       *int
	Points           *int
	Streak           *int
	WaitingForAnswer *bool
}

// IsEmpty reports whether the update carries no fields.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.ChosenTrack == nil && u.CurrentDay == nil &&
		u.Points == nil && u.Streak == nil && u.WaitingForAnswer == nil
}

// StringPtr returns a pointer to s, for building ProfileUpdate values.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to n, for building ProfileUpdate values.
func IntPtr(n int) *int { return &n }

// BoolPtr returns a pointer to b, for building ProfileUpdate values.
func BoolPtr(b bool) *bool { return &b }

// Event is a best-effort analytics record.
type Event struct {
	ID        int64             `json:"id,omitempty"`
	UserID    string            `json:"user_id"`
	EventType string            `json:"event_type"`
	Payload   map[string]string `json:"payload,omitempty"`
	Time      time.Time         `json:"time"`
}

// Response represents an incoming message from a user.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed.
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope for admin endpoints.
type APIResponse struct {
	Status  APIStatus   `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success builds an APIResponse for a successful request.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// Error builds an APIResponse for a failed request.
func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}
