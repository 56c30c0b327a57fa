// Package messaging provides pluggable outbound message delivery for AllyBot.
//
// The webhook reply path returns text synchronously; this package covers
// everything sent out-of-band: guardrail alerts and replies on the direct
// WhatsApp channel.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/allyai/AllyBot/internal/models"
)

// DefaultChannelBufferSize defines the buffer size for the responses channel.
const DefaultChannelBufferSize = 100

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service is stopped")

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier, returning the canonical form.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g. inbound event handling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming user messages. Services
	// without a live inbound channel never deliver on it.
	Responses() <-chan models.Response
}

// CanonicalizePhone strips non-digit characters and validates the result.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	if canonical != recipient {
		slog.Debug("Messaging canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// MockService is a Service for tests that records sent messages.
type MockService struct {
	mu        sync.Mutex
	Sent      []models.Response
	SendErr   error
	responses chan models.Response
}

// NewMockService creates a MockService.
func NewMockService() *MockService {
	return &MockService{responses: make(chan models.Response, DefaultChannelBufferSize)}
}

// ValidateAndCanonicalizeRecipient applies the standard phone canonicalization.
func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// SendMessage records the message, or fails with the configured error.
func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, models.Response{From: to, Body: body})
	return nil
}

// SentMessages returns a copy of all recorded messages.
func (m *MockService) SentMessages() []models.Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Response, len(m.Sent))
	copy(out, m.Sent)
	return out
}

// Start is a no-op for the mock.
func (m *MockService) Start(ctx context.Context) error { return nil }

// Stop is a no-op for the mock.
func (m *MockService) Stop() error { return nil }

// Responses returns the mock inbound channel; tests may feed it directly.
func (m *MockService) Responses() <-chan models.Response { return m.responses }

// Inject places an inbound response on the mock channel.
func (m *MockService) Inject(r models.Response) { m.responses <- r }
