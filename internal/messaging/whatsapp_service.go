// Package messaging provides pluggable outbound message delivery for AllyBot.
//
// This file implements the Service interface on top of the Whatsmeow-based
// whatsapp client, feeding inbound text messages into the Responses channel.
package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/allyai/AllyBot/internal/models"
	"github.com/allyai/AllyBot/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// DefaultChannelTimeout bounds non-blocking channel sends for inbound events.
const DefaultChannelTimeout = 1 * time.Second

// WhatsAppService implements Service using the whatsmeow-based client.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // full client for event handling, nil when mocked
	responses chan models.Response
	stopOnce  sync.Once
}

// NewWhatsAppService creates a WhatsAppService wrapping the given sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:    client,
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}
	return service
}

// ValidateAndCanonicalizeRecipient applies the standard phone canonicalization.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start registers the inbound event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling")
		return nil
	}
	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// Stop closes the responses channel and disconnects the client.
func (s *WhatsAppService) Stop() error {
	s.stopOnce.Do(func() {
		if s.waClient != nil {
			s.waClient.Disconnect()
		}
		close(s.responses)
		slog.Info("WhatsAppService stopped")
	})
	return nil
}

// SendMessage sends a message through the whatsapp client.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

// Responses returns the channel of incoming user messages.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

// handleIncomingMessage extracts text content and forwards it without blocking.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var messageText string
	if evt.Message.Conversation != nil {
		messageText = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil {
		messageText = *evt.Message.ExtendedTextMessage.Text
	} else {
		// Skip non-text messages (images, audio, etc.)
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	response := models.Response{
		From: evt.Info.Sender.User,
		Body: messageText,
		Time: evt.Info.Timestamp.Unix(),
	}

	select {
	case s.responses <- response:
		slog.Debug("WhatsAppService incoming message forwarded", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", response.From)
	}
}
