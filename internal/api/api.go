// Package api provides the HTTP layer and the main server wiring for AllyBot.
//
// It exposes the Twilio-style inbound webhook that drives the conversation
// state machine, plus health and admin endpoints. Run assembles the durable
// store, the GenAI client, the guardrail, the coach, and the configured
// messaging backend.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/allyai/AllyBot/internal/bot"
	"github.com/allyai/AllyBot/internal/genai"
	"github.com/allyai/AllyBot/internal/guardrail"
	"github.com/allyai/AllyBot/internal/messaging"
	"github.com/allyai/AllyBot/internal/reminder"
	"github.com/allyai/AllyBot/internal/scheduler"
	"github.com/allyai/AllyBot/internal/session"
	"github.com/allyai/AllyBot/internal/store"
	"github.com/allyai/AllyBot/internal/whatsapp"
)

// Default server configuration.
const (
	// DefaultAddr is the default API server listen address.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful HTTP shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Messaging backend selectors.
const (
	BackendTwilio   = "twilio"
	BackendWhatsApp = "whatsapp"
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr         string
	Backend      string
	ReminderCron string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithMessagingBackend selects the outbound channel ("twilio" or "whatsapp").
func WithMessagingBackend(backend string) Option {
	return func(o *Opts) { o.Backend = backend }
}

// WithDailyReminderCron enables the lesson reminder sweep on the given
// 5-field cron expression.
func WithDailyReminderCron(expr string) Option {
	return func(o *Opts) { o.ReminderCron = expr }
}

// Server bundles the HTTP handlers with their collaborators.
type Server struct {
	addr       string
	coach      *bot.Coach
	st         store.Store
	msgService messaging.Service
}

// NewServer creates a Server around already-constructed collaborators.
func NewServer(addr string, coach *bot.Coach, st store.Store, msgService messaging.Service) *Server {
	return &Server{addr: addr, coach: coach, st: st, msgService: msgService}
}

// Run assembles all modules from their options and serves until a
// termination signal arrives.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, waOpts []whatsapp.Option, twilioOpts []messaging.TwilioOption, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Backend == "" {
		cfg.Backend = os.Getenv("MESSAGING_BACKEND")
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendTwilio
	}
	slog.Debug("Server configuration resolved", "addr", cfg.Addr, "backend", cfg.Backend)

	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	gaClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize GenAI client: %w", err)
	}

	msgService, err := buildMessagingService(cfg.Backend, waOpts, twilioOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging service: %w", err)
	}

	if cfg.ReminderCron != "" {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		rem := reminder.New(st, msgService)
		if err := sched.AddJob(cfg.ReminderCron, rem.Run); err != nil {
			return fmt.Errorf("invalid reminder cron expression %q: %w", cfg.ReminderCron, err)
		}
		slog.Info("Daily lesson reminder scheduled", "cron", cfg.ReminderCron)
	}

	guard := guardrail.NewChecker(gaClient, msgService, st)
	coach := bot.NewCoach(session.NewInMemoryStore(), st, gaClient, guard)
	server := NewServer(cfg.Addr, coach, st, msgService)
	return server.Run()
}

// Run starts the messaging backend and the HTTP server, and blocks until a
// termination signal triggers graceful shutdown.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer func() {
		if err := s.msgService.Stop(); err != nil {
			slog.Error("Server failed to stop messaging service", "error", err)
		}
	}()

	// Direct-channel inbound messages bypass the webhook; feed them through
	// the same coach and reply on the same channel.
	go s.consumeResponses(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/bot", s.botHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/profiles", s.profilesHandler)
	mux.HandleFunc("/events/stats", s.eventsStatsHandler)

	httpServer := &http.Server{Addr: s.addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("AllyBot API running", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Server shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("Server stopped cleanly")
	return nil
}

// consumeResponses drains the messaging service's inbound channel, running
// each message through the coach and replying out-of-band.
func (s *Server) consumeResponses(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-s.msgService.Responses():
			if !ok {
				return
			}
			slog.Debug("Server inbound message from channel", "from", resp.From)
			reply := s.coach.Advance(ctx, resp.From, resp.Body)
			if err := s.msgService.SendMessage(ctx, resp.From, reply); err != nil {
				slog.Error("Server failed to send channel reply", "from", resp.From, "error", err)
			}
		}
	}
}

// buildStore selects the store backend from the configured DSN; no DSN means
// the in-memory store (tests and throwaway local runs).
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Warn("No database DSN configured, using in-memory store; profiles will not survive restarts")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		slog.Debug("Using PostgreSQL store")
		return store.NewPostgresStore(storeOpts...)
	}
	slog.Debug("Using SQLite store", "path", cfg.DSN)
	return store.NewSQLiteStore(storeOpts...)
}

// buildMessagingService constructs the outbound channel for the chosen
// backend.
func buildMessagingService(backend string, waOpts []whatsapp.Option, twilioOpts []messaging.TwilioOption) (messaging.Service, error) {
	switch backend {
	case BackendWhatsApp:
		waClient, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(waClient), nil
	case BackendTwilio:
		twClient, err := messaging.NewTwilioClient(twilioOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		return messaging.NewTwilioService(twClient), nil
	default:
		return nil, fmt.Errorf("unknown messaging backend %q (expected %q or %q)", backend, BackendTwilio, BackendWhatsApp)
	}
}
