// Package store provides durable storage backends for AllyBot.
//
// It persists user profiles and best-effort analytics events, with SQLite and
// PostgreSQL implementations plus an in-memory store for tests.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/allyai/AllyBot/internal/models"
)

// Store is the durable profile and analytics abstraction.
type Store interface {
	// GetProfile fetches a user profile by phone number, or nil if absent.
	GetProfile(phone string) (*models.UserProfile, error)
	// UpsertProfile inserts or partially updates a profile. Only non-nil
	// fields of the update are written; LastUpdated is always refreshed.
	UpsertProfile(phone string, update models.ProfileUpdate) error
	// ListProfiles returns all stored profiles, ordered by phone number.
	ListProfiles() ([]models.UserProfile, error)
	// LogEvent records an analytics event.
	LogEvent(event models.Event) error
	// GetEvents returns all recorded events.
	GetEvents() ([]models.Event, error)
	// Close releases underlying resources.
	Close() error
}

// Opts holds configuration options for store constructors.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store constructors.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL-shaped DSNs and "sqlite"
// otherwise (file paths are treated as SQLite databases).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a Store kept entirely in process memory, for tests and
// local development without a database.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.UserProfile
	events   []models.Event
	nextID   int64
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[string]*models.UserProfile), nextID: 1}
}

// GetProfile fetches a user profile by phone number, or nil if absent.
func (s *InMemoryStore) GetProfile(phone string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[phone]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

// UpsertProfile inserts or partially updates a profile.
func (s *InMemoryStore) UpsertProfile(phone string, update models.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[phone]
	if !ok {
		p = &models.UserProfile{PhoneNumber: phone}
		s.profiles[phone] = p
	}
	applyUpdate(p, update)
	p.LastUpdated = time.Now()
	return nil
}

// ListProfiles returns all stored profiles, ordered by phone number.
func (s *InMemoryStore) ListProfiles() ([]models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhoneNumber < out[j].PhoneNumber })
	return out, nil
}

// LogEvent records an analytics event.
func (s *InMemoryStore) LogEvent(event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = s.nextID
	s.nextID++
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	s.events = append(s.events, event)
	return nil
}

// GetEvents returns all recorded events in insertion order.
func (s *InMemoryStore) GetEvents() ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// applyUpdate copies the non-nil fields of an update onto a profile.
func applyUpdate(p *models.UserProfile, u models.ProfileUpdate) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.ChosenTrack != nil {
		p.ChosenTrack = *u.ChosenTrack
	}
	if u.CurrentDay != nil {
		p.CurrentDay = *u.CurrentDay
	}
	if u.Points != nil {
		p.Points = *u.Points
	}
	if u.Streak != nil {
		p.Streak = *u.Streak
	}
	if u.WaitingForAnswer != nil {
		p.WaitingForAnswer = *u.WaitingForAnswer
	}
}
