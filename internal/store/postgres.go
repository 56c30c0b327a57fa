// Package store provides durable storage backends for AllyBot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	"github.com/allyai/AllyBot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// GetProfile fetches a user profile by phone number, or nil if absent.
func (s *PostgresStore) GetProfile(phone string) (*models.UserProfile, error) {
	row := s.db.QueryRow(`SELECT phone_number, name, chosen_track, current_day, points, streak, waiting_for_answer, last_updated
		FROM user_profiles WHERE phone_number = $1`, phone)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetProfile not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProfile failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to fetch profile for %s: %w", phone, err)
	}
	return p, nil
}

// UpsertProfile inserts or partially updates a profile. Only the provided
// fields are written; last_updated is refreshed on every call.
func (s *PostgresStore) UpsertProfile(phone string, update models.ProfileUpdate) error {
	cols, vals := updateFields(update)
	if len(cols) == 0 {
		return nil
	}
	// The provided fields ride along on the INSERT itself so a first write
	// keeps them; on conflict only those same columns are overwritten.
	insertCols := append([]string{"phone_number"}, cols...)
	marks := make([]string, len(insertCols))
	for i := range insertCols {
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		sets = append(sets, c+" = excluded."+c)
	}
	query := fmt.Sprintf(`INSERT INTO user_profiles (%s) VALUES (%s)
		ON CONFLICT (phone_number) DO UPDATE SET %s, last_updated = CURRENT_TIMESTAMP`,
		strings.Join(insertCols, ", "), strings.Join(marks, ", "), strings.Join(sets, ", "))

	args := append([]interface{}{phone}, vals...)
	if _, err := s.db.Exec(query, args...); err != nil {
		slog.Error("PostgresStore UpsertProfile failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to upsert profile for %s: %w", phone, err)
	}
	slog.Debug("PostgresStore UpsertProfile succeeded", "phone", phone, "fields", len(cols))
	return nil
}

// ListProfiles returns all stored profiles, ordered by phone number.
func (s *PostgresStore) ListProfiles() ([]models.UserProfile, error) {
	rows, err := s.db.Query(`SELECT phone_number, name, chosen_track, current_day, points, streak, waiting_for_answer, last_updated
		FROM user_profiles ORDER BY phone_number`)
	if err != nil {
		slog.Error("PostgresStore ListProfiles query failed", "error", err)
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.UserProfile
	for rows.Next() {
		p, err := scanProfileRows(rows)
		if err != nil {
			slog.Error("PostgresStore ListProfiles scan failed", "error", err)
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profile rows: %w", err)
	}
	return profiles, nil
}

// LogEvent records an analytics event.
func (s *PostgresStore) LogEvent(event models.Event) error {
	payload, err := marshalPayload(event.Payload)
	if err != nil {
		return err
	}
	ts := event.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err = s.db.Exec(`INSERT INTO usage_events (user_id, event_type, timestamp, payload) VALUES ($1, $2, $3, $4)`,
		event.UserID, event.EventType, ts, payload)
	if err != nil {
		slog.Error("PostgresStore LogEvent failed", "error", err, "userID", event.UserID, "type", event.EventType)
		return fmt.Errorf("failed to insert event for %s: %w", event.UserID, err)
	}
	slog.Debug("PostgresStore LogEvent succeeded", "userID", event.UserID, "type", event.EventType)
	return nil
}

// GetEvents returns all recorded events in insertion order.
func (s *PostgresStore) GetEvents() ([]models.Event, error) {
	rows, err := s.db.Query(`SELECT id, user_id, event_type, timestamp, payload FROM usage_events ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore GetEvents query failed", "error", err)
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			slog.Error("PostgresStore GetEvents scan failed", "error", err)
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetEvents rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}
	slog.Debug("PostgresStore GetEvents succeeded", "count", len(events))
	return events, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
