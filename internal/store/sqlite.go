// Package store provides durable storage backends for AllyBot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/allyai/AllyBot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store. The DSN is a file path; the
// containing directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetProfile fetches a user profile by phone number, or nil if absent.
func (s *SQLiteStore) GetProfile(phone string) (*models.UserProfile, error) {
	row := s.db.QueryRow(`SELECT phone_number, name, chosen_track, current_day, points, streak, waiting_for_answer, last_updated
		FROM user_profiles WHERE phone_number = ?`, phone)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetProfile not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProfile failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to fetch profile for %s: %w", phone, err)
	}
	return p, nil
}

// UpsertProfile inserts or partially updates a profile. Only the provided
// fields are written; last_updated is refreshed on every call.
func (s *SQLiteStore) UpsertProfile(phone string, update models.ProfileUpdate) error {
	cols, vals := updateFields(update)
	if len(cols) == 0 {
		return nil
	}
	// The provided fields ride along on the INSERT itself so a first write
	// keeps them; on conflict only those same columns are overwritten.
	insertCols := append([]string{"phone_number"}, cols...)
	marks := make([]string, len(insertCols))
	for i := range insertCols {
		marks[i] = "?"
	}
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		sets = append(sets, c+" = excluded."+c)
	}
	query := fmt.Sprintf(`INSERT INTO user_profiles (%s) VALUES (%s)
		ON CONFLICT(phone_number) DO UPDATE SET %s, last_updated = CURRENT_TIMESTAMP`,
		strings.Join(insertCols, ", "), strings.Join(marks, ", "), strings.Join(sets, ", "))

	args := append([]interface{}{phone}, vals...)
	if _, err := s.db.Exec(query, args...); err != nil {
		slog.Error("SQLiteStore UpsertProfile failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to upsert profile for %s: %w", phone, err)
	}
	slog.Debug("SQLiteStore UpsertProfile succeeded", "phone", phone, "fields", len(cols))
	return nil
}

// ListProfiles returns all stored profiles, ordered by phone number.
func (s *SQLiteStore) ListProfiles() ([]models.UserProfile, error) {
	rows, err := s.db.Query(`SELECT phone_number, name, chosen_track, current_day, points, streak, waiting_for_answer, last_updated
		FROM user_profiles ORDER BY phone_number`)
	if err != nil {
		slog.Error("SQLiteStore ListProfiles query failed", "error", err)
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.UserProfile
	for rows.Next() {
		p, err := scanProfileRows(rows)
		if err != nil {
			slog.Error("SQLiteStore ListProfiles scan failed", "error", err)
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
func (s *SQLiteStore) LogEvent(event models.Event) error {
	payload, err := marshalPayload(event.Payload)
	if err != nil {
		return err
	}
	ts := event.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err = s.db.Exec(`INSERT INTO usage_events (user_id, event_type, timestamp, payload) VALUES (?, ?, ?, ?)`,
		event.UserID, event.EventType, ts, payload)
	if err != nil {
		slog.Error("SQLiteStore LogEvent failed", "error", err, "userID", event.UserID, "type", event.EventType)
		return fmt.Errorf("failed to insert event for %s: %w", event.UserID, err)
	}
	slog.Debug("SQLiteStore LogEvent succeeded", "userID", event.UserID, "type", event.EventType)
	return nil
}

// GetEvents returns all recorded events in insertion order.
func (s *SQLiteStore) GetEvents() ([]models.Event, error) {
	rows, err := s.db.Query(`SELECT id, user_id, event_type, timestamp, payload FROM usage_events ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore GetEvents query failed", "error", err)
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			slog.Error("SQLiteStore GetEvents scan failed", "error", err)
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetEvents rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}
	slog.Debug("SQLiteStore GetEvents succeeded", "count", len(events))
	return events, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
