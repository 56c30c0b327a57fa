package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/allyai/AllyBot/internal/models"
)

// updateFields flattens the non-nil fields of a ProfileUpdate into parallel
// column-name and value slices, in a fixed order for stable SQL.
func updateFields(u models.ProfileUpdate) ([]string, []interface{}) {
	var cols []string
	var vals []interface{}
	if u.Name != nil {
		cols = append(cols, "name")
		vals = append(vals, *u.Name)
	}
	if u.ChosenTrack != nil {
		cols = append(cols, "chosen_track")
		vals = append(vals, *u.ChosenTrack)
	}
	if u.CurrentDay != nil {
		cols = append(cols, "current_day")
		vals = append(vals, *u.CurrentDay)
	}
	if u.Points != nil {
		cols = append(cols, "points")
		vals = append(vals, *u.Points)
	}
	if u.Streak != nil {
		cols = append(cols, "streak")
		vals = append(vals, *u.Streak)
	}
	if u.WaitingForAnswer != nil {
		cols = append(cols, "waiting_for_answer")
		vals = append(vals, *u.WaitingForAnswer)
	}
	return cols, vals
}

// marshalPayload converts an event payload map to its JSON column value.
// An empty payload is stored as NULL.
func marshalPayload(payload map[string]string) (interface{}, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return string(b), nil
}

// scanProfile scans a user_profiles row into a UserProfile.
func scanProfile(row *sql.Row) (*models.UserProfile, error) {
	var p models.UserProfile
	var name, chosenTrack sql.NullString
	var lastUpdated sql.NullTime
	err := row.Scan(&p.PhoneNumber, &name, &chosenTrack, &p.CurrentDay, &p.Points,
		&p.Streak, &p.WaitingForAnswer, &lastUpdated)
	if err != nil {
		return nil, err
	}
	p.Name = name.String
	p.ChosenTrack = chosenTrack.String
	if lastUpdated.Valid {
		p.LastUpdated = lastUpdated.Time
	}
	return &p, nil
}

// scanProfileRows scans one user_profiles row from a multi-row result set.
func scanProfileRows(rows *sql.Rows) (models.UserProfile, error) {
	var p models.UserProfile
	var name, chosenTrack sql.NullString
	var lastUpdated sql.NullTime
	err := rows.Scan(&p.PhoneNumber, &name, &chosenTrack, &p.CurrentDay, &p.Points,
		&p.Streak, &p.WaitingForAnswer, &lastUpdated)
	if err != nil {
		return p, fmt.Errorf("scan profile failed: %w", err)
	}
	p.Name = name.String
	p.ChosenTrack = chosenTrack.String
	if lastUpdated.Valid {
		p.LastUpdated = lastUpdated.Time
	}
	return p, nil
}

// scanEvent scans a usage_events row into an Event.
func scanEvent(rows *sql.Rows) (models.Event, error) {
	var e models.Event
	var payloadJSON sql.NullString
	var ts sql.NullTime
	if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &ts, &payloadJSON); err != nil {
		return e, fmt.Errorf("scan event failed: %w", err)
	}
	if ts.Valid {
		e.Time = ts.Time
	}
	if payloadJSON.Valid && payloadJSON.String != "" {
		e.Payload = make(map[string]string)
		if err := json.Unmarshal([]byte(payloadJSON.String), &e.Payload); err != nil {
			// Keep the event rather than failing the whole read.
			e.Payload = nil
		}
	}
	return e, nil
}
