package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NewOperationID returns an id grouping the events of one command run
func NewOperationID() string {
	return uuid.NewString()
}

// RecordEvent logs an operation against a dataset. An empty opID is
// replaced by a fresh one, which is returned.
func (d *DB) RecordEvent(opID, dataset, eventType, status string, errno int, details map[string]interface{}) (string, error) {
	if opID == "" {
		opID = NewOperationID()
	}

	var detailsJSON string
	if details != nil {
		b, err := json.Marshal(details)
		if err == nil {
			detailsJSON = string(b)
		}
	}

	_, err := d.conn.Exec(`
		INSERT INTO target_events (op_id, dataset, event_type, status, errno, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`, opID, dataset, eventType, status, errno, nullString(detailsJSON))

	if err != nil {
		return opID, fmt.Errorf("failed to record event: %w", err)
	}

	return opID, nil
}

// GetTargetEvents returns events for a specific dataset, newest first
func (d *DB) GetTargetEvents(dataset string, limit int) ([]*TargetEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.conn.Query(`
		SELECT id, op_id, dataset, event_type, status, errno, details, timestamp
		FROM target_events
		WHERE dataset = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, dataset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query target events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetOperationEvents returns the events of one operation in the order
// they were recorded
func (d *DB) GetOperationEvents(opID string) ([]*TargetEvent, error) {
	rows, err := d.conn.Query(`
		SELECT id, op_id, dataset, event_type, status, errno, details, timestamp
		FROM target_events
		WHERE op_id = ?
		ORDER BY id
	`, opID)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetRecentEvents returns the most recent events across all datasets
func (d *DB) GetRecentEvents(limit int) ([]*TargetEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.conn.Query(`
		SELECT id, op_id, dataset, event_type, status, errno, details, timestamp
		FROM target_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*TargetEvent, error) {
	var events []*TargetEvent
	for rows.Next() {
		var event TargetEvent
		var details sql.NullString

		err := rows.Scan(
			&event.ID, &event.OpID, &event.Dataset, &event.EventType,
			&event.Status, &event.Errno, &details, &event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Details = details.String
		events = append(events, &event)
	}

	return events, rows.Err()
}
