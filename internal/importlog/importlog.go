// Package importlog records migration runs and the writes each run made.
package importlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/stonegoods/catmig/internal/db"
)

// Run kinds
const (
	KindMigrate = "migrate"
	KindRepair  = "repair-images"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Execer is satisfied by *sql.DB and *sql.Tx
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Event is one write made during a run
type Event struct {
	RunID        string
	ResourceType string
	Slug         string
	EventType    string
	Payload      *string
}

// Run is a recorded pipeline invocation
type Run struct {
	ID         string  `json:"id" yaml:"id"`
	Kind       string  `json:"kind" yaml:"kind"`
	Status     string  `json:"status" yaml:"status"`
	StartedAt  string  `json:"started_at" yaml:"started_at"`
	FinishedAt *string `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Summary    *string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Writer handles writing runs and events to the import log
type Writer struct {
	dialect db.Dialect
}

// NewWriter creates a new import log writer
func NewWriter(dialect db.Dialect) *Writer {
	return &Writer{dialect: dialect}
}

// StartRun records the start of a run and returns its id
func (w *Writer) StartRun(ctx context.Context, exec Execer, kind string) (string, error) {
	id := uuid.NewString()
	_, err := exec.ExecContext(ctx, w.dialect.Rebind(`INSERT INTO import_runs (id, kind, status) VALUES (?, ?, ?)`), id, kind, StatusRunning)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run finished and stores its summary as JSON
func (w *Writer) FinishRun(ctx context.Context, exec Execer, runID, status string, summary any) error {
	var summaryStr *string
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to marshal run summary: %w", err)
		}
		s := string(data)
		summaryStr = &s
	}

	_, err := exec.ExecContext(ctx, w.dialect.Rebind(`
		UPDATE import_runs SET status = ?, summary = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?
	`), status, summaryStr, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// LogEvent writes an event to the import log
func (w *Writer) LogEvent(ctx context.Context, exec Execer, event *Event) error {
	query := w.dialect.Rebind(`
		INSERT INTO import_log (run_id, resource_type, slug, event_type, payload)
		VALUES (?, ?, ?, ?, ?)
	`)
	if _, err := exec.ExecContext(ctx, query, event.RunID, event.ResourceType, event.Slug, event.EventType, event.Payload); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// LogCreated logs the creation of a category or product
func (w *Writer) LogCreated(ctx context.Context, exec Execer, runID, resourceType, slug string, fields map[string]any) error {
	return w.log(ctx, exec, runID, resourceType, slug, resourceType+".created", fields)
}

// LogUpdated logs an update; changes maps a field to its new value
func (w *Writer) LogUpdated(ctx context.Context, exec Execer, runID, resourceType, slug string, changes map[string]any) error {
	return w.log(ctx, exec, runID, resourceType, slug, resourceType+".updated", changes)
}

func (w *Writer) log(ctx context.Context, exec Execer, runID, resourceType, slug, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	payloadStr := string(data)
	return w.LogEvent(ctx, exec, &Event{
		RunID:        runID,
		ResourceType: resourceType,
		Slug:         slug,
		EventType:    eventType,
		Payload:      &payloadStr,
	})
}

// ListRuns returns the most recent runs, newest first
func ListRuns(ctx context.Context, database *db.DB, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := database.QueryContext(ctx, database.Dialect().Rebind(`
		SELECT id, kind, status, CAST(started_at AS TEXT), CAST(finished_at AS TEXT), summary
		FROM import_runs ORDER BY started_at DESC, id LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished, summary sql.NullString
		if err := rows.Scan(&r.ID, &r.Kind, &r.Status, &r.StartedAt, &finished, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = &finished.String
		}
		if summary.Valid {
			r.Summary = &summary.String
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountEvents returns the number of events logged for a run, by event type
func CountEvents(ctx context.Context, database *db.DB, runID string) (map[string]int, error) {
	rows, err := database.QueryContext(ctx, database.Dialect().Rebind(`
		SELECT event_type, COUNT(*) FROM import_log WHERE run_id = ? GROUP BY event_type
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var eventType string
		var n int
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[eventType] = n
	}
	return counts, rows.Err()
}
