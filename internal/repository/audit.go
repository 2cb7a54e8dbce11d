// Package repository persists the facade audit journal in PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atinyakov/sharedpasswords/internal/models"
	"github.com/lib/pq"
)

// Listing bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// PostgresAuditRepository stores audit events in the audit_events table.
type PostgresAuditRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuditRepository creates a repository over db.
func NewPostgresAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{DB: db}
}

// Record inserts one event. Re-recording an ID is a no-op.
func (r *PostgresAuditRepository) Record(ctx context.Context, event models.AuditEvent) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO audit_events (id, operation, environment, code, subject, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, event.ID, event.Operation, event.Environment, event.Code, event.Subject, event.DurationMillis, event.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// ListRecent returns the newest events first. When operations is not empty
// only those operations are listed. A non-positive limit means
// DefaultListLimit; larger ones are capped at MaxListLimit.
func (r *PostgresAuditRepository) ListRecent(ctx context.Context, limit int, operations ...string) ([]models.AuditEvent, error) {
	limit = clampLimit(limit)

	var (
		rows *sql.Rows
		err  error
	)
	if len(operations) == 0 {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT id, operation, environment, code, subject, duration_ms, created_at
			FROM audit_events ORDER BY created_at DESC LIMIT $1
		`, limit)
	} else {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT id, operation, environment, code, subject, duration_ms, created_at
			FROM audit_events WHERE operation = ANY($1) ORDER BY created_at DESC LIMIT $2
		`, pq.Array(operations), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]models.AuditEvent, 0, limit)
	for rows.Next() {
		var ev models.AuditEvent
		if err := rows.Scan(&ev.ID, &ev.Operation, &ev.Environment, &ev.Code, &ev.Subject, &ev.DurationMillis, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// OutcomeCount is the number of calls of one operation that ended with one code.
type OutcomeCount struct {
	Operation string `json:"operation"`
	Code      string `json:"code"`
	Count     int64  `json:"count"`
}

// CountOutcomes groups events created at or after since by operation and code.
func (r *PostgresAuditRepository) CountOutcomes(ctx context.Context, since time.Time) ([]OutcomeCount, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT operation, code, COUNT(*) FROM audit_events
		WHERE created_at >= $1
		GROUP BY operation, code ORDER BY operation, code
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeCount
	for rows.Next() {
		var c OutcomeCount
		if err := rows.Scan(&c.Operation, &c.Code, &c.Count); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
