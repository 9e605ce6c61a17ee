package postgres

import (
	"context"
	"database/sql"
	"fmt"

	audit "conforma/pkg/platform/audit"
	txcontext "conforma/pkg/platform/tx"

	"github.com/google/uuid"
)

// Schema creates the trail table. Applied by EnsureSchema on startup and by
// integration tests against throwaway containers.
const Schema = `
CREATE TABLE IF NOT EXISTS quality_events (
	id          uuid PRIMARY KEY,
	seq         bigserial,
	category    text NOT NULL,
	occurred_at timestamptz NOT NULL,
	entity_type text NOT NULL,
	entity_id   text NOT NULL,
	number      text NOT NULL DEFAULT '',
	action      text NOT NULL,
	actor       text NOT NULL DEFAULT '',
	detail      text NOT NULL DEFAULT '',
	request_id  text NOT NULL DEFAULT '',
	client_ip   text NOT NULL DEFAULT '',
	user_agent  text NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS quality_events_entity_idx
	ON quality_events (entity_type, entity_id, occurred_at);
`

// Store implements audit.Store on the quality_events table. Appends join the
// ambient transaction when one is carried in ctx so the trail commits or rolls
// back with the record mutation that produced it.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL trail store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema applies the trail schema.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply quality_events schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes one trail event.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO quality_events (
			id, category, occurred_at, entity_type, entity_id, number,
			action, actor, detail, request_id, client_ip, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		string(event.Category),
		event.Timestamp,
		event.EntityType,
		event.EntityID,
		event.Number,
		event.Action,
		event.Actor,
		event.Detail,
		event.RequestID,
		event.ClientIP,
		event.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert quality event: %w", err)
	}
	return nil
}

// ListByEntity returns the trail for one record, oldest first. Events
// sharing a timestamp (one request emits several) read back in emit order
// via the insertion sequence.
func (s *Store) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Event, error) {
	query := `
		SELECT category, occurred_at, entity_type, entity_id, number,
		       action, actor, detail, request_id, client_ip, user_agent
		FROM quality_events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY occurred_at ASC, seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query quality events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT category, occurred_at, entity_type, entity_id, number,
		       action, actor, detail, request_id, client_ip, user_agent
		FROM quality_events
		ORDER BY occurred_at DESC, seq DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query quality events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var e audit.Event
		var category string
		if err := rows.Scan(
			&category,
			&e.Timestamp,
			&e.EntityType,
			&e.EntityID,
			&e.Number,
			&e.Action,
			&e.Actor,
			&e.Detail,
			&e.RequestID,
			&e.ClientIP,
			&e.UserAgent,
		); err != nil {
			return nil, fmt.Errorf("scan quality event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quality events: %w", err)
	}
	return events, nil
}
