package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"conforma/internal/mrb/models"
	pgplatform "conforma/internal/platform/postgres"
	"conforma/pkg/domain"
	"conforma/pkg/platform/sentinel"
	txcontext "conforma/pkg/platform/tx"
)

// Schema creates the board record table. source_ncr_id and deleted_at are
// denormalized so the closure fan-out and the board view never unpack JSONB.
const Schema = `
CREATE TABLE IF NOT EXISTS mrbs (
	id            uuid PRIMARY KEY,
	status        text NOT NULL,
	version       bigint NOT NULL,
	source_ncr_id uuid,
	created_at    timestamptz NOT NULL,
	deleted_at    timestamptz,
	doc           jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS mrbs_source_ncr_idx ON mrbs (source_ncr_id) WHERE deleted_at IS NULL;
`

// PostgresStore persists board records as JSONB documents.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed board record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies the board record schema.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply mrbs schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, m *models.MRB) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal board record: %w", err)
	}
	var sourceID any
	if m.SourceNCRID != nil {
		sourceID = m.SourceNCRID.String()
	}
	_, err = s.execer(ctx).ExecContext(ctx,
		`INSERT INTO mrbs (id, status, version, source_ncr_id, created_at, deleted_at, doc)
		 VALUES ($1, $2, $3, $4, $5, NULL, $6)`,
		m.ID.String(), string(m.Status), m.Version, sourceID, m.CreatedAt, doc)
	if err != nil {
		if pgplatform.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create board record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, mrbID domain.MRBID) (*models.MRB, error) {
	var doc []byte
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT doc FROM mrbs WHERE id = $1`, mrbID.String()).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find board record by id: %w", err)
	}
	return unmarshalMRB(doc)
}

func (s *PostgresStore) FindBySourceNCR(ctx context.Context, ncrID domain.NCRID) (*models.MRB, error) {
	var doc []byte
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT doc FROM mrbs WHERE source_ncr_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC LIMIT 1`, ncrID.String()).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find board record by source: %w", err)
	}
	return unmarshalMRB(doc)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.MRB, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT doc FROM mrbs WHERE deleted_at IS NULL ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list board records: %w", err)
	}
	defer rows.Close()

	var out []*models.MRB
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan board record: %w", err)
		}
		m, err := unmarshalMRB(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, m *models.MRB) error {
	next := m.Clone()
	next.Version++
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal board record: %w", err)
	}
	var deletedAt any
	if next.DeletedAt != nil {
		deletedAt = *next.DeletedAt
	}
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE mrbs SET status = $1, version = $2, deleted_at = $3, doc = $4
		 WHERE id = $5 AND version = $6`,
		string(next.Status), next.Version, deletedAt, doc, m.ID.String(), m.Version)
	if err != nil {
		return fmt.Errorf("update board record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update board record: %w", err)
	}
	if affected == 0 {
		return s.updateMissReason(ctx, m.ID)
	}
	m.Version = next.Version
	return nil
}

func (s *PostgresStore) updateMissReason(ctx context.Context, mrbID domain.MRBID) error {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM mrbs WHERE id = $1)`, mrbID.String()).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check board record existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func unmarshalMRB(doc []byte) (*models.MRB, error) {
	var m models.MRB
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("unmarshal board record: %w", err)
	}
	return &m, nil
}
