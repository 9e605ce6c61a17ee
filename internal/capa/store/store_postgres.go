package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"conforma/internal/capa/models"
	pgplatform "conforma/internal/platform/postgres"
	"conforma/pkg/domain"
	"conforma/pkg/platform/sentinel"
	txcontext "conforma/pkg/platform/tx"
)

// Schema creates the action table.
const Schema = `
CREATE TABLE IF NOT EXISTS capas (
	id         uuid PRIMARY KEY,
	status     text NOT NULL,
	version    bigint NOT NULL,
	created_at timestamptz NOT NULL,
	doc        jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS capas_status_idx ON capas (status);
`

// PostgresStore persists actions as JSONB documents.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed action store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies the action schema.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply capas schema: %w", err)
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

func (s *PostgresStore) Create(ctx context.Context, c *models.CAPA) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx,
		`INSERT INTO capas (id, status, version, created_at, doc) VALUES ($1, $2, $3, $4, $5)`,
		c.ID.String(), string(c.Status), c.Version, c.CreatedAt, doc)
	if err != nil {
		if pgplatform.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create action: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, capaID domain.CAPAID) (*models.CAPA, error) {
	var doc []byte
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT doc FROM capas WHERE id = $1`, capaID.String()).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find action by id: %w", err)
	}
	return unmarshalCAPA(doc)
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.CAPA, error) {
	query := `SELECT doc FROM capas`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []*models.CAPA
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		c, err := unmarshalCAPA(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, c *models.CAPA) error {
	next := c.Clone()
	next.Version++
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE capas SET status = $1, version = $2, doc = $3 WHERE id = $4 AND version = $5`,
		string(next.Status), next.Version, doc, c.ID.String(), c.Version)
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	if affected == 0 {
		return s.updateMissReason(ctx, c.ID)
	}
	c.Version = next.Version
	return nil
}

func (s *PostgresStore) updateMissReason(ctx context.Context, capaID domain.CAPAID) error {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM capas WHERE id = $1)`, capaID.String()).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check action existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func unmarshalCAPA(doc []byte) (*models.CAPA, error) {
	var c models.CAPA
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("unmarshal action: %w", err)
	}
	return &c, nil
}
