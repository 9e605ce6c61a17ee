package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"conforma/internal/ncr/models"
	pgplatform "conforma/internal/platform/postgres"
	"conforma/pkg/domain"
	"conforma/pkg/platform/sentinel"
	txcontext "conforma/pkg/platform/tx"
)

// Schema creates the report table. The document is the source of truth;
// status, version, and created_at are denormalized for filtering, CAS, and
// ordering without unpacking JSONB.
const Schema = `
CREATE TABLE IF NOT EXISTS ncrs (
	id         uuid PRIMARY KEY,
	status     text NOT NULL,
	version    bigint NOT NULL,
	created_at timestamptz NOT NULL,
	doc        jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS ncrs_status_idx ON ncrs (status);
`

// PostgresStore persists reports as JSONB documents.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed report store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies the report schema.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply ncrs schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// execer routes statements through the ambient transaction when one is
// carried in ctx, so closure writes commit atomically with their pair.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, n *models.NCR) error {
	doc, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx,
		`INSERT INTO ncrs (id, status, version, created_at, doc) VALUES ($1, $2, $3, $4, $5)`,
		n.ID.String(), string(n.Status), n.Version, n.CreatedAt, doc)
	if err != nil {
		if pgplatform.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, ncrID domain.NCRID) (*models.NCR, error) {
	var doc []byte
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT doc FROM ncrs WHERE id = $1`, ncrID.String()).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find report by id: %w", err)
	}
	return unmarshalNCR(doc)
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.NCR, error) {
	query := `SELECT doc FROM ncrs`
	var args []any
	switch {
	case filter.Status != "":
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	case filter.OnBoard:
		query += ` WHERE status IN ('pending_disposition', 'in_review', 'closed')`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []*models.NCR
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		n, err := unmarshalNCR(doc)
		if err != nil {
			return nil, err
		}
		if filter.Matches(n) {
			out = append(out, n)
		}
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, n *models.NCR) error {
	next := n.Clone()
	next.Version++
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE ncrs SET status = $1, version = $2, doc = $3 WHERE id = $4 AND version = $5`,
		string(next.Status), next.Version, doc, n.ID.String(), n.Version)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if affected == 0 {
		return s.updateMissReason(ctx, n.ID)
	}
	n.Version = next.Version
	return nil
}

// updateMissReason distinguishes a vanished row from a version race.
func (s *PostgresStore) updateMissReason(ctx context.Context, ncrID domain.NCRID) error {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ncrs WHERE id = $1)`, ncrID.String()).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check report existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func unmarshalNCR(doc []byte) (*models.NCR, error) {
	var n models.NCR
	if err := json.Unmarshal(doc, &n); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &n, nil
}
