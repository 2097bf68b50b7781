package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/docverify/docverify-backend/pkg/database"
	"github.com/docverify/docverify-backend/pkg/errors"
)

// Migrations creates the table shared by all record kinds
var Migrations = []database.Migration{
	{
		Version: 1,
		Name:    "create_verification_records",
		SQL: `
CREATE TABLE IF NOT EXISTS verification_records (
	kind       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	payload    JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (kind, id)
)`,
	},
	{
		Version: 2,
		Name:    "index_verification_records_updated_at",
		SQL:     `CREATE INDEX IF NOT EXISTS idx_verification_records_updated_at ON verification_records (kind, updated_at)`,
	},
}

// Migrate brings the records schema up to date
func Migrate(ctx context.Context, db *database.DB) error {
	return db.Migrate(ctx, Migrations)
}

// PostgresStore keeps records of one kind as JSONB rows
type PostgresStore[T any] struct {
	db   *database.DB
	kind string
}

// NewPostgresStore creates a store for records of kind
func NewPostgresStore[T any](db *database.DB, kind string) *PostgresStore[T] {
	return &PostgresStore[T]{db: db, kind: kind}
}

// Get loads a record
func (s *PostgresStore[T]) Get(ctx context.Context, id string) (*T, error) {
	var payload []byte
	query := `SELECT payload FROM verification_records WHERE kind = $1 AND id = $2`
	if err := s.db.GetContext(ctx, &payload, query, s.kind, id); err != nil {
		return nil, s.mapError(err)
	}
	return s.decode(payload)
}

// Put inserts or replaces a record
func (s *PostgresStore[T]) Put(ctx context.Context, id string, value *T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.kind, err)
	}

	query := `
		INSERT INTO verification_records (kind, id, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, s.kind, id, payload); err != nil {
		return s.mapError(err)
	}
	return nil
}

// Update locks the row for the duration of fn
func (s *PostgresStore[T]) Update(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	var out *T
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var payload []byte
		query := `SELECT payload FROM verification_records WHERE kind = $1 AND id = $2 FOR UPDATE`
		if err := tx.GetContext(ctx, &payload, query, s.kind, id); err != nil {
			return s.mapError(err)
		}

		v, err := s.decode(payload)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}

		updated, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", s.kind, err)
		}
		query = `UPDATE verification_records SET payload = $3, updated_at = NOW() WHERE kind = $1 AND id = $2`
		if _, err := tx.ExecContext(ctx, query, s.kind, id, updated); err != nil {
			return s.mapError(err)
		}

		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a record
func (s *PostgresStore[T]) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM verification_records WHERE kind = $1 AND id = $2`
	res, err := s.db.ExecContext(ctx, query, s.kind, id)
	if err != nil {
		return s.mapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound(s.kind)
	}
	return nil
}

// Purge removes records of this kind last written before cutoff
func (s *PostgresStore[T]) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM verification_records WHERE kind = $1 AND updated_at < $2`
	res, err := s.db.ExecContext(ctx, query, s.kind, cutoff)
	if err != nil {
		return 0, s.mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PostgresStore[T]) decode(payload []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.kind, err)
	}
	return &v, nil
}

func (s *PostgresStore[T]) mapError(err error) error {
	if err == sql.ErrNoRows {
		return errors.NotFound(s.kind)
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}
