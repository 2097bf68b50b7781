package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/docverify/docverify-backend/pkg/config"
	"github.com/docverify/docverify-backend/pkg/logger"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
	pingTimeout     = time.Second
)

// DB is a pooled PostgreSQL handle
type DB struct {
	*sqlx.DB
	log *logger.Logger
}

// New opens the pool and waits for the server to answer a ping. A database
// container that is still starting gets a few attempts before New gives up.
func New(ctx context.Context, cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	conn, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	db := Wrap(conn, log)
	for attempt := 1; ; attempt++ {
		err = db.ping(ctx)
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			conn.Close()
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempt, err)
		}

		db.log.Warn().Err(err).Int("attempt", attempt).Msg("database not ready")
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}

	db.log.Info().Int("max_open_conns", cfg.MaxOpenConns).Msg("connected to database")
	return db, nil
}

// Wrap adopts an existing sqlx handle, used by tests with sqlmock or testcontainers
func Wrap(conn *sqlx.DB, log *logger.Logger) *DB {
	return &DB{DB: conn, log: log.WithComponent("database")}
}

func (db *DB) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

// Health reports reachability and pool usage for the health endpoint
func (db *DB) Health(ctx context.Context) map[string]string {
	stats := db.Stats()
	status := map[string]string{
		"status":           "up",
		"open_connections": strconv.Itoa(stats.OpenConnections),
		"in_use":           strconv.Itoa(stats.InUse),
		"idle":             strconv.Itoa(stats.Idle),
	}

	if err := db.ping(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}
	return status
}

// Transaction runs fn in a transaction. It rolls back when fn returns an
// error or panics, and commits otherwise.
func (db *DB) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			db.rollback(tx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		db.rollback(tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil {
		db.log.Error().Err(err).Msg("failed to rollback transaction")
	}
}
