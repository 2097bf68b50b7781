// Package testutil provides test helpers: HTTP request and envelope helpers,
// a sqlmock backed database.DB and a disposable PostgreSQL container.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/docverify/docverify-backend/pkg/database"
	"github.com/docverify/docverify-backend/pkg/logger"
)

const postgresImage = "postgres:15-alpine"

// NewPostgresDB starts a throwaway PostgreSQL and returns a handle to it. The
// test is skipped under -short or when docker is unavailable, and the
// container is removed when the test ends.
func NewPostgresDB(t *testing.T) *database.DB {
	t.Helper()
	SkipIfShort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(postgresImage),
		postgres.WithDatabase("docverify_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	db := database.Wrap(conn, logger.Nop())
	t.Cleanup(func() { db.Close() })
	return db
}
