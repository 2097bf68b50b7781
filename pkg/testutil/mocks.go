package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/docverify/docverify-backend/pkg/database"
	"github.com/docverify/docverify-backend/pkg/logger"
)

// MockDB is a database.DB backed by sqlmock. Expectations are checked and
// the handle closed when the test ends.
type MockDB struct {
	sqlmock.Sqlmock
	DB *database.DB
}

// NewMockDB creates a mock database. Queries match when the expected SQL,
// with whitespace collapsed, is a substring of the executed SQL.
//
//	mockDB := testutil.NewMockDB(t)
//	mockDB.ExpectQuery("SELECT payload FROM verification_records").WillReturnRows(testutil.JSONRows(job))
//	store := storage.NewPostgresStore[domain.ProcessingJob](mockDB.DB, storage.KindJob)
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherFunc(containsSQL)))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	m := &MockDB{
		Sqlmock: mock,
		DB:      database.Wrap(sqlx.NewDb(conn, "postgres"), logger.Nop()),
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled mock expectations: %v", err)
		}
		m.DB.Close()
	})
	return m
}

func containsSQL(expected, actual string) error {
	want, got := collapse(expected), collapse(actual)
	if !strings.Contains(got, want) {
		return fmt.Errorf("query %q does not contain %q", got, want)
	}
	return nil
}

func collapse(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// JSONRows returns a single payload column with one JSON encoded row per value
func JSONRows(values ...any) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"payload"})
	for _, v := range values {
		payload, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("testutil: cannot encode row: %v", err))
		}
		rows.AddRow(payload)
	}
	return rows
}
