package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/internal/verification/storage"
	"github.com/docverify/docverify-backend/pkg/errors"
	"github.com/docverify/docverify-backend/pkg/testutil"
)

func newMockStore(t *testing.T) (*testutil.MockDB, *storage.PostgresStore[domain.ProcessingJob]) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	return mockDB, storage.NewPostgresStore[domain.ProcessingJob](mockDB.DB, storage.KindJob)
}

func TestPostgresStore_Get(t *testing.T) {
	mockDB, store := newMockStore(t)

	mockDB.ExpectQuery("SELECT payload FROM verification_records WHERE kind = $1 AND id = $2").
		WithArgs(storage.KindJob, "j1").
		WillReturnRows(testutil.JSONRows(domain.ProcessingJob{JobID: "j1", DocumentID: "d1", Status: domain.StatusProcessing, Progress: 25}))

	job, err := store.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "d1", job.DocumentID)
	assert.Equal(t, 25, job.Progress)
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	mockDB, store := newMockStore(t)

	mockDB.ExpectQuery("SELECT payload FROM verification_records").
		WithArgs(storage.KindJob, "missing").
		WillReturnRows(testutil.JSONRows())

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestPostgresStore_Put(t *testing.T) {
	mockDB, store := newMockStore(t)

	mockDB.ExpectExec("INSERT INTO verification_records (kind, id, payload)").
		WithArgs(storage.KindJob, "j1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Put(context.Background(), "j1", &domain.ProcessingJob{JobID: "j1"})
	require.NoError(t, err)
}

func TestPostgresStore_UpdateLocksRow(t *testing.T) {
	mockDB, store := newMockStore(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT payload FROM verification_records WHERE kind = $1 AND id = $2 FOR UPDATE").
		WithArgs(storage.KindJob, "j1").
		WillReturnRows(testutil.JSONRows(domain.ProcessingJob{JobID: "j1", Progress: 25}))
	mockDB.ExpectExec("UPDATE verification_records SET payload = $3").
		WithArgs(storage.KindJob, "j1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	job, err := store.Update(context.Background(), "j1", func(j *domain.ProcessingJob) error {
		j.Progress = 50
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 50, job.Progress)
}

func TestPostgresStore_UpdateRollsBackOnError(t *testing.T) {
	mockDB, store := newMockStore(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("FOR UPDATE").
		WithArgs(storage.KindJob, "j1").
		WillReturnRows(testutil.JSONRows(domain.ProcessingJob{JobID: "j1"}))
	mockDB.ExpectRollback()

	_, err := store.Update(context.Background(), "j1", func(*domain.ProcessingJob) error {
		return fmt.Errorf("not allowed")
	})
	assert.EqualError(t, err, "not allowed")
}

func TestPostgresStore_DeleteMissing(t *testing.T) {
	mockDB, store := newMockStore(t)

	mockDB.ExpectExec("DELETE FROM verification_records WHERE kind = $1 AND id = $2").
		WithArgs(storage.KindJob, "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), "gone")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestPostgresStore_Purge(t *testing.T) {
	mockDB, store := newMockStore(t)
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mockDB.ExpectExec("DELETE FROM verification_records WHERE kind = $1 AND updated_at < $2").
		WithArgs(storage.KindJob, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.Purge(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPostgresStore_Integration(t *testing.T) {
	db := testutil.NewPostgresDB(t)
	ctx := context.Background()

	require.NoError(t, storage.Migrate(ctx, db))
	// A second run finds nothing pending
	require.NoError(t, storage.Migrate(ctx, db))

	store := storage.NewPostgresStore[domain.ProcessingResult](db, storage.KindResult)
	result := domain.NewProcessingResult(domain.DocumentTypePAN, time.Now().UTC())
	result.DocumentID = "doc-1"
	result.ParsedData = domain.NewFieldMap().Set("pan_number", "ABCDE1234F").Set("name", "Priya Verma")
	result.AddWarning("Face detection failed: timeout")

	require.NoError(t, store.Put(ctx, "doc-1", result))

	got, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"pan_number", "name"}, got.ParsedData.Keys())
	assert.Equal(t, []string{"Face detection failed: timeout"}, got.Warnings)

	_, err = store.Update(ctx, "doc-1", func(r *domain.ProcessingResult) error {
		r.OverallStatus = domain.StatusCompletedWithWarnings
		return nil
	})
	require.NoError(t, err)

	got, err = store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompletedWithWarnings, got.OverallStatus)

	require.NoError(t, store.Delete(ctx, "doc-1"))
	_, err = store.Get(ctx, "doc-1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
