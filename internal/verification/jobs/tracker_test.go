package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/internal/verification/jobs"
	"github.com/docverify/docverify-backend/internal/verification/storage"
	"github.com/docverify/docverify-backend/pkg/logger"
)

func newTracker() *jobs.Tracker {
	return jobs.NewTracker(storage.NewMemoryStore[domain.ProcessingJob](storage.KindJob), logger.Nop())
}

func TestTracker_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()

	job, err := tr.Create(ctx, "doc-1")
	require.NoError(t, err)
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, "doc-1", job.DocumentID)
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Nil(t, job.StartedAt)

	job, err = tr.Start(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, job.Status)
	require.NotNil(t, job.StartedAt)

	job, err = tr.Advance(ctx, job.JobID, 50, "Extracting data")
	require.NoError(t, err)
	assert.Equal(t, 50, job.Progress)
	assert.Equal(t, "Extracting data", job.Message)

	job, err = tr.Finish(ctx, job.JobID, domain.StatusCompletedWithWarnings, "Processing completed with warnings")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompletedWithWarnings, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.CompletedAt)

	got, err := tr.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestTracker_ProgressNeverDecreases(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()
	job, _ := tr.Create(ctx, "doc-1")
	_, _ = tr.Start(ctx, job.JobID)

	seen := 0
	for _, p := range []int{25, 10, 50, 50, 40, 75, 150} {
		j, err := tr.Advance(ctx, job.JobID, p, "")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, j.Progress, seen)
		seen = j.Progress
	}
	assert.Equal(t, 100, seen)
}

func TestTracker_TerminalIsFinal(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()
	job, _ := tr.Create(ctx, "doc-1")
	_, err := tr.Fail(ctx, job.JobID, "Processing failed: boom")
	require.NoError(t, err)

	_, err = tr.Start(ctx, job.JobID)
	assert.True(t, errors.Is(err, jobs.ErrInvalidTransition))

	_, err = tr.Advance(ctx, job.JobID, 10, "")
	assert.True(t, errors.Is(err, jobs.ErrInvalidTransition))

	_, err = tr.Finish(ctx, job.JobID, domain.StatusCompleted, "done")
	assert.True(t, errors.Is(err, jobs.ErrInvalidTransition))

	got, _ := tr.Get(ctx, job.JobID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "Processing failed: boom", got.Message)
}

func TestTracker_FinishRequiresTerminalStatus(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()
	job, _ := tr.Create(ctx, "doc-1")

	_, err := tr.Finish(ctx, job.JobID, domain.StatusProcessing, "")
	assert.True(t, errors.Is(err, jobs.ErrInvalidTransition))
}

func TestTracker_IndependentJobs(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()

	const n = 20
	ids := make([]string, n)
	for i := range ids {
		job, err := tr.Create(ctx, "doc")
		require.NoError(t, err)
		ids[i] = job.JobID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = tr.Start(ctx, id)
			for p := 25; p <= 100; p += 25 {
				_, _ = tr.Advance(ctx, id, p, "")
			}
			_, _ = tr.Finish(ctx, id, domain.StatusCompleted, "Processing completed successfully")
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		job, err := tr.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, job.Status)
		assert.Equal(t, 100, job.Progress)
	}
}
