// Package jobs tracks the lifecycle of verification jobs.
package jobs

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/internal/verification/storage"
	"github.com/docverify/docverify-backend/pkg/logger"
)

// ErrInvalidTransition is returned when a job would leave a terminal state
// or be finished with a non-terminal status
var ErrInvalidTransition = stderrors.New("invalid job state transition")

// Tracker moves jobs through PENDING, PROCESSING and a terminal state.
// Jobs never move backward and progress never decreases.
type Tracker struct {
	store  storage.Store[domain.ProcessingJob]
	logger *logger.Logger
	now    func() time.Time
}

// NewTracker creates a tracker backed by store
func NewTracker(store storage.Store[domain.ProcessingJob], log *logger.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: log.WithComponent("job_tracker"),
		now:    time.Now,
	}
}

// Create registers a new PENDING job for documentID
func (t *Tracker) Create(ctx context.Context, documentID string) (*domain.ProcessingJob, error) {
	job := &domain.ProcessingJob{
		JobID:      uuid.New().String(),
		DocumentID: documentID,
		Status:     domain.StatusPending,
		Progress:   0,
		Message:    "Job queued",
		CreatedAt:  t.now().UTC(),
	}
	if err := t.store.Put(ctx, job.JobID, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	t.logger.Debug().Str("job_id", job.JobID).Str("document_id", documentID).Msg("job created")
	return job, nil
}

// Get returns the current state of a job
func (t *Tracker) Get(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	return t.store.Get(ctx, jobID)
}

// Start moves a job to PROCESSING
func (t *Tracker) Start(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	return t.store.Update(ctx, jobID, func(job *domain.ProcessingJob) error {
		if job.Status.Terminal() {
			return t.invalid(job.Status, domain.StatusProcessing)
		}
		if job.Status == domain.StatusProcessing {
			return nil
		}
		now := t.now().UTC()
		job.Status = domain.StatusProcessing
		job.StartedAt = &now
		job.Message = "Processing started"
		return nil
	})
}

// Advance records a progress checkpoint. A lower progress than the current
// one keeps the current value.
func (t *Tracker) Advance(ctx context.Context, jobID string, progress int, message string) (*domain.ProcessingJob, error) {
	return t.store.Update(ctx, jobID, func(job *domain.ProcessingJob) error {
		if job.Status.Terminal() {
			return t.invalid(job.Status, domain.StatusProcessing)
		}
		if progress > 100 {
			progress = 100
		}
		if progress > job.Progress {
			job.Progress = progress
		}
		if message != "" {
			job.Message = message
		}
		return nil
	})
}

// Finish moves a job to a terminal status
func (t *Tracker) Finish(ctx context.Context, jobID string, status domain.Status, message string) (*domain.ProcessingJob, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: %s is not a terminal status", ErrInvalidTransition, status)
	}

	job, err := t.store.Update(ctx, jobID, func(job *domain.ProcessingJob) error {
		if job.Status.Terminal() {
			return t.invalid(job.Status, status)
		}
		now := t.now().UTC()
		job.Status = status
		job.Progress = 100
		job.Message = message
		job.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.logger.Info().
		Str("job_id", jobID).
		Str("document_id", job.DocumentID).
		Str("status", string(status)).
		Msg("job finished")
	return job, nil
}

// Fail moves a job to FAILED
func (t *Tracker) Fail(ctx context.Context, jobID string, message string) (*domain.ProcessingJob, error) {
	return t.Finish(ctx, jobID, domain.StatusFailed, message)
}

func (t *Tracker) invalid(from, to domain.Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
