package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// ErrNoTracker is returned by RunJob when the orchestrator has no tracker
var ErrNoTracker = errors.New("pipeline: no job tracker configured")

// RunJob runs the pipeline under job tracking. The job moves to PROCESSING
// before the first stage, reports each stage boundary and ends in the
// result's terminal status. Checkpoint failures are logged and do not stop the run.
func (o *Orchestrator) RunJob(ctx context.Context, jobID string, img domain.Image, docType domain.DocumentType, opts domain.Options) (*domain.ProcessingResult, error) {
	if o.tracker == nil {
		return nil, ErrNoTracker
	}
	if _, err := o.tracker.Start(ctx, jobID); err != nil {
		return nil, fmt.Errorf("failed to start job: %w", err)
	}

	log := o.logger.WithJobID(jobID)
	result := o.run(ctx, img, docType, opts, func(progress int, message string) {
		if _, err := o.tracker.Advance(ctx, jobID, progress, message); err != nil {
			log.Warn().Err(err).Int("progress", progress).Msg("failed to record job progress")
		}
	})

	if _, err := o.tracker.Finish(ctx, jobID, result.OverallStatus, completionMessage(result)); err != nil {
		return result, fmt.Errorf("failed to finish job: %w", err)
	}

	log.Info().
		Str("doc_type", string(docType)).
		Str("status", string(result.OverallStatus)).
		Int("errors", len(result.Errors)).
		Int("warnings", len(result.Warnings)).
		Msg("verification job finished")
	return result, nil
}

func completionMessage(result *domain.ProcessingResult) string {
	switch result.OverallStatus {
	case domain.StatusCompleted:
		return "Processing completed"
	case domain.StatusCompletedWithWarnings:
		return fmt.Sprintf("Processing completed with %d warning(s)", len(result.Warnings))
	case domain.StatusCompletedWithErrors:
		return fmt.Sprintf("Processing completed with %d error(s)", len(result.Errors))
	default:
		if n := len(result.Errors); n > 0 {
			return result.Errors[n-1]
		}
		return "Processing failed"
	}
}
