package events

import (
	"context"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/pkg/logger"
	"github.com/docverify/docverify-backend/pkg/messaging"
)

// ServiceName is the event source of everything this service publishes
const ServiceName = "verification-service"

type publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// VerificationEventPublisher publishes job lifecycle events. A nil publisher
// is valid and drops every event, so callers need not check whether
// messaging is enabled.
type VerificationEventPublisher struct {
	publisher publisher
	logger    *logger.Logger
}

// NewVerificationEventPublisher creates a publisher on the verification events exchange
func NewVerificationEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*VerificationEventPublisher, error) {
	p, err := messaging.NewPublisher(rmq, messaging.ExchangeVerificationEvents, ServiceName, log)
	if err != nil {
		return nil, err
	}

	return &VerificationEventPublisher{
		publisher: p,
		logger:    log,
	}, nil
}

// PublishJobStarted publishes a job started event
func (p *VerificationEventPublisher) PublishJobStarted(ctx context.Context, job *domain.ProcessingJob, docType domain.DocumentType) {
	if p == nil {
		return
	}

	data := messaging.JobStartedEvent{
		JobID:        job.JobID,
		DocumentID:   job.DocumentID,
		DocumentType: string(docType),
	}

	if err := p.publisher.Publish(ctx, messaging.EventJobStarted, data); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.JobID).Msg("failed to publish job started event")
	}
}

// PublishJobCompleted publishes a job completed event carrying the result summary
func (p *VerificationEventPublisher) PublishJobCompleted(ctx context.Context, jobID string, result *domain.ProcessingResult) {
	if p == nil {
		return
	}

	data := messaging.JobCompletedEvent{
		JobID:         jobID,
		DocumentID:    result.DocumentID,
		DocumentType:  string(result.DocumentType),
		OverallStatus: string(result.OverallStatus),
		IsValid:       result.Validation != nil && result.Validation.IsValid,
		AIGenerated:   result.AuthenticityCheck != nil && result.AuthenticityCheck.IsAIGenerated,
		ErrorCount:    len(result.Errors),
		WarningCount:  len(result.Warnings),
	}
	if result.CompletedAt != nil {
		data.CompletedAt = *result.CompletedAt
	}

	if err := p.publisher.Publish(ctx, messaging.EventJobCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to publish job completed event")
	}
}

// PublishJobFailed publishes a job failed event
func (p *VerificationEventPublisher) PublishJobFailed(ctx context.Context, jobID, documentID, reason string) {
	if p == nil {
		return
	}

	data := messaging.JobFailedEvent{
		JobID:      jobID,
		DocumentID: documentID,
		Reason:     reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventJobFailed, data); err != nil {
		p.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to publish job failed event")
	}
}
