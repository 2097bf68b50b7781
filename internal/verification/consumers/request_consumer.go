// Package consumers turns queued verification requests into jobs.
package consumers

import (
	"context"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/internal/verification/service"
	"github.com/docverify/docverify-backend/pkg/errors"
	"github.com/docverify/docverify-backend/pkg/logger"
	"github.com/docverify/docverify-backend/pkg/messaging"
)

// RequestQueue is the durable queue process requests are read from
const RequestQueue = "verification-service.requests"

// processStarter is the part of the service the consumer drives
type processStarter interface {
	StartProcessing(ctx context.Context, documentID string, docType domain.DocumentType, opts domain.Options) (*service.ProcessResponse, error)
}

// RequestConsumer consumes process requests
type RequestConsumer struct {
	consumer *messaging.Consumer
	service  processStarter
	logger   *logger.Logger
}

// NewRequestConsumer creates a consumer bound to the request exchange
func NewRequestConsumer(rmq *messaging.RabbitMQ, svc *service.Service, log *logger.Logger) (*RequestConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, RequestQueue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeVerificationRequests, messaging.EventProcessRequested); err != nil {
		return nil, err
	}

	c := &RequestConsumer{
		consumer: consumer,
		service:  svc,
		logger:   log,
	}
	consumer.RegisterHandler(messaging.EventProcessRequested, c.handleProcessRequested)

	return c, nil
}

// Start starts consuming messages
func (c *RequestConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// handleProcessRequested queues a job. Requests that can never succeed are
// dropped so they are not redelivered.
func (c *RequestConsumer) handleProcessRequested(ctx context.Context, event *messaging.Event) error {
	var data messaging.ProcessRequestedEvent
	if err := event.UnmarshalData(&data); err != nil {
		c.logger.Warn().Err(err).Str("event_id", event.ID).Msg("dropping malformed process request")
		return nil
	}

	opts := domain.DefaultOptions()
	if data.UseRemoteExtraction != nil {
		opts.UseRemoteExtraction = *data.UseRemoteExtraction
	}
	if data.DetectFace != nil {
		opts.DetectFace = *data.DetectFace
	}

	resp, err := c.service.StartProcessing(ctx, data.DocumentID, domain.DocumentType(data.DocumentType), opts)
	if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrBadRequest) {
		c.logger.Warn().Err(err).
			Str("document_id", data.DocumentID).
			Str("document_type", data.DocumentType).
			Msg("dropping process request")
		return nil
	}
	if err != nil {
		return err
	}

	c.logger.Info().
		Str("job_id", resp.JobID).
		Str("document_id", data.DocumentID).
		Str("correlation_id", event.CorrelationID).
		Msg("queued job from process request")
	return nil
}
