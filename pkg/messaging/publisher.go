package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/docverify/docverify-backend/pkg/logger"
)

// headerRetryCount counts how often a consumer has put a message back on its queue
const headerRetryCount = "x-retry-count"

// Publisher publishes events onto one exchange, using the event type as routing key
type Publisher struct {
	rmq      *RabbitMQ
	exchange string
	source   string
	log      *logger.Logger
}

// NewPublisher declares exchange and returns a publisher for it. source is
// stamped on every event.
func NewPublisher(rmq *RabbitMQ, exchange, source string, log *logger.Logger) (*Publisher, error) {
	if err := rmq.DeclareExchange(exchange); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		rmq:      rmq,
		exchange: exchange,
		source:   source,
		log:      log.WithComponent("publisher"),
	}, nil
}

// Publish wraps data in an Event and publishes it. The correlation ID comes
// from ctx; a new one is minted when ctx has none.
func (p *Publisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	correlationID := CorrelationID(ctx)
	if correlationID == "" {
		correlationID = GenerateEventID()
	}

	event, err := NewEvent(eventType, p.source, correlationID, data)
	if err != nil {
		return fmt.Errorf("failed to create event %s: %w", eventType, err)
	}

	msg, err := newPublishing(event, nil)
	if err != nil {
		return err
	}
	if err := publish(ctx, p.rmq, p.exchange, eventType, msg); err != nil {
		return err
	}

	p.log.Debug().
		Str("exchange", p.exchange).
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Str("correlation_id", correlationID).
		Msg("event published")
	return nil
}

// newPublishing encodes event as a persistent JSON message
func newPublishing(event *Event, headers amqp.Table) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.ID,
		Type:          event.Type,
		AppId:         event.Source,
		CorrelationId: event.CorrelationID,
		Timestamp:     event.Timestamp,
		Headers:       headers,
		Body:          body,
	}, nil
}

func publish(ctx context.Context, rmq *RabbitMQ, exchange, routingKey string, msg amqp.Publishing) error {
	channel := rmq.Channel()
	if channel == nil {
		return fmt.Errorf("no open channel")
	}
	if err := channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish to %s/%s: %w", exchange, routingKey, err)
	}
	return nil
}
