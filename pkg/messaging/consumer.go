package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/docverify/docverify-backend/pkg/logger"
)

// MessageHandler handles one decoded event. Returning an error retries the message.
type MessageHandler func(ctx context.Context, event *Event) error

// MaxDeliveries is how many times a failing message is attempted before it is dead-lettered
const MaxDeliveries = 3

// resubscribeDelay is the pause between attempts to consume again after the channel closed
const resubscribeDelay = time.Second

// Consumer reads events from one durable queue and dispatches them by type
type Consumer struct {
	queue    string
	handlers map[string]MessageHandler
	log      *logger.Logger

	consume func() (<-chan amqp.Delivery, error)
	// retry puts a failed message back on the queue with its new retry count
	retry func(ctx context.Context, msg amqp.Publishing) error
	// bind subscribes the queue to an exchange
	bind func(exchange, routingKey string) error
}

// acknowledger is the subset of amqp.Delivery the consumer settles messages with
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	Reject(requeue bool) error
}

// NewConsumer declares queue and returns a consumer for it
func NewConsumer(rmq *RabbitMQ, queue string, log *logger.Logger) (*Consumer, error) {
	if err := rmq.DeclareQueue(queue); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &Consumer{
		queue:    queue,
		handlers: make(map[string]MessageHandler),
		log:      log.WithComponent("consumer"),
		consume: func() (<-chan amqp.Delivery, error) {
			channel := rmq.Channel()
			if channel == nil {
				return nil, fmt.Errorf("no open channel")
			}
			return channel.Consume(queue, "", false, false, false, false, nil)
		},
		retry: func(ctx context.Context, msg amqp.Publishing) error {
			return publish(ctx, rmq, "", queue, msg)
		},
		bind: func(exchange, routingKey string) error {
			if err := rmq.DeclareExchange(exchange); err != nil {
				return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
			}
			return rmq.BindQueue(queue, exchange, routingKey)
		},
	}, nil
}

// Subscribe binds the queue to exchange for routing keys matching pattern
func (c *Consumer) Subscribe(exchange, pattern string) error {
	if err := c.bind(exchange, pattern); err != nil {
		return fmt.Errorf("failed to subscribe %s to %s: %w", c.queue, exchange, err)
	}

	c.log.Info().
		Str("queue", c.queue).
		Str("exchange", exchange).
		Str("routing_key", pattern).
		Msg("subscribed to exchange")
	return nil
}

// RegisterHandler registers the handler for one event type. Events without a
// handler are acknowledged and dropped.
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start begins consuming in the background until ctx is cancelled. When the
// broker closes the channel the consumer waits for the reconnect and resumes.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", c.queue, err)
	}

	c.log.Info().Str("queue", c.queue).Msg("consumer started")
	go c.run(ctx, deliveries)
	return nil
}

func (c *Consumer) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Str("queue", c.queue).Msg("consumer stopped")
			return
		case d, ok := <-deliveries:
			if ok {
				c.handleMessage(ctx, d.Body, d.Headers, &d)
				continue
			}
		}

		c.log.Warn().Str("queue", c.queue).Msg("delivery channel closed, resubscribing")
		deliveries = c.resubscribe(ctx)
		if deliveries == nil {
			return
		}
	}
}

func (c *Consumer) resubscribe(ctx context.Context) <-chan amqp.Delivery {
	ticker := time.NewTicker(resubscribeDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			deliveries, err := c.consume()
			if err == nil {
				c.log.Info().Str("queue", c.queue).Msg("consumer resumed")
				return deliveries
			}
			c.log.Debug().Err(err).Str("queue", c.queue).Msg("resubscribe attempt failed")
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, body []byte, headers amqp.Table, msg acknowledger) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		c.log.Error().Err(err).Str("queue", c.queue).Msg("rejecting undecodable message")
		msg.Reject(false)
		return
	}

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.log.Debug().Str("event_type", event.Type).Msg("no handler registered for event type")
		msg.Ack(false)
		return
	}

	log := c.log.With().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Logger()

	err := handler(WithCorrelationID(ctx, event.CorrelationID), &event)
	if err == nil {
		msg.Ack(false)
		return
	}

	attempt := retryCount(headers) + 1
	if attempt >= MaxDeliveries {
		log.Error().Err(err).Int("attempts", attempt).Msg("event failed too often, dead-lettering")
		msg.Reject(false)
		return
	}

	log.Warn().Err(err).Int("attempt", attempt).Msg("event failed, retrying")
	retried := amqp.Table{}
	for k, v := range headers {
		retried[k] = v
	}
	retried[headerRetryCount] = int32(attempt)

	republished, encErr := newPublishing(&event, retried)
	if encErr == nil {
		encErr = c.retry(ctx, republished)
	}
	if encErr != nil {
		// Requeue the original so the message is not lost
		log.Warn().Err(encErr).Msg("failed to republish event, requeueing")
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}

// retryCount reads the retry header, falling back to the broker's x-death count
func retryCount(headers amqp.Table) int {
	switch n := headers[headerRetryCount].(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}

	deaths, _ := headers["x-death"].([]interface{})
	total := 0
	for _, death := range deaths {
		if d, ok := death.(amqp.Table); ok {
			if count, ok := d["count"].(int64); ok {
				total += int(count)
			}
		}
	}
	return total
}
