package messaging

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/docverify/docverify-backend/pkg/config"
	"github.com/docverify/docverify-backend/pkg/logger"
)

// deadLetterQueuePrefix names the per-service queue bound to the dead letter exchange
const deadLetterQueuePrefix = "dlq."

// RabbitMQ owns one broker connection and a shared channel. The connection is
// re-established in the background when the broker drops it.
type RabbitMQ struct {
	cfg *config.RabbitMQConfig
	log *logger.Logger

	mu         sync.RWMutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	closed     bool
	reconnects int
	lastError  string

	// topology is replayed after a reconnect
	topology []func(*amqp.Channel) error
}

// New dials the broker, retrying up to MaxRetries times with ReconnectDelay
// between attempts.
func New(ctx context.Context, cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{
		cfg: cfg,
		log: log.WithComponent("rabbitmq"),
	}

	if err := r.dialWithRetry(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) dialWithRetry(ctx context.Context) error {
	attempts := r.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, channel, err := r.dial()
		if err == nil {
			r.mu.Lock()
			r.conn, r.channel = conn, channel
			r.lastError = ""
			r.mu.Unlock()

			go r.watch(conn)
			r.log.Info().Int("attempt", attempt).Msg("connected to RabbitMQ")
			return nil
		}

		lastErr = err
		r.mu.Lock()
		r.lastError = err.Error()
		r.mu.Unlock()
		r.log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", attempts).Msg("RabbitMQ connection attempt failed")

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.ReconnectDelay):
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, lastErr)
}

func (r *RabbitMQ) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := channel.Qos(r.cfg.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("set QoS: %w", err)
	}

	r.mu.RLock()
	topology := append([]func(*amqp.Channel) error(nil), r.topology...)
	r.mu.RUnlock()
	for _, declare := range topology {
		if err := declare(channel); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("restore topology: %w", err)
		}
	}

	return conn, channel, nil
}

// watch reconnects when the broker closes the connection unexpectedly
func (r *RabbitMQ) watch(conn *amqp.Connection) {
	amqpErr, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if !ok || amqpErr == nil {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.lastError = amqpErr.Error()
	r.reconnects++
	r.mu.Unlock()

	r.log.Warn().Str("reason", amqpErr.Reason).Int("code", amqpErr.Code).Msg("RabbitMQ connection lost, reconnecting")
	if err := r.dialWithRetry(context.Background()); err != nil {
		r.log.Error().Err(err).Msg("RabbitMQ reconnect failed")
	}
}

// Channel returns the current shared channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Close shuts the connection down and stops reconnecting
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.log.Warn().Err(err).Msg("failed to close channel")
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.log.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health reports connection state for the health endpoint
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := map[string]string{
		"status":     "up",
		"reconnects": strconv.Itoa(r.reconnects),
	}
	switch {
	case r.closed:
		status["status"] = "down"
		status["error"] = "connection closed"
	case r.conn == nil || r.conn.IsClosed():
		status["status"] = "down"
		status["error"] = r.lastError
	case r.channel == nil || r.channel.IsClosed():
		status["status"] = "down"
		status["error"] = "channel closed"
	}
	return status
}

// declare runs fn on the current channel and remembers it for reconnects
func (r *RabbitMQ) declare(fn func(*amqp.Channel) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.channel == nil {
		return fmt.Errorf("connection is closed")
	}
	if err := fn(r.channel); err != nil {
		return err
	}
	r.topology = append(r.topology, fn)
	return nil
}

// DeclareExchange declares a durable topic exchange
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.declare(func(ch *amqp.Channel) error {
		return ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil)
	})
}

// DeclareQueue declares a durable queue that dead-letters rejected messages
func (r *RabbitMQ) DeclareQueue(name string) error {
	return r.declare(func(ch *amqp.Channel) error {
		_, err := ch.QueueDeclare(name, true, false, false, false, amqp.Table{
			"x-dead-letter-exchange": ExchangeDeadLetter,
		})
		return err
	})
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queue, exchange, routingKey string) error {
	return r.declare(func(ch *amqp.Channel) error {
		return ch.QueueBind(queue, routingKey, exchange, false, nil)
	})
}

// DeclareTopology sets up the verification exchanges and the dead letter
// queue for serviceName. Every service calls it once at startup.
func (r *RabbitMQ) DeclareTopology(serviceName string) error {
	for _, exchange := range []string{ExchangeVerificationEvents, ExchangeVerificationRequests, ExchangeDeadLetter} {
		if err := r.DeclareExchange(exchange); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
		}
	}

	dlq := DeadLetterQueue(serviceName)
	if err := r.declare(func(ch *amqp.Channel) error {
		_, err := ch.QueueDeclare(dlq, true, false, false, false, nil)
		return err
	}); err != nil {
		return fmt.Errorf("failed to declare dead letter queue: %w", err)
	}
	if err := r.BindQueue(dlq, ExchangeDeadLetter, "#"); err != nil {
		return fmt.Errorf("failed to bind dead letter queue: %w", err)
	}

	r.log.Info().Str("dead_letter_queue", dlq).Msg("messaging topology declared")
	return nil
}

// DeadLetterQueue names the dead letter queue of a service
func DeadLetterQueue(serviceName string) string {
	return deadLetterQueuePrefix + serviceName
}
