package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docverify/docverify-backend/pkg/logger"
)

type fakeAck struct {
	acked    bool
	nacked   bool
	requeued bool
	rejected bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }

func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func (f *fakeAck) Reject(bool) error { f.rejected = true; return nil }

type retryRecorder struct {
	msgs []amqp.Publishing
	err  error
}

func (r *retryRecorder) retry(_ context.Context, msg amqp.Publishing) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func newTestConsumer(rec *retryRecorder) *Consumer {
	return &Consumer{
		queue:    "verification-service.requests",
		handlers: make(map[string]MessageHandler),
		log:      logger.Nop(),
		retry:    rec.retry,
	}
}

func eventBody(t *testing.T, eventType string, data any) []byte {
	t.Helper()
	event, err := NewEvent(eventType, "test", "corr-1", data)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func failingConsumer(rec *retryRecorder) *Consumer {
	c := newTestConsumer(rec)
	c.RegisterHandler(EventProcessRequested, func(context.Context, *Event) error {
		return errors.New("document store unavailable")
	})
	return c
}

func TestHandleMessage_AcksOnSuccess(t *testing.T) {
	c := newTestConsumer(&retryRecorder{})

	var got ProcessRequestedEvent
	var correlationID string
	c.RegisterHandler(EventProcessRequested, func(ctx context.Context, event *Event) error {
		correlationID = CorrelationID(ctx)
		return event.UnmarshalData(&got)
	})

	ack := &fakeAck{}
	body := eventBody(t, EventProcessRequested, ProcessRequestedEvent{DocumentID: "doc-1", DocumentType: "pan"})
	c.handleMessage(context.Background(), body, nil, ack)

	assert.True(t, ack.acked)
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, "pan", got.DocumentType)
	assert.Equal(t, "corr-1", correlationID)
}

func TestHandleMessage_RejectsUndecodableBody(t *testing.T) {
	ack := &fakeAck{}
	newTestConsumer(&retryRecorder{}).handleMessage(context.Background(), []byte("{not json"), nil, ack)

	assert.True(t, ack.rejected)
	assert.False(t, ack.acked)
}

func TestHandleMessage_AcksUnknownEventType(t *testing.T) {
	ack := &fakeAck{}
	newTestConsumer(&retryRecorder{}).handleMessage(context.Background(), eventBody(t, "other.event", nil), nil, ack)

	assert.True(t, ack.acked)
}

func TestHandleMessage_RetryRepublishesWithCount(t *testing.T) {
	rec := &retryRecorder{}
	c := failingConsumer(rec)
	body := eventBody(t, EventProcessRequested, ProcessRequestedEvent{DocumentID: "doc-1"})

	ack := &fakeAck{}
	c.handleMessage(context.Background(), body, amqp.Table{"x-trace": "abc"}, ack)

	assert.True(t, ack.acked)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, int32(1), rec.msgs[0].Headers[headerRetryCount])
	assert.Equal(t, "abc", rec.msgs[0].Headers["x-trace"])
	assert.Equal(t, "corr-1", rec.msgs[0].CorrelationId)
	assert.Equal(t, uint8(amqp.Persistent), rec.msgs[0].DeliveryMode)

	var event Event
	require.NoError(t, json.Unmarshal(rec.msgs[0].Body, &event))
	assert.Equal(t, EventProcessRequested, event.Type)
}

func TestHandleMessage_DeadLettersAfterMaxDeliveries(t *testing.T) {
	rec := &retryRecorder{}
	c := failingConsumer(rec)
	body := eventBody(t, EventProcessRequested, ProcessRequestedEvent{DocumentID: "doc-1"})

	ack := &fakeAck{}
	c.handleMessage(context.Background(), body, amqp.Table{headerRetryCount: int32(MaxDeliveries - 1)}, ack)

	assert.True(t, ack.rejected)
	assert.False(t, ack.acked)
	assert.Empty(t, rec.msgs)
}

func TestHandleMessage_RequeuesWhenRepublishFails(t *testing.T) {
	rec := &retryRecorder{err: errors.New("channel closed")}
	c := failingConsumer(rec)

	ack := &fakeAck{}
	c.handleMessage(context.Background(), eventBody(t, EventProcessRequested, nil), nil, ack)

	assert.True(t, ack.nacked)
	assert.True(t, ack.requeued)
	assert.False(t, ack.acked)
}

func TestRetryCount(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{"no headers", nil, 0},
		{"retry header", amqp.Table{headerRetryCount: int32(2)}, 2},
		{"retry header wins over x-death", amqp.Table{headerRetryCount: int64(1), "x-death": []interface{}{amqp.Table{"count": int64(5)}}}, 1},
		{"x-death counts are summed", amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(1)}, amqp.Table{"count": int64(2)}}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryCount(tt.headers))
		})
	}
}

func TestSubscribe_BindsQueue(t *testing.T) {
	c := newTestConsumer(&retryRecorder{})
	var bound []string
	c.bind = func(exchange, key string) error {
		bound = append(bound, exchange+"/"+key)
		return nil
	}

	require.NoError(t, c.Subscribe(ExchangeVerificationRequests, EventProcessRequested))
	assert.Equal(t, []string{"verification.requests/verification.process.requested"}, bound)

	c.bind = func(string, string) error { return errors.New("access refused") }
	assert.Error(t, c.Subscribe(ExchangeVerificationRequests, "#"))
}

func TestStart_ResumesAfterChannelClose(t *testing.T) {
	first := make(chan amqp.Delivery)
	second := make(chan amqp.Delivery)
	calls := 0

	c := newTestConsumer(&retryRecorder{})
	c.consume = func() (<-chan amqp.Delivery, error) {
		calls++
		switch calls {
		case 1:
			return first, nil
		case 2:
			return nil, errors.New("not reconnected yet")
		default:
			return second, nil
		}
	}

	handled := make(chan string, 1)
	c.RegisterHandler(EventProcessRequested, func(_ context.Context, e *Event) error {
		handled <- e.ID
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	close(first)

	event, err := NewEvent(EventProcessRequested, "test", "corr-1", nil)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	second <- amqp.Delivery{Body: body}

	assert.Equal(t, event.ID, <-handled)
}

func TestNewPublishing(t *testing.T) {
	event, err := NewEvent(EventJobCompleted, "verification-service", "corr-9", JobCompletedEvent{JobID: "job-1"})
	require.NoError(t, err)

	msg, err := newPublishing(event, amqp.Table{headerRetryCount: int32(1)})
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, event.ID, msg.MessageId)
	assert.Equal(t, EventJobCompleted, msg.Type)
	assert.Equal(t, "verification-service", msg.AppId)
	assert.Equal(t, "corr-9", msg.CorrelationId)
	assert.Equal(t, int32(1), msg.Headers[headerRetryCount])
	assert.JSONEq(t, string(event.Data), `{"job_id":"job-1","document_id":"","document_type":"","overall_status":"","is_valid":false,"ai_generated":false,"error_count":0,"warning_count":0,"completed_at":"0001-01-01T00:00:00Z"}`)
}

func TestCorrelationID(t *testing.T) {
	assert.Empty(t, CorrelationID(context.Background()))
	assert.Equal(t, "corr-1", CorrelationID(WithCorrelationID(context.Background(), "corr-1")))
}

func TestDeadLetterQueue(t *testing.T) {
	assert.Equal(t, "dlq.verification-service", DeadLetterQueue("verification-service"))
}
