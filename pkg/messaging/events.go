package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Job lifecycle, published by the verification service
	EventJobStarted   = "verification.job.started"
	EventJobCompleted = "verification.job.completed"
	EventJobFailed    = "verification.job.failed"

	// Work requests, consumed by the verification service
	EventProcessRequested = "verification.process.requested"
)

// Exchange names
const (
	ExchangeVerificationEvents   = "verification.events"
	ExchangeVerificationRequests = "verification.requests"
	ExchangeDeadLetter           = "dlx.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// JobStartedEvent is published when a verification job moves to processing
type JobStartedEvent struct {
	JobID        string `json:"job_id"`
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`
}

// JobCompletedEvent is published when a verification run reaches a terminal state
type JobCompletedEvent struct {
	JobID         string    `json:"job_id"`
	DocumentID    string    `json:"document_id"`
	DocumentType  string    `json:"document_type"`
	OverallStatus string    `json:"overall_status"`
	IsValid       bool      `json:"is_valid"`
	AIGenerated   bool      `json:"ai_generated"`
	ErrorCount    int       `json:"error_count"`
	WarningCount  int       `json:"warning_count"`
	CompletedAt   time.Time `json:"completed_at"`
}

// JobFailedEvent is published when a job could not produce a result
type JobFailedEvent struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	Reason     string `json:"reason"`
}

// ProcessRequestedEvent asks the service to verify an already uploaded document
type ProcessRequestedEvent struct {
	DocumentID          string `json:"document_id"`
	DocumentType        string `json:"document_type"`
	UseRemoteExtraction *bool  `json:"use_remote_extraction,omitempty"`
	DetectFace          *bool  `json:"detect_face,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
