package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Run lifecycle event types.
const (
	EventTypeRunStarted   = "pipeline.run_started"
	EventTypePhaseChanged = "pipeline.phase_changed"
	EventTypeRunCompleted = "pipeline.run_completed"
	EventTypeRunFailed    = "pipeline.run_failed"
	EventTypeRunCancelled = "pipeline.run_cancelled"
)

// Event is a run lifecycle notification delivered to the optional
// sink. Unlike the synchronous status observer, events carry no
// ordering guarantee; they exist for telemetry, not control flow.
type Event struct {
	Type          string    `json:"type"`
	RunID         string    `json:"run_id"`
	CorrelationID string    `json:"correlation_id"`
	Session       Session   `json:"session"`
	Phase         Phase     `json:"phase"`
	Progress      int       `json:"progress"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventSink receives run lifecycle events. Implementations must not
// block for long; the runner calls Publish inline.
type EventSink interface {
	Publish(Event)
}

func newEvent(eventType, runID string, session Session, status Status) Event {
	return Event{
		Type:          eventType,
		RunID:         runID,
		CorrelationID: uuid.New().String(),
		Session:       session,
		Phase:         status.Phase,
		Progress:      status.Progress,
		Error:         status.ErrorDetail,
		Timestamp:     time.Now(),
	}
}
