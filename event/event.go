// Package event defines the progress-event envelope pushed to subscribers
// while a pipeline run executes, and the Sink port that receives them.
// Delivery is best-effort: a sink is an observer, never a dependency of
// pipeline correctness.
package event

import (
	"time"

	"github.com/xraph/payable/id"
)

// Type names the kind of progress event.
type Type string

const (
	// TypeStageActivity marks a stage starting or finishing.
	TypeStageActivity Type = "stage_activity"

	// TypeFieldExtracted streams one extracted field as it is recognized.
	TypeFieldExtracted Type = "field_extracted"

	// TypeProcessingComplete carries the terminal run summary.
	TypeProcessingComplete Type = "processing_complete"

	// TypeError reports an unexpected pipeline failure.
	TypeError Type = "error"
)

// Event is the JSON-shaped envelope delivered to sinks. Data keys are a
// recommended contract, not a normative wire format.
type Event struct {
	ID        id.EventID     `json:"id"`
	RunID     id.RunID       `json:"run_id"`
	Type      Type           `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// New builds an event stamped with a fresh ID and the current time.
func New(runID id.RunID, typ Type, data map[string]any) Event {
	return Event{
		ID:        id.NewEventID(),
		RunID:     runID,
		Type:      typ,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Sink receives progress events. Send failures are tolerated by the caller
// (logged and ignored); implementations should return quickly.
type Sink interface {
	Send(evt Event) error
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(evt Event) error

func (f SinkFunc) Send(evt Event) error { return f(evt) }
