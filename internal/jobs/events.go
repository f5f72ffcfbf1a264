package jobs

import (
	"sync"
	"time"

	"noise-cleaner/internal/domain"
)

// EventType classifies entries in the application event history.
type EventType string

const (
	EventTypeState EventType = "state"
	EventTypeLog   EventType = "log"
	EventTypeError EventType = "error"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq        int64            `json:"seq"`
	Timestamp  time.Time        `json:"timestamp"`
	Type       EventType        `json:"type"`
	State      domain.StateKind `json:"state,omitempty"`
	Generation uint64           `json:"generation,omitempty"`
	Message    string           `json:"message,omitempty"`
	OutputPath string           `json:"outputPath,omitempty"`
	Command    string           `json:"command,omitempty"`
	Args       []string         `json:"args,omitempty"`
	ExitCode   int              `json:"exitCode,omitempty"`
	Stderr     string           `json:"stderr,omitempty"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// StateEvent builds a history entry for a state snapshot.
func StateEvent(state domain.AppState, generation uint64) Event {
	event := Event{
		Type:       EventTypeState,
		State:      state.Kind,
		Generation: generation,
		Message:    state.String(),
		OutputPath: state.OutputPath,
	}
	if state.Failure != nil {
		event.Type = EventTypeError
		event.Message = state.Failure.Error()
		event.ExitCode = state.Failure.ExitCode
		event.Stderr = state.Failure.Stderr
	}
	return event
}
