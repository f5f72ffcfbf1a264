package jobs

import (
	"testing"

	"noise-cleaner/internal/domain"
)

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeState, Message: "1"})
	bus.Publish(Event{Type: EventTypeState, Message: "2"})
	bus.Publish(Event{Type: EventTypeState, Message: "3"})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "2" || events[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

// TestStateEventCarriesFailure maps error states to error events.
func TestStateEventCarriesFailure(t *testing.T) {
	event := StateEvent(domain.AppState{
		Kind: domain.StateError,
		Failure: &domain.Failure{
			Kind:     domain.ErrorKindProcess,
			Message:  "engine exited with code 1",
			ExitCode: 1,
			Stderr:   "model load failed",
		},
	}, 4)

	if event.Type != EventTypeError || event.State != domain.StateError {
		t.Fatalf("event = %+v", event)
	}
	if event.ExitCode != 1 || event.Stderr != "model load failed" || event.Generation != 4 {
		t.Fatalf("failure fields not copied: %+v", event)
	}

	done := StateEvent(domain.AppState{Kind: domain.StateDone, OutputPath: "/out/a.wav"}, 5)
	if done.Type != EventTypeState || done.OutputPath != "/out/a.wav" {
		t.Fatalf("done event = %+v", done)
	}
}
