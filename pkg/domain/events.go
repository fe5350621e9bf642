package domain

import (
	"context"
	"time"
)

// EventType names a structured engine event.
type EventType string

const (
	EventStepStarted      EventType = "step.started"
	EventStepSucceeded    EventType = "step.succeeded"
	EventStepFailed       EventType = "step.failed"
	EventCircuitOpened    EventType = "circuit.opened"
	EventProviderFallback EventType = "provider.fallback"
)

// Event is a point-in-time observation emitted by the engine and the
// resilience layer. Fields are populated where they apply; zero values mean
// not applicable.
type Event struct {
	Type      EventType
	RunID     string
	Pipeline  string
	StepIndex int
	StepType  string
	TaskType  string
	Provider  string
	Err       error
	Duration  time.Duration
}

// Emitter receives engine events. Implementations must be safe for
// concurrent use and must not block the run path.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, ev Event)

func (f EmitterFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// MultiEmitter fans an event out to several emitters in order.
func MultiEmitter(emitters ...Emitter) Emitter {
	return EmitterFunc(func(ctx context.Context, ev Event) {
		for _, e := range emitters {
			if e != nil {
				e.Emit(ctx, ev)
			}
		}
	})
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) {}
