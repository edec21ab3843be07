package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStateEnter EventType = "state_enter"
	EventStateExit  EventType = "state_exit"
	EventTransition EventType = "transition"
	EventBreakpoint EventType = "breakpoint"
	EventHalt       EventType = "halt"
	EventTick       EventType = "tick"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Machine   string    `json:"machine"` // Superstate path, "" for the root level.
	Tick      int       `json:"tick"`
}

// StateEvent represents entry into or exit from a state.
type StateEvent struct {
	EventBase
	State string `json:"state"`
}

// TransitionEvent is emitted after a transition completed.
type TransitionEvent struct {
	EventBase
	Source string `json:"source"`
	Target string `json:"target"`
	Event  string `json:"event"`
}

// HaltEvent is emitted when a level sets its sticky halted flag.
type HaltEvent struct {
	EventBase
	Reason string `json:"reason"`
}

// TickEvent is emitted by the root level at the end of every step.
type TickEvent struct {
	EventBase
	State     string         `json:"state"`
	Variables map[string]any `json:"variables"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStateEnter func(context.Context, *StateEvent)
	OnStateExit  func(context.Context, *StateEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnBreakpoint func(context.Context, *StateEvent)
	OnHalt       func(context.Context, *HaltEvent)
	OnTick       func(context.Context, *TickEvent)
}

// Merge chains two hook sets. Callbacks of h run before those of other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStateEnter: chain(h.OnStateEnter, other.OnStateEnter),
		OnStateExit:  chain(h.OnStateExit, other.OnStateExit),
		OnTransition: chain(h.OnTransition, other.OnTransition),
		OnBreakpoint: chain(h.OnBreakpoint, other.OnBreakpoint),
		OnHalt:       chain(h.OnHalt, other.OnHalt),
		OnTick:       chain(h.OnTick, other.OnTick),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, ev E) {
		a(ctx, ev)
		b(ctx, ev)
	}
}
