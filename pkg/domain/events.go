package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStep       EventType = "step"
	EventWait       EventType = "wait"
	EventTransition EventType = "transition"
	EventError      EventType = "error"
)

// TransitionReason explains why the active procedure changed.
type TransitionReason string

const (
	ReasonStart     TransitionReason = "start"     // Operator started a procedure from idle
	ReasonSwitch    TransitionReason = "switch"    // Operator redirected the running procedure
	ReasonSuccessor TransitionReason = "successor" // The procedure ended with a declared successor
	ReasonIdle      TransitionReason = "idle"      // The procedure ended with no successor, or was stopped
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
}

// StepEvent is emitted at every suspension point.
type StepEvent struct {
	EventBase
	Progress Progress `json:"progress"`
}

// WaitEvent is emitted when a wait directive starts.
type WaitEvent struct {
	EventBase
	Procedure string        `json:"procedure"`
	Duration  time.Duration `json:"duration"`
	Deadline  time.Time     `json:"deadline"`
}

// TransitionEvent is emitted when the active procedure changes.
type TransitionEvent struct {
	EventBase
	From   string           `json:"from"`
	To     string           `json:"to"`
	Reason TransitionReason `json:"reason"`
}

// ErrorEvent is emitted when a run fails or the scheduler halts.
type ErrorEvent struct {
	EventBase
	Procedure string `json:"procedure"`
	Err       error  `json:"-"`
	Message   string `json:"message"`
	Fatal     bool   `json:"fatal"`
}

// LifecycleHooks defines callbacks for scheduler observability.
// Hooks run on the scheduler goroutine and must not block.
type LifecycleHooks struct {
	OnStep       func(context.Context, *StepEvent)
	OnWait       func(context.Context, *WaitEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnError      func(context.Context, *ErrorEvent)
}

// ChainHooks combines several hook sets into one. Nil callbacks are skipped.
func ChainHooks(hooks ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStep: func(ctx context.Context, e *StepEvent) {
			for _, h := range hooks {
				if h.OnStep != nil {
					h.OnStep(ctx, e)
				}
			}
		},
		OnWait: func(ctx context.Context, e *WaitEvent) {
			for _, h := range hooks {
				if h.OnWait != nil {
					h.OnWait(ctx, e)
				}
			}
		},
		OnTransition: func(ctx context.Context, e *TransitionEvent) {
			for _, h := range hooks {
				if h.OnTransition != nil {
					h.OnTransition(ctx, e)
				}
			}
		},
		OnError: func(ctx context.Context, e *ErrorEvent) {
			for _, h := range hooks {
				if h.OnError != nil {
					h.OnError(ctx, e)
				}
			}
		},
	}
}
