package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/fsmsim/pkg/domain"
)

// LoggingHooks logs every lifecycle event at info level (halts at warn).
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			logger.InfoContext(ctx, "state_enter", "machine", e.Machine, "tick", e.Tick, "state", e.State)
		},
		OnStateExit: func(ctx context.Context, e *domain.StateEvent) {
			logger.InfoContext(ctx, "state_exit", "machine", e.Machine, "tick", e.Tick, "state", e.State)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "transition",
				"machine", e.Machine,
				"tick", e.Tick,
				"source", e.Source,
				"target", e.Target,
				"event", e.Event,
			)
		},
		OnBreakpoint: func(ctx context.Context, e *domain.StateEvent) {
			logger.InfoContext(ctx, "breakpoint", "machine", e.Machine, "tick", e.Tick, "state", e.State)
		},
		OnHalt: func(ctx context.Context, e *domain.HaltEvent) {
			logger.WarnContext(ctx, "halt", "machine", e.Machine, "tick", e.Tick, "reason", e.Reason)
		},
	}
}
