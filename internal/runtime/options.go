package runtime

import (
	"log/slog"

	"github.com/aretw0/fsmsim/pkg/domain"
)

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the structured logger. Action-log lines are mirrored to it at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHaltOnActionError makes action failures fatal. The policy applies to every
// nesting level.
func WithHaltOnActionError(halt bool) Option {
	return func(s *Simulator) {
		s.haltOnError = halt
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Simulator) {
		s.hooks = hooks
	}
}

// WithInitialVariables seeds the variable store before the initial state is entered.
func WithInitialVariables(vars map[string]any) Option {
	return func(s *Simulator) {
		s.initialVars = vars
	}
}

// WithStopTick halts the simulation once the tick counter reaches n. Zero disables it.
func WithStopTick(n int) Option {
	return func(s *Simulator) {
		s.stopTick = n
	}
}
