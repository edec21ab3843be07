package runner

import (
	"log/slog"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithStopOnHalt ends the loop as soon as the simulation halts.
func WithStopOnHalt(stop bool) Option {
	return func(r *Runner) {
		r.StopOnHalt = stop
	}
}
