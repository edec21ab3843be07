package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/fsmsim"
	"github.com/aretw0/fsmsim/internal/logging"
	"github.com/aretw0/fsmsim/pkg/domain"
)

// Runner handles the interaction loop of a simulator using the provided IO.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	Handler IOHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// StopOnHalt ends Run once the simulation halts instead of waiting for a reset.
	StopOnHalt bool
}

// NewRunner creates a Runner reading from and writing to handler.
func NewRunner(handler IOHandler, opts ...Option) *Runner {
	r := &Runner{
		Handler: handler,
		Logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run presents the simulator's initial state and then applies commands until
// the input ends, the user quits or ctx is cancelled.
//
// Rejected commands and simulation errors are reported through the handler
// and do not stop the loop; only IO failures and cancellation are returned.
func (r *Runner) Run(ctx context.Context, sim *fsmsim.Simulator) error {
	if r.Handler == nil {
		return errors.New("runner: no IO handler")
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	initial := Output{Log: sim.LastExecutedActionsLog(), Snapshot: sim.Snapshot()}
	if err := r.Handler.Output(ctx, initial); err != nil {
		return fmt.Errorf("output error: %w", err)
	}

	for {
		if r.StopOnHalt && sim.Halted() {
			logger.Debug("simulation halted, leaving loop", "tick", sim.Tick())
			return nil
		}

		cmd, err := r.Handler.Input(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, ErrQuit):
			return nil
		case errors.Is(err, ErrInvalidCommand), errors.Is(err, ErrInputTooLarge),
			errors.Is(err, ErrInvalidUTF8), errors.Is(err, ErrMultiline):
			if err := r.Handler.SystemOutput(ctx, err.Error()); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
			continue
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("input error: %w", err)
		}

		out := r.apply(ctx, sim, cmd)
		logger.Debug("command applied", "op", cmd.Op, "event", cmd.Event, "state", out.Snapshot.CurrentState, "tick", out.Snapshot.Tick)
		if err := r.Handler.Output(ctx, out); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}
}

func (r *Runner) apply(ctx context.Context, sim *fsmsim.Simulator, cmd domain.Command) Output {
	before := sim.Snapshot()
	resumed, err := sim.Apply(ctx, cmd)
	after := sim.Snapshot()

	out := Output{
		Command:  cmd,
		Log:      sim.LastExecutedActionsLog(),
		Snapshot: after,
		Diff:     domain.Diff(&before, &after),
		Resumed:  resumed,
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
