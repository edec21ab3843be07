package runner

import (
	"context"
	"errors"

	"github.com/aretw0/fsmsim/pkg/domain"
)

var (
	// ErrQuit is returned by Input when the user asks to leave the session.
	ErrQuit = errors.New("quit")
	// ErrInvalidCommand marks input the handler could not turn into a command.
	// The runner reports it and keeps reading.
	ErrInvalidCommand = errors.New("invalid command")
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (REPL) and JSON (structured) modes.
type IOHandler interface {
	// Input reads the next command. io.EOF or ErrQuit end the session.
	Input(ctx context.Context) (domain.Command, error)

	// Output presents the outcome of one command.
	Output(ctx context.Context, out Output) error

	// SystemOutput presents a meta-message to the user (rejected input, notices).
	// This is distinct from simulation output.
	SystemOutput(ctx context.Context, msg string) error
}

// Output is the outcome of one command. The zero Command marks the output
// produced by building the simulator.
type Output struct {
	Command  domain.Command       `json:"command"`
	Log      []string             `json:"log"`
	Snapshot domain.Snapshot      `json:"snapshot"`
	Diff     *domain.SnapshotDiff `json:"diff,omitempty"`
	Resumed  bool                 `json:"resumed,omitempty"`
	Error    string               `json:"error,omitempty"`
}
