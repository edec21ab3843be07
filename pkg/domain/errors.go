package domain

import (
	"errors"
	"fmt"
)

// ErrNoStates is returned when a root machine declares no states.
var ErrNoStates = errors.New("no states defined in the FSM")

// ErrInvalidDefinition is returned when a machine description is malformed.
var ErrInvalidDefinition = errors.New("invalid machine definition")

// ErrDuplicateState is returned when two states on the same level share a name.
var ErrDuplicateState = errors.New("duplicate state name")

// ErrActionFailed is returned when an action fails while halt-on-action-error is enabled.
var ErrActionFailed = errors.New("action failed")

// ErrHalted is returned by operations that require a running simulation.
var ErrHalted = errors.New("simulation halted")

// ErrInvalidVariable is returned when a variable name is not a valid, unreserved identifier.
var ErrInvalidVariable = errors.New("invalid variable name")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownCommand is returned when a session command names an unsupported operation.
var ErrUnknownCommand = errors.New("unknown command")

// ErrUnsupportedFormat is returned when a machine file has an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported machine file format")

// ErrEmptyFile is returned when a machine file has no content.
var ErrEmptyFile = errors.New("machine file is empty")

// ErrLockNotAcquired is returned when a distributed lock cannot be taken in time.
var ErrLockNotAcquired = errors.New("lock not acquired")

// FSMError is raised to callers for engine-level fatal conditions.
// Machine is the log prefix of the level that failed ("" for the root).
type FSMError struct {
	Machine string
	Message string
	Err     error
}

func (e *FSMError) Error() string {
	if e.Machine == "" {
		return fmt.Sprintf("fsm error: %s", e.Message)
	}
	return fmt.Sprintf("fsm error in %s: %s", e.Machine, e.Message)
}

func (e *FSMError) Unwrap() error {
	return e.Err
}
