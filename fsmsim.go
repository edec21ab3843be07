package fsmsim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/aretw0/fsmsim/internal/runtime"
	"github.com/aretw0/fsmsim/internal/sandbox"
	"github.com/aretw0/fsmsim/pkg/adapters/file"
	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/aretw0/fsmsim/pkg/ports"
)

// Simulator is the high-level entry point of the library.
// It wraps the internal runtime and provides a simplified API for consumers.
//
// A Simulator is not safe for concurrent use; pkg/session serializes access
// when several callers share one.
type Simulator struct {
	runtime     *runtime.Simulator
	machine     domain.Machine
	loader      ports.MachineLoader
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	haltOnError bool
	stopTick    int
	initialVars map[string]any
	Name        string
}

// Option defines a functional option for configuring the Simulator.
type Option func(*Simulator)

// WithLogger sets a custom structured logger. Every action-log line is mirrored to it at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// WithHaltOnActionError makes runtime errors in actions fatal: the simulation
// halts and the failing call returns a *domain.FSMError.
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
// Reset does not re-apply them.
func WithInitialVariables(vars map[string]any) Option {
	return func(s *Simulator) {
		s.initialVars = maps.Clone(vars)
	}
}

// WithStopTick halts the simulation once the tick counter reaches n.
func WithStopTick(n int) Option {
	return func(s *Simulator) {
		s.stopTick = n
	}
}

// WithName overrides the machine name used in logs and snapshots.
func WithName(name string) Option {
	return func(s *Simulator) {
		s.Name = name
	}
}

// WithLoader resolves Load references through a custom MachineLoader instead of the filesystem.
func WithLoader(l ports.MachineLoader) Option {
	return func(s *Simulator) {
		s.loader = l
	}
}

// New builds the machine and enters its initial state.
func New(m domain.Machine, opts ...Option) (*Simulator, error) {
	s := &Simulator{}
	for _, opt := range opts {
		opt(s)
	}
	return s.init(m)
}

// Load reads a machine through the configured loader (files by default) and
// builds a Simulator for it.
func Load(ref string, opts ...Option) (*Simulator, error) {
	s := &Simulator{}
	for _, opt := range opts {
		opt(s)
	}

	var (
		m   domain.Machine
		err error
	)
	if s.loader != nil {
		m, err = s.loader.LoadMachine(ref)
	} else {
		m, err = file.Load(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load machine: %w", err)
	}
	return s.init(m)
}

func (s *Simulator) init(m domain.Machine) (*Simulator, error) {
	if s.Name != "" {
		m.Name = s.Name
	}
	s.Name = m.Name
	s.machine = m

	// Ensure logger is initialized (so we don't pass nil to runtime)
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if s.Name != "" {
		s.logger = s.logger.With("fsm", s.Name)
	}

	rt, err := runtime.New(m,
		runtime.WithLogger(s.logger),
		runtime.WithLifecycleHooks(s.hooks),
		runtime.WithHaltOnActionError(s.haltOnError),
		runtime.WithInitialVariables(s.initialVars),
		runtime.WithStopTick(s.stopTick),
	)
	if err != nil {
		return nil, err
	}
	s.runtime = rt
	return s, nil
}

// Step advances the simulation by one tick, delivering event if it is not
// empty, and returns the leaf state afterwards.
func (s *Simulator) Step(ctx context.Context, event string) (string, error) {
	return s.runtime.Step(ctx, event)
}

// Reset returns the simulation to its initial state with an empty variable map.
// Breakpoints are kept.
func (s *Simulator) Reset(ctx context.Context) error {
	return s.runtime.Reset(ctx)
}

// AddStateBreakpoint pauses the simulation when the named state is entered.
func (s *Simulator) AddStateBreakpoint(name string) {
	s.runtime.AddStateBreakpoint(name)
}

// RemoveStateBreakpoint removes a state breakpoint.
func (s *Simulator) RemoveStateBreakpoint(name string) {
	s.runtime.RemoveStateBreakpoint(name)
}

// AddTransitionBreakpoint records a transition breakpoint. Transition
// breakpoints never pause the simulation.
func (s *Simulator) AddTransitionBreakpoint(source, target, event string) {
	s.runtime.AddTransitionBreakpoint(source, target, event)
}

// RemoveTransitionBreakpoint forgets a transition breakpoint.
func (s *Simulator) RemoveTransitionBreakpoint(source, target, event string) {
	s.runtime.RemoveTransitionBreakpoint(source, target, event)
}

// TransitionBreakpoints lists the recorded transition breakpoints.
func (s *Simulator) TransitionBreakpoints() []domain.TransitionBreakpoint {
	return s.runtime.TransitionBreakpoints()
}

// ContinueSimulation resumes from a breakpoint and reports whether anything resumed.
func (s *Simulator) ContinueSimulation(ctx context.Context) (bool, error) {
	return s.runtime.ContinueSimulation(ctx)
}

// CurrentStateName returns the hierarchical state name, e.g. "Processing (SubIdle)".
func (s *Simulator) CurrentStateName() string {
	if s == nil || s.runtime == nil {
		return domain.UnknownStateName
	}
	return s.runtime.CurrentStateName()
}

// CurrentLeafStateName returns the innermost active state.
func (s *Simulator) CurrentLeafStateName() string {
	if s == nil || s.runtime == nil {
		return domain.UnknownLeafStateName
	}
	return s.runtime.CurrentLeafStateName()
}

// Variables returns a copy of the variable store.
func (s *Simulator) Variables() map[string]any {
	return s.runtime.Variables()
}

// SetVariable assigns a variable from outside the machine.
func (s *Simulator) SetVariable(name string, value any) error {
	return s.runtime.SetVariable(name, value)
}

// LastExecutedActionsLog drains the action log.
func (s *Simulator) LastExecutedActionsLog() []string {
	return s.runtime.LastExecutedActionsLog()
}

// PossibleEvents returns the events accepted at the leaf level and every enclosing level.
func (s *Simulator) PossibleEvents() []string {
	return s.runtime.PossibleEvents()
}

// Halted reports whether the simulation is halted until Reset.
func (s *Simulator) Halted() bool { return s.runtime.Halted() }

// Paused reports whether the simulation waits on a breakpoint.
func (s *Simulator) Paused() bool { return s.runtime.Paused() }

// Tick returns the number of steps since construction or the last Reset.
func (s *Simulator) Tick() int { return s.runtime.Tick() }

// Snapshot captures the observable state of the simulation.
func (s *Simulator) Snapshot() domain.Snapshot {
	return s.runtime.Snapshot()
}

// Machine returns the machine description the simulator was built from.
func (s *Simulator) Machine() domain.Machine {
	return s.machine
}

// Warnings returns the builder's notes about the machine: defaulted initial
// state, dropped transitions and snippets blocked by the safety check.
func (s *Simulator) Warnings() []string {
	def := s.runtime.Definition()
	return append(append([]string(nil), def.Warnings...), def.Blocked...)
}

// Apply runs a journal command against the simulator. It reports whether an
// OpContinue resumed a paused simulation.
func (s *Simulator) Apply(ctx context.Context, cmd domain.Command) (bool, error) {
	switch cmd.Op {
	case domain.OpStep:
		_, err := s.Step(ctx, cmd.Event)
		return false, err
	case domain.OpReset:
		return false, s.Reset(ctx)
	case domain.OpContinue:
		return s.ContinueSimulation(ctx)
	case domain.OpSetVariable:
		return false, s.SetVariable(cmd.Name, cmd.Value)
	case domain.OpAddStateBreakpoint:
		s.AddStateBreakpoint(cmd.Name)
	case domain.OpRemoveStateBreakpoint:
		s.RemoveStateBreakpoint(cmd.Name)
	case domain.OpAddTransitionBreakpoint:
		s.AddTransitionBreakpoint(cmd.Source, cmd.Target, cmd.Event)
	case domain.OpRemoveTransitionBreakpoint:
		s.RemoveTransitionBreakpoint(cmd.Source, cmd.Target, cmd.Event)
	default:
		return false, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, cmd.Op)
	}
	return false, nil
}

// CheckCodeSafety reports whether source would be accepted as an action
// snippet. When it is not, the message lists every violation found.
func CheckCodeSafety(source string) (bool, string) {
	return sandbox.CheckSafety(source)
}
