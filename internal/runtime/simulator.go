package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/aretw0/fsmsim/internal/machine"
	"github.com/aretw0/fsmsim/internal/sandbox"
	"github.com/aretw0/fsmsim/pkg/domain"
)

// Simulator drives one level of a hierarchical state machine. When the active
// state is a superstate it owns a child Simulator for the nested machine; the
// child shares the variable store and breakpoints of the root.
//
// A Simulator is not safe for concurrent use.
type Simulator struct {
	def  *machine.Definition
	inst *machine.Instance

	parent *Simulator
	prefix string
	path   string

	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	haltOnError bool
	stopTick    int
	initialVars map[string]any

	vars        *variables
	breakpoints *domain.Breakpoints

	tick          int
	halted        bool
	paused        bool
	breakpointHit bool
	pending       *machine.State

	sub        *Simulator
	superstate string

	log actionLog
}

// New builds the machine and enters its initial state.
func New(m domain.Machine, opts ...Option) (*Simulator, error) {
	def, err := machine.Build(m, true)
	if err != nil {
		return nil, &domain.FSMError{Message: fmt.Sprintf("FSM Definition Error: %v", err), Err: err}
	}
	return NewFromDefinition(def, opts...)
}

// NewFromDefinition instantiates an already built definition.
func NewFromDefinition(def *machine.Definition, opts ...Option) (*Simulator, error) {
	if def == nil || def.Empty() {
		return nil, &domain.FSMError{Message: domain.ErrNoStates.Error(), Err: domain.ErrNoStates}
	}
	s := &Simulator{
		def:         def,
		logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		vars:        newVariables(),
		breakpoints: domain.NewBreakpoints(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for name, value := range s.initialVars {
		if !sandbox.ValidVariableName(name) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidVariable, name)
		}
		s.vars.set(name, value)
	}

	s.reportBuild()
	if err := s.start(context.Background()); err != nil {
		return nil, err
	}
	s.logf("FSM Initialized. Current state: %s", s.inst.Current().Name)
	return s, nil
}

// spawn creates the sub-simulator of a superstate.
func (s *Simulator) spawn(ctx context.Context, st *machine.State) (*Simulator, error) {
	child := &Simulator{
		def:         st.Sub,
		parent:      s,
		prefix:      fmt.Sprintf("[SUB-%s] ", st.Name),
		path:        joinPath(s.path, st.Name),
		logger:      s.logger.With("superstate", st.Name),
		hooks:       s.hooks,
		haltOnError: s.haltOnError,
		vars:        s.vars,
		breakpoints: s.breakpoints,
	}
	child.reportBuild()
	err := child.start(ctx)
	if err == nil {
		child.logf("FSM Initialized. Current state: %s", child.inst.Current().Name)
	}
	s.absorb(child)
	if err != nil {
		return nil, err
	}
	return child, nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// reportBuild publishes the builder's notes once per instantiated level.
func (s *Simulator) reportBuild() {
	for _, w := range s.def.Warnings {
		s.logger.Warn(w, "machine", s.path)
		s.logf("[Warning] %s", w)
	}
	for _, b := range s.def.Blocked {
		s.logger.Warn("snippet blocked", "machine", s.path, "reason", b)
		s.logf("[Safety Check Failed] %s", b)
	}
}

// start instantiates the definition and runs the initial state's entry.
func (s *Simulator) start(ctx context.Context) error {
	s.inst = s.def.Instantiate()
	return s.enter(ctx, s.inst.Current())
}

// Reset returns the tree to its initial configuration: variables cleared,
// tick zero, flags lowered and any sub-simulator discarded. Breakpoints are kept.
func (s *Simulator) Reset(ctx context.Context) error {
	s.logf("--- FSM Resetting ---")
	s.vars.clear()
	s.halted = false
	s.paused = false
	s.breakpointHit = false
	s.pending = nil
	s.tick = 0
	if s.sub != nil {
		s.logf("Discarding active sub-machine of '%s'.", s.superstate)
		s.sub = nil
		s.superstate = ""
	}
	if err := s.start(ctx); err != nil {
		return err
	}
	s.logf("FSM Reset. Current state: %s", s.inst.Current().Name)
	return nil
}

// absorb moves the child's pending log lines into this level's log.
func (s *Simulator) absorb(child *Simulator) {
	s.log.append(child.log.drain()...)
}

func (s *Simulator) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.log.append(fmt.Sprintf("%s[Tick %d] %s", s.prefix, s.tick, msg))
	s.logger.Debug(msg, "machine", s.path, "tick", s.tick)
}

// LastExecutedActionsLog drains the pending action log.
func (s *Simulator) LastExecutedActionsLog() []string {
	return s.log.drain()
}

// CurrentStateName returns the hierarchical name of the active configuration,
// e.g. "Processing (SubIdle)".
func (s *Simulator) CurrentStateName() string {
	if s.inst == nil {
		return domain.UnknownStateName
	}
	name := s.inst.Current().Name
	if s.sub != nil && s.sub.inst != nil {
		name = fmt.Sprintf("%s (%s)", name, s.sub.CurrentStateName())
	}
	return name
}

// CurrentLeafStateName returns the innermost active state.
func (s *Simulator) CurrentLeafStateName() string {
	if s.inst == nil {
		return domain.UnknownLeafStateName
	}
	if s.sub != nil && s.sub.inst != nil {
		return s.sub.CurrentLeafStateName()
	}
	return s.inst.Current().Name
}

// ActivePath lists the active state of every level, outermost first.
func (s *Simulator) ActivePath() []string {
	var path []string
	for level := s; level != nil && level.inst != nil; level = level.sub {
		path = append(path, level.inst.Current().Name)
	}
	return path
}

// PossibleEvents returns the events accepted anywhere on the active path,
// sorted and without synthesized eventless names.
func (s *Simulator) PossibleEvents() []string {
	set := make(map[string]struct{})
	for level := s; level != nil && level.inst != nil; level = level.sub {
		for _, e := range level.inst.Events() {
			set[e] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Variables returns a copy of the shared variable store.
func (s *Simulator) Variables() map[string]any {
	return s.vars.snapshot()
}

// SetVariable assigns a variable from outside the machine.
func (s *Simulator) SetVariable(name string, value any) error {
	if !sandbox.ValidVariableName(name) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidVariable, name)
	}
	old, ok := s.vars.get(name)
	s.vars.set(name, value)
	if ok {
		s.logf("Variable '%s' changed: %s -> %s", name, sandbox.Str(old), sandbox.Str(value))
	} else {
		s.logf("Variable '%s' set to %s", name, sandbox.Str(value))
	}
	return nil
}

// Tick returns the number of steps taken since construction or the last reset.
func (s *Simulator) Tick() int { return s.tick }

// Halted reports the sticky halted flag.
func (s *Simulator) Halted() bool { return s.halted }

// Paused reports whether the simulation waits on a breakpoint.
func (s *Simulator) Paused() bool { return s.paused }

// Definition returns the root definition.
func (s *Simulator) Definition() *machine.Definition { return s.def }

// Snapshot captures the observable state of the whole tree.
func (s *Simulator) Snapshot() domain.Snapshot {
	bps := make([]string, 0, len(s.breakpoints.States))
	for name := range s.breakpoints.States {
		bps = append(bps, name)
	}
	sort.Strings(bps)
	return domain.Snapshot{
		Name:             s.def.Name,
		CurrentState:     s.CurrentStateName(),
		CurrentLeafState: s.CurrentLeafStateName(),
		ActivePath:       s.ActivePath(),
		Tick:             s.tick,
		Variables:        s.Variables(),
		Halted:           s.halted,
		Paused:           s.paused,
		PossibleEvents:   s.PossibleEvents(),
		StateBreakpoints: bps,
	}
}
