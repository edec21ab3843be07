package runtime

import (
	"context"
	"sort"

	"github.com/aretw0/fsmsim/internal/machine"
	"github.com/aretw0/fsmsim/pkg/domain"
)

// Step advances the tree by one tick, optionally delivering an event, and
// returns the leaf state afterwards. An empty event only runs during actions,
// sub-machines and eventless transitions.
//
// Stepping a halted or paused simulation is a logged no-op. The returned error
// is non-nil when an action fails in halt-on-action-error mode; the simulation
// is then halted until Reset.
func (s *Simulator) Step(ctx context.Context, event string) (string, error) {
	if err := ctx.Err(); err != nil {
		return s.CurrentLeafStateName(), err
	}
	before := s.tick
	_, err := s.step(ctx, event)
	if s.tick != before {
		s.afterTick(ctx)
	}
	return s.CurrentLeafStateName(), err
}

// step runs one tick on this level and reports whether any transition fired
// here or below.
func (s *Simulator) step(ctx context.Context, event string) (bool, error) {
	if s.halted {
		s.logf("Simulation HALTED. Event '%s' ignored. Reset required.", eventLabel(event))
		return false, nil
	}
	if s.paused {
		s.logf("Simulation PAUSED at breakpoint. Current state: %s. Event '%s' ignored. Use 'Continue'.", s.CurrentLeafStateName(), eventLabel(event))
		return false, nil
	}

	s.tick++
	if s.breakpointHit {
		s.pause("hit before this step")
		return false, nil
	}

	cur := s.inst.Current()
	if cur.During != nil {
		s.logf("During action for '%s': %s", cur.Name, cur.During.Source())
		if err := s.runAction(ctx, cur.During, "during_"+cur.Name); err != nil {
			return false, err
		}
	}

	childFired := false
	if s.sub != nil {
		fired, err := s.stepChild(ctx, event)
		if err != nil || s.halted || s.paused {
			return fired, err
		}
		childFired = fired
	}

	fired := false
	if event != "" {
		level := "main"
		if s.sub != nil {
			level = "parent"
		}
		s.logf("Sending event '%s' to FSM (current level: %s).", event, level)
		var err error
		fired, err = s.dispatch(ctx, event, childFired)
		if err != nil {
			return childFired || fired, err
		}
	}
	if !fired && !s.breakpointHit && !s.halted {
		var err error
		fired, err = s.eventless(ctx)
		if err != nil {
			return childFired || fired, err
		}
	}

	if s.breakpointHit {
		s.pause("hit during/after event processing")
	}
	return childFired || fired, nil
}

func (s *Simulator) stepChild(ctx context.Context, event string) (bool, error) {
	name := s.superstate
	s.logf("Stepping sub-machine in '%s' with event: %s.", name, eventLabel(event))
	child := s.sub
	fired, err := child.step(ctx, event)
	s.absorb(child)

	if child.halted {
		s.halt(ctx, "sub-machine error in '"+name+"'")
		s.logf("Propagation: Parent HALTED due to sub-machine error in '%s'.", name)
		return fired, err
	}
	if err != nil {
		return fired, err
	}
	if child.paused {
		s.paused = true
		s.logf("Propagation: Parent PAUSED because sub-machine in '%s' hit a breakpoint.", name)
		return fired, nil
	}

	if leaf := child.inst.Current(); leaf.Final {
		flag := domain.SubCompletedVariable(name)
		if done, _ := s.vars.get(flag); done != true {
			s.logf("Sub-machine in '%s' reached final state: '%s'.", name, leaf.Name)
			s.vars.set(flag, true)
			s.logf("Variable '%s' set to True in parent FSM.", flag)
		}
	}
	return fired, nil
}

// dispatch offers event to the transitions of the active state in declaration
// order and fires the first one whose condition holds.
func (s *Simulator) dispatch(ctx context.Context, event string, handledBelow bool) (bool, error) {
	candidates := s.inst.Candidates(event)
	if len(candidates) == 0 {
		if !handledBelow {
			s.logf("Event '%s' not allowed or no transition from '%s'.", event, s.CurrentLeafStateName())
		}
		return false, nil
	}
	for _, t := range candidates {
		if s.guard(t) {
			return true, s.fire(ctx, t, event)
		}
	}
	s.logf("Event '%s' ignored in '%s': no condition evaluated to True.", event, s.inst.Current().Name)
	return false, nil
}

// eventless takes at most one eventless transition from the active state.
func (s *Simulator) eventless(ctx context.Context) (bool, error) {
	for _, t := range s.inst.Eventless() {
		if s.guard(t) {
			return true, s.fire(ctx, t, t.Event)
		}
	}
	return false, nil
}

// fire performs an external transition: exit source, transition action, enter target.
func (s *Simulator) fire(ctx context.Context, t *machine.Transition, event string) error {
	src := &s.def.States[t.Source]
	dst := &s.def.States[t.Target]

	s.logf("Before transition on '%s' from '%s' to '%s'", event, src.Name, dst.Name)
	if err := s.exit(ctx, src); err != nil {
		return err
	}
	if err := s.runAction(ctx, t.Action, "action_"+t.Label); err != nil {
		return err
	}
	s.inst.MoveTo(t.Target)
	if err := s.enter(ctx, dst); err != nil {
		return err
	}
	s.logf("After transition on '%s' from '%s' to '%s'", event, src.Name, dst.Name)
	s.emitTransition(ctx, src.Name, dst.Name, event)
	return nil
}

// enter announces the state and either defers its entry work behind a
// breakpoint or completes it immediately.
func (s *Simulator) enter(ctx context.Context, st *machine.State) error {
	s.logf("Entering state: %s", st.Name)
	s.emitState(ctx, domain.EventStateEnter, st.Name)

	if s.breakpoints.HasState(st.Name) {
		s.logf("BREAKPOINT HIT on entering state: %s", st.Name)
		s.breakpointHit = true
		s.pending = st
		s.emitState(ctx, domain.EventBreakpoint, st.Name)
		return nil
	}
	return s.completeEntry(ctx, st)
}

func (s *Simulator) completeEntry(ctx context.Context, st *machine.State) error {
	if err := s.activate(ctx, st); err != nil {
		return err
	}
	return s.runAction(ctx, st.Entry, "entry_"+st.Name)
}

// activate creates the sub-simulator of an entered superstate.
func (s *Simulator) activate(ctx context.Context, st *machine.State) error {
	if !st.Superstate {
		return nil
	}
	var err error
	switch {
	case st.SubErr != nil:
		err = st.SubErr
	case st.Sub == nil || st.Sub.Empty():
		s.logf("Superstate '%s' has no sub-machine data or states defined.", st.Name)
		return nil
	default:
		s.logf("Creating and activating sub-machine for superstate '%s'", st.Name)
		var child *Simulator
		if child, err = s.spawn(ctx, st); err == nil {
			s.sub = child
			s.superstate = st.Name
			return nil
		}
	}

	s.logf("[Sub-FSM Error] Failed to initialize sub-machine for '%s': %v", st.Name, err)
	s.logger.Error("sub-machine initialization failed", "machine", s.path, "superstate", st.Name, "error", err)
	if !s.haltOnError {
		return nil
	}
	s.halt(ctx, "sub-machine initialization failed for '"+st.Name+"'")
	return &domain.FSMError{
		Machine: s.path,
		Message: "Sub-FSM init error for '" + st.Name + "': " + err.Error(),
		Err:     err,
	}
}

// exit runs the exit action and tears down the state's sub-simulator.
func (s *Simulator) exit(ctx context.Context, st *machine.State) error {
	s.logf("Exiting state: %s", st.Name)
	if err := s.runAction(ctx, st.Exit, "exit_"+st.Name); err != nil {
		return err
	}
	if s.sub != nil && s.superstate == st.Name {
		s.logf("Destroying active sub-machine from superstate '%s'.", st.Name)
		s.sub = nil
		s.superstate = ""
	}
	if st.Superstate {
		s.vars.delete(domain.SubCompletedVariable(st.Name))
	}
	s.emitState(ctx, domain.EventStateExit, st.Name)
	return nil
}

func (s *Simulator) pause(reason string) {
	s.paused = true
	s.breakpointHit = false
	s.logf("Simulation PAUSED at breakpoint (%s). Current state: %s", reason, s.CurrentLeafStateName())
}

func (s *Simulator) halt(ctx context.Context, reason string) {
	if s.halted {
		return
	}
	s.halted = true
	s.emitHalt(ctx, reason)
}

// afterTick runs root-level bookkeeping once a step consumed a tick.
func (s *Simulator) afterTick(ctx context.Context) {
	if s.stopTick > 0 && s.tick >= s.stopTick && !s.halted {
		s.logf("Stop tick %d reached. Simulation halted.", s.stopTick)
		s.halt(ctx, "stop tick reached")
	}
	s.emitTick(ctx)
}

// ContinueSimulation resumes a simulation paused on a breakpoint, running the
// entry work that the breakpoint deferred. It reports whether anything resumed.
func (s *Simulator) ContinueSimulation(ctx context.Context) (bool, error) {
	if !s.paused {
		s.logf("Continue called, but not paused at a breakpoint.")
		return false, nil
	}
	s.logf("Continuing simulation from breakpoint...")
	s.paused = false
	s.breakpointHit = false

	if child := s.sub; child != nil && child.paused {
		_, err := child.ContinueSimulation(ctx)
		s.absorb(child)
		if child.halted {
			s.halt(ctx, "sub-machine error in '"+s.superstate+"'")
			return true, err
		}
		if err != nil {
			return true, err
		}
	}

	if st := s.pending; st != nil {
		s.pending = nil
		if err := s.completeEntry(ctx, st); err != nil {
			return true, err
		}
	}
	return true, nil
}

// AddStateBreakpoint pauses the simulation whenever the named state is entered
// on any level.
func (s *Simulator) AddStateBreakpoint(name string) {
	s.breakpoints.States[name] = struct{}{}
	s.logf("Breakpoint ADDED for state entry: %s", name)
}

// RemoveStateBreakpoint clears a state breakpoint.
func (s *Simulator) RemoveStateBreakpoint(name string) {
	if !s.breakpoints.HasState(name) {
		return
	}
	delete(s.breakpoints.States, name)
	s.logf("Breakpoint REMOVED for state entry: %s", name)
}

// AddTransitionBreakpoint records a transition breakpoint. Stepping does not
// evaluate transition breakpoints.
func (s *Simulator) AddTransitionBreakpoint(source, target, event string) {
	s.breakpoints.Transitions[domain.TransitionBreakpoint{Source: source, Target: target, Event: event}] = struct{}{}
	s.logf("Transition breakpoint recorded: '%s' -> '%s' on '%s' (not evaluated).", source, target, eventLabel(event))
}

// RemoveTransitionBreakpoint forgets a transition breakpoint.
func (s *Simulator) RemoveTransitionBreakpoint(source, target, event string) {
	key := domain.TransitionBreakpoint{Source: source, Target: target, Event: event}
	if _, ok := s.breakpoints.Transitions[key]; !ok {
		return
	}
	delete(s.breakpoints.Transitions, key)
	s.logf("Transition breakpoint removed: '%s' -> '%s' on '%s'.", source, target, eventLabel(event))
}

// TransitionBreakpoints lists the recorded transition breakpoints.
func (s *Simulator) TransitionBreakpoints() []domain.TransitionBreakpoint {
	out := make([]domain.TransitionBreakpoint, 0, len(s.breakpoints.Transitions))
	for bp := range s.breakpoints.Transitions {
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Event < b.Event
	})
	return out
}

func eventLabel(event string) string {
	if event == "" {
		return "None"
	}
	return event
}
