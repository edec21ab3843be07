package dsl

import "github.com/aretw0/fsmsim/pkg/domain"

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	def     domain.StateDef
	sub     *Builder
	builder *Builder
}

// Initial marks the state as the level's starting state.
func (s *StateBuilder) Initial() *StateBuilder {
	s.def.IsInitial = true
	return s
}

// Final marks the state as final. A final state of a nested machine raises
// the parent's completion flag.
func (s *StateBuilder) Final() *StateBuilder {
	s.def.IsFinal = true
	return s
}

// Describe sets the human-readable description.
func (s *StateBuilder) Describe(text string) *StateBuilder {
	s.def.Description = text
	return s
}

// Entry sets the snippet run when the state is entered.
func (s *StateBuilder) Entry(code string) *StateBuilder {
	s.def.EntryAction = code
	return s
}

// During sets the snippet run on every tick spent in the state.
func (s *StateBuilder) During(code string) *StateBuilder {
	s.def.DuringAction = code
	return s
}

// Exit sets the snippet run when the state is left.
func (s *StateBuilder) Exit(code string) *StateBuilder {
	s.def.ExitAction = code
	return s
}

// Property adds a free-form annotation to the state.
func (s *StateBuilder) Property(key string, value any) *StateBuilder {
	if s.def.Properties == nil {
		s.def.Properties = make(domain.Metadata)
	}
	s.def.Properties[key] = value
	return s
}

// Sub turns the state into a superstate whose nested machine is defined by fn.
// Calling Sub again extends the same nested machine.
func (s *StateBuilder) Sub(fn func(*Builder)) *StateBuilder {
	s.def.IsSuperstate = true
	if s.sub == nil {
		s.sub = New(s.def.Name)
	}
	fn(s.sub)
	return s
}

// On adds a transition to target fired by event.
func (s *StateBuilder) On(event, target string) *TransitionBuilder {
	return s.transition(event, target)
}

// Go adds an eventless transition to target, evaluated on every tick.
func (s *StateBuilder) Go(target string) *TransitionBuilder {
	return s.transition("", target)
}

func (s *StateBuilder) transition(event, target string) *TransitionBuilder {
	tb := &TransitionBuilder{
		def:   domain.TransitionDef{Source: s.def.Name, Target: target, Event: event},
		state: s,
	}
	s.builder.transitions = append(s.builder.transitions, tb)
	return tb
}

// Build returns the underlying domain.StateDef.
// This is primarily used by the Builder, but exposed for advanced usage.
func (s *StateBuilder) Build() domain.StateDef {
	def := s.def
	if s.sub != nil {
		m := s.sub.Machine()
		def.SubFSM = &domain.SubFSM{
			States:      m.States,
			Transitions: m.Transitions,
			Comments:    m.Comments,
		}
	}
	return def
}

// TransitionBuilder configures one transition.
type TransitionBuilder struct {
	def   domain.TransitionDef
	state *StateBuilder
}

// When sets the guard condition.
func (t *TransitionBuilder) When(condition string) *TransitionBuilder {
	t.def.Condition = condition
	return t
}

// Do sets the snippet run while the transition fires.
func (t *TransitionBuilder) Do(code string) *TransitionBuilder {
	t.def.Action = code
	return t
}

// On adds another transition leaving the same state.
func (t *TransitionBuilder) On(event, target string) *TransitionBuilder {
	return t.state.On(event, target)
}

// Go adds another eventless transition leaving the same state.
func (t *TransitionBuilder) Go(target string) *TransitionBuilder {
	return t.state.Go(target)
}
