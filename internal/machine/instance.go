package machine

// Instance is a running copy of a Definition. It only tracks the current state;
// everything else is shared with the Definition.
type Instance struct {
	def     *Definition
	current StateID
}

// Instantiate returns an instance positioned on the initial state.
// It returns nil for an empty definition.
func (d *Definition) Instantiate() *Instance {
	if d.Empty() {
		return nil
	}
	return &Instance{def: d, current: d.Initial}
}

// Definition returns the definition the instance runs.
func (i *Instance) Definition() *Definition { return i.def }

// Current returns the active state.
func (i *Instance) Current() *State {
	return &i.def.States[i.current]
}

// MoveTo makes id the active state without running any callback.
func (i *Instance) MoveTo(id StateID) {
	i.current = id
}

// Candidates returns the transitions that event may fire from the active state,
// in declaration order.
func (i *Instance) Candidates(event string) []*Transition {
	return i.def.candidates(i.current, event)
}

// Eventless returns the eventless transitions leaving the active state.
func (i *Instance) Eventless() []*Transition {
	return i.def.eventlessFrom(i.current)
}

// Events returns the sorted, user-visible events accepted by the active state.
func (i *Instance) Events() []string {
	return i.def.eventsFrom(i.current)
}

// Handle is the value snippets see as "sm".
func (i *Instance) Handle() map[string]any {
	s := i.Current()
	return map[string]any{
		"name": i.def.Name,
		"current_state": map[string]any{
			"id":         s.Name,
			"name":       s.Name,
			"is_initial": s.Initial,
			"is_final":   s.Final,
		},
	}
}
