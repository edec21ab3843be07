package machine

import (
	"sort"

	"github.com/aretw0/fsmsim/internal/sandbox"
	"github.com/aretw0/fsmsim/pkg/domain"
)

// StateID indexes a state inside its Definition.
type StateID int

// State is a built state with its snippets compiled.
type State struct {
	ID         StateID
	Name       string
	Initial    bool
	Final      bool
	Superstate bool
	Entry      *sandbox.Program
	During     *sandbox.Program
	Exit       *sandbox.Program

	// Sub is the nested machine of a superstate. SubErr is set instead when the
	// nested machine could not be built; entering the state reports it.
	Sub    *Definition
	SubErr error
}

// Transition is a built transition. Event is synthesized for eventless transitions.
type Transition struct {
	Index     int
	Source    StateID
	Target    StateID
	Event     string
	Internal  bool
	Label     string
	Condition *sandbox.Program
	Action    *sandbox.Program
}

// Definition is an immutable, compiled machine level. It is built once and
// instantiated any number of times.
type Definition struct {
	Name        string
	States      []State
	Transitions []Transition
	Initial     StateID

	// Warnings are builder notes for the operator log.
	Warnings []string
	// Blocked lists snippets refused by the sandbox, one entry per snippet.
	Blocked []string

	index     map[string]StateID
	byEvent   map[StateID]map[string][]int
	eventless map[StateID][]int
	events    []string
}

// Empty reports whether the definition has no states and cannot be instantiated.
func (d *Definition) Empty() bool {
	return len(d.States) == 0
}

// State looks a state up by name.
func (d *Definition) State(name string) (*State, bool) {
	id, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return &d.States[id], true
}

// Events returns every user-visible event name in declaration order.
func (d *Definition) Events() []string {
	return append([]string(nil), d.events...)
}

// Outgoing returns the transitions leaving a state in declaration order.
func (d *Definition) Outgoing(id StateID) []*Transition {
	var out []*Transition
	for i := range d.Transitions {
		if d.Transitions[i].Source == id {
			out = append(out, &d.Transitions[i])
		}
	}
	return out
}

// candidates returns the transitions registered for event on a state.
func (d *Definition) candidates(id StateID, event string) []*Transition {
	idx := d.byEvent[id][event]
	out := make([]*Transition, len(idx))
	for i, n := range idx {
		out[i] = &d.Transitions[n]
	}
	return out
}

func (d *Definition) eventlessFrom(id StateID) []*Transition {
	idx := d.eventless[id]
	out := make([]*Transition, len(idx))
	for i, n := range idx {
		out[i] = &d.Transitions[n]
	}
	return out
}

func (d *Definition) eventsFrom(id StateID) []string {
	var out []string
	for event := range d.byEvent[id] {
		if !domain.IsInternalEvent(event) {
			out = append(out, event)
		}
	}
	sort.Strings(out)
	return out
}
