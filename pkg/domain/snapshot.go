package domain

import "maps"

// TransitionBreakpoint identifies a transition by its endpoints and event.
type TransitionBreakpoint struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Event  string `json:"event"`
}

// Breakpoints is the set of pause points of a simulation tree.
//
// Transition breakpoints are recorded but never evaluated while stepping;
// only state-entry breakpoints pause a simulation.
type Breakpoints struct {
	States      map[string]struct{}
	Transitions map[TransitionBreakpoint]struct{}
}

// NewBreakpoints returns an empty breakpoint set.
func NewBreakpoints() *Breakpoints {
	return &Breakpoints{
		States:      make(map[string]struct{}),
		Transitions: make(map[TransitionBreakpoint]struct{}),
	}
}

// HasState reports whether entering the named state pauses the simulation.
func (b *Breakpoints) HasState(name string) bool {
	_, ok := b.States[name]
	return ok
}

// Snapshot is a read-only view of a simulation tree at one point in time.
type Snapshot struct {
	Name             string         `json:"name,omitempty"`
	CurrentState     string         `json:"current_state"`
	CurrentLeafState string         `json:"current_leaf_state"`
	ActivePath       []string       `json:"active_path"`
	Tick             int            `json:"tick"`
	Variables        map[string]any `json:"variables"`
	Halted           bool           `json:"halted"`
	Paused           bool           `json:"paused"`
	PossibleEvents   []string       `json:"possible_events"`
	StateBreakpoints []string       `json:"state_breakpoints,omitempty"`
}

// Clone returns a deep enough copy for handing across goroutines.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.ActivePath = append([]string(nil), s.ActivePath...)
	c.PossibleEvents = append([]string(nil), s.PossibleEvents...)
	c.StateBreakpoints = append([]string(nil), s.StateBreakpoints...)
	c.Variables = maps.Clone(s.Variables)
	return c
}
