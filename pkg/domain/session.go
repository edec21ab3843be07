package domain

import "time"

// CommandOp names an operation recorded in a session journal.
type CommandOp string

const (
	OpStep                       CommandOp = "step"
	OpReset                      CommandOp = "reset"
	OpContinue                   CommandOp = "continue"
	OpSetVariable                CommandOp = "set_variable"
	OpAddStateBreakpoint         CommandOp = "add_state_breakpoint"
	OpRemoveStateBreakpoint      CommandOp = "remove_state_breakpoint"
	OpAddTransitionBreakpoint    CommandOp = "add_transition_breakpoint"
	OpRemoveTransitionBreakpoint CommandOp = "remove_transition_breakpoint"
)

// Command is one mutating call made against a session's simulator.
// Which fields are set depends on Op.
type Command struct {
	Op     CommandOp `json:"op"`
	Event  string    `json:"event,omitempty"`
	Name   string    `json:"name,omitempty"`
	Value  any       `json:"value,omitempty"`
	Source string    `json:"source,omitempty"`
	Target string    `json:"target,omitempty"`
}

// SessionConfig holds the construction options of a session's simulator.
type SessionConfig struct {
	HaltOnActionError bool           `json:"halt_on_action_error,omitempty"`
	StopTick          int            `json:"stop_tick,omitempty"`
	InitialVariables  map[string]any `json:"initial_variables,omitempty"`
}

// Session is the persisted form of a simulation session.
//
// Simulation is deterministic, so replaying Journal against a simulator built
// from Machine and Config restores the live state. Snapshot is the state after
// the last command and serves readers that do not need a live simulator.
type Session struct {
	ID        string        `json:"id"`
	Machine   Machine       `json:"machine"`
	Config    SessionConfig `json:"config"`
	Journal   []Command     `json:"journal,omitempty"`
	Snapshot  Snapshot      `json:"snapshot"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewSession creates a session record with an empty journal.
func NewSession(id string, m Machine, cfg SessionConfig) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Machine:   m,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Record appends a command and stores the resulting snapshot.
func (s *Session) Record(cmd Command, snap Snapshot) {
	s.Journal = append(s.Journal, cmd)
	s.Snapshot = snap
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Journal = append([]Command(nil), s.Journal...)
	c.Snapshot = s.Snapshot.Clone()
	if s.Config.InitialVariables != nil {
		c.Config.InitialVariables = make(map[string]any, len(s.Config.InitialVariables))
		for k, v := range s.Config.InitialVariables {
			c.Config.InitialVariables[k] = v
		}
	}
	return &c
}

// Normalize converts the json.Number values left by a UseNumber decoder back
// into ints and floats throughout the session.
func (s *Session) Normalize() {
	s.Config.InitialVariables = NormalizeVariables(s.Config.InitialVariables)
	s.Snapshot.Variables = NormalizeVariables(s.Snapshot.Variables)
	for i := range s.Journal {
		s.Journal[i].Value = NormalizeValue(s.Journal[i].Value)
	}
	normalizeMetadata(s.Machine.Metadata)
	normalizeStates(s.Machine.States)
}

func normalizeStates(states []StateDef) {
	for i := range states {
		normalizeMetadata(states[i].Properties)
		if sub := states[i].SubFSM; sub != nil {
			normalizeStates(sub.States)
		}
	}
}

func normalizeMetadata(md Metadata) {
	for k, v := range md {
		md[k] = NormalizeValue(v)
	}
}
