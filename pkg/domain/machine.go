package domain

// StateDef declares one state of a machine level.
type StateDef struct {
	Name         string   `json:"name" yaml:"name" mapstructure:"name"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	IsInitial    bool     `json:"is_initial,omitempty" yaml:"is_initial,omitempty" mapstructure:"is_initial"`
	IsFinal      bool     `json:"is_final,omitempty" yaml:"is_final,omitempty" mapstructure:"is_final"`
	IsSuperstate bool     `json:"is_superstate,omitempty" yaml:"is_superstate,omitempty" mapstructure:"is_superstate"`
	EntryAction  string   `json:"entry_action,omitempty" yaml:"entry_action,omitempty" mapstructure:"entry_action"`
	DuringAction string   `json:"during_action,omitempty" yaml:"during_action,omitempty" mapstructure:"during_action"`
	ExitAction   string   `json:"exit_action,omitempty" yaml:"exit_action,omitempty" mapstructure:"exit_action"`
	SubFSM       *SubFSM  `json:"sub_fsm_data,omitempty" yaml:"sub_fsm_data,omitempty" mapstructure:"sub_fsm_data"`
	Properties   Metadata `json:"properties,omitempty" yaml:"properties,omitempty" mapstructure:"properties"`
}

// TransitionDef declares a transition between two states of the same level.
// An empty Event makes the transition eventless.
type TransitionDef struct {
	Source    string `json:"source" yaml:"source" mapstructure:"source"`
	Target    string `json:"target" yaml:"target" mapstructure:"target"`
	Event     string `json:"event,omitempty" yaml:"event,omitempty" mapstructure:"event"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty" mapstructure:"condition"`
	Action    string `json:"action,omitempty" yaml:"action,omitempty" mapstructure:"action"`
}

// SubFSM is the nested machine carried by a superstate.
type SubFSM struct {
	States      []StateDef      `json:"states" yaml:"states" mapstructure:"states"`
	Transitions []TransitionDef `json:"transitions" yaml:"transitions" mapstructure:"transitions"`
	Comments    []Comment       `json:"comments,omitempty" yaml:"comments,omitempty" mapstructure:"comments"`
}

// Metadata holds free-form annotations that the engine preserves but never interprets.
type Metadata map[string]any

// Comment is a diagram note kept alongside the machine.
type Comment struct {
	Text string  `json:"text" yaml:"text" mapstructure:"text"`
	X    float64 `json:"x,omitempty" yaml:"x,omitempty" mapstructure:"x"`
	Y    float64 `json:"y,omitempty" yaml:"y,omitempty" mapstructure:"y"`
}

// Machine is the root of a state machine description, as read from a .bsm file.
type Machine struct {
	Name        string          `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	States      []StateDef      `json:"states" yaml:"states" mapstructure:"states"`
	Transitions []TransitionDef `json:"transitions" yaml:"transitions" mapstructure:"transitions"`
	Comments    []Comment       `json:"comments,omitempty" yaml:"comments,omitempty" mapstructure:"comments"`
	Metadata    Metadata        `json:"metadata,omitempty" yaml:"metadata,omitempty" mapstructure:"metadata"`
}

// Sub returns the nested machine of a superstate as a standalone Machine.
// It returns false when the state is not a superstate or carries no states.
func (s StateDef) Sub() (Machine, bool) {
	if !s.IsSuperstate || s.SubFSM == nil || len(s.SubFSM.States) == 0 {
		return Machine{}, false
	}
	return Machine{
		Name:        s.Name,
		States:      s.SubFSM.States,
		Transitions: s.SubFSM.Transitions,
		Comments:    s.SubFSM.Comments,
	}, true
}

// State looks up a state by name on this level only.
func (m Machine) State(name string) (StateDef, bool) {
	for _, s := range m.States {
		if s.Name == name {
			return s, true
		}
	}
	return StateDef{}, false
}
