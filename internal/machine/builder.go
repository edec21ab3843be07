package machine

import (
	"fmt"
	"strings"

	"github.com/aretw0/fsmsim/internal/sandbox"
	"github.com/aretw0/fsmsim/pkg/domain"
)

// Build compiles a machine description into a Definition.
//
// A root machine without states is an error. A nested machine without states
// yields an empty Definition. Transitions that reference unknown states are
// dropped with a warning, and when no state is marked initial the first one is
// used.
func Build(m domain.Machine, root bool) (*Definition, error) {
	d := &Definition{
		Name:      m.Name,
		index:     make(map[string]StateID, len(m.States)),
		byEvent:   make(map[StateID]map[string][]int),
		eventless: make(map[StateID][]int),
	}
	if len(m.States) == 0 {
		if root {
			return nil, domain.ErrNoStates
		}
		return d, nil
	}

	initial := StateID(-1)
	for i, sd := range m.States {
		name := strings.TrimSpace(sd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: state #%d has no name", domain.ErrInvalidDefinition, i)
		}
		if _, dup := d.index[name]; dup {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateState, name)
		}
		id := StateID(i)
		d.index[name] = id

		st := State{
			ID:         id,
			Name:       name,
			Final:      sd.IsFinal,
			Superstate: sd.IsSuperstate,
			Entry:      d.compile(sd.EntryAction, sandbox.KindAction, "entry_"+name),
			During:     d.compile(sd.DuringAction, sandbox.KindAction, "during_"+name),
			Exit:       d.compile(sd.ExitAction, sandbox.KindAction, "exit_"+name),
		}
		if sd.IsInitial {
			if initial < 0 {
				initial = id
			} else {
				d.warnf("State '%s' is also marked initial; keeping '%s'.", name, m.States[initial].Name)
			}
		}
		if sub, ok := sd.Sub(); ok {
			st.Sub, st.SubErr = Build(sub, false)
		}
		d.States = append(d.States, st)
	}
	if initial < 0 {
		initial = 0
		d.warnf("No initial state defined. Defaulting to first state: %s", d.States[0].Name)
	}
	d.Initial = initial
	d.States[initial].Initial = true

	seen := make(map[string]bool)
	for _, td := range m.Transitions {
		src, okSrc := d.index[td.Source]
		dst, okDst := d.index[td.Target]
		if !okSrc || !okDst {
			d.warnf("Skipping transition from '%s' to '%s' due to missing state definition.", td.Source, td.Target)
			continue
		}
		t := Transition{
			Index:  len(d.Transitions),
			Source: src,
			Target: dst,
			Event:  strings.TrimSpace(td.Event),
		}
		if t.Event == "" {
			t.Event = domain.InternalEventName(td.Source, td.Target)
			t.Internal = true
		}
		t.Label = fmt.Sprintf("%s_to_%s_%s", td.Source, td.Target, t.Event)
		t.Condition = d.compile(td.Condition, sandbox.KindCondition, "cond_"+t.Label)
		t.Action = d.compile(td.Action, sandbox.KindAction, "action_"+t.Label)
		d.Transitions = append(d.Transitions, t)

		if t.Internal {
			d.eventless[src] = append(d.eventless[src], t.Index)
			continue
		}
		if d.byEvent[src] == nil {
			d.byEvent[src] = make(map[string][]int)
		}
		d.byEvent[src][t.Event] = append(d.byEvent[src][t.Event], t.Index)
		if !seen[t.Event] {
			seen[t.Event] = true
			d.events = append(d.events, t.Event)
		}
	}
	return d, nil
}

// compile turns a snippet into a program. Refused snippets become blocked
// programs and are recorded in d.Blocked.
func (d *Definition) compile(src string, kind sandbox.Kind, label string) *sandbox.Program {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	p, err := sandbox.Compile(src, kind)
	if err != nil {
		d.Blocked = append(d.Blocked, fmt.Sprintf("SecurityError: Code execution blocked for '%s'. Reason: %v", label, err))
		return sandbox.Blocked(src, kind, err)
	}
	return p
}

func (d *Definition) warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}
