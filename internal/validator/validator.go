// Package validator lints machine descriptions for structural problems the
// builder accepts but that usually indicate a modelling mistake.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/fsmsim/pkg/domain"
)

// Issue is one finding. Level is the superstate path of the machine level,
// empty for the root.
type Issue struct {
	Level   string
	State   string
	Message string
}

func (i Issue) String() string {
	name := i.State
	if i.Level != "" {
		name = i.Level + "/" + i.State
	}
	return fmt.Sprintf("%s: %s", name, i.Message)
}

// Validate walks every level of m and reports unreachable states, non-final
// states without a way out, superstates without a nested machine and
// completion flags that can never be raised.
//
// Transitions whose endpoints do not exist are ignored here; the builder
// already drops and reports them.
func Validate(m domain.Machine) []Issue {
	var issues []Issue
	validateLevel(m, "", &issues)
	return issues
}

// ValidateGraph returns all issues as one error, or nil.
func ValidateGraph(m domain.Machine) error {
	issues := Validate(m)
	if len(issues) == 0 {
		return nil
	}
	lines := make([]string, len(issues))
	for i, is := range issues {
		lines[i] = is.String()
	}
	return fmt.Errorf("found %d errors:\n- %s", len(issues), strings.Join(lines, "\n- "))
}

func validateLevel(m domain.Machine, level string, issues *[]Issue) {
	if len(m.States) == 0 {
		return
	}
	report := func(state, format string, args ...any) {
		*issues = append(*issues, Issue{Level: level, State: state, Message: fmt.Sprintf(format, args...)})
	}

	known := make(map[string]domain.StateDef, len(m.States))
	for _, sd := range m.States {
		known[sd.Name] = sd
	}

	// Adjacency over transitions the builder keeps.
	next := make(map[string][]string)
	for _, td := range m.Transitions {
		if _, ok := known[td.Source]; !ok {
			continue
		}
		if _, ok := known[td.Target]; !ok {
			continue
		}
		next[td.Source] = append(next[td.Source], td.Target)
	}

	initial := m.States[0].Name
	for _, sd := range m.States {
		if sd.IsInitial {
			initial = sd.Name
			break
		}
	}

	// Breadth-first crawl from the initial state.
	visited := map[string]bool{initial: true}
	queue := []string{initial}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dst := range next[cur] {
			if !visited[dst] {
				visited[dst] = true
				queue = append(queue, dst)
			}
		}
	}

	for _, sd := range m.States {
		if !visited[sd.Name] {
			report(sd.Name, "unreachable from initial state '%s'", initial)
		}
		if !sd.IsFinal && len(next[sd.Name]) == 0 && !sd.IsSuperstate {
			report(sd.Name, "not final and has no outgoing transitions")
		}

		sub, hasSub := sd.Sub()
		switch {
		case sd.IsSuperstate && !hasSub:
			report(sd.Name, "superstate without nested states")
		case !sd.IsSuperstate && sd.SubFSM != nil && len(sd.SubFSM.States) > 0:
			report(sd.Name, "carries nested states but is not a superstate; they are ignored")
		}
		if !hasSub {
			continue
		}

		if !hasFinal(sub) && usesCompletion(m, sd.Name) {
			report(sd.Name, "'%s' is never set: the nested machine has no final state", domain.SubCompletedVariable(sd.Name))
		}
		if !sd.IsFinal && len(next[sd.Name]) == 0 {
			report(sd.Name, "superstate has no outgoing transitions")
		}

		child := sd.Name
		if level != "" {
			child = level + "/" + sd.Name
		}
		validateLevel(sub, child, issues)
	}
}

func hasFinal(m domain.Machine) bool {
	for _, sd := range m.States {
		if sd.IsFinal {
			return true
		}
	}
	return false
}

// usesCompletion reports whether a transition leaving superstate reads its
// completion flag.
func usesCompletion(m domain.Machine, superstate string) bool {
	flag := domain.SubCompletedVariable(superstate)
	for _, td := range m.Transitions {
		if td.Source == superstate && strings.Contains(td.Condition, flag) {
			return true
		}
	}
	return false
}
