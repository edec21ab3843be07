package runner

import (
	"fmt"
	"strings"

	"github.com/aretw0/fsmsim/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ParseAssignment splits a name=value pair. The value is decoded as a YAML
// scalar, so 3 is an int, 1.5 a float, true a bool and anything else a string.
func ParseAssignment(pair string) (string, any, error) {
	name, raw, ok := strings.Cut(pair, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, fmt.Errorf("%w: %q: want name=value", ErrInvalidCommand, pair)
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return "", nil, fmt.Errorf("%w: %q: %v", ErrInvalidCommand, pair, err)
	}
	if value == nil && strings.TrimSpace(raw) != "null" {
		value = raw
	}
	return name, value, nil
}

// ParseLine turns one REPL line into a command. The line must already be
// sanitized. A bare word is an event and an empty line an eventless step.
// ":quit" yields ErrQuit.
func ParseLine(line string) (domain.Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ":") {
		if strings.ContainsAny(line, " \t") {
			return domain.Command{}, fmt.Errorf("%w: event %q contains whitespace", ErrInvalidCommand, line)
		}
		return domain.Command{Op: domain.OpStep, Event: line}, nil
	}

	verb, rest, _ := strings.Cut(line[1:], " ")
	args := strings.Fields(rest)
	switch verb {
	case "q", "quit", "exit":
		return domain.Command{}, ErrQuit
	case "s", "step":
		if len(args) > 1 {
			return domain.Command{}, fmt.Errorf("%w: usage: :step [event]", ErrInvalidCommand)
		}
		cmd := domain.Command{Op: domain.OpStep}
		if len(args) == 1 {
			cmd.Event = args[0]
		}
		return cmd, nil
	case "r", "reset":
		return domain.Command{Op: domain.OpReset}, nil
	case "c", "continue":
		return domain.Command{Op: domain.OpContinue}, nil
	case "set":
		name, value, err := ParseAssignment(rest)
		if err != nil {
			return domain.Command{}, err
		}
		return domain.Command{Op: domain.OpSetVariable, Name: name, Value: value}, nil
	case "break", "unbreak":
		if len(args) != 1 {
			return domain.Command{}, fmt.Errorf("%w: usage: :%s <state>", ErrInvalidCommand, verb)
		}
		op := domain.OpAddStateBreakpoint
		if verb == "unbreak" {
			op = domain.OpRemoveStateBreakpoint
		}
		return domain.Command{Op: op, Name: args[0]}, nil
	case "tbreak", "untbreak":
		if len(args) < 2 || len(args) > 3 {
			return domain.Command{}, fmt.Errorf("%w: usage: :%s <source> <target> [event]", ErrInvalidCommand, verb)
		}
		op := domain.OpAddTransitionBreakpoint
		if verb == "untbreak" {
			op = domain.OpRemoveTransitionBreakpoint
		}
		cmd := domain.Command{Op: op, Source: args[0], Target: args[1]}
		if len(args) == 3 {
			cmd.Event = args[2]
		}
		return cmd, nil
	default:
		return domain.Command{}, fmt.Errorf("%w: unknown meta command %q (try :help)", ErrInvalidCommand, ":"+verb)
	}
}

const helpText = `Commands:
  <event>                       deliver an event
  (empty line)                  advance one tick without an event
  :step [event]                 same as above, explicit
  :continue                     resume after a breakpoint
  :reset                        restart from the initial state
  :set name=value               assign a variable (value parsed as YAML)
  :break <state>                pause before entering state
  :unbreak <state>              remove a state breakpoint
  :tbreak <src> <dst> [event]   record a transition breakpoint
  :untbreak <src> <dst> [event] remove a transition breakpoint
  :help                         show this help
  :quit                         leave`
