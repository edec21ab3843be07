package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/fsmsim/internal/machine"
	"github.com/aretw0/fsmsim/internal/sandbox"
	"github.com/aretw0/fsmsim/pkg/domain"
)

func (s *Simulator) scope() sandbox.Scope {
	return sandbox.Scope{
		Variables: s.vars.values,
		Tick:      s.tick,
		Machine:   s.inst.Handle(),
		Print: func(line string) {
			s.logf("[Output] %s", line)
		},
	}
}

// runAction executes an action snippet. Failures are logged; in
// halt-on-action-error mode they also halt the level and are returned.
func (s *Simulator) runAction(ctx context.Context, p *sandbox.Program, label string) error {
	if p == nil {
		return nil
	}
	if p.Blocked() != nil {
		s.logf("[Action Blocked by Safety Check] Unsafe code ignored: '%s'.", p.Source())
		return nil
	}

	state := s.inst.Current().Name
	s.logf("[Action Runtime] Executing: '%s' in state '%s' for '%s'", p.Source(), state, label)
	err := p.Exec(s.scope())
	if err == nil {
		s.logf("[Action Runtime] Finished: '%s'. Variables now: %s", p.Source(), sandbox.Str(s.vars.values))
		return nil
	}

	msg := fmt.Sprintf("%v in action '%s' (state context: %s). Code: '%s'", err, label, state, p.Source())
	s.logf("[Code Error] %s", msg)
	s.logger.Error("action failed", "machine", s.path, "label", label, "error", err)
	if !s.haltOnError {
		return nil
	}
	s.halt(ctx, msg)
	s.logf("[SIMULATION HALTED] %s", msg)
	return &domain.FSMError{
		Machine: s.path,
		Message: msg,
		Err:     fmt.Errorf("%w: %w", domain.ErrActionFailed, err),
	}
}

// guard evaluates a transition condition. Unsafe or failing conditions are false.
func (s *Simulator) guard(t *machine.Transition) bool {
	p := t.Condition
	if p == nil {
		return true
	}
	if p.Blocked() != nil {
		s.logf("[Condition Blocked by Safety Check] Unsafe code: '%s' evaluated as False.", p.Source())
		return false
	}
	ok, err := p.Eval(s.scope())
	if err != nil {
		s.logf("[Code Error] %v in condition 'cond_%s' (state context: %s). Code: '%s'", err, t.Label, s.inst.Current().Name, p.Source())
		s.logger.Warn("condition failed", "machine", s.path, "label", t.Label, "error", err)
		return false
	}
	s.logf("[Condition Runtime] Result of '%s': %t", p.Source(), ok)
	return ok
}
