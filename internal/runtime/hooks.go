package runtime

import (
	"context"
	"time"

	"github.com/aretw0/fsmsim/pkg/domain"
)

func (s *Simulator) base(t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      t,
		Machine:   s.path,
		Tick:      s.tick,
	}
}

func (s *Simulator) emitState(ctx context.Context, t domain.EventType, state string) {
	var hook func(context.Context, *domain.StateEvent)
	switch t {
	case domain.EventStateEnter:
		hook = s.hooks.OnStateEnter
	case domain.EventStateExit:
		hook = s.hooks.OnStateExit
	case domain.EventBreakpoint:
		hook = s.hooks.OnBreakpoint
	}
	if hook != nil {
		hook(ctx, &domain.StateEvent{EventBase: s.base(t), State: state})
	}
}

func (s *Simulator) emitTransition(ctx context.Context, source, target, event string) {
	if s.hooks.OnTransition != nil {
		s.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase: s.base(domain.EventTransition),
			Source:    source,
			Target:    target,
			Event:     event,
		})
	}
}

func (s *Simulator) emitHalt(ctx context.Context, reason string) {
	if s.hooks.OnHalt != nil {
		s.hooks.OnHalt(ctx, &domain.HaltEvent{EventBase: s.base(domain.EventHalt), Reason: reason})
	}
}

func (s *Simulator) emitTick(ctx context.Context) {
	if s.hooks.OnTick != nil {
		s.hooks.OnTick(ctx, &domain.TickEvent{
			EventBase: s.base(domain.EventTick),
			State:     s.CurrentStateName(),
			Variables: s.Variables(),
		})
	}
}
