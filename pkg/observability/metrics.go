package observability

import (
	"context"

	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	StateEntries *prometheus.CounterVec
	Transitions  *prometheus.CounterVec
	Breakpoints  *prometheus.CounterVec
	Halts        *prometheus.CounterVec
	Ticks        prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StateEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsmsim_state_entries_total",
				Help: "Total number of state entries",
			},
			[]string{"machine", "state"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsmsim_transitions_total",
				Help: "Total number of completed transitions",
			},
			[]string{"machine", "event"},
		),
		Breakpoints: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsmsim_breakpoint_hits_total",
				Help: "Total number of state breakpoints hit",
			},
			[]string{"machine", "state"},
		),
		Halts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsmsim_halts_total",
				Help: "Total number of simulation halts",
			},
			[]string{"machine"},
		),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fsmsim_ticks_total",
			Help: "Total number of simulation steps",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.StateEntries, m.Transitions, m.Breakpoints, m.Halts, m.Ticks)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
// Eventless transitions are counted under the event label "<eventless>".
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) {
			m.StateEntries.WithLabelValues(machineLabel(e.Machine), e.State).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			event := e.Event
			if domain.IsInternalEvent(event) {
				event = "<eventless>"
			}
			m.Transitions.WithLabelValues(machineLabel(e.Machine), event).Inc()
		},
		OnBreakpoint: func(_ context.Context, e *domain.StateEvent) {
			m.Breakpoints.WithLabelValues(machineLabel(e.Machine), e.State).Inc()
		},
		OnHalt: func(_ context.Context, e *domain.HaltEvent) {
			m.Halts.WithLabelValues(machineLabel(e.Machine)).Inc()
		},
		OnTick: func(context.Context, *domain.TickEvent) {
			m.Ticks.Inc()
		},
	}
}

func machineLabel(path string) string {
	if path == "" {
		return "root"
	}
	return path
}
