package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/fsmsim/internal/runtime"
	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearMachine() domain.Machine {
	return domain.Machine{
		States: []domain.StateDef{
			{Name: "A", IsInitial: true},
			{Name: "B", EntryAction: "entered = True"},
		},
		Transitions: []domain.TransitionDef{
			{Source: "A", Target: "B", Event: "go"},
			{Source: "B", Target: "A", Event: "back"},
		},
	}
}

func TestBreakpoint_DefersEntryUntilContinue(t *testing.T) {
	ctx := context.Background()
	var hits []string
	hooks := domain.LifecycleHooks{
		OnBreakpoint: func(_ context.Context, e *domain.StateEvent) { hits = append(hits, e.State) },
	}
	sim, err := runtime.New(linearMachine(), runtime.WithLifecycleHooks(hooks))
	require.NoError(t, err)
	sim.AddStateBreakpoint("B")

	leaf, err := sim.Step(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, "B", leaf)
	assert.True(t, sim.Paused())
	assert.NotContains(t, sim.Variables(), "entered")
	assert.Equal(t, []string{"B"}, hits)

	tick := sim.Tick()
	sim.LastExecutedActionsLog()
	_, err = sim.Step(ctx, "back")
	require.NoError(t, err)
	assert.Equal(t, tick, sim.Tick())
	assert.Equal(t, "B", sim.CurrentStateName())
	assert.True(t, contains(sim.LastExecutedActionsLog(), "Use 'Continue'."))

	resumed, err := sim.ContinueSimulation(ctx)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.False(t, sim.Paused())
	assert.Equal(t, true, sim.Variables()["entered"])

	resumed, err = sim.ContinueSimulation(ctx)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.True(t, contains(sim.LastExecutedActionsLog(), "Continue called, but not paused at a breakpoint."))
}

func TestBreakpoint_OnInitialState(t *testing.T) {
	ctx := context.Background()
	m := linearMachine()
	m.States[0].EntryAction = "ready = True"

	sim, err := runtime.New(m)
	require.NoError(t, err)
	sim.AddStateBreakpoint("A")
	require.NoError(t, sim.Reset(ctx))

	assert.False(t, sim.Paused())
	assert.NotContains(t, sim.Variables(), "ready")

	_, err = sim.Step(ctx, "go")
	require.NoError(t, err)
	assert.True(t, sim.Paused())
	assert.Equal(t, "A", sim.CurrentStateName())

	_, err = sim.ContinueSimulation(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, sim.Variables()["ready"])
}

func TestBreakpoint_Remove(t *testing.T) {
	ctx := context.Background()
	sim, err := runtime.New(linearMachine())
	require.NoError(t, err)
	sim.AddStateBreakpoint("B")
	sim.RemoveStateBreakpoint("B")
	sim.RemoveStateBreakpoint("B")

	lines := sim.LastExecutedActionsLog()
	assert.Equal(t, 1, countContaining(lines, "Breakpoint REMOVED for state entry: B"))

	_, err = sim.Step(ctx, "go")
	require.NoError(t, err)
	assert.False(t, sim.Paused())
	assert.Equal(t, true, sim.Variables()["entered"])
}

func TestBreakpoint_InSubMachine(t *testing.T) {
	ctx := context.Background()
	sim, err := runtime.New(hierarchicalMachine())
	require.NoError(t, err)
	sim.AddStateBreakpoint("SubActive")

	_, _ = sim.Step(ctx, "start")
	sim.LastExecutedActionsLog()
	leaf, err := sim.Step(ctx, "activate")
	require.NoError(t, err)
	assert.Equal(t, "SubActive", leaf)
	assert.True(t, sim.Paused())
	assert.NotContains(t, sim.Variables(), "sub_entered")
	assert.True(t, contains(sim.LastExecutedActionsLog(), "Propagation: Parent PAUSED because sub-machine in 'Processing' hit a breakpoint."))

	resumed, err := sim.ContinueSimulation(ctx)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.False(t, sim.Paused())
	assert.Equal(t, true, sim.Variables()["sub_entered"])

	_, _ = sim.Step(ctx, "finish")
	assert.Equal(t, "Processing (SubDone)", sim.CurrentStateName())
}

func TestBreakpoint_SurvivesReset(t *testing.T) {
	ctx := context.Background()
	sim, err := runtime.New(linearMachine())
	require.NoError(t, err)
	sim.AddStateBreakpoint("B")
	require.NoError(t, sim.Reset(ctx))

	assert.Equal(t, []string{"B"}, sim.Snapshot().StateBreakpoints)
	_, _ = sim.Step(ctx, "go")
	assert.True(t, sim.Paused())

	require.NoError(t, sim.Reset(ctx))
	assert.False(t, sim.Paused())
	assert.Equal(t, "A", sim.CurrentStateName())
}

func TestBreakpoint_TransitionIsRecordedOnly(t *testing.T) {
	ctx := context.Background()
	sim, err := runtime.New(linearMachine())
	require.NoError(t, err)

	sim.AddTransitionBreakpoint("B", "A", "back")
	sim.AddTransitionBreakpoint("A", "B", "go")
	assert.Equal(t, []domain.TransitionBreakpoint{
		{Source: "A", Target: "B", Event: "go"},
		{Source: "B", Target: "A", Event: "back"},
	}, sim.TransitionBreakpoints())

	_, err = sim.Step(ctx, "go")
	require.NoError(t, err)
	assert.False(t, sim.Paused())
	assert.Equal(t, "B", sim.CurrentStateName())

	sim.RemoveTransitionBreakpoint("A", "B", "go")
	assert.Len(t, sim.TransitionBreakpoints(), 1)
}

func countContaining(lines []string, substr string) int {
	n := 0
	for _, l := range lines {
		if contains([]string{l}, substr) {
			n++
		}
	}
	return n
}
