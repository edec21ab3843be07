/*
Package fsmsim is a simulation core for hierarchical finite-state machines whose
states and transitions carry small user-supplied code snippets.

A machine is a list of states and transitions. States may run entry, during and
exit actions; transitions may be guarded by a condition and run an action.
Superstates own a nested machine that is created fresh every time the
superstate is entered and destroyed when it is left.

# Concept

The simulator advances one tick per call to Step. A tick runs the current
state's during action, steps the active sub-machine, dispatches the event (if
any) and finally takes at most one eventless transition. Every observable effect
is appended to a drainable action log; callers read it with
LastExecutedActionsLog.

Snippets use a small Python-flavoured language: assignments, augmented
assignments, single-line if statements and expressions with an allowlist of
functions (print, len, abs, min, max, int, float, str, bool, round, type).
Imports, unknown calls, method calls and dunder attributes are rejected when the
machine is built, and the offending snippet degrades to a no-op (actions) or to
false (conditions).

# Key Features

  - Breakpoints: entering a state with a breakpoint pauses the simulation before
    its entry action; ContinueSimulation resumes.
  - Halt on action error: with WithHaltOnActionError, a failing action halts the
    simulation until Reset and Step returns a *domain.FSMError.
  - Shared variables: every nesting level reads and writes one variable store.
    When a sub-machine reaches a final state, "<superstate>_sub_completed" is set.
  - Observability: lifecycle hooks, slog integration and Prometheus metrics
    (pkg/observability).

# Usage

	sim, err := fsmsim.Load("./traffic_light.bsm", fsmsim.WithHaltOnActionError(true))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	for _, event := range []string{"timer", "timer", "timer"} {
		state, err := sim.Step(ctx, event)
		if err != nil {
			log.Fatal(err)
		}
		for _, line := range sim.LastExecutedActionsLog() {
			fmt.Println(line)
		}
		fmt.Println("now in", state)
	}

The cmd/fsmsim tool runs, validates and renders machine files from the command
line and serves simulation sessions over HTTP.
*/
package fsmsim
