/*
Package domain contains the core types of the FSM simulator.

It defines the declarative machine description (states, transitions, nested
sub-machines), the lifecycle events emitted while simulating, breakpoints,
snapshots and the sentinel errors shared by every layer. The package is kept
free of I/O and third-party dependencies so adapters and the engine can both
depend on it.

# Key Entities

  - Machine: a level of states and transitions, as loaded from a .bsm file.
  - StateDef: a state with optional entry, during and exit snippets. A superstate
    carries a nested SubFSM.
  - TransitionDef: a guarded, optionally eventless transition with an action snippet.
  - Snapshot: the observable state of a simulation tree.
  - FSMError: the error raised to callers when a simulation halts or cannot start.
*/
package domain
