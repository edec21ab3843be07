/*
Package runner drives a simulator interactively.

The runner reads commands from an IOHandler, applies them to a
fsmsim.Simulator and hands every outcome back to the handler. Two handlers
ship with the package:

  - TextHandler: a line-based REPL for terminals. A bare word is an event,
    an empty line is an eventless step and ":" prefixes meta commands.
  - JSONHandler: newline-delimited domain.Command objects in, one Output
    object per line out. Suited for driving the simulator from another
    process.

# Usage

	sim, _ := fsmsim.Load("traffic.yaml")
	r := runner.NewRunner(runner.NewTextHandler(os.Stdin, os.Stdout))
	if err := r.Run(ctx, sim); err != nil {
		log.Fatal(err)
	}
*/
package runner
