package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/fsmsim"
	"github.com/aretw0/fsmsim/internal/presentation/tui"
	"github.com/aretw0/fsmsim/pkg/runner"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

type replOptions struct {
	path        string
	sets        []string
	breakpoints []string
	haltOnError bool
	stopTick    int
	jsonMode    bool
	stopOnHalt  bool
	styler      *tui.Styler
}

// replCmd represents the repl command
var replCmd = &cobra.Command{
	Use:   "repl <machine-file>",
	Short: "Drive a machine interactively",
	Long: `Starts a line-based session against a machine. Type an event name to deliver
it, an empty line to advance one tick, or :help for the meta commands.

With --json the session reads one command per line (a JSON string is an event,
an object is a journal command such as {"op":"set_variable","name":"x","value":1})
and writes one JSON object per outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := replOptions{path: args[0]}
		opts.sets, _ = cmd.Flags().GetStringArray("set")
		opts.breakpoints, _ = cmd.Flags().GetStringSlice("breakpoint")
		opts.haltOnError, _ = cmd.Flags().GetBool("halt-on-error")
		opts.stopTick, _ = cmd.Flags().GetInt("stop-tick")
		opts.jsonMode, _ = cmd.Flags().GetBool("json")
		opts.stopOnHalt, _ = cmd.Flags().GetBool("exit-on-halt")

		profile := termenv.Ascii
		if !opts.jsonMode && tui.IsTerminal(os.Stdout) {
			profile = termenv.ColorProfile()
			tui.PrintBanner(cmd.OutOrStdout(), profile)
		}
		opts.styler = tui.NewStyler(profile)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		if err == context.Canceled {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(replCmd)

	replCmd.Flags().StringArray("set", nil, "Initial variable as name=value (value parsed as YAML), repeatable")
	replCmd.Flags().StringSliceP("breakpoint", "b", nil, "State breakpoints")
	replCmd.Flags().Bool("halt-on-error", false, "Halt the simulation on the first action error")
	replCmd.Flags().Int("stop-tick", 0, "Halt once the tick counter reaches this value (0 disables)")
	replCmd.Flags().Bool("json", false, "Exchange newline-delimited JSON instead of text")
	replCmd.Flags().Bool("exit-on-halt", false, "Leave the session as soon as the simulation halts")
}

func runREPL(ctx context.Context, in io.Reader, w io.Writer, opts replOptions) error {
	vars, err := parseAssignments(opts.sets)
	if err != nil {
		return err
	}
	sim, err := fsmsim.Load(opts.path,
		fsmsim.WithLogger(logger),
		fsmsim.WithHaltOnActionError(opts.haltOnError),
		fsmsim.WithStopTick(opts.stopTick),
		fsmsim.WithInitialVariables(vars),
	)
	if err != nil {
		return err
	}
	for _, bp := range opts.breakpoints {
		sim.AddStateBreakpoint(bp)
	}

	var handler runner.IOHandler
	if opts.jsonMode {
		handler = runner.NewJSONHandler(in, w)
	} else {
		textOpts := []runner.TextHandlerOption{}
		if opts.styler != nil {
			textOpts = append(textOpts, runner.WithTextHandlerStyler(opts.styler.Line))
		}
		handler = runner.NewTextHandler(in, w, textOpts...)
		fmt.Fprintf(w, "Simulating %s. Type :help for commands.\n", opts.path)
	}

	r := runner.NewRunner(handler,
		runner.WithLogger(logger),
		runner.WithStopOnHalt(opts.stopOnHalt),
	)
	return r.Run(ctx, sim)
}
