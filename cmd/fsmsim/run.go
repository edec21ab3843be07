package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/fsmsim"
	"github.com/aretw0/fsmsim/internal/presentation/tui"
	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/aretw0/fsmsim/pkg/runner"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

// tickEvent stands for an eventless step in --events.
const tickEvent = "-"

type runOptions struct {
	path           string
	events         []string
	sets           []string
	breakpoints    []string
	haltOnError    bool
	stopTick       int
	autoContinue   bool
	jsonOutput     bool
	styler         *tui.Styler
	renderMarkdown func(string) (string, error)
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <machine-file>",
	Short: "Simulate a machine with a sequence of events",
	Long: `Loads a machine, delivers the given events one step at a time and prints the
action log of every step followed by a summary of the final state.
Use "-" in --events for an eventless step.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions{path: args[0]}
		opts.events, _ = cmd.Flags().GetStringSlice("events")
		opts.sets, _ = cmd.Flags().GetStringArray("set")
		opts.breakpoints, _ = cmd.Flags().GetStringSlice("breakpoint")
		opts.haltOnError, _ = cmd.Flags().GetBool("halt-on-error")
		opts.stopTick, _ = cmd.Flags().GetInt("stop-tick")
		opts.autoContinue, _ = cmd.Flags().GetBool("continue")
		opts.jsonOutput, _ = cmd.Flags().GetBool("json")
		noColor, _ := cmd.Flags().GetBool("no-color")

		profile := termenv.Ascii
		if !noColor && !opts.jsonOutput && tui.IsTerminal(os.Stdout) {
			profile = termenv.ColorProfile()
			opts.renderMarkdown = tui.NewRenderer(tui.TerminalWidth(os.Stdout, 80))
			tui.PrintBanner(cmd.OutOrStdout(), profile)
		}
		opts.styler = tui.NewStyler(profile)

		return runSimulation(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceP("events", "e", nil, `Events to deliver in order ("-" for an eventless step)`)
	runCmd.Flags().StringArray("set", nil, "Initial variable as name=value (value parsed as YAML), repeatable")
	runCmd.Flags().StringSliceP("breakpoint", "b", nil, "State breakpoints")
	runCmd.Flags().Bool("halt-on-error", false, "Halt the simulation on the first action error")
	runCmd.Flags().Int("stop-tick", 0, "Halt once the tick counter reaches this value (0 disables)")
	runCmd.Flags().Bool("continue", false, "Resume automatically when a breakpoint pauses the simulation")
	runCmd.Flags().Bool("json", false, "Print the final snapshot as JSON instead of a report")
	runCmd.Flags().Bool("no-color", false, "Disable colours and markdown rendering")
}

func runSimulation(ctx context.Context, w io.Writer, opts runOptions) error {
	if opts.styler == nil {
		opts.styler = tui.NewStyler(termenv.Ascii)
	}
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

	printLog := func() {
		if lines := sim.LastExecutedActionsLog(); len(lines) > 0 && !opts.jsonOutput {
			fmt.Fprintln(w, opts.styler.Lines(lines))
		}
	}
	printLog()

	var (
		delivered []string
		runErr    error
	)
	for _, event := range opts.events {
		if sim.Halted() {
			break
		}
		if sim.Paused() {
			if !opts.autoContinue {
				break
			}
			_, runErr = sim.ContinueSimulation(ctx)
			printLog()
			if runErr != nil {
				break
			}
		}
		if event == tickEvent {
			event = ""
		}
		_, runErr = sim.Step(ctx, event)
		delivered = append(delivered, eventName(event))
		printLog()
		if runErr != nil {
			break
		}
	}

	var fsmErr *domain.FSMError
	if runErr != nil && !errors.As(runErr, &fsmErr) {
		return runErr
	}

	snap := sim.Snapshot()
	if opts.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
	} else {
		report := tui.Report(snap, delivered)
		if opts.renderMarkdown != nil {
			if rendered, err := opts.renderMarkdown(report); err == nil {
				report = rendered
			}
		}
		fmt.Fprintln(w, report)
	}
	return runErr
}

func eventName(event string) string {
	if event == "" {
		return "(tick)"
	}
	return event
}

// parseAssignments turns name=value pairs into variables.
func parseAssignments(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, err := runner.ParseAssignment(pair)
		if err != nil {
			return nil, fmt.Errorf("invalid --set: %w", err)
		}
		vars[name] = value
	}
	return vars, nil
}
