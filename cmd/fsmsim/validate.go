package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/fsmsim"
	"github.com/aretw0/fsmsim/internal/validator"
	"github.com/spf13/cobra"
)

var errWarnings = errors.New("warnings reported")

var validateCmd = &cobra.Command{
	Use:   "validate <machine-file>...",
	Short: "Check machine descriptions for consistency",
	Long: `Builds every machine and reports defaulted initial states, dropped transitions
and action snippets rejected by the safety check, followed by structural findings
such as unreachable states and dead ends. With --strict any warning fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, _ := cmd.Flags().GetBool("strict")
		out := cmd.OutOrStdout()

		var failed error
		for _, path := range args {
			sim, err := fsmsim.Load(path, fsmsim.WithLogger(logger))
			if err != nil {
				fmt.Fprintf(out, "%s: invalid: %v\n", path, err)
				failed = errors.Join(failed, fmt.Errorf("%s: %w", path, err))
				continue
			}
			warnings := sim.Warnings()
			for _, issue := range validator.Validate(sim.Machine()) {
				warnings = append(warnings, issue.String())
			}
			for _, w := range warnings {
				fmt.Fprintf(out, "%s: warning: %s\n", path, w)
			}
			if strict && len(warnings) > 0 {
				failed = errors.Join(failed, fmt.Errorf("%s: %w", path, errWarnings))
				continue
			}
			fmt.Fprintf(out, "%s: ok (initial state %s)\n", path, sim.CurrentStateName())
		}
		return failed
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "Treat warnings as errors")
}
