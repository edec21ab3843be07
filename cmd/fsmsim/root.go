package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/fsmsim/internal/logging"
	"github.com/spf13/cobra"
)

var logger = logging.NewNop()

var rootCmd = &cobra.Command{
	Use:   "fsmsim",
	Short: "fsmsim simulates hierarchical state machines",
	Long: `fsmsim loads state machine descriptions (.bsm JSON or YAML), runs them
step by step with sandboxed actions, and serves simulation sessions over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		format, _ := cmd.Flags().GetString("log-format")
		levelName, _ := cmd.Flags().GetString("log-level")

		level, err := logging.ParseLevel(levelName)
		if err != nil {
			return err
		}
		if debug {
			level = slog.LevelDebug
		}
		switch logging.Format(format) {
		case logging.FormatText, logging.FormatJSON:
		default:
			return fmt.Errorf("unknown log format %q", format)
		}
		logger = logging.NewWithWriter(cmd.ErrOrStderr(), level, logging.Format(format))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (mirrors every action-log line)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
}
