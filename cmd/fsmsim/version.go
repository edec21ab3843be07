package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/fsmsim"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of fsmsim",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fsmsim version %s\n", strings.TrimSpace(fsmsim.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
