package main

import (
	"fmt"

	"github.com/aretw0/fsmsim/internal/presentation/graph"
	"github.com/aretw0/fsmsim/pkg/adapters/file"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <machine-file>",
	Short: "Export the state diagram of a machine",
	Long:  `Reads a machine description and prints a Mermaid stateDiagram-v2 or a Graphviz digraph of every level.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		m, err := file.Load(args[0])
		if err != nil {
			return err
		}

		var out string
		switch format {
		case "mermaid":
			out = graph.GenerateMermaid(m, nil)
		case "dot":
			out, err = graph.GenerateDOT(m, nil)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown graph format %q (want mermaid or dot)", format)
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("format", "f", "mermaid", "Output format: mermaid or dot")
}
