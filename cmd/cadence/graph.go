package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/cadence/internal/presentation/graph"
	"github.com/aretw0/cadence/procedures"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the procedure graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of procedures and the successors they can hand over to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := loadEngine(cmd)
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if current, _ := cmd.Flags().GetString("current"); current != "" {
			overlay = &graph.Overlay{Current: current}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(eng.Registry().States(), procedures.Initial, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().String("current", "", "Highlight this procedure")
}
