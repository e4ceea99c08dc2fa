package main

import (
	"context"
	"fmt"

	"github.com/aretw0/questgraph/internal/cli"
	"github.com/aretw0/questgraph/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [document]",
	Short: "Export the quest as a Mermaid diagram",
	Long: `Compiles the document and outputs a Mermaid flowchart of its states.
With --instance, the active and visited states of a stored instance are
highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		instanceID, _ := cmd.Flags().GetString("instance")

		ctx := context.Background()
		rt, err := cli.Open(ctx, questArg(args), configPath, debug)
		if err != nil {
			return err
		}
		defer rt.Close()

		m, err := rt.Engine.Compile(ctx)
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if instanceID != "" {
			state, err := rt.Engine.State(ctx, instanceID)
			if err != nil {
				return err
			}
			overlay = graph.OverlayFor(m, state)
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(m, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("instance", "", "Highlight the progress of this instance")
}
