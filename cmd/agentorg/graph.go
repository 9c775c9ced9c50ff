package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikaYeghi/agent-first/internal/cli"
	"github.com/MikaYeghi/agent-first/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph [graph]",
	Short: "Export the graph as a Mermaid diagram",
	Long: `Outputs a Mermaid diagram (graph TD) of the nodes, their handlers and the
edges between them. With --session the conversation's visited path and
current node are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd, args)
		if err != nil {
			return err
		}
		st, err := cli.NewStack(cmd.Context(), cfg, logger, cli.BuildOptions{})
		if err != nil {
			return err
		}
		defer st.Close(context.Background())

		var overlay *graph.Overlay
		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			state, err := st.Engine.Session(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("load session %s: %w", sessionID, err)
			}
			overlay = graph.OverlayFromState(state)
		}

		g := st.Engine.Graph()
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g.Nodes(), g.Edges(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("session", "s", "", "Highlight the path of this conversation")
}
