package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikaYeghi/agent-first/internal/cli"
	"github.com/MikaYeghi/agent-first/internal/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate [graph]",
	Short: "Check the graph for consistency",
	Long: `Loads the graph against the configured handlers, then crawls it from the
start node and reports unreachable nodes and edges that leave terminal nodes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd, args)
		if err != nil {
			return err
		}
		st, err := cli.NewStack(cmd.Context(), cfg, logger, cli.BuildOptions{})
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		defer st.Close(context.Background())

		if err := validator.ValidateGraph(st.Engine.Graph()); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Graph is valid: %d nodes, %d edges.\n",
			st.Engine.Graph().Len(), len(st.Engine.Graph().Edges()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
