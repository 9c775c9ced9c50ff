package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	agentfirst "github.com/MikaYeghi/agent-first"
	"github.com/MikaYeghi/agent-first/internal/cli"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored conversations",
	Long:  `List, inspect and remove conversations in the configured session store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored conversations",
	Args:  cobra.NoArgs,
	RunE: withEngine(func(cmd *cobra.Command, engine *agentfirst.Engine, _ []string) error {
		sessions, err := engine.ListSessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No stored conversations.")
			return nil
		}
		for _, id := range sessions {
			state, err := engine.Session(cmd.Context(), id)
			if err != nil {
				fmt.Fprintf(out, "- %s (unreadable: %v)\n", id, err)
				continue
			}
			fmt.Fprintf(out, "- %s at '%s', %d turns, %s\n", id, state.CurrentNodeID, state.TurnCount, state.Status)
		}
		return nil
	}),
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the state of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(cmd *cobra.Command, engine *agentfirst.Engine, ids []string) error {
		state, err := engine.Session(cmd.Context(), ids[0])
		if err != nil {
			return fmt.Errorf("load session '%s': %w", ids[0], err)
		}
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}),
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm [session-id...]",
	Short: "Remove conversations",
	Long:  `Removes the named conversations, or every stored conversation with --all.`,
	RunE: withEngine(func(cmd *cobra.Command, engine *agentfirst.Engine, ids []string) error {
		if all, _ := cmd.Flags().GetBool("all"); all {
			stored, err := engine.ListSessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			ids = stored
		}
		if len(ids) == 0 {
			return fmt.Errorf("no session ids given")
		}

		failed := 0
		for _, id := range ids {
			if err := engine.EndSession(cmd.Context(), id); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d sessions could not be removed", failed, len(ids))
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd, sessionInspectCmd, sessionRmCmd)

	sessionCmd.PersistentFlags().StringP("graph", "g", "", "Graph file (default from config)")
	sessionRmCmd.Flags().Bool("all", false, "Remove every stored conversation")
}

// withEngine builds the configured engine and passes the positional
// arguments through. The graph comes from --graph or the config, since the
// positional arguments are session ids.
func withEngine(fn func(*cobra.Command, *agentfirst.Engine, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var graphArgs []string
		if g, _ := cmd.Flags().GetString("graph"); g != "" {
			graphArgs = []string{g}
		}
		cfg, logger, err := setup(cmd, graphArgs)
		if err != nil {
			return err
		}
		st, err := cli.NewStack(cmd.Context(), cfg, logger, cli.BuildOptions{})
		if err != nil {
			return err
		}
		defer st.Close(context.Background())
		return fn(cmd, st.Engine, args)
	}
}
