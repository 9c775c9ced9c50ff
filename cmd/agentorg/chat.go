package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikaYeghi/agent-first/internal/cli"
	"github.com/MikaYeghi/agent-first/internal/presentation/tui"
	"github.com/MikaYeghi/agent-first/pkg/runner"
)

var chatCmd = &cobra.Command{
	Use:   "chat [graph]",
	Short: "Hold a conversation in the terminal",
	Long: `Starts a conversation over the graph and reads user messages from stdin.
With --session the conversation is stored and can be resumed later.
Type 'exit' or 'quit', or press Ctrl+D, to leave.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd, args)
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")
		fresh, _ := cmd.Flags().GetBool("fresh")
		watch, _ := cmd.Flags().GetBool("watch")
		jsonMode, _ := cmd.Flags().GetBool("json")
		timeout, _ := cmd.Flags().GetDuration("turn-timeout")

		if watch && jsonMode {
			return errors.New("--watch and --json cannot be used together")
		}

		opts := cli.ChatOptions{
			SessionID:   sessionID,
			Fresh:       fresh,
			Watch:       watch,
			TurnTimeout: timeout,
		}
		if jsonMode {
			opts.Handler = runner.NewJSONHandler(os.Stdin, os.Stdout)
		} else {
			tui.PrintBanner(os.Stdout)
			var textOpts []runner.TextHandlerOption
			if tui.IsTerminal(os.Stdout) {
				render, err := tui.NewRenderer(tui.Width(os.Stdout, 80))
				if err != nil {
					logger.Warn("markdown rendering disabled", "err", err)
				} else {
					textOpts = append(textOpts, runner.WithTextHandlerRenderer(render))
				}
			}
			opts.Handler = runner.NewTextHandler(os.Stdin, os.Stdout, textOpts...)
			opts.Out = os.Stdout
		}
		return cli.RunChat(cmd.Context(), cfg, logger, opts)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("session", "s", "", "Conversation id to create or resume")
	chatCmd.Flags().Bool("fresh", false, "Discard the stored conversation before starting")
	chatCmd.Flags().BoolP("watch", "w", false, "Reload the graph when its file changes")
	chatCmd.Flags().Bool("json", false, "Read and write NDJSON events instead of text")
	chatCmd.Flags().Duration("turn-timeout", 0, "Bound each turn (0 disables)")
}
