package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikaYeghi/agent-first/internal/cli"
	"github.com/MikaYeghi/agent-first/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "agentorg",
	Short: "agentorg runs task-graph conversational agents",
	Long: `agentorg loads a dialogue graph, binds its nodes to agents and workers,
and holds conversations over it in the terminal, over HTTP or as an MCP server.

Configuration is read from agentorg.yaml in the working directory (or --config),
then AGENTORG_* environment variables, then flags.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./agentorg.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("debug", false, "Shorthand for --log-level debug")
}

// setup loads the configuration and builds the logger. A positional argument
// overrides the configured graph file.
func setup(cmd *cobra.Command, args []string) (*config.Config, *slog.Logger, error) {
	v := config.New()
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		if err := v.BindPFlag("log.level", f); err != nil {
			return nil, nil, err
		}
	}
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, file)
	if err != nil {
		return nil, nil, err
	}
	if len(args) > 0 {
		cfg.Graph = args[0]
	}

	debug, _ := cmd.Flags().GetBool("debug")
	logger, err := cli.NewLogger(cfg.Log, debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
