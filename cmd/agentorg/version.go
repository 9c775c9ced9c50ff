package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	agentfirst "github.com/MikaYeghi/agent-first"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of agentorg",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "agentorg version %s\n", strings.TrimSpace(agentfirst.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
