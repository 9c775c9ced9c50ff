package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	agentfirst "github.com/MikaYeghi/agent-first"
	"github.com/MikaYeghi/agent-first/internal/cli"
	"github.com/MikaYeghi/agent-first/pkg/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [graph]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the graph to MCP clients as tools: get_response, converse,
get_graph and list_handlers.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd, args)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		st, err := cli.NewStack(sigCtx, cfg, logger, cli.BuildOptions{})
		if err != nil {
			return err
		}
		defer st.Close(context.Background())

		srv := mcp.NewServer(st.Engine, agentfirst.Version, logger)
		switch transport {
		case "stdio":
			logger.Info("mcp server starting (stdio)")
			return srv.ServeStdio()
		case "sse":
			baseURL := "http://localhost" + addr
			err := srv.ServeSSE(sigCtx, addr, baseURL)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("mcp server stopped")
			return nil
		default:
			return fmt.Errorf("unknown transport %q: supported are stdio and sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8081", "Listen address (only for SSE)")
}
