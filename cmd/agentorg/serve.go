package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	agentfirst "github.com/MikaYeghi/agent-first"
	"github.com/MikaYeghi/agent-first/internal/cli"
	httpAdapter "github.com/MikaYeghi/agent-first/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve [graph]",
	Short: "Start the HTTP server",
	Long: `Serves the graph over a JSON API: stateless turns on /v1/response, stored
conversations under /v1/sessions and live session events on /v1/events.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd, args)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		st, err := cli.NewStack(sigCtx, cfg, logger, cli.BuildOptions{})
		if err != nil {
			return err
		}
		defer st.Close(context.Background())

		opts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithVersion(agentfirst.Version),
		}
		if cfg.HTTP.Metrics {
			opts = append(opts, httpAdapter.WithMetrics(st.Metrics.Handler()))
		}
		handler, err := httpAdapter.NewHandler(st.Engine, opts...)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("http server listening", "addr", srv.Addr, "graph", cfg.Graph)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-sigCtx.Done():
			logger.Info("shutting down", "signal", sigCtx.Signal())

			ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", cfg.HTTP.ShutdownTimeout, "err", err)
				if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from http.addr, :8080)")
}
