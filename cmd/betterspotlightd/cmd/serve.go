package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theroutercompany/betterspotlight/internal/mcpserver"
	"github.com/theroutercompany/betterspotlight/pkg/engine"
)

func newServeCmd() *cobra.Command {
	var transport string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `serve opens the index, starts the indexing pipeline and
background embedder, and exposes search/index_status/rebuild_index as
MCP tools until the process receives SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd, transport)
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport: stdio")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, transport string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.Default()
	eng, err := engine.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer eng.Close()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng.Start(sigCtx)
	defer eng.Stop()

	srv, err := mcpserver.NewServer(eng, logger)
	if err != nil {
		return fmt.Errorf("create mcp server: %w", err)
	}
	return srv.Serve(sigCtx, transport)
}
