package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/theroutercompany/betterspotlight/internal/daemon"
	"github.com/theroutercompany/betterspotlight/internal/output"
	"github.com/theroutercompany/betterspotlight/pkg/engine"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and freshness",
		Long: `status prefers the running daemon; if none is reachable it opens
the index directly just long enough to read health counters, then
closes it again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dcfg := daemon.DefaultConfig(cfg.Paths.DataDir)
	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		return runDaemonStatus(ctx, cmd, jsonOutput)
	}

	eng, err := engine.Open(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer eng.Close()
	status := eng.Status()

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	out := output.New(cmd.OutOrStdout())
	out.Status("", "daemon is not running (reading index directly)")
	out.Status("", fmt.Sprintf("  Data dir:           %s", status.DataDir))
	out.Status("", fmt.Sprintf("  Generation:         %s", status.GenerationID))
	out.Status("", fmt.Sprintf("  Items indexed:      %d", status.ItemCount))
	out.Status("", fmt.Sprintf("  Vectors:            %d", status.VectorCount))
	out.Status("", fmt.Sprintf("  Embeddings pending: %d", status.EmbeddingsPending))
	out.Status("", fmt.Sprintf("  Queue depth:        %d", status.Queue.LiveDepth+status.Queue.RebuildDepth))
	out.Status("", fmt.Sprintf("  Healthy:            %t", status.Health.IsHealthy))
	return nil
}
