package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/theroutercompany/betterspotlight/internal/daemon"
	"github.com/theroutercompany/betterspotlight/internal/output"
	"github.com/theroutercompany/betterspotlight/pkg/engine"
)

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Schedule a full reindex of every configured root",
		Long: `rebuild enqueues every root onto the scheduler's rebuild lane. If
a daemon is running it is asked to do the rebuild in the background;
otherwise this command opens the index, runs the rebuild, and waits
for it to settle before exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(cmd.Context(), cmd)
		},
	}
}

func runRebuild(ctx context.Context, cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dcfg := daemon.DefaultConfig(cfg.Paths.DataDir)
	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		if err := client.Rebuild(ctx); err != nil {
			return fmt.Errorf("rebuild via daemon: %w", err)
		}
		out.Success("rebuild scheduled on running daemon")
		return nil
	}

	eng, err := engine.Open(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer eng.Close()
	eng.Start(ctx)
	eng.RebuildAll()

	out.Status("🔁", "rebuild running...")
	settled := waitForQueueDrain(eng, cmd)
	eng.Stop()

	status := eng.Status()
	if settled {
		out.Success(fmt.Sprintf("rebuild complete: %d item(s), %d vector(s)", status.ItemCount, status.VectorCount))
	} else {
		out.Warning("rebuild still in progress; run 'betterspotlightd status' to check later")
	}
	return nil
}
