package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/theroutercompany/betterspotlight/internal/output"
	"github.com/theroutercompany/betterspotlight/pkg/engine"
)

func newIndexCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or update the index for all configured roots",
		Long: `index opens the engine, runs an initial full scan of every root
in paths.roots, and waits for the scan and write-back to settle before
exiting. Use --wait=false to enqueue the scan and return immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, wait)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the initial scan to settle before exiting")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, wait bool) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Paths.Roots) == 0 {
		out.Warning("no paths.roots configured; nothing to index")
		out.Status("", "add roots to .betterspotlight.yaml or run 'betterspotlightd config'")
		return nil
	}

	out.Status("", fmt.Sprintf("opening index at %s", cfg.Paths.DataDir))
	eng, err := engine.Open(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer eng.Close()

	out.Status("🔍", fmt.Sprintf("scanning %d root(s)...", len(cfg.Paths.Roots)))
	eng.Start(ctx)
	eng.RebuildAll()

	if !wait {
		out.Success("scan enqueued")
		eng.Stop()
		return nil
	}

	settled := waitForQueueDrain(eng, cmd)
	eng.Stop()

	status := eng.Status()
	if settled {
		out.Success(fmt.Sprintf("indexed %d item(s), %d vector(s)", status.ItemCount, status.VectorCount))
	} else {
		out.Warning("scan still in progress; run 'betterspotlightd status' to check later")
	}
	return nil
}

// waitForQueueDrain polls engine status until the scheduler's queue
// empties or a generous timeout elapses, reporting progress as it goes.
func waitForQueueDrain(eng *engine.Engine, cmd *cobra.Command) bool {
	out := output.New(cmd.OutOrStdout())
	deadline := time.Now().Add(10 * time.Minute)
	lastDepth := -1
	for time.Now().Before(deadline) {
		status := eng.Status()
		depth := status.Queue.LiveDepth + status.Queue.RebuildDepth
		if depth != lastDepth {
			out.QueueStatus(depth, status.Telemetry.Indexed)
			lastDepth = depth
		}
		if depth == 0 && status.Telemetry.ItemsScanned > 0 {
			return true
		}
		time.Sleep(500 * time.Millisecond)
	}
	return false
}
