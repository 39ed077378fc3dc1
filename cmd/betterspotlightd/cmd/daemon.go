package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theroutercompany/betterspotlight/internal/daemon"
	"github.com/theroutercompany/betterspotlight/internal/output"
	"github.com/theroutercompany/betterspotlight/pkg/engine"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background search daemon",
		Long: `The daemon keeps the index and embedder loaded in memory so CLI
searches return instantly instead of re-opening every store on each
invocation.`,
	}
	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())
	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStart(cmd.Context(), cmd, foreground)
		},
	}
	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run in foreground")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStop(cmd)
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStatus(cmd.Context(), cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runDaemonStart(ctx context.Context, cmd *cobra.Command, foreground bool) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dcfg := daemon.DefaultConfig(cfg.Paths.DataDir)

	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		out.Status("", "daemon is already running")
		return nil
	}

	if foreground {
		out.Status("", "starting daemon in foreground...")
		out.Status("", fmt.Sprintf("socket: %s", dcfg.SocketPath))

		eng, err := engine.Open(cfg, slog.Default())
		if err != nil {
			return fmt.Errorf("open engine: %w", err)
		}
		defer eng.Close()
		eng.Start(ctx)
		defer eng.Stop()

		d, err := daemon.NewDaemon(dcfg, eng, slog.Default())
		if err != nil {
			return fmt.Errorf("create daemon: %w", err)
		}
		return d.Start(ctx)
	}

	out.Status("", "starting daemon in background...")
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("get executable path: %w", err)
	}
	bgCmd := exec.Command(execPath, "--config-dir", configDir, "daemon", "start", "--foreground")
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	for i := 0; i < 50; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon exited unexpectedly with code 0")
		default:
		}
		time.Sleep(100 * time.Millisecond)
		if client.IsRunning() {
			out.Success(fmt.Sprintf("daemon started (pid: %d)", bgCmd.Process.Pid))
			return nil
		}
	}
	return fmt.Errorf("daemon failed to start within timeout")
}

func runDaemonStop(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dcfg := daemon.DefaultConfig(cfg.Paths.DataDir)
	pidFile := daemon.NewPIDFile(dcfg.PIDPath)

	pid, err := pidFile.Read()
	if err != nil {
		out.Status("", "daemon is not running")
		return nil
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("stop daemon: %w", err)
	}

	client := daemon.NewClient(dcfg)
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !client.IsRunning() {
			out.Success(fmt.Sprintf("daemon stopped (was pid: %d)", pid))
			return nil
		}
	}

	out.Status("", "daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("kill daemon: %w", err)
	}
	out.Success("daemon killed")
	return nil
}

func runDaemonStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dcfg := daemon.DefaultConfig(cfg.Paths.DataDir)
	client := daemon.NewClient(dcfg)

	if !client.IsRunning() {
		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(daemon.StatusResult{Running: false})
		}
		out.Status("", "daemon is not running")
		out.Status("", "run 'betterspotlightd daemon start' to start it")
		return nil
	}

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	out.Status("", "daemon is running")
	out.Status("", fmt.Sprintf("  PID:                %d", status.PID))
	out.Status("", fmt.Sprintf("  Uptime:             %s", status.Uptime))
	out.Status("", fmt.Sprintf("  Generation:         %s", status.GenerationID))
	out.Status("", fmt.Sprintf("  Items indexed:      %d", status.ItemCount))
	out.Status("", fmt.Sprintf("  Vectors:            %d", status.VectorCount))
	out.Status("", fmt.Sprintf("  Embeddings pending: %d", status.EmbeddingsPending))
	out.Status("", fmt.Sprintf("  Queue depth:        %d", status.QueueDepth))
	out.Status("", fmt.Sprintf("  Socket:             %s", dcfg.SocketPath))
	return nil
}
