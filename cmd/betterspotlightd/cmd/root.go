// Package cmd provides the betterspotlightd CLI commands.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/theroutercompany/betterspotlight/internal/config"
	"github.com/theroutercompany/betterspotlight/internal/logging"
	"github.com/theroutercompany/betterspotlight/internal/profiling"
	"github.com/theroutercompany/betterspotlight/pkg/version"
)

var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()

	debugMode      bool
	loggingCleanup func()

	configDir string
)

// NewRootCmd builds the betterspotlightd root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "betterspotlightd",
		Short:   "Local content-aware desktop search daemon",
		Version: version.Version,
		Long: `betterspotlightd indexes configured filesystem roots and serves
hybrid lexical/semantic search over them.

Run 'betterspotlightd index' once to build the initial index, then
'betterspotlightd serve' to run the MCP server, or 'betterspotlightd daemon
start' to keep the embedder warm for fast CLI searches.`,
	}
	root.SetVersionTemplate("betterspotlightd version {{.Version}}\n")

	root.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing .betterspotlight.yaml")
	root.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "write CPU profile to file")
	root.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "write memory profile to file")
	root.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "write execution trace to file")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	root.PersistentPreRunE = startProfilingAndLogging
	root.PersistentPostRunE = stopProfilingAndLogging

	root.AddCommand(newIndexCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newRebuildCmd())
	root.AddCommand(newDaemonCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if debugMode {
		logCfg := logging.DebugConfig()
		logger, cleanup, err := logging.Setup(logCfg)
		if err != nil {
			return fmt.Errorf("setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
	}
	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
	}
	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("start trace: %w", err)
		}
	}
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("write memory profile: %w", err)
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads configuration for configDir, applying CLI-relevant
// defaults.
func loadConfig() (*config.Config, error) {
	return config.Load(configDir)
}
