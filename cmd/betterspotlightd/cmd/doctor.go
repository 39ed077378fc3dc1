package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/theroutercompany/betterspotlight/internal/logging"
	"github.com/theroutercompany/betterspotlight/internal/output"
	"github.com/theroutercompany/betterspotlight/internal/profiling"
)

func newDoctorCmd() *cobra.Command {
	var dumpProfile bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration and environment problems",
		Long: `doctor checks configuration validity, data directory
writability, the .bsignore exclusion file, and embedding-provider
reachability, reporting each as it goes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), cmd, dumpProfile)
		},
	}
	cmd.Flags().BoolVar(&dumpProfile, "profile-dump", false, "write a heap and goroutine snapshot into the data dir's diagnostics/ folder")
	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, dumpProfile bool) error {
	out := output.New(cmd.OutOrStdout())
	ok := true

	cfg, err := loadConfig()
	if err != nil {
		out.Error(fmt.Sprintf("config: %s", err))
		return nil
	}
	out.Success("config loaded and valid")

	if len(cfg.Paths.Roots) == 0 {
		out.Warning("paths.roots is empty; nothing will be indexed")
		ok = false
	} else {
		for _, root := range cfg.Paths.Roots {
			if info, err := os.Stat(root); err != nil {
				out.Error(fmt.Sprintf("root %s: %s", root, err))
				ok = false
			} else if !info.IsDir() {
				out.Error(fmt.Sprintf("root %s: not a directory", root))
				ok = false
			} else {
				out.Success(fmt.Sprintf("root %s exists", root))
			}
		}
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		out.Error(fmt.Sprintf("data dir %s: %s", cfg.Paths.DataDir, err))
		ok = false
	} else {
		probe := cfg.Paths.DataDir + "/.doctor-probe"
		if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
			out.Error(fmt.Sprintf("data dir %s: not writable: %s", cfg.Paths.DataDir, err))
			ok = false
		} else {
			_ = os.Remove(probe)
			out.Success(fmt.Sprintf("data dir %s is writable", cfg.Paths.DataDir))
		}
	}

	if _, err := os.Stat(cfg.Paths.BsignorePath); err != nil {
		out.Status("", fmt.Sprintf(".bsignore not found at %s (default exclusions still apply)", cfg.Paths.BsignorePath))
	} else {
		out.Success(fmt.Sprintf(".bsignore found at %s", cfg.Paths.BsignorePath))
	}

	if cfg.Embedding.Provider == "ollama" {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		req, _ := http.NewRequestWithContext(checkCtx, http.MethodGet, cfg.Embedding.OllamaHost+"/api/tags", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			out.Warning(fmt.Sprintf("ollama at %s unreachable: %s", cfg.Embedding.OllamaHost, err))
			ok = false
		} else {
			_ = resp.Body.Close()
			out.Success(fmt.Sprintf("ollama reachable at %s", cfg.Embedding.OllamaHost))
		}
	}

	logPath := cfg.Logging.FilePath
	if logPath == "" {
		logPath = logging.DefaultLogPath()
	}
	maxSizeMB := cfg.Logging.MaxSizeMB
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if size, nearLimit, err := logging.FileStatus(logPath, maxSizeMB); err == nil {
		if nearLimit {
			out.Warning(fmt.Sprintf("log file %s is %d bytes, near its %d MB rotation threshold", logPath, size, maxSizeMB))
		} else {
			out.Success(fmt.Sprintf("log file %s is %d bytes", logPath, size))
		}
	}

	if dumpProfile {
		dir := cfg.Paths.DataDir + "/diagnostics"
		if err := profiling.NewProfiler().WriteDiagnostics(dir); err != nil {
			out.Warning(fmt.Sprintf("profile dump failed: %s", err))
		} else {
			out.Success(fmt.Sprintf("wrote heap/goroutine snapshot to %s", dir))
		}
	}

	if ok {
		out.Success("all checks passed")
	} else {
		out.Warning("one or more checks failed")
	}
	return nil
}
