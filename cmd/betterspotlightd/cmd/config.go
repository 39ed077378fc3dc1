package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/theroutercompany/betterspotlight/internal/config"
	"github.com/theroutercompany/betterspotlight/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigBackupCmd())
	cmd.AddCommand(newConfigRestoreCmd())
	return cmd
}

func newConfigBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot .betterspotlight.yaml, keeping the 3 most recent backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			path, err := config.BackupUserConfig()
			if err != nil {
				return fmt.Errorf("backup config: %w", err)
			}
			if path == "" {
				out.Warning("no user config found to back up")
				return nil
			}
			out.Success(fmt.Sprintf("backed up config to %s", path))
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Restore .betterspotlight.yaml from a backup written by 'config backup'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			if err := config.RestoreUserConfig(args[0]); err != nil {
				return fmt.Errorf("restore config: %w", err)
			}
			out.Success("config restored")
			return nil
		},
	}
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var roots []string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .betterspotlight.yaml in --config-dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			path := filepath.Join(configDir, ".betterspotlight.yaml")
			if _, err := os.Stat(path); err == nil {
				out.Warning(fmt.Sprintf("%s already exists, not overwriting", path))
				return nil
			}

			cfg := config.NewConfig()
			if len(roots) > 0 {
				cfg.Paths.Roots = roots
			} else if home, err := os.UserHomeDir(); err == nil {
				cfg.Paths.Roots = []string{filepath.Join(home, "Documents")}
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			out.Success(fmt.Sprintf("wrote %s", path))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roots, "root", nil, "root path to index (repeatable); defaults to ~/Documents")
	return cmd
}
