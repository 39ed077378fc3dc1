package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/theroutercompany/betterspotlight/internal/daemon"
	"github.com/theroutercompany/betterspotlight/internal/output"
	"github.com/theroutercompany/betterspotlight/internal/search"
	"github.com/theroutercompany/betterspotlight/pkg/engine"
)

func newSearchCmd() *cobra.Command {
	var (
		limit        int
		mode         string
		cwd          string
		frontmostApp string
		jsonOutput   bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid lexical/semantic search",
		Long: `search prefers the running daemon for instant results; if no
daemon is reachable it falls back to opening the index directly, which
is slower because it must load the vector index from disk first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args[0], limit, mode, cwd, frontmostApp, jsonOutput)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results to return")
	cmd.Flags().StringVar(&mode, "mode", "auto", "FTS dispatch mode: auto, strict, or relaxed")
	cmd.Flags().StringVar(&cwd, "cwd", "", "current working directory, for cwd-proximity boosting")
	cmd.Flags().StringVar(&frontmostApp, "app", "", "frontmost application bundle id, for app-context boosting")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, limit int, mode, cwd, frontmostApp string, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cwd == "" {
		cwd, _ = os.Getwd()
	}

	dcfg := daemon.DefaultConfig(cfg.Paths.DataDir)
	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		results, err := client.Search(ctx, daemon.SearchParams{
			Query: query, Limit: limit, Mode: mode, CwdPath: cwd, FrontmostApp: frontmostApp,
		})
		if err != nil {
			return fmt.Errorf("search via daemon: %w", err)
		}
		return renderDaemonSearchResults(cmd, results, jsonOutput)
	}

	eng, err := engine.Open(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer eng.Close()

	results, err := eng.Search(ctx, query, search.Options{
		Limit:        limit,
		Mode:         search.Mode(mode),
		CwdPath:      cwd,
		FrontmostApp: frontmostApp,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return renderSearchResults(cmd, results, jsonOutput)
}

func renderSearchResults(cmd *cobra.Command, results []search.Result, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	out := output.New(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Status("", "no results")
		return nil
	}
	for i, r := range results {
		out.Status("", fmt.Sprintf("%2d. %-60s %6.1f  %s", i+1, r.Item.Path, r.Breakdown.Final, r.MatchType))
	}
	return nil
}

func renderDaemonSearchResults(cmd *cobra.Command, results []daemon.SearchResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	out := output.New(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Status("", "no results")
		return nil
	}
	for i, r := range results {
		out.Status("", fmt.Sprintf("%2d. %-60s %6.1f  %s", i+1, r.Path, r.Score, r.MatchType))
	}
	return nil
}
