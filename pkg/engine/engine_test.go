package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/theroutercompany/betterspotlight/internal/config"
	"github.com/theroutercompany/betterspotlight/internal/indexer"
	"github.com/theroutercompany/betterspotlight/internal/queue"
	"github.com/theroutercompany/betterspotlight/internal/search"
)

// testConfig returns a config with no embedding provider configured, so
// Open never constructs a real embed.Embedder and the background embed
// loop exits immediately on an empty store instead of reaching out to
// Ollama.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.BsignorePath = ""
	cfg.Embedding.Provider = ""
	return cfg
}

func TestOpenStartStopWithNoRoots(t *testing.T) {
	cfg := testConfig(t)
	eng, err := Open(cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)

	require.Eventually(t, func() bool {
		return !eng.Embed.IsRunning()
	}, 2*time.Second, 10*time.Millisecond, "embed loop should finish with nothing to embed")

	eng.Stop()

	status := eng.Status()
	require.Equal(t, int64(0), status.ItemCount)
	require.Equal(t, 0, status.VectorCount)
}

func TestSearchFindsIndexedFile(t *testing.T) {
	cfg := testConfig(t)
	root := t.TempDir()
	cfg.Paths.Roots = []string{root}

	eng, err := Open(cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	path := filepath.Join(root, "roadmap.txt")
	require.NoError(t, os.WriteFile(path, []byte("quarterly roadmap notes"), 0o644))

	item := queue.WorkItem{Type: queue.NewFile, Path: path}
	prepared := eng.Indexer.PrepareWorkItem(context.Background(), item, 1)
	require.Nil(t, prepared.Failure)
	result := eng.Indexer.ApplyPreparedWork(prepared)
	require.Equal(t, indexer.StatusIndexed, result.Status)

	results, err := eng.Search(context.Background(), "roadmap", search.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, path, results[0].Item.Path)
}

func TestRebuildAllEnqueuesScan(t *testing.T) {
	cfg := testConfig(t)
	root := t.TempDir()
	cfg.Paths.Roots = []string{root}
	require.NoError(t, os.WriteFile(filepath.Join(root, "note.txt"), []byte("hello"), 0o644))

	eng, err := Open(cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)
	defer eng.Stop()

	eng.RebuildAll()

	require.Eventually(t, func() bool {
		return eng.Status().ItemCount > 0
	}, 5*time.Second, 20*time.Millisecond, "rebuild should index the existing file")
}
