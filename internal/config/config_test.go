package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigReturnsSpecDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 20, cfg.Search.MaxResults)
	assert.Equal(t, 0.7, cfg.Search.SemanticSimilarityThreshold)
	assert.Equal(t, "sqlite", cfg.Search.Backend)

	assert.Equal(t, 200.0, cfg.Search.Weights.ExactName)
	assert.Equal(t, 150.0, cfg.Search.Weights.PrefixName)
	assert.Equal(t, 100.0, cfg.Search.Weights.ContainsName)
	assert.Equal(t, 90.0, cfg.Search.Weights.ExactPath)
	assert.Equal(t, 80.0, cfg.Search.Weights.PrefixPath)
	assert.Equal(t, 1.0, cfg.Search.Weights.Content)
	assert.Equal(t, 30.0, cfg.Search.Weights.Fuzzy)
	assert.Equal(t, 40.0, cfg.Search.Weights.Semantic)
	assert.Equal(t, 200.0, cfg.Search.Weights.PinnedBoost)
	assert.Equal(t, 50.0, cfg.Search.Weights.JunkPenalty)

	assert.Equal(t, 1000, cfg.Indexing.ChunkTargetSize)
	assert.Equal(t, 500, cfg.Indexing.ChunkMinSize)
	assert.Equal(t, 2000, cfg.Indexing.ChunkMaxSize)
	assert.Equal(t, 4000, cfg.Indexing.LiveLaneCapacity)
	assert.Equal(t, 20000, cfg.Indexing.RebuildLaneCapacity)
	assert.GreaterOrEqual(t, cfg.Indexing.PrepWorkers, 2)
	assert.LessOrEqual(t, cfg.Indexing.PrepWorkers, 3)
	assert.Equal(t, clamp(runtime.NumCPU()/4, 2, 3), cfg.Indexing.PrepWorkers)

	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadAppliesProjectFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
search:
  rrf_constant: 120
  max_results: 5
indexing:
  chunk_target_size: 1500
  chunk_min_size: 600
  chunk_max_size: 3000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".betterspotlight.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Search.RRFConstant)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, 1500, cfg.Indexing.ChunkTargetSize)
	// Untouched defaults survive the merge.
	assert.Equal(t, "sqlite", cfg.Search.Backend)
}

func TestLoadWithNoProjectFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
}

func TestApplyEnvOverridesTakesPrecedenceOverFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".betterspotlight.yaml"), []byte("search:\n  rrf_constant: 10\n"), 0o644))
	t.Setenv("BETTERSPOTLIGHT_RRF_CONSTANT", "99")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.Search.RRFConstant)
}

func TestValidateRejectsInvalidChunkSizeOrdering(t *testing.T) {
	cfg := NewConfig()
	cfg.Indexing.ChunkMinSize = 2000
	cfg.Indexing.ChunkMaxSize = 500
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownSearchBackend(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.Backend = "elasticsearch"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeSemanticThreshold(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.SemanticSimilarityThreshold = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())
}

func TestWriteYAMLThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewConfig()
	cfg.Search.RRFConstant = 42
	require.NoError(t, cfg.WriteYAML(path))

	reloaded := NewConfig()
	require.NoError(t, reloaded.loadYAML(path))
	assert.Equal(t, 42, reloaded.Search.RRFConstant)
}

func TestGetUserConfigPathHonorsXDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	got := GetUserConfigPath()
	assert.Equal(t, filepath.Join(dir, "betterspotlight", "config.yaml"), got)
}
