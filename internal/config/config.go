// Package config loads and validates betterspotlight's nested YAML
// configuration, applying defaults, then the user config file, then a
// project file, then environment overrides, in that order of increasing
// precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the complete betterspotlight configuration, mirroring the
// schema in SPEC_FULL.md section A.3.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Indexing   IndexingConfig   `yaml:"indexing" json:"indexing"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank"`
	Embedding  EmbeddingConfig  `yaml:"embedding" json:"embedding"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// RerankConfig configures the optional two-stage cross-encoder cascade
// (spec §4.15 step 10). Both stages talk to the same local inference
// server used for embedding.
type RerankConfig struct {
	Enabled                  bool    `yaml:"enabled" json:"enabled"`
	Endpoint                 string  `yaml:"endpoint" json:"endpoint"`
	Stage1Model              string  `yaml:"stage1_model" json:"stage1_model"`
	Stage2Model              string  `yaml:"stage2_model" json:"stage2_model"`
	Stage1MaxCandidates      int     `yaml:"stage1_max_candidates" json:"stage1_max_candidates"`
	Stage2MaxCandidates      int     `yaml:"stage2_max_candidates" json:"stage2_max_candidates"`
	RerankBudgetMs           int     `yaml:"rerank_budget_ms" json:"rerank_budget_ms"`
	Stage1Weight             float64 `yaml:"stage1_weight" json:"stage1_weight"`
	Stage2Weight             float64 `yaml:"stage2_weight" json:"stage2_weight"`
	AmbiguityMarginThreshold float64 `yaml:"ambiguity_margin_threshold" json:"ambiguity_margin_threshold"`
}

// PathsConfig configures which roots are indexed and where persisted
// state lives.
type PathsConfig struct {
	Roots         []string `yaml:"roots" json:"roots"`
	DataDir       string   `yaml:"data_dir" json:"data_dir"`
	BsignorePath  string   `yaml:"bsignore_path" json:"bsignore_path"`
}

// IndexingConfig tunes the pipeline's batching, backpressure, and worker
// counts (spec §4.6–4.8).
type IndexingConfig struct {
	LiveLaneCapacity      int `yaml:"live_lane_capacity" json:"live_lane_capacity"`
	RebuildLaneCapacity   int `yaml:"rebuild_lane_capacity" json:"rebuild_lane_capacity"`
	PrepWorkers           int `yaml:"prep_workers" json:"prep_workers"`
	BatchCommitSize       int `yaml:"batch_commit_size" json:"batch_commit_size"`
	BatchCommitIntervalMs int `yaml:"batch_commit_interval_ms" json:"batch_commit_interval_ms"`
	MaxScanDepth          int `yaml:"max_scan_depth" json:"max_scan_depth"`
	RetryBackoffBaseMs    int `yaml:"retry_backoff_base_ms" json:"retry_backoff_base_ms"`
	RetryBackoffCapMs     int `yaml:"retry_backoff_cap_ms" json:"retry_backoff_cap_ms"`
	ChunkTargetSize       int `yaml:"chunk_target_size" json:"chunk_target_size"`
	ChunkMinSize          int `yaml:"chunk_min_size" json:"chunk_min_size"`
	ChunkMaxSize          int `yaml:"chunk_max_size" json:"chunk_max_size"`
}

// SearchConfig configures hybrid ranking (spec §4.13–4.14, §6).
type SearchConfig struct {
	Backend                     string  `yaml:"backend" json:"backend"` // "sqlite" or "bleve"
	RRFConstant                 int     `yaml:"rrf_constant" json:"rrf_constant"`
	MaxResults                  int     `yaml:"max_results" json:"max_results"`
	SemanticSimilarityThreshold float64 `yaml:"semantic_similarity_threshold" json:"semantic_similarity_threshold"`
	Weights                     Weights `yaml:"weights" json:"weights"`
}

// Weights holds the default scoring weights from spec §6, all overridable.
type Weights struct {
	ExactName        float64 `yaml:"exact_name" json:"exact_name"`
	PrefixName       float64 `yaml:"prefix_name" json:"prefix_name"`
	ContainsName     float64 `yaml:"contains_name" json:"contains_name"`
	ExactPath        float64 `yaml:"exact_path" json:"exact_path"`
	PrefixPath       float64 `yaml:"prefix_path" json:"prefix_path"`
	Content          float64 `yaml:"content" json:"content"`
	Fuzzy            float64 `yaml:"fuzzy" json:"fuzzy"`
	Recency          float64 `yaml:"recency" json:"recency"`
	RecencyDecayDays float64 `yaml:"recency_decay_days" json:"recency_decay_days"`
	FrequencyTier1   float64 `yaml:"frequency_tier1" json:"frequency_tier1"`
	FrequencyTier2   float64 `yaml:"frequency_tier2" json:"frequency_tier2"`
	FrequencyTier3   float64 `yaml:"frequency_tier3" json:"frequency_tier3"`
	CwdBoost         float64 `yaml:"cwd_boost" json:"cwd_boost"`
	AppContextBoost  float64 `yaml:"app_context_boost" json:"app_context_boost"`
	Semantic         float64 `yaml:"semantic" json:"semantic"`
	PinnedBoost      float64 `yaml:"pinned_boost" json:"pinned_boost"`
	JunkPenalty      float64 `yaml:"junk_penalty" json:"junk_penalty"`
}

// EmbeddingConfig configures the embedding provider and background
// embedding loop (spec §4.10–4.12).
type EmbeddingConfig struct {
	Provider    string `yaml:"provider" json:"provider"`
	ModelID     string `yaml:"model_id" json:"model_id"`
	Dimensions  int    `yaml:"dimensions" json:"dimensions"`
	BatchSize   int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost  string `yaml:"ollama_host" json:"ollama_host"`
	EfConstruction int `yaml:"ef_construction" json:"ef_construction"`
	M              int `yaml:"m" json:"m"`
}

// ServerConfig configures the MCP transport (spec §6 query interface).
type ServerConfig struct {
	Transport  string `yaml:"transport" json:"transport"` // "stdio" or "socket"
	SocketPath string `yaml:"socket_path" json:"socket_path"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Console    bool   `yaml:"console" json:"console"`
}

// defaultExcludePatterns seed PathsConfig.Roots-adjacent .bsignore
// guidance; PathRules carries the authoritative exclusion list, this is
// only returned by DefaultExcludePatterns.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
}

// NewConfig returns a Config populated with spec-default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Roots:        []string{},
			DataDir:      defaultDataDir(),
			BsignorePath: defaultBsignorePath(),
		},
		Indexing: IndexingConfig{
			LiveLaneCapacity:      4000,
			RebuildLaneCapacity:   20000,
			PrepWorkers:           clamp(runtime.NumCPU()/4, 2, 3),
			BatchCommitSize:       100,
			BatchCommitIntervalMs: 250,
			MaxScanDepth:          64,
			RetryBackoffBaseMs:    50,
			RetryBackoffCapMs:     1000,
			ChunkTargetSize:       1000,
			ChunkMinSize:          500,
			ChunkMaxSize:          2000,
		},
		Search: SearchConfig{
			Backend:                     "sqlite",
			RRFConstant:                 60,
			MaxResults:                  20,
			SemanticSimilarityThreshold: 0.7,
			Weights: Weights{
				ExactName:        200,
				PrefixName:       150,
				ContainsName:     100,
				ExactPath:        90,
				PrefixPath:       80,
				Content:          1.0,
				Fuzzy:            30,
				Recency:          30,
				RecencyDecayDays: 7,
				FrequencyTier1:   10,
				FrequencyTier2:   20,
				FrequencyTier3:   30,
				CwdBoost:         25,
				AppContextBoost:  15,
				Semantic:         40,
				PinnedBoost:      200,
				JunkPenalty:      50,
			},
		},
		Rerank: RerankConfig{
			Enabled:                  false, // disabled until a cross-encoder model is confirmed available
			Endpoint:                 "http://localhost:11434",
			Stage1Model:              "qwen3-reranker-small",
			Stage2Model:              "qwen3-reranker",
			Stage1MaxCandidates:      40,
			Stage2MaxCandidates:      12,
			RerankBudgetMs:           120,
			Stage1Weight:             18,
			Stage2Weight:             35,
			AmbiguityMarginThreshold: 0.08,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			ModelID:        "nomic-embed-text",
			Dimensions:     0, // 0: auto-detect from the provider's first response
			BatchSize:      32,
			OllamaHost:     "http://localhost:11434",
			EfConstruction: 200,
			M:              16,
		},
		Server: ServerConfig{
			Transport: "stdio",
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "",
			MaxSizeMB:  10,
			MaxBackups: 5,
			Console:    false,
		},
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".betterspotlight")
	}
	return filepath.Join(home, ".betterspotlight")
}

func defaultBsignorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".bsignore")
	}
	return filepath.Join(home, ".bsignore")
}

// GetUserConfigPath returns the path to the user/global configuration
// file, honoring XDG_CONFIG_HOME.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "betterspotlight", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "betterspotlight", "config.yaml")
	}
	return filepath.Join(home, ".config", "betterspotlight", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the effective configuration for dir, applying in order of
// increasing precedence: hardcoded defaults, the user/global config,
// `.betterspotlight.yaml` in dir, then BETTERSPOTLIGHT_* environment
// variables. The result is validated before being returned.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".betterspotlight.yaml", ".betterspotlight.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields from other onto c. Zero values in
// other (unset in YAML) leave c's existing value untouched.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if len(other.Paths.Roots) > 0 {
		c.Paths.Roots = other.Paths.Roots
	}
	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.BsignorePath != "" {
		c.Paths.BsignorePath = other.Paths.BsignorePath
	}

	mergeInt(&c.Indexing.LiveLaneCapacity, other.Indexing.LiveLaneCapacity)
	mergeInt(&c.Indexing.RebuildLaneCapacity, other.Indexing.RebuildLaneCapacity)
	mergeInt(&c.Indexing.PrepWorkers, other.Indexing.PrepWorkers)
	mergeInt(&c.Indexing.BatchCommitSize, other.Indexing.BatchCommitSize)
	mergeInt(&c.Indexing.BatchCommitIntervalMs, other.Indexing.BatchCommitIntervalMs)
	mergeInt(&c.Indexing.MaxScanDepth, other.Indexing.MaxScanDepth)
	mergeInt(&c.Indexing.RetryBackoffBaseMs, other.Indexing.RetryBackoffBaseMs)
	mergeInt(&c.Indexing.RetryBackoffCapMs, other.Indexing.RetryBackoffCapMs)
	mergeInt(&c.Indexing.ChunkTargetSize, other.Indexing.ChunkTargetSize)
	mergeInt(&c.Indexing.ChunkMinSize, other.Indexing.ChunkMinSize)
	mergeInt(&c.Indexing.ChunkMaxSize, other.Indexing.ChunkMaxSize)

	if other.Search.Backend != "" {
		c.Search.Backend = other.Search.Backend
	}
	mergeInt(&c.Search.RRFConstant, other.Search.RRFConstant)
	mergeInt(&c.Search.MaxResults, other.Search.MaxResults)
	mergeFloat(&c.Search.SemanticSimilarityThreshold, other.Search.SemanticSimilarityThreshold)
	mergeWeights(&c.Search.Weights, other.Search.Weights)

	if other.Rerank.Enabled {
		c.Rerank.Enabled = other.Rerank.Enabled
	}
	if other.Rerank.Endpoint != "" {
		c.Rerank.Endpoint = other.Rerank.Endpoint
	}
	if other.Rerank.Stage1Model != "" {
		c.Rerank.Stage1Model = other.Rerank.Stage1Model
	}
	if other.Rerank.Stage2Model != "" {
		c.Rerank.Stage2Model = other.Rerank.Stage2Model
	}
	mergeInt(&c.Rerank.Stage1MaxCandidates, other.Rerank.Stage1MaxCandidates)
	mergeInt(&c.Rerank.Stage2MaxCandidates, other.Rerank.Stage2MaxCandidates)
	mergeInt(&c.Rerank.RerankBudgetMs, other.Rerank.RerankBudgetMs)
	mergeFloat(&c.Rerank.Stage1Weight, other.Rerank.Stage1Weight)
	mergeFloat(&c.Rerank.Stage2Weight, other.Rerank.Stage2Weight)
	mergeFloat(&c.Rerank.AmbiguityMarginThreshold, other.Rerank.AmbiguityMarginThreshold)

	if other.Embedding.Provider != "" {
		c.Embedding.Provider = other.Embedding.Provider
	}
	if other.Embedding.ModelID != "" {
		c.Embedding.ModelID = other.Embedding.ModelID
	}
	mergeInt(&c.Embedding.Dimensions, other.Embedding.Dimensions)
	mergeInt(&c.Embedding.BatchSize, other.Embedding.BatchSize)
	if other.Embedding.OllamaHost != "" {
		c.Embedding.OllamaHost = other.Embedding.OllamaHost
	}
	mergeInt(&c.Embedding.EfConstruction, other.Embedding.EfConstruction)
	mergeInt(&c.Embedding.M, other.Embedding.M)

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.SocketPath != "" {
		c.Server.SocketPath = other.Server.SocketPath
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	mergeInt(&c.Logging.MaxSizeMB, other.Logging.MaxSizeMB)
	mergeInt(&c.Logging.MaxBackups, other.Logging.MaxBackups)
	c.Logging.Console = c.Logging.Console || other.Logging.Console
}

func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

func mergeFloat(dst *float64, src float64) {
	if src != 0 {
		*dst = src
	}
}

func mergeWeights(dst *Weights, src Weights) {
	mergeFloat(&dst.ExactName, src.ExactName)
	mergeFloat(&dst.PrefixName, src.PrefixName)
	mergeFloat(&dst.ContainsName, src.ContainsName)
	mergeFloat(&dst.ExactPath, src.ExactPath)
	mergeFloat(&dst.PrefixPath, src.PrefixPath)
	mergeFloat(&dst.Content, src.Content)
	mergeFloat(&dst.Fuzzy, src.Fuzzy)
	mergeFloat(&dst.Recency, src.Recency)
	mergeFloat(&dst.RecencyDecayDays, src.RecencyDecayDays)
	mergeFloat(&dst.FrequencyTier1, src.FrequencyTier1)
	mergeFloat(&dst.FrequencyTier2, src.FrequencyTier2)
	mergeFloat(&dst.FrequencyTier3, src.FrequencyTier3)
	mergeFloat(&dst.CwdBoost, src.CwdBoost)
	mergeFloat(&dst.AppContextBoost, src.AppContextBoost)
	mergeFloat(&dst.Semantic, src.Semantic)
	mergeFloat(&dst.PinnedBoost, src.PinnedBoost)
	mergeFloat(&dst.JunkPenalty, src.JunkPenalty)
}

// applyEnvOverrides applies BETTERSPOTLIGHT_* environment variables, the
// highest-precedence configuration source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BETTERSPOTLIGHT_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("BETTERSPOTLIGHT_BSIGNORE_PATH"); v != "" {
		c.Paths.BsignorePath = v
	}
	if v := os.Getenv("BETTERSPOTLIGHT_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("BETTERSPOTLIGHT_SEARCH_BACKEND"); v != "" {
		c.Search.Backend = v
	}
	if v := os.Getenv("BETTERSPOTLIGHT_SEMANTIC_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.SemanticSimilarityThreshold = f
		}
	}
	if v := os.Getenv("BETTERSPOTLIGHT_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("BETTERSPOTLIGHT_RERANK_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Rerank.Enabled = b
		}
	}
	if v := os.Getenv("BETTERSPOTLIGHT_OLLAMA_HOST"); v != "" {
		c.Embedding.OllamaHost = v
	}
	if v := os.Getenv("BETTERSPOTLIGHT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks invariants that the pipeline and search stack depend on.
func (c *Config) Validate() error {
	if c.Indexing.LiveLaneCapacity <= 0 {
		return fmt.Errorf("indexing.live_lane_capacity must be positive")
	}
	if c.Indexing.RebuildLaneCapacity <= 0 {
		return fmt.Errorf("indexing.rebuild_lane_capacity must be positive")
	}
	if c.Indexing.PrepWorkers <= 0 {
		return fmt.Errorf("indexing.prep_workers must be positive")
	}
	if c.Indexing.ChunkMinSize <= 0 || c.Indexing.ChunkTargetSize < c.Indexing.ChunkMinSize || c.Indexing.ChunkMaxSize < c.Indexing.ChunkTargetSize {
		return fmt.Errorf("indexing chunk sizes must satisfy 0 < min <= target <= max")
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive")
	}
	if c.Search.SemanticSimilarityThreshold < 0 || c.Search.SemanticSimilarityThreshold > 1 {
		return fmt.Errorf("search.semantic_similarity_threshold must be in [0,1]")
	}
	switch c.Search.Backend {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("search.backend must be \"sqlite\" or \"bleve\", got %q", c.Search.Backend)
	}
	switch c.Server.Transport {
	case "stdio", "socket":
	default:
		return fmt.Errorf("server.transport must be \"stdio\" or \"socket\", got %q", c.Server.Transport)
	}
	return nil
}

// WriteYAML writes c to path as YAML, creating parent directories as
// needed.
func (c *Config) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// LoadUserConfig loads the user/global config file, returning spec
// defaults if none exists.
func LoadUserConfig() (*Config, error) {
	cfg, err := loadUserConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return NewConfig(), nil
	}
	return cfg, nil
}

// DefaultExcludePatterns returns a copy of the always-excluded glob
// patterns. No CLI command prints them. PathRules enforces the
// authoritative list independently; this is informational only.
func DefaultExcludePatterns() []string {
	out := make([]string, len(defaultExcludePatterns))
	copy(out, defaultExcludePatterns)
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

