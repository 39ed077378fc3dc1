// Package engine composes betterspotlight's indexing and query
// collaborators (FtsStore, vector.Index, vectorstore.Store,
// embed.Pipeline, internal/pipeline, internal/search) into the single
// facade cmd/betterspotlightd and internal/mcpserver drive. Grounded on
// the teacher's pkg/indexer and pkg/searcher facades, which wrap the
// same kind of multi-collaborator wiring behind a narrow interface.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/theroutercompany/betterspotlight/internal/chunk"
	"github.com/theroutercompany/betterspotlight/internal/config"
	"github.com/theroutercompany/betterspotlight/internal/daemon"
	"github.com/theroutercompany/betterspotlight/internal/embed"
	"github.com/theroutercompany/betterspotlight/internal/extract"
	"github.com/theroutercompany/betterspotlight/internal/feedback"
	"github.com/theroutercompany/betterspotlight/internal/indexer"
	"github.com/theroutercompany/betterspotlight/internal/model"
	"github.com/theroutercompany/betterspotlight/internal/pathrules"
	"github.com/theroutercompany/betterspotlight/internal/pipeline"
	"github.com/theroutercompany/betterspotlight/internal/rerank"
	"github.com/theroutercompany/betterspotlight/internal/search"
	"github.com/theroutercompany/betterspotlight/internal/store"
	"github.com/theroutercompany/betterspotlight/internal/vector"
	"github.com/theroutercompany/betterspotlight/internal/vectorstore"
	"github.com/theroutercompany/betterspotlight/internal/watcher"
)

const extractionConcurrency = 4

// Engine is the fully wired betterspotlight instance for one data
// directory: FTS/metadata store, vector index, indexing pipeline,
// background embedder, and query planner.
type Engine struct {
	Config *config.Config
	Logger *slog.Logger

	Fts      *store.FtsStore
	Vectors  *vector.Index
	Mappings *vectorstore.Store
	Indexer  *indexer.Indexer
	Pipeline *pipeline.Pipeline
	Embedder embed.Embedder
	Embed    *embed.Pipeline
	Planner  *search.Planner
	Watcher  *watcher.FSWatcher
	Feedback *feedback.Tracker

	dataDir      string
	generationID string
}

func indexPaths(dataDir string) (dbPath, vecIndexPath, vecMetaPath, vecStorePath string) {
	return filepath.Join(dataDir, "metadata.db"),
		filepath.Join(dataDir, "vectors.hnsw"),
		filepath.Join(dataDir, "vectors.meta.json"),
		filepath.Join(dataDir, "vectors.db")
}

// Open wires every collaborator for the given config and returns a ready
// Engine. It does not start any background threads; call Start for that.
func Open(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath, vecIndexPath, vecMetaPath, vecStorePath := indexPaths(cfg.Paths.DataDir)

	backend := store.BackendSQLite
	if cfg.Search.Backend == string(store.BackendBleve) {
		backend = store.BackendBleve
	}
	fts, err := store.OpenWithBackend(dbPath, backend)
	if err != nil {
		return nil, fmt.Errorf("open fts store: %w", err)
	}

	mappings, err := vectorstore.Open(vecStorePath)
	if err != nil {
		_ = fts.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	generationID, err := activeOrNewGeneration(mappings, cfg)
	if err != nil {
		_ = fts.Close()
		_ = mappings.Close()
		return nil, err
	}

	vidx := vector.New()
	dims := cfg.Embedding.Dimensions
	if dims <= 0 {
		dims = 768
	}
	if err := vidx.Configure(vector.Metadata{
		Dimensions:     dims,
		ModelID:        cfg.Embedding.ModelID,
		GenerationID:   generationID,
		Provider:       cfg.Embedding.Provider,
		M:              cfg.Embedding.M,
		EfConstruction: cfg.Embedding.EfConstruction,
	}); err != nil {
		_ = fts.Close()
		_ = mappings.Close()
		return nil, fmt.Errorf("configure vector index: %w", err)
	}
	if err := vidx.Load(vecIndexPath, vecMetaPath); err != nil {
		if err := vidx.Create(1024); err != nil {
			_ = fts.Close()
			_ = mappings.Close()
			return nil, fmt.Errorf("create vector index: %w", err)
		}
	}

	rules := pathrules.New()
	if cfg.Paths.BsignorePath != "" {
		loader := pathrules.NewBsignoreLoader(cfg.Paths.BsignorePath, rules)
		_ = loader.Load()
	}

	extractor := extract.NewManager(extractionConcurrency)
	plainText := extract.NewPlainTextExtractor(0)
	extractor.Register(model.KindText, plainText)
	extractor.Register(model.KindCode, plainText)
	extractor.Register(model.KindMarkdown, plainText)

	chunker := chunk.NewChunker()
	chunker.TargetSize = cfg.Indexing.ChunkTargetSize
	chunker.MinSize = cfg.Indexing.ChunkMinSize
	chunker.MaxSize = cfg.Indexing.ChunkMaxSize

	ix := indexer.New(fts, extractor, rules, chunker)

	p := pipeline.NewPipeline(cfg.Paths.Roots, rules, ix, cfg.Indexing.PrepWorkers, logger)
	if cfg.Indexing.BatchCommitSize > 0 {
		p.BatchCommitSize = cfg.Indexing.BatchCommitSize
	}
	if cfg.Indexing.BatchCommitIntervalMs > 0 {
		p.BatchCommitIntervalMs = cfg.Indexing.BatchCommitIntervalMs
	}

	fsWatcher, err := watcher.NewFSWatcher(rules, p.OnFilesystemEvent, logger)
	if err != nil {
		_ = fts.Close()
		_ = mappings.Close()
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}

	var embedder embed.Embedder
	if cfg.Embedding.Provider == "ollama" {
		embedder = embed.NewOllamaEmbedder(cfg.Embedding.OllamaHost, cfg.Embedding.ModelID)
	}

	source := &embed.SQLSource{Fts: fts, Vectors: mappings}
	embedPipeline := embed.New(source, embedder, vidx, mappings, generationID, cfg.Embedding.ModelID, cfg.Embedding.Provider)
	embedPipeline.BatchSize = cfg.Embedding.BatchSize
	embedPipeline.IndexPath = vecIndexPath
	embedPipeline.MetaPath = vecMetaPath

	feedbackTracker := feedback.NewTracker(fts)

	planner := search.NewPlanner(fts, vidx, mappings, embedder)
	planner.Weights = weightsFromConfig(cfg.Search.Weights)
	planner.Feedback = feedbackTracker
	planner.MergeW = search.MergeWeights{
		LexicalWeight:       1 - cfg.Search.Weights.Semantic/(cfg.Search.Weights.Semantic+1),
		SemanticWeight:      cfg.Search.Weights.Semantic / (cfg.Search.Weights.Semantic + 1),
		SimilarityThreshold: cfg.Search.SemanticSimilarityThreshold,
		RRFK:                cfg.Search.RRFConstant,
		MaxResults:          cfg.Search.MaxResults,
	}
	planner.RerankConfig = rerank.Config{
		Enabled:                  cfg.Rerank.Enabled,
		Stage1MaxCandidates:      cfg.Rerank.Stage1MaxCandidates,
		Stage2MaxCandidates:      cfg.Rerank.Stage2MaxCandidates,
		RerankBudgetMs:           cfg.Rerank.RerankBudgetMs,
		Stage1Weight:             cfg.Rerank.Stage1Weight,
		Stage2Weight:             cfg.Rerank.Stage2Weight,
		AmbiguityMarginThreshold: cfg.Rerank.AmbiguityMarginThreshold,
	}
	if cfg.Rerank.Enabled {
		planner.RerankStage1 = rerank.NewHTTPStage(rerank.HTTPStageConfig{Endpoint: cfg.Rerank.Endpoint, Model: cfg.Rerank.Stage1Model})
		planner.RerankStage2 = rerank.NewHTTPStage(rerank.HTTPStageConfig{Endpoint: cfg.Rerank.Endpoint, Model: cfg.Rerank.Stage2Model})
	}

	return &Engine{
		Config:       cfg,
		Logger:       logger,
		Fts:          fts,
		Vectors:      vidx,
		Mappings:     mappings,
		Indexer:      ix,
		Pipeline:     p,
		Embedder:     embedder,
		Embed:        embedPipeline,
		Planner:      planner,
		Watcher:      fsWatcher,
		Feedback:     feedbackTracker,
		dataDir:      cfg.Paths.DataDir,
		generationID: generationID,
	}, nil
}

func weightsFromConfig(w config.Weights) search.ScoreWeights {
	return search.ScoreWeights{
		ContentMatchWeight:    w.Content,
		RecencyWeight:         w.Recency,
		RecencyDecayDays:      w.RecencyDecayDays,
		FrequencyTier1:        w.FrequencyTier1,
		FrequencyTier2:        w.FrequencyTier2,
		FrequencyTier3:        w.FrequencyTier3,
		CwdBoostWeight:        w.CwdBoost,
		CwdMaxDepth:           3,
		AppContextBoostWeight: w.AppContextBoost,
		PinnedBoostWeight:     w.PinnedBoost,
		JunkPenaltyWeight:     w.JunkPenalty,
	}
}

// activeOrNewGeneration returns the currently active embedding
// generation, creating one from the configured model/provider if none is
// set yet (spec §4.11's generation lifecycle).
func activeOrNewGeneration(mappings *vectorstore.Store, cfg *config.Config) (string, error) {
	if gs, ok := mappings.ActiveGenerationState(); ok {
		return gs.GenerationID, nil
	}
	id, err := newGenerationID()
	if err != nil {
		return "", err
	}
	gs := model.GenerationState{
		GenerationID: id,
		ModelID:      cfg.Embedding.ModelID,
		Provider:     cfg.Embedding.Provider,
		Dimensions:   cfg.Embedding.Dimensions,
		State:        "active",
		Active:       true,
	}
	if err := mappings.UpsertGenerationState(gs); err != nil {
		return "", fmt.Errorf("create generation state: %w", err)
	}
	if err := mappings.SetActiveGeneration(id); err != nil {
		return "", fmt.Errorf("activate generation: %w", err)
	}
	return id, nil
}

func newGenerationID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate generation id: %w", err)
	}
	return "gen-" + hex.EncodeToString(buf), nil
}

// Start launches the filesystem scan/prep pipeline, the live filesystem
// watcher, and the background embedder.
func (e *Engine) Start(ctx context.Context) {
	e.Pipeline.Start(ctx)
	if err := e.Watcher.Start(ctx, e.Config.Paths.Roots); err != nil {
		e.Logger.Error("start filesystem watcher", "error", err)
	}
	e.Embed.Start(ctx)
}

// Stop halts every background thread and persists the vector index.
func (e *Engine) Stop() {
	_ = e.Watcher.Stop()
	e.Pipeline.Stop()
	e.Embed.Stop()
	_ = e.Vectors.Save(filepath.Join(e.dataDir, "vectors.hnsw"), filepath.Join(e.dataDir, "vectors.meta.json"))
}

// Close releases every store handle. Call after Stop.
func (e *Engine) Close() error {
	if err := e.Fts.Close(); err != nil {
		return err
	}
	return e.Mappings.Close()
}

// Search executes a query through the planner, filling in ambient query
// context (cwd, generation id).
func (e *Engine) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	if opts.GenerationID == "" {
		opts.GenerationID = e.generationID
	}
	if opts.Limit <= 0 {
		opts.Limit = e.Config.Search.MaxResults
	}
	return e.Planner.Plan(ctx, query, opts)
}

// RebuildAll schedules a full rescan of every configured root.
func (e *Engine) RebuildAll() {
	e.Pipeline.RebuildAll()
}

// PauseIndexing/ResumeIndexing gate the prep pipeline without stopping
// it (spec §6's Indexer control interface: pauseIndexing/resumeIndexing).
func (e *Engine) PauseIndexing()  { e.Pipeline.Pause() }
func (e *Engine) ResumeIndexing() { e.Pipeline.Resume() }

// RecordInteraction appends a search-result selection and updates the
// feedback aggregates (spec §6 record_interaction).
func (e *Engine) RecordInteraction(in model.Interaction) error {
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	return e.Feedback.RecordInteraction(in)
}

// RecordFeedback appends a raw feedback event (spec §6 recordFeedback).
func (e *Engine) RecordFeedback(fb model.Feedback) error {
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now()
	}
	return e.Feedback.RecordFeedback(fb)
}

// GetFrequency reports an item's open-count/recency/boost (spec §6
// getFrequency).
func (e *Engine) GetFrequency(itemID int64) feedback.Frequency {
	return e.Feedback.GetFrequency(itemID, e.Config.Search.Weights.FrequencyTier1)
}

// PathPreferences reports the top directories by selection count (spec §6
// get_path_preferences).
func (e *Engine) PathPreferences(limit int) ([]feedback.PathPreference, error) {
	return e.Feedback.PathPreferences(limit)
}

// FileTypeAffinity reports the four affinity bucket counters (spec §6
// get_file_type_affinity).
func (e *Engine) FileTypeAffinity() (feedback.TypeAffinity, error) {
	return e.Feedback.TypeAffinity()
}

// RunAggregation prunes stale interactions and rebuilds Frequency,
// PathPreferences, and TypeAffinity from the surviving stream (spec §6
// run_aggregation).
func (e *Engine) RunAggregation() (feedback.AggregationResult, error) {
	return e.Feedback.RunAggregation()
}

// ExportInteractionData returns every surviving interaction row (spec §6
// export_interaction_data).
func (e *Engine) ExportInteractionData() (int64, []feedback.InteractionExport, error) {
	return e.Feedback.ExportInteractionData()
}

// HealthReport is the spec §6 getHealth() shape: index health plus
// service-level liveness of the background indexer/embedder.
type HealthReport struct {
	IndexHealthy   bool     `json:"index_healthy"`
	ServiceHealthy bool     `json:"service_healthy"`
	Issues         []string `json:"issues"`
}

// Health implements spec §6's getHealth().
func (e *Engine) Health() HealthReport {
	storeHealth := e.Fts.GetHealth()
	var issues []string
	if !storeHealth.IsHealthy {
		issues = append(issues, "index has a high failure ratio")
	}
	queue := e.Pipeline.QueueStatus()
	serviceHealthy := true
	if queue.LiveDepth+queue.RebuildDepth > e.Config.Indexing.LiveLaneCapacity {
		issues = append(issues, "queue depth exceeds live lane capacity")
		serviceHealthy = false
	}
	return HealthReport{
		IndexHealthy:   storeHealth.IsHealthy,
		ServiceHealthy: serviceHealthy,
		Issues:         issues,
	}
}

// Status summarizes indexing and embedding progress for CLI/MCP
// diagnostics (spec §6 status/doctor surfaces).
type Status struct {
	DataDir           string          `json:"data_dir"`
	GenerationID      string          `json:"generation_id"`
	ItemCount         int64           `json:"item_count"`
	VectorCount       int             `json:"vector_count"`
	EmbeddingsPending int             `json:"embeddings_pending"`
	EmbedderRunning   bool            `json:"embedder_running"`
	Queue             pipeline.Stats  `json:"queue"`
	Telemetry         pipeline.Telemetry `json:"telemetry"`
	Health            store.Health    `json:"store_health"`
}

// Status returns a point-in-time snapshot of indexing/embedding progress.
func (e *Engine) Status() Status {
	pending, _ := e.Fts.ListChunkZeroRows()
	unmapped := 0
	if mapped, err := e.Mappings.GetAllMappingsForGeneration(e.generationID); err == nil {
		embedded := make(map[int64]bool, len(mapped))
		for _, m := range mapped {
			embedded[m.ItemID] = true
		}
		for _, r := range pending {
			if !embedded[r.ItemID] {
				unmapped++
			}
		}
	}

	health := e.Fts.GetHealth()
	return Status{
		DataDir:           e.dataDir,
		GenerationID:      e.generationID,
		ItemCount:         health.TotalIndexedItems,
		VectorCount:       e.Vectors.Len(),
		EmbeddingsPending: unmapped,
		EmbedderRunning:   e.Embed.IsRunning(),
		Queue:             e.Pipeline.QueueStatus(),
		Telemetry:         e.Pipeline.TelemetrySnapshot(),
		Health:            health,
	}
}

// EngineStatus adapts Status to the narrow shape internal/daemon's wire
// protocol reports, so *Engine satisfies daemon.Engine without that
// package depending on this one.
func (e *Engine) EngineStatus() daemon.EngineStatus {
	st := e.Status()
	return daemon.EngineStatus{
		GenerationID:      st.GenerationID,
		ItemCount:         st.ItemCount,
		VectorCount:       st.VectorCount,
		EmbeddingsPending: st.EmbeddingsPending,
		QueueDepth:        st.Queue.LiveDepth + st.Queue.RebuildDepth,
	}
}
