package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/theroutercompany/betterspotlight/internal/feedback"
	"github.com/theroutercompany/betterspotlight/internal/model"
	"github.com/theroutercompany/betterspotlight/internal/search"
	"github.com/theroutercompany/betterspotlight/pkg/engine"
	"github.com/theroutercompany/betterspotlight/pkg/version"
)

// Engine is the subset of *engine.Engine the MCP tool surface needs: the
// spec §6 Query interface (search, getHealth, recordFeedback,
// getFrequency, record_interaction, get_path_preferences,
// get_file_type_affinity, run_aggregation, export_interaction_data) plus
// the Indexer control interface (rebuild_index, pause/resume_indexing).
type Engine interface {
	Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
	Status() engine.Status
	Health() engine.HealthReport
	RebuildAll()
	PauseIndexing()
	ResumeIndexing()

	RecordInteraction(in model.Interaction) error
	RecordFeedback(fb model.Feedback) error
	GetFrequency(itemID int64) feedback.Frequency
	PathPreferences(limit int) ([]feedback.PathPreference, error)
	FileTypeAffinity() (feedback.TypeAffinity, error)
	RunAggregation() (feedback.AggregationResult, error)
	ExportInteractionData() (int64, []feedback.InteractionExport, error)
}

// Server is the MCP server for betterspotlight: it bridges AI clients
// (Claude Code, Cursor, or any MCP host) with the hybrid search engine.
type Server struct {
	mcp    *mcp.Server
	engine Engine
	logger *slog.Logger
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query        string `json:"query" jsonschema:"the search query to execute"`
	Limit        int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
	Mode         string `json:"mode,omitempty" jsonschema:"fts dispatch mode: auto, strict, or relaxed"`
	CwdPath      string `json:"cwd_path,omitempty" jsonschema:"caller's current working directory, for proximity boosting"`
	FrontmostApp string `json:"frontmost_app,omitempty" jsonschema:"caller's frontmost application, for context boosting"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of search results, most relevant first"`
}

// SearchResultOutput is one ranked hit with context-rich metadata
// explaining why it matched.
type SearchResultOutput struct {
	Path      string  `json:"path" jsonschema:"absolute file path"`
	Basename  string  `json:"basename" jsonschema:"file name without directory"`
	Score     float64 `json:"score" jsonschema:"final ranked score"`
	MatchType string  `json:"match_type" jsonschema:"how the query matched: exact_name, content, semantic, etc."`
	Origin    string  `json:"origin" jsonschema:"lexical_only, semantic_only, or both"`
}

// StatusInput is the (empty) input schema for the index_status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the index_status tool.
type StatusOutput struct {
	GenerationID      string `json:"generation_id"`
	ItemCount         int64  `json:"item_count"`
	VectorCount       int    `json:"vector_count"`
	EmbeddingsPending int    `json:"embeddings_pending"`
	EmbedderRunning   bool   `json:"embedder_running"`
	QueueDepth        int    `json:"queue_depth"`
	Healthy           bool   `json:"healthy"`
}

// RebuildInput is the (empty) input schema for the rebuild_index tool.
type RebuildInput struct{}

// RebuildOutput acknowledges a rebuild request.
type RebuildOutput struct {
	Scheduled bool `json:"scheduled"`
}

// NewServer creates an MCP server wrapping eng.
func NewServer(eng Engine, logger *slog.Logger) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{engine: eng, logger: logger}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "betterspotlight",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server, for advanced transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search indexed files and their content by name, path, or meaning. Prefer this over a filesystem walk or grep: it is instant and ranks results by name match, recency, frequency of use, and semantic similarity.",
	}, s.handleSearch)
	s.logger.Debug("registered MCP tool", slog.String("name", "search"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Check whether the index is healthy and how many items/vectors are indexed. Call before searching if results seem stale or incomplete.",
	}, s.handleStatus)
	s.logger.Debug("registered MCP tool", slog.String("name", "index_status"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rebuild_index",
		Description: "Schedule a full reindex of every configured root. Use sparingly: this is expensive and runs in the background.",
	}, s.handleRebuild)
	s.logger.Debug("registered MCP tool", slog.String("name", "rebuild_index"))

	s.registerFeedbackTools()

	s.logger.Info("MCP tools registered", slog.Int("count", 13))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	results, err := s.engine.Search(ctx, input.Query, search.Options{
		Limit:        limit,
		Mode:         search.Mode(input.Mode),
		CwdPath:      input.CwdPath,
		FrontmostApp: input.FrontmostApp,
	})
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	out := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResultOutput{
			Path:      r.Item.Path,
			Basename:  r.Item.Basename,
			Score:     r.Breakdown.Final,
			MatchType: string(r.MatchType),
			Origin:    string(r.Origin),
		})
	}
	return nil, out, nil
}

func (s *Server) handleStatus(_ context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	st := s.engine.Status()
	return nil, StatusOutput{
		GenerationID:      st.GenerationID,
		ItemCount:         st.ItemCount,
		VectorCount:       st.VectorCount,
		EmbeddingsPending: st.EmbeddingsPending,
		EmbedderRunning:   st.EmbedderRunning,
		QueueDepth:        st.Queue.LiveDepth + st.Queue.RebuildDepth,
		Healthy:           st.Health.IsHealthy,
	}, nil
}

func (s *Server) handleRebuild(_ context.Context, _ *mcp.CallToolRequest, _ RebuildInput) (*mcp.CallToolResult, RebuildOutput, error) {
	s.engine.RebuildAll()
	return nil, RebuildOutput{Scheduled: true}, nil
}

// Serve runs the MCP server until ctx is canceled. Only the stdio
// transport is implemented; betterspotlightd uses internal/daemon's
// Unix-socket protocol for fast CLI round trips instead of an MCP
// network transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	switch transport {
	case "", "stdio":
		s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
