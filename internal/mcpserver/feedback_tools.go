package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/theroutercompany/betterspotlight/internal/model"
)

// HealthInput is the (empty) input schema for the get_health tool.
type HealthInput struct{}

// HealthOutput is the output schema for the get_health tool (spec §6
// getHealth).
type HealthOutput struct {
	IndexHealthy   bool     `json:"index_healthy"`
	ServiceHealthy bool     `json:"service_healthy"`
	Issues         []string `json:"issues"`
}

// RecordFeedbackInput is the input schema for the record_feedback tool
// (spec §6 recordFeedback).
type RecordFeedbackInput struct {
	ItemID   int64  `json:"item_id" jsonschema:"id of the item the feedback concerns"`
	Action   string `json:"action" jsonschema:"one of open, pin, unpin"`
	Query    string `json:"query,omitempty" jsonschema:"the query that produced the result, if any"`
	Position int    `json:"position,omitempty" jsonschema:"the result's rank position when it was selected"`
}

// RecordFeedbackOutput acknowledges a recorded feedback event.
type RecordFeedbackOutput struct {
	Recorded bool `json:"recorded"`
}

// GetFrequencyInput is the input schema for the get_frequency tool.
type GetFrequencyInput struct {
	ItemID int64 `json:"item_id" jsonschema:"id of the item to look up"`
}

// GetFrequencyOutput is the output schema for the get_frequency tool
// (spec §6 getFrequency).
type GetFrequencyOutput struct {
	OpenCount     int     `json:"open_count"`
	LastOpenDate  int64   `json:"last_open_date,omitempty" jsonschema:"unix seconds; omitted if never opened"`
	FrequencyTier int     `json:"frequency_tier" jsonschema:"0-3, 0 meaning never opened"`
	Boost         float64 `json:"boost"`
}

// RecordInteractionInput is the input schema for the record_interaction
// tool (spec §6 record_interaction).
type RecordInteractionInput struct {
	Query          string `json:"query" jsonschema:"the search query that was issued"`
	SelectedItemID int64  `json:"selected_item_id" jsonschema:"id of the item the user selected"`
	SelectedPath   string `json:"selected_path" jsonschema:"path of the item the user selected"`
	MatchType      string `json:"match_type,omitempty" jsonschema:"how the selected result matched"`
	ResultPosition int    `json:"result_position" jsonschema:"rank position of the selected result"`
	FrontmostApp   string `json:"frontmost_app,omitempty"`
}

// RecordInteractionOutput acknowledges a recorded interaction.
type RecordInteractionOutput struct {
	Recorded bool `json:"recorded"`
}

// PathPreferencesInput is the input schema for the get_path_preferences
// tool.
type PathPreferencesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of directories to return, default 20"`
}

// PathPreferenceOutput is one directory's selection count and boost.
type PathPreferenceOutput struct {
	Directory      string  `json:"directory"`
	SelectionCount int64   `json:"selection_count"`
	Boost          float64 `json:"boost"`
}

// PathPreferencesOutput is the output schema for the get_path_preferences
// tool (spec §6 get_path_preferences).
type PathPreferencesOutput struct {
	Directories []PathPreferenceOutput `json:"directories"`
}

// FileTypeAffinityInput is the (empty) input schema for the
// get_file_type_affinity tool.
type FileTypeAffinityInput struct{}

// FileTypeAffinityOutput is the output schema for the
// get_file_type_affinity tool (spec §6 get_file_type_affinity).
type FileTypeAffinityOutput struct {
	CodeOpens       int64  `json:"code_opens"`
	DocumentOpens   int64  `json:"document_opens"`
	MediaOpens      int64  `json:"media_opens"`
	OtherOpens      int64  `json:"other_opens"`
	PrimaryAffinity string `json:"primary_affinity"`
}

// RunAggregationInput is the (empty) input schema for the run_aggregation
// tool.
type RunAggregationInput struct{}

// RunAggregationOutput is the output schema for the run_aggregation tool
// (spec §6 run_aggregation).
type RunAggregationOutput struct {
	Aggregated      int64  `json:"aggregated"`
	CleanedUp       int64  `json:"cleaned_up"`
	LastAggregation string `json:"last_aggregation" jsonschema:"ISO-8601 timestamp"`
}

// ExportInteractionDataInput is the (empty) input schema for the
// export_interaction_data tool.
type ExportInteractionDataInput struct{}

// InteractionExportOutput is one exported interaction row.
type InteractionExportOutput struct {
	ID             int64  `json:"id"`
	Query          string `json:"query"`
	ItemID         int64  `json:"item_id"`
	Path           string `json:"path"`
	MatchType      string `json:"match_type"`
	ResultPosition int    `json:"result_position"`
	FrontmostApp   string `json:"frontmost_app,omitempty"`
	Timestamp      string `json:"timestamp" jsonschema:"ISO-8601 timestamp"`
}

// ExportInteractionDataOutput is the output schema for the
// export_interaction_data tool (spec §6 export_interaction_data).
type ExportInteractionDataOutput struct {
	Interactions []InteractionExportOutput `json:"interactions"`
	Count        int64                     `json:"count"`
}

// PauseIndexingInput is the (empty) input schema for the pause_indexing
// tool.
type PauseIndexingInput struct{}

// PauseIndexingOutput acknowledges an indexing pause.
type PauseIndexingOutput struct {
	Paused bool `json:"paused"`
}

// ResumeIndexingInput is the (empty) input schema for the
// resume_indexing tool.
type ResumeIndexingInput struct{}

// ResumeIndexingOutput acknowledges an indexing resume.
type ResumeIndexingOutput struct {
	Resumed bool `json:"resumed"`
}

// registerFeedbackTools adds the spec §6 interaction/feedback/health tools
// and the Indexer pause/resume controls to the server's tool set.
func (s *Server) registerFeedbackTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_health",
		Description: "Report index and background-service health, plus any active issues.",
	}, s.handleGetHealth)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "record_feedback",
		Description: "Record a raw feedback event (open, pin, or unpin) for an item. Pinning and unpinning take effect immediately.",
	}, s.handleRecordFeedback)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_frequency",
		Description: "Look up how often an item has been opened and the resulting ranking boost.",
	}, s.handleGetFrequency)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "record_interaction",
		Description: "Record that a search result was selected, for ranking personalization.",
	}, s.handleRecordInteraction)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_path_preferences",
		Description: "List the directories the user selects results from most often, with their boosts.",
	}, s.handleGetPathPreferences)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_file_type_affinity",
		Description: "Report which file type (code, document, media, other) the user opens most.",
	}, s.handleGetFileTypeAffinity)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "run_aggregation",
		Description: "Prune interactions older than the retention window and rebuild frequency, path preference, and type affinity aggregates from what remains.",
	}, s.handleRunAggregation)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "export_interaction_data",
		Description: "Export every surviving interaction row, for inspection or backup.",
	}, s.handleExportInteractionData)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pause_indexing",
		Description: "Pause the background indexing pipeline without stopping the daemon.",
	}, s.handlePauseIndexing)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "resume_indexing",
		Description: "Resume a paused background indexing pipeline.",
	}, s.handleResumeIndexing)

	for _, name := range []string{
		"get_health", "record_feedback", "get_frequency", "record_interaction",
		"get_path_preferences", "get_file_type_affinity", "run_aggregation",
		"export_interaction_data", "pause_indexing", "resume_indexing",
	} {
		s.logger.Debug("registered MCP tool", slog.String("name", name))
	}
}

func (s *Server) handleGetHealth(_ context.Context, _ *mcp.CallToolRequest, _ HealthInput) (*mcp.CallToolResult, HealthOutput, error) {
	h := s.engine.Health()
	return nil, HealthOutput{
		IndexHealthy:   h.IndexHealthy,
		ServiceHealthy: h.ServiceHealthy,
		Issues:         h.Issues,
	}, nil
}

func (s *Server) handleRecordFeedback(_ context.Context, _ *mcp.CallToolRequest, input RecordFeedbackInput) (*mcp.CallToolResult, RecordFeedbackOutput, error) {
	if input.ItemID == 0 {
		return nil, RecordFeedbackOutput{}, NewInvalidParamsError("item_id is required")
	}
	action := model.FeedbackAction(input.Action)
	switch action {
	case model.ActionOpen, model.ActionPin, model.ActionUnpin:
	default:
		return nil, RecordFeedbackOutput{}, NewInvalidParamsError("action must be one of open, pin, unpin")
	}
	err := s.engine.RecordFeedback(model.Feedback{
		ItemID: input.ItemID,
		Action: action,
		Query:  input.Query,
	})
	if err != nil {
		return nil, RecordFeedbackOutput{}, MapError(err)
	}
	return nil, RecordFeedbackOutput{Recorded: true}, nil
}

func (s *Server) handleGetFrequency(_ context.Context, _ *mcp.CallToolRequest, input GetFrequencyInput) (*mcp.CallToolResult, GetFrequencyOutput, error) {
	if input.ItemID == 0 {
		return nil, GetFrequencyOutput{}, NewInvalidParamsError("item_id is required")
	}
	f := s.engine.GetFrequency(input.ItemID)
	out := GetFrequencyOutput{
		OpenCount:     f.OpenCount,
		FrequencyTier: f.FrequencyTier,
		Boost:         f.Boost,
	}
	if f.OpenCount > 0 {
		out.LastOpenDate = f.LastOpenedAt
	}
	return nil, out, nil
}

func (s *Server) handleRecordInteraction(_ context.Context, _ *mcp.CallToolRequest, input RecordInteractionInput) (*mcp.CallToolResult, RecordInteractionOutput, error) {
	if input.SelectedItemID == 0 || input.SelectedPath == "" {
		return nil, RecordInteractionOutput{}, NewInvalidParamsError("selected_item_id and selected_path are required")
	}
	err := s.engine.RecordInteraction(model.Interaction{
		NormalizedQuery: input.Query,
		ItemID:          input.SelectedItemID,
		Path:            input.SelectedPath,
		MatchType:       model.MatchType(input.MatchType),
		ResultPosition:  input.ResultPosition,
		FrontmostApp:    input.FrontmostApp,
	})
	if err != nil {
		return nil, RecordInteractionOutput{}, MapError(err)
	}
	return nil, RecordInteractionOutput{Recorded: true}, nil
}

func (s *Server) handleGetPathPreferences(_ context.Context, _ *mcp.CallToolRequest, input PathPreferencesInput) (*mcp.CallToolResult, PathPreferencesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	prefs, err := s.engine.PathPreferences(limit)
	if err != nil {
		return nil, PathPreferencesOutput{}, MapError(err)
	}
	out := PathPreferencesOutput{Directories: make([]PathPreferenceOutput, 0, len(prefs))}
	for _, p := range prefs {
		out.Directories = append(out.Directories, PathPreferenceOutput{
			Directory:      p.Directory,
			SelectionCount: p.SelectionCount,
			Boost:          p.Boost,
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetFileTypeAffinity(_ context.Context, _ *mcp.CallToolRequest, _ FileTypeAffinityInput) (*mcp.CallToolResult, FileTypeAffinityOutput, error) {
	ta, err := s.engine.FileTypeAffinity()
	if err != nil {
		return nil, FileTypeAffinityOutput{}, MapError(err)
	}
	return nil, FileTypeAffinityOutput{
		CodeOpens:       ta.CodeOpens,
		DocumentOpens:   ta.DocumentOpens,
		MediaOpens:      ta.MediaOpens,
		OtherOpens:      ta.OtherOpens,
		PrimaryAffinity: string(ta.PrimaryAffinity),
	}, nil
}

func (s *Server) handleRunAggregation(_ context.Context, _ *mcp.CallToolRequest, _ RunAggregationInput) (*mcp.CallToolResult, RunAggregationOutput, error) {
	result, err := s.engine.RunAggregation()
	if err != nil {
		return nil, RunAggregationOutput{}, MapError(err)
	}
	return nil, RunAggregationOutput{
		Aggregated:      result.Aggregated,
		CleanedUp:       result.CleanedUp,
		LastAggregation: result.LastAggregation.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

func (s *Server) handleExportInteractionData(_ context.Context, _ *mcp.CallToolRequest, _ ExportInteractionDataInput) (*mcp.CallToolResult, ExportInteractionDataOutput, error) {
	count, rows, err := s.engine.ExportInteractionData()
	if err != nil {
		return nil, ExportInteractionDataOutput{}, MapError(err)
	}
	out := ExportInteractionDataOutput{Interactions: make([]InteractionExportOutput, 0, len(rows)), Count: count}
	for _, r := range rows {
		out.Interactions = append(out.Interactions, InteractionExportOutput{
			ID:             r.ID,
			Query:          r.NormalizedQuery,
			ItemID:         r.ItemID,
			Path:           r.Path,
			MatchType:      r.MatchType,
			ResultPosition: r.ResultPosition,
			FrontmostApp:   r.FrontmostApp,
			Timestamp:      r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return nil, out, nil
}

func (s *Server) handlePauseIndexing(_ context.Context, _ *mcp.CallToolRequest, _ PauseIndexingInput) (*mcp.CallToolResult, PauseIndexingOutput, error) {
	s.engine.PauseIndexing()
	return nil, PauseIndexingOutput{Paused: true}, nil
}

func (s *Server) handleResumeIndexing(_ context.Context, _ *mcp.CallToolRequest, _ ResumeIndexingInput) (*mcp.CallToolResult, ResumeIndexingOutput, error) {
	s.engine.ResumeIndexing()
	return nil, ResumeIndexingOutput{Resumed: true}, nil
}
