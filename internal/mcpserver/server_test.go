package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theroutercompany/betterspotlight/internal/feedback"
	"github.com/theroutercompany/betterspotlight/internal/model"
	"github.com/theroutercompany/betterspotlight/internal/search"
	"github.com/theroutercompany/betterspotlight/pkg/engine"
)

type fakeEngine struct {
	searchFn     func(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
	status       engine.Status
	rebuildCalls int
	pauseCalls   int
	resumeCalls  int

	health             engine.HealthReport
	recordInteractionErr error
	lastInteraction    model.Interaction
	recordFeedbackErr  error
	lastFeedback       model.Feedback
	frequency          feedback.Frequency
	pathPreferences    []feedback.PathPreference
	typeAffinity       feedback.TypeAffinity
	aggregationResult  feedback.AggregationResult
	exportCount        int64
	exportRows         []feedback.InteractionExport
}

func (f *fakeEngine) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, query, opts)
	}
	return nil, nil
}

func (f *fakeEngine) Status() engine.Status           { return f.status }
func (f *fakeEngine) Health() engine.HealthReport     { return f.health }
func (f *fakeEngine) RebuildAll()                     { f.rebuildCalls++ }
func (f *fakeEngine) PauseIndexing()                  { f.pauseCalls++ }
func (f *fakeEngine) ResumeIndexing()                 { f.resumeCalls++ }

func (f *fakeEngine) RecordInteraction(in model.Interaction) error {
	f.lastInteraction = in
	return f.recordInteractionErr
}

func (f *fakeEngine) RecordFeedback(fb model.Feedback) error {
	f.lastFeedback = fb
	return f.recordFeedbackErr
}

func (f *fakeEngine) GetFrequency(itemID int64) feedback.Frequency { return f.frequency }

func (f *fakeEngine) PathPreferences(limit int) ([]feedback.PathPreference, error) {
	return f.pathPreferences, nil
}

func (f *fakeEngine) FileTypeAffinity() (feedback.TypeAffinity, error) {
	return f.typeAffinity, nil
}

func (f *fakeEngine) RunAggregation() (feedback.AggregationResult, error) {
	return f.aggregationResult, nil
}

func (f *fakeEngine) ExportInteractionData() (int64, []feedback.InteractionExport, error) {
	return f.exportCount, f.exportRows, nil
}

func TestNewServerRejectsNilEngine(t *testing.T) {
	_, err := NewServer(nil, nil)
	require.Error(t, err)
}

func TestHandleSearchRejectsEmptyQuery(t *testing.T) {
	s, err := NewServer(&fakeEngine{}, nil)
	require.NoError(t, err)

	_, _, err = s.handleSearch(context.Background(), nil, SearchInput{})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandleSearchMapsResults(t *testing.T) {
	fe := &fakeEngine{
		searchFn: func(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
			assert.Equal(t, "report", query)
			assert.Equal(t, 20, opts.Limit)
			return []search.Result{
				{
					Item:      model.Item{Path: "/docs/report.pdf", Basename: "report.pdf"},
					MatchType: model.MatchExactName,
					Breakdown: search.ScoreBreakdown{Final: 250},
					Origin:    search.OriginLexicalOnly,
				},
			}, nil
		},
	}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, out, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "report"})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "/docs/report.pdf", out.Results[0].Path)
	assert.Equal(t, "exact_name", out.Results[0].MatchType)
	assert.InDelta(t, 250, out.Results[0].Score, 0.001)
}

func TestHandleSearchMapsEngineError(t *testing.T) {
	fe := &fakeEngine{
		searchFn: func(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
			return nil, context.DeadlineExceeded
		},
	}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, _, err = s.handleSearch(context.Background(), nil, SearchInput{Query: "x"})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeTimeout, mcpErr.Code)
}

func TestHandleStatusReportsEngineStatus(t *testing.T) {
	fe := &fakeEngine{status: engine.Status{
		GenerationID: "gen-1",
		ItemCount:    42,
		VectorCount:  40,
	}}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, out, err := s.handleStatus(context.Background(), nil, StatusInput{})
	require.NoError(t, err)
	assert.Equal(t, "gen-1", out.GenerationID)
	assert.Equal(t, int64(42), out.ItemCount)
	assert.Equal(t, 40, out.VectorCount)
}

func TestHandleRebuildCallsEngine(t *testing.T) {
	fe := &fakeEngine{}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, out, err := s.handleRebuild(context.Background(), nil, RebuildInput{})
	require.NoError(t, err)
	assert.True(t, out.Scheduled)
	assert.Equal(t, 1, fe.rebuildCalls)
}

func TestHandleGetHealthReportsEngineHealth(t *testing.T) {
	fe := &fakeEngine{health: engine.HealthReport{IndexHealthy: true, ServiceHealthy: false, Issues: []string{"queue depth exceeds live lane capacity"}}}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, out, err := s.handleGetHealth(context.Background(), nil, HealthInput{})
	require.NoError(t, err)
	assert.True(t, out.IndexHealthy)
	assert.False(t, out.ServiceHealthy)
	assert.Equal(t, []string{"queue depth exceeds live lane capacity"}, out.Issues)
}

func TestHandleRecordFeedbackRejectsInvalidAction(t *testing.T) {
	fe := &fakeEngine{}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, _, err = s.handleRecordFeedback(context.Background(), nil, RecordFeedbackInput{ItemID: 1, Action: "delete"})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandleRecordFeedbackRecordsPin(t *testing.T) {
	fe := &fakeEngine{}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, out, err := s.handleRecordFeedback(context.Background(), nil, RecordFeedbackInput{ItemID: 7, Action: "pin"})
	require.NoError(t, err)
	assert.True(t, out.Recorded)
	assert.Equal(t, int64(7), fe.lastFeedback.ItemID)
	assert.Equal(t, model.ActionPin, fe.lastFeedback.Action)
}

func TestHandleGetFrequencyOmitsLastOpenDateWhenNeverOpened(t *testing.T) {
	fe := &fakeEngine{frequency: feedback.Frequency{OpenCount: 0, FrequencyTier: 0}}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, out, err := s.handleGetFrequency(context.Background(), nil, GetFrequencyInput{ItemID: 3})
	require.NoError(t, err)
	assert.Equal(t, 0, out.OpenCount)
	assert.Equal(t, int64(0), out.LastOpenDate)
}

func TestHandleGetFrequencyReportsTierAndBoost(t *testing.T) {
	fe := &fakeEngine{frequency: feedback.Frequency{OpenCount: 10, LastOpenedAt: 1700000000, FrequencyTier: 2, Boost: 25}}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, out, err := s.handleGetFrequency(context.Background(), nil, GetFrequencyInput{ItemID: 3})
	require.NoError(t, err)
	assert.Equal(t, 10, out.OpenCount)
	assert.Equal(t, int64(1700000000), out.LastOpenDate)
	assert.Equal(t, 2, out.FrequencyTier)
	assert.InDelta(t, 25, out.Boost, 0.001)
}

func TestHandleRecordInteractionRejectsMissingFields(t *testing.T) {
	fe := &fakeEngine{}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, _, err = s.handleRecordInteraction(context.Background(), nil, RecordInteractionInput{Query: "report"})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandleRecordInteractionForwardsToEngine(t *testing.T) {
	fe := &fakeEngine{}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, out, err := s.handleRecordInteraction(context.Background(), nil, RecordInteractionInput{
		Query: "report", SelectedItemID: 9, SelectedPath: "/docs/report.pdf", ResultPosition: 2,
	})
	require.NoError(t, err)
	assert.True(t, out.Recorded)
	assert.Equal(t, int64(9), fe.lastInteraction.ItemID)
	assert.Equal(t, "/docs/report.pdf", fe.lastInteraction.Path)
}

func TestHandleGetPathPreferencesMapsDirectories(t *testing.T) {
	fe := &fakeEngine{pathPreferences: []feedback.PathPreference{{Directory: "/docs", SelectionCount: 4, Boost: 12}}}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, out, err := s.handleGetPathPreferences(context.Background(), nil, PathPreferencesInput{})
	require.NoError(t, err)
	require.Len(t, out.Directories, 1)
	assert.Equal(t, "/docs", out.Directories[0].Directory)
}

func TestHandleGetFileTypeAffinityReportsCounts(t *testing.T) {
	fe := &fakeEngine{typeAffinity: feedback.TypeAffinity{CodeOpens: 5, DocumentOpens: 2, PrimaryAffinity: feedback.BucketCode}}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, out, err := s.handleGetFileTypeAffinity(context.Background(), nil, FileTypeAffinityInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.CodeOpens)
	assert.Equal(t, "code", out.PrimaryAffinity)
}

func TestHandleRunAggregationReportsCounts(t *testing.T) {
	fe := &fakeEngine{aggregationResult: feedback.AggregationResult{Aggregated: 3, CleanedUp: 1}}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, out, err := s.handleRunAggregation(context.Background(), nil, RunAggregationInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Aggregated)
	assert.Equal(t, int64(1), out.CleanedUp)
}

func TestHandleExportInteractionDataMapsRows(t *testing.T) {
	fe := &fakeEngine{
		exportCount: 1,
		exportRows:  []feedback.InteractionExport{{ID: 1, ItemID: 2, Path: "/docs/x.txt"}},
	}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, out, err := s.handleExportInteractionData(context.Background(), nil, ExportInteractionDataInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Count)
	require.Len(t, out.Interactions, 1)
	assert.Equal(t, "/docs/x.txt", out.Interactions[0].Path)
}

func TestHandlePauseAndResumeIndexing(t *testing.T) {
	fe := &fakeEngine{}
	s, err := NewServer(fe, nil)
	require.NoError(t, err)

	_, pauseOut, err := s.handlePauseIndexing(context.Background(), nil, PauseIndexingInput{})
	require.NoError(t, err)
	assert.True(t, pauseOut.Paused)
	assert.Equal(t, 1, fe.pauseCalls)

	_, resumeOut, err := s.handleResumeIndexing(context.Background(), nil, ResumeIndexingInput{})
	require.NoError(t, err)
	assert.True(t, resumeOut.Resumed)
	assert.Equal(t, 1, fe.resumeCalls)
}
