package feedback

import (
	"path/filepath"
	"time"
)

// interactionRetention is spec §3's 180-day Interaction retention window.
const interactionRetention = 180 * 24 * time.Hour

// AggregationResult mirrors spec §6 run_aggregation's response shape.
type AggregationResult struct {
	Aggregated      int64
	CleanedUp       int64
	LastAggregation time.Time
}

// RunAggregation prunes interactions older than the retention window,
// fully recomputes Frequency, and rebuilds PathPreferences/TypeAffinity
// from the surviving interaction stream (spec §6 run_aggregation). The
// incremental bumps RecordInteraction/RecordFeedback perform are the
// cheap path; this is the full-consistency pass.
func (t *Tracker) RunAggregation() (AggregationResult, error) {
	now := time.Now()
	cleaned, err := t.Store.PruneInteractionsBefore(now.Add(-interactionRetention))
	if err != nil {
		return AggregationResult{}, err
	}
	if err := t.Store.RecomputeFrequencyFromInteractions(); err != nil {
		return AggregationResult{}, err
	}

	rows, err := t.Store.ListInteractions()
	if err != nil {
		return AggregationResult{}, err
	}
	if err := t.Store.ResetPathPreferences(); err != nil {
		return AggregationResult{}, err
	}
	if err := t.Store.ResetTypeAffinity(); err != nil {
		return AggregationResult{}, err
	}
	for _, r := range rows {
		if err := t.Store.BumpPathPreference(filepath.Dir(r.Path)); err != nil {
			return AggregationResult{}, err
		}
		bucket := BucketOther
		if item, ok := t.Store.GetItemById(r.ItemID); ok {
			bucket = classify(item.Kind)
		}
		if err := t.Store.BumpTypeAffinity(string(bucket)); err != nil {
			return AggregationResult{}, err
		}
	}

	return AggregationResult{Aggregated: int64(len(rows)), CleanedUp: cleaned, LastAggregation: now}, nil
}

// ExportInteractionData returns every surviving interaction row (spec §6
// export_interaction_data).
func (t *Tracker) ExportInteractionData() (count int64, rows []InteractionExport, err error) {
	raw, err := t.Store.ListInteractions()
	if err != nil {
		return 0, nil, err
	}
	out := make([]InteractionExport, len(raw))
	for i, r := range raw {
		out[i] = InteractionExport{
			ID:              r.ID,
			NormalizedQuery: r.NormalizedQuery,
			ItemID:          r.ItemID,
			Path:            r.Path,
			MatchType:       r.MatchType,
			ResultPosition:  r.ResultPosition,
			FrontmostApp:    r.FrontmostApp,
			Timestamp:       r.Timestamp,
		}
	}
	return int64(len(out)), out, nil
}

// InteractionExport is one interaction row shaped for export_interaction_data.
type InteractionExport struct {
	ID              int64
	NormalizedQuery string
	ItemID          int64
	Path            string
	MatchType       string
	ResultPosition  int
	FrontmostApp    string
	Timestamp       time.Time
}
