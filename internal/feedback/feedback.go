// Package feedback implements the interaction/frequency/feedback loop
// spec.md §3 names as data-model entities but leaves unspecified
// internally (SPEC_FULL.md §C supplements their behavior from
// original_source's src/core/feedback/): InteractionTracker,
// FrequencyAggregator, PathPreferences, and TypeAffinity, all backed by
// internal/store's interactions/feedback/frequency/path_preferences/
// type_affinity tables.
package feedback

import (
	"path/filepath"
	"time"

	"github.com/theroutercompany/betterspotlight/internal/model"
	"github.com/theroutercompany/betterspotlight/internal/store"
)

// Store is the subset of *store.FtsStore the feedback package needs,
// narrowed the way internal/indexer.ItemStore narrows FtsStore for its
// own purposes.
type Store interface {
	RecordInteraction(model.Interaction) error
	RecordFeedback(model.Feedback) error
	SetPinned(itemID int64, pinned bool) error
	GetItemById(id int64) (*model.Item, bool)
	GetFrequency(itemID int64) model.Frequency

	BumpPathPreference(directory string) error
	BumpTypeAffinity(bucket string) error
	ListPathPreferences(limit int) ([]store.PathPreferenceRow, error)
	TypeAffinityCounts() (map[string]int64, error)

	ListInteractions() ([]store.InteractionRow, error)
	PruneInteractionsBefore(cutoff time.Time) (int64, error)
	RecomputeFrequencyFromInteractions() error
	ResetPathPreferences() error
	ResetTypeAffinity() error
}

// Tracker records interactions and feedback events and maintains the
// incremental (cheap-path) PathPreferences/TypeAffinity aggregates;
// RunAggregation performs the full-consistency recompute.
type Tracker struct {
	Store Store
}

// NewTracker returns a Tracker backed by s.
func NewTracker(s Store) *Tracker {
	return &Tracker{Store: s}
}

// RecordInteraction appends one interaction (spec §6 record_interaction)
// and bumps the directory's PathPreference counter plus the selected
// item's TypeAffinity bucket.
func (t *Tracker) RecordInteraction(in model.Interaction) error {
	if err := t.Store.RecordInteraction(in); err != nil {
		return err
	}
	if err := t.Store.BumpPathPreference(filepath.Dir(in.Path)); err != nil {
		return err
	}
	bucket := BucketOther
	if item, ok := t.Store.GetItemById(in.ItemID); ok {
		bucket = classify(item.Kind)
	}
	return t.Store.BumpTypeAffinity(string(bucket))
}

// RecordFeedback appends a raw feedback event (spec §3 Feedback) and, for
// pin/unpin actions, flips the item's durable pinned flag.
func (t *Tracker) RecordFeedback(fb model.Feedback) error {
	if err := t.Store.RecordFeedback(fb); err != nil {
		return err
	}
	switch fb.Action {
	case model.ActionPin:
		return t.Store.SetPinned(fb.ItemID, true)
	case model.ActionUnpin:
		return t.Store.SetPinned(fb.ItemID, false)
	}
	return nil
}

// FrequencyTier buckets an open count into the scorer's tiers (spec §6
// getFrequency's frequencyTier).
func FrequencyTier(openCount int) int {
	switch {
	case openCount <= 0:
		return 0
	case openCount <= 5:
		return 1
	case openCount <= 20:
		return 2
	default:
		return 3
	}
}

// Frequency reports an item's open-count/recency row plus its tier and
// boost (spec §6 getFrequency).
type Frequency struct {
	OpenCount     int
	LastOpenedAt  int64
	FrequencyTier int
	Boost         float64
}

// GetFrequency implements spec §6's getFrequency({itemId}).
func (t *Tracker) GetFrequency(itemID int64, weight float64) Frequency {
	f := t.Store.GetFrequency(itemID)
	tier := FrequencyTier(f.OpenCount)
	boost := 0.0
	switch tier {
	case 1:
		boost = weight
	case 2:
		boost = weight * 2.5
	case 3:
		boost = weight * 4
	}
	return Frequency{
		OpenCount:     f.OpenCount,
		LastOpenedAt:  f.LastOpenedAt.Unix(),
		FrequencyTier: tier,
		Boost:         boost,
	}
}
