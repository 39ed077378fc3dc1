package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theroutercompany/betterspotlight/internal/model"
	"github.com/theroutercompany/betterspotlight/internal/store"
)

type fakeStore struct {
	items         map[int64]*model.Item
	interactions  []store.InteractionRow
	frequency     map[int64]model.Frequency
	pathPrefs     map[string]int64
	typeAffinity  map[string]int64
	pinned        map[int64]bool
	nextInteraction int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:        make(map[int64]*model.Item),
		frequency:    make(map[int64]model.Frequency),
		pathPrefs:    make(map[string]int64),
		typeAffinity: make(map[string]int64),
		pinned:       make(map[int64]bool),
	}
}

func (s *fakeStore) RecordInteraction(in model.Interaction) error {
	s.nextInteraction++
	s.interactions = append(s.interactions, store.InteractionRow{
		ID: s.nextInteraction, NormalizedQuery: in.NormalizedQuery, ItemID: in.ItemID,
		Path: in.Path, MatchType: string(in.MatchType), ResultPosition: in.ResultPosition,
		FrontmostApp: in.FrontmostApp, Timestamp: in.Timestamp,
	})
	return nil
}

func (s *fakeStore) RecordFeedback(model.Feedback) error { return nil }

func (s *fakeStore) SetPinned(itemID int64, pinned bool) error {
	s.pinned[itemID] = pinned
	return nil
}

func (s *fakeStore) GetItemById(id int64) (*model.Item, bool) {
	item, ok := s.items[id]
	return item, ok
}

func (s *fakeStore) GetFrequency(itemID int64) model.Frequency { return s.frequency[itemID] }

func (s *fakeStore) BumpPathPreference(directory string) error {
	s.pathPrefs[directory]++
	return nil
}

func (s *fakeStore) BumpTypeAffinity(bucket string) error {
	s.typeAffinity[bucket]++
	return nil
}

func (s *fakeStore) ListPathPreferences(limit int) ([]store.PathPreferenceRow, error) {
	out := make([]store.PathPreferenceRow, 0, len(s.pathPrefs))
	for dir, count := range s.pathPrefs {
		out = append(out, store.PathPreferenceRow{Directory: dir, SelectionCount: count})
	}
	return out, nil
}

func (s *fakeStore) TypeAffinityCounts() (map[string]int64, error) {
	out := map[string]int64{"code": 0, "document": 0, "media": 0, "other": 0}
	for k, v := range s.typeAffinity {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) ListInteractions() ([]store.InteractionRow, error) { return s.interactions, nil }

func (s *fakeStore) PruneInteractionsBefore(cutoff time.Time) (int64, error) {
	var kept []store.InteractionRow
	var removed int64
	for _, r := range s.interactions {
		if r.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.interactions = kept
	return removed, nil
}

func (s *fakeStore) RecomputeFrequencyFromInteractions() error { return nil }
func (s *fakeStore) ResetPathPreferences() error                { s.pathPrefs = map[string]int64{}; return nil }
func (s *fakeStore) ResetTypeAffinity() error                   { s.typeAffinity = map[string]int64{}; return nil }

func TestRecordInteractionBumpsPathPreferenceAndAffinity(t *testing.T) {
	s := newFakeStore()
	s.items[1] = &model.Item{ID: 1, Kind: model.KindCode, Path: "/home/user/proj/main.go"}
	tr := NewTracker(s)

	require.NoError(t, tr.RecordInteraction(model.Interaction{
		ItemID: 1, Path: "/home/user/proj/main.go", Timestamp: time.Now(),
	}))

	assert.Equal(t, int64(1), s.pathPrefs["/home/user/proj"])
	assert.Equal(t, int64(1), s.typeAffinity["code"])
}

func TestRecordFeedbackPinAndUnpin(t *testing.T) {
	s := newFakeStore()
	tr := NewTracker(s)

	require.NoError(t, tr.RecordFeedback(model.Feedback{ItemID: 5, Action: model.ActionPin}))
	assert.True(t, s.pinned[5])

	require.NoError(t, tr.RecordFeedback(model.Feedback{ItemID: 5, Action: model.ActionUnpin}))
	assert.False(t, s.pinned[5])
}

func TestGetFrequencyTiers(t *testing.T) {
	cases := []struct {
		openCount int
		wantTier  int
	}{
		{0, 0}, {1, 1}, {5, 1}, {6, 2}, {20, 2}, {21, 3}, {1000, 3},
	}
	for _, c := range cases {
		assert.Equal(t, c.wantTier, FrequencyTier(c.openCount))
	}
}

func TestPreferenceBoostMonotonicAndCapped(t *testing.T) {
	low := PreferenceBoost(1)
	high := PreferenceBoost(50)
	assert.Less(t, low, high)
	assert.LessOrEqual(t, high, preferenceBoostCap)
}

func TestTypeAffinityPrimaryTieBreak(t *testing.T) {
	s := newFakeStore()
	s.typeAffinity["code"] = 3
	s.typeAffinity["document"] = 3
	tr := NewTracker(s)

	ta, err := tr.TypeAffinity()
	require.NoError(t, err)
	assert.Equal(t, BucketCode, ta.PrimaryAffinity)
}

func TestRunAggregationPrunesAndRebuilds(t *testing.T) {
	s := newFakeStore()
	s.items[1] = &model.Item{ID: 1, Kind: model.KindMarkdown, Path: "/docs/readme.md"}
	tr := NewTracker(s)

	s.interactions = []store.InteractionRow{
		{ID: 1, ItemID: 1, Path: "/docs/readme.md", Timestamp: time.Now().Add(-200 * 24 * time.Hour)},
		{ID: 2, ItemID: 1, Path: "/docs/readme.md", Timestamp: time.Now()},
	}

	result, err := tr.RunAggregation()
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.CleanedUp)
	assert.Equal(t, int64(1), result.Aggregated)
	assert.Equal(t, int64(1), s.pathPrefs["/docs"])
	assert.Equal(t, int64(1), s.typeAffinity["document"])
}
