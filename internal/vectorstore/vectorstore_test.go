package vectorstore

import (
	"testing"

	"github.com/theroutercompany/betterspotlight/internal/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddMappingThenGetLabelRoundTrips(t *testing.T) {
	s := openTest(t)
	if err := s.AddMapping(model.VectorMapping{ItemID: 1, Label: 42, ModelID: "m1", GenerationID: "gen-1", Dimensions: 4}); err != nil {
		t.Fatalf("add: %v", err)
	}
	label, ok, err := s.GetLabel(1, "gen-1")
	if err != nil || !ok || label != 42 {
		t.Fatalf("expected label 42, got %d ok=%v err=%v", label, ok, err)
	}
	itemID, ok, err := s.GetItemId(42, "gen-1")
	if err != nil || !ok || itemID != 1 {
		t.Fatalf("expected item 1, got %d ok=%v err=%v", itemID, ok, err)
	}
}

func TestAddMappingRejectsNegativePassageOrdinal(t *testing.T) {
	s := openTest(t)
	err := s.AddMapping(model.VectorMapping{ItemID: 1, Label: 1, GenerationID: "g", PassageOrdinal: -1})
	if err != ErrNegativeOrdinal {
		t.Fatalf("expected ErrNegativeOrdinal, got %v", err)
	}
}

func TestRemoveGenerationDeletesAllItsMappings(t *testing.T) {
	s := openTest(t)
	_ = s.AddMapping(model.VectorMapping{ItemID: 1, Label: 1, GenerationID: "gen-1"})
	_ = s.AddMapping(model.VectorMapping{ItemID: 2, Label: 2, GenerationID: "gen-1"})
	_ = s.AddMapping(model.VectorMapping{ItemID: 3, Label: 3, GenerationID: "gen-2"})

	if err := s.RemoveGeneration("gen-1"); err != nil {
		t.Fatalf("remove generation: %v", err)
	}
	if s.CountMappingsForGeneration("gen-1") != 0 {
		t.Fatal("expected gen-1 mappings removed")
	}
	if s.CountMappingsForGeneration("gen-2") != 1 {
		t.Fatal("expected gen-2 mappings untouched")
	}
}

func TestSetActiveGenerationCreatesDefaultRowWhenAbsent(t *testing.T) {
	s := openTest(t)
	if err := s.SetActiveGeneration("gen-new"); err != nil {
		t.Fatalf("set active: %v", err)
	}
	active, ok := s.ActiveGenerationState()
	if !ok || active.GenerationID != "gen-new" {
		t.Fatalf("expected gen-new active, got %+v ok=%v", active, ok)
	}
}

func TestSetActiveGenerationDeactivatesOthers(t *testing.T) {
	s := openTest(t)
	_ = s.UpsertGenerationState(model.GenerationState{GenerationID: "gen-1", Active: true})
	_ = s.SetActiveGeneration("gen-2")

	states, err := s.ListGenerationStates()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	activeCount := 0
	for _, st := range states {
		if st.Active {
			activeCount++
			if st.GenerationID != "gen-2" {
				t.Fatalf("expected gen-2 active, found %s active", st.GenerationID)
			}
		}
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly one active generation, got %d", activeCount)
	}
}

func TestGetLabelWithEmptyGenerationResolvesToActive(t *testing.T) {
	s := openTest(t)
	_ = s.SetActiveGeneration("gen-1")
	_ = s.AddMapping(model.VectorMapping{ItemID: 1, Label: 7, GenerationID: "gen-1"})

	label, ok, err := s.GetLabel(1, "")
	if err != nil || !ok || label != 7 {
		t.Fatalf("expected label 7 via active generation, got %d ok=%v err=%v", label, ok, err)
	}
}

func TestClearAllRemovesEverything(t *testing.T) {
	s := openTest(t)
	_ = s.AddMapping(model.VectorMapping{ItemID: 1, Label: 1, GenerationID: "gen-1"})
	_ = s.UpsertGenerationState(model.GenerationState{GenerationID: "gen-1"})

	if err := s.ClearAll(); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	if s.CountMappings() != 0 {
		t.Fatal("expected mappings cleared")
	}
	states, _ := s.ListGenerationStates()
	if len(states) != 0 {
		t.Fatal("expected generation states cleared")
	}
}
