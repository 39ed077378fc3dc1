package store

import (
	"testing"
	"time"

	"github.com/theroutercompany/betterspotlight/internal/model"
)

func openBleveTest(t *testing.T) *FtsStore {
	t.Helper()
	s, err := OpenWithBackend(":memory:", BackendBleve)
	if err != nil {
		t.Fatalf("open bleve-backed store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBleveBackendReplaceChunksThenSearchFindsContent(t *testing.T) {
	s := openBleveTest(t)
	id, err := s.UpsertItem(&model.Item{Path: "/repo/notes.md", Basename: "notes.md", ModifiedAt: time.Now(), CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.ReplaceChunks(id, []model.Chunk{{ItemID: id, Index: 0, Content: "distributed consensus algorithms"}}); err != nil {
		t.Fatalf("replace chunks: %v", err)
	}

	hits, err := s.SearchFts5("consensus", 10, false)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 || hits[0].ItemID != id {
		t.Fatalf("expected a hit for item %d, got %+v", id, hits)
	}
}

func TestBleveBackendReplaceChunksRemovesStaleDocuments(t *testing.T) {
	s := openBleveTest(t)
	id, _ := s.UpsertItem(&model.Item{Path: "/repo/a.md", Basename: "a.md", ModifiedAt: time.Now(), CreatedAt: time.Now()})
	if err := s.ReplaceChunks(id, []model.Chunk{{ItemID: id, Index: 0, Content: "original unique marker zephyr"}}); err != nil {
		t.Fatalf("replace chunks: %v", err)
	}
	if err := s.ReplaceChunks(id, []model.Chunk{{ItemID: id, Index: 0, Content: "replaced content"}}); err != nil {
		t.Fatalf("replace chunks again: %v", err)
	}

	hits, err := s.SearchFts5("zephyr", 10, false)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected stale content removed, got %+v", hits)
	}
}
