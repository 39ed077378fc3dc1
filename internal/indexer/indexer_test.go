package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/theroutercompany/betterspotlight/internal/chunk"
	"github.com/theroutercompany/betterspotlight/internal/extract"
	"github.com/theroutercompany/betterspotlight/internal/model"
	"github.com/theroutercompany/betterspotlight/internal/pathrules"
	"github.com/theroutercompany/betterspotlight/internal/queue"
)

type fakeStore struct {
	byPath    map[string]*model.Item
	nextID    int64
	chunks    map[int64][]model.Chunk
	failures  map[int64]model.Failure
}

func newFakeStore() *fakeStore {
	return &fakeStore{byPath: make(map[string]*model.Item), chunks: make(map[int64][]model.Chunk), failures: make(map[int64]model.Failure)}
}

func (s *fakeStore) GetItemByPath(path string) (*model.Item, bool) {
	it, ok := s.byPath[path]
	return it, ok
}

func (s *fakeStore) UpsertItem(item *model.Item) (int64, error) {
	if item.ID == 0 {
		s.nextID++
		item.ID = s.nextID
	}
	s.byPath[item.Path] = item
	return item.ID, nil
}

func (s *fakeStore) DeleteItem(itemID int64) error {
	for path, it := range s.byPath {
		if it.ID == itemID {
			delete(s.byPath, path)
		}
	}
	delete(s.chunks, itemID)
	delete(s.failures, itemID)
	return nil
}

func (s *fakeStore) ReplaceChunks(itemID int64, chunks []model.Chunk) error {
	s.chunks[itemID] = chunks
	return nil
}

func (s *fakeStore) ClearFailure(itemID int64) { delete(s.failures, itemID) }

func (s *fakeStore) RecordFailure(itemID int64, failure model.Failure) {
	s.failures[itemID] = failure
}

func newTestIndexer(store ItemStore) *Indexer {
	rules := pathrules.New()
	mgr := extract.NewManager(4)
	mgr.Register(model.KindText, extract.NewPlainTextExtractor(0))
	return New(store, mgr, rules, chunk.NewChunker())
}

func TestApplyPreparedWorkDeleteRemovesItem(t *testing.T) {
	store := newFakeStore()
	ix := newTestIndexer(store)
	store.byPath["/a.txt"] = &model.Item{ID: 1, Path: "/a.txt"}

	res := ix.ApplyPreparedWork(PreparedWork{Type: queue.Delete, Path: "/a.txt"})
	if res.Status != StatusDeleted {
		t.Fatalf("expected Deleted, got %v", res.Status)
	}
	if _, ok := store.GetItemByPath("/a.txt"); ok {
		t.Fatal("expected item removed")
	}
}

func TestApplyPreparedWorkExcludedIsNoop(t *testing.T) {
	store := newFakeStore()
	ix := newTestIndexer(store)
	res := ix.ApplyPreparedWork(PreparedWork{Type: queue.NewFile, Path: "/x", Validation: pathrules.Exclude})
	if res.Status != StatusExcluded {
		t.Fatalf("expected Excluded, got %v", res.Status)
	}
}

func TestApplyPreparedWorkMissingMetadataIsExtractionFailed(t *testing.T) {
	store := newFakeStore()
	ix := newTestIndexer(store)
	res := ix.ApplyPreparedWork(PreparedWork{Type: queue.NewFile, Path: "/x", Validation: pathrules.Include})
	if res.Status != StatusExtractionFailed {
		t.Fatalf("expected ExtractionFailed when metadata missing, got %v", res.Status)
	}
}

func TestPrepareThenApplyFullyIndexesTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hello world, this is indexed content."), 0o644); err != nil {
		t.Fatal(err)
	}

	store := newFakeStore()
	ix := newTestIndexer(store)

	prepared := ix.PrepareWorkItem(context.Background(), queue.WorkItem{Type: queue.NewFile, Path: path}, 1)
	if prepared.Validation != pathrules.Include {
		t.Fatalf("expected Include, got %v", prepared.Validation)
	}
	if !prepared.HasExtracted {
		t.Fatalf("expected extraction to succeed: %+v", prepared)
	}
	if len(prepared.Chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}

	result := ix.ApplyPreparedWork(prepared)
	if result.Status != StatusIndexed {
		t.Fatalf("expected Indexed, got %v", result.Status)
	}
	if result.ChunksInserted != len(prepared.Chunks) {
		t.Fatalf("expected %d chunks inserted, got %d", len(prepared.Chunks), result.ChunksInserted)
	}

	item, ok := store.GetItemByPath(path)
	if !ok {
		t.Fatal("expected item to be upserted")
	}
	if item.ContentHash == "" {
		t.Fatal("expected content hash to be set")
	}
}

func TestApplyPreparedWorkSkipsUnchangedModifiedContent(t *testing.T) {
	store := newFakeStore()
	ix := newTestIndexer(store)

	mtime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.byPath["/a.txt"] = &model.Item{ID: 1, Path: "/a.txt", Size: 10, ModifiedAt: mtime}

	prepared := PreparedWork{
		Type:       queue.ModifiedContent,
		Path:       "/a.txt",
		Validation: pathrules.Include,
		Metadata:   &Metadata{Size: 10, ModifiedAt: mtime},
	}
	res := ix.ApplyPreparedWork(prepared)
	if res.Status != StatusSkipped {
		t.Fatalf("expected Skipped for unchanged (size,mtime), got %v", res.Status)
	}
}

func TestApplyPreparedWorkRecordsFailureOnExtractionError(t *testing.T) {
	store := newFakeStore()
	ix := newTestIndexer(store)

	prepared := PreparedWork{
		Type:       queue.NewFile,
		Path:       "/a.txt",
		Validation: pathrules.Include,
		Metadata:   &Metadata{Size: 10},
		Failure:    &Failure{Stage: StageExtraction, Message: "boom"},
	}
	res := ix.ApplyPreparedWork(prepared)
	if res.Status != StatusExtractionFailed {
		t.Fatalf("expected ExtractionFailed, got %v", res.Status)
	}
	item, _ := store.GetItemByPath("/a.txt")
	if _, ok := store.failures[item.ID]; !ok {
		t.Fatal("expected a failure row to be recorded")
	}
}
