package embed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/theroutercompany/betterspotlight/internal/vector"
	"github.com/theroutercompany/betterspotlight/internal/vectorstore"
)

type fakeSource struct {
	mu         sync.Mutex
	candidates []Candidate
}

func (s *fakeSource) CountUnembedded(string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candidates), nil
}

func (s *fakeSource) FetchUnembeddedBatch(_ string, limit int) ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.candidates) {
		limit = len(s.candidates)
	}
	batch := s.candidates[:limit]
	s.candidates = s.candidates[limit:]
	return batch, nil
}

type fakeEmbedder struct {
	dims int
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, e.dims)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func newTestPipeline(t *testing.T, candidates []Candidate) (*Pipeline, *vector.Index, *vectorstore.Store) {
	t.Helper()
	idx := vector.New()
	if err := idx.Configure(vector.Metadata{Dimensions: 4, ModelID: "test", GenerationID: "gen-1"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Create(16); err != nil {
		t.Fatal(err)
	}
	mappings, err := vectorstore.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = mappings.Close() })

	source := &fakeSource{candidates: candidates}
	p := New(source, &fakeEmbedder{dims: 4}, idx, mappings, "gen-1", "test", "local")
	p.BatchSize = 2
	return p, idx, mappings
}

func TestRunEmbedsAllCandidatesThenExits(t *testing.T) {
	candidates := []Candidate{{ItemID: 1, Content: "a"}, {ItemID: 2, Content: "b"}, {ItemID: 3, Content: "c"}}
	p, idx, mappings := newTestPipeline(t, candidates)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	p.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && p.ProcessedCount() < 3 {
		time.Sleep(10 * time.Millisecond)
	}
	p.Stop()

	if p.ProcessedCount() != 3 {
		t.Fatalf("expected 3 processed, got %d", p.ProcessedCount())
	}
	if idx.Len() != 3 {
		t.Fatalf("expected 3 vectors in index, got %d", idx.Len())
	}
	if mappings.CountMappingsForGeneration("gen-1") != 3 {
		t.Fatalf("expected 3 mappings, got %d", mappings.CountMappingsForGeneration("gen-1"))
	}
}

func TestIsRunningReflectsLifecycle(t *testing.T) {
	p, _, _ := newTestPipeline(t, nil)
	if p.IsRunning() {
		t.Fatal("expected not running before Start")
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	p.Stop()
	if p.IsRunning() {
		t.Fatal("expected not running after Stop")
	}
}

func TestPauseStopsProgressUntilResumed(t *testing.T) {
	candidates := []Candidate{{ItemID: 1, Content: "a"}}
	p, _, _ := newTestPipeline(t, candidates)
	p.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	if p.ProcessedCount() != 0 {
		t.Fatal("expected no progress while paused")
	}
	p.Resume()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && p.ProcessedCount() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	p.Stop()
	if p.ProcessedCount() == 0 {
		t.Fatal("expected progress after resume")
	}
}

func TestBatchSizeForPressureShrinksUnderSoftPressure(t *testing.T) {
	p, _, _ := newTestPipeline(t, nil)
	p.BatchSize = 32
	p.Pressure = func() (bool, bool) { return true, false }
	if got := p.batchSizeForPressure(); got != 16 {
		t.Fatalf("expected half of 32 under soft pressure, got %d", got)
	}
	p.Pressure = func() (bool, bool) { return false, true }
	if got := p.batchSizeForPressure(); got != minHardBatchSize {
		t.Fatalf("expected hard-pressure floor %d, got %d", minHardBatchSize, got)
	}
}
