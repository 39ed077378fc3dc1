// Package embed implements EmbeddingPipeline (spec §4.12): the
// background job that embeds unembedded chunks and populates the vector
// index. Grounded on the teacher's background-worker shape (start/stop/
// pause/resume over an atomic running flag) adapted to the
// fetch-batch/embed/addVector/addMapping loop spec describes.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theroutercompany/betterspotlight/internal/model"
	"github.com/theroutercompany/betterspotlight/internal/vector"
	"github.com/theroutercompany/betterspotlight/internal/vectorstore"
)

// Candidate is one chunk-at-index-0 row eligible for embedding.
type Candidate struct {
	ItemID  int64
	Content string
}

// CandidateSource is the subset of FtsStore the pipeline needs: counting
// and fetching items with a chunk at index 0 but no mapping in the active
// generation (spec §4.12 step 1-2).
type CandidateSource interface {
	CountUnembedded(generationID string) (int, error)
	FetchUnembeddedBatch(generationID string, limit int) ([]Candidate, error)
}

// Embedder converts text into fixed-dimensional vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// MemoryPressure reports current soft/hard memory pressure so the
// pipeline can shrink its batch size (spec §4.12 step 2).
type MemoryPressure func() (soft, hard bool)

const (
	defaultBatchSize = 32
	minHardBatchSize = 4
	saveEveryItems   = 1000
	saveEveryInterval = 60 * time.Second
	loopSleep        = 500 * time.Millisecond
)

// Pipeline drives the vector index from unembedded chunks (spec §4.12).
type Pipeline struct {
	Source       CandidateSource
	Embedder     Embedder
	Index        *vector.Index
	Mappings     *vectorstore.Store
	Pressure     MemoryPressure
	GenerationID string
	ModelID      string
	Provider     string
	IndexPath    string
	MetaPath     string

	BatchSize int

	running   atomic.Bool
	paused    atomic.Bool
	processed atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	sinceSave     int
	lastSaved     time.Time
	onProgress    func(processed, total int)
	onFinished    func()
	onError       func(error)
}

// New returns a Pipeline with spec §4.12's default batch size.
func New(source CandidateSource, embedder Embedder, idx *vector.Index, mappings *vectorstore.Store, generationID, modelID, provider string) *Pipeline {
	return &Pipeline{
		Source:       source,
		Embedder:     embedder,
		Index:        idx,
		Mappings:     mappings,
		GenerationID: generationID,
		ModelID:      modelID,
		Provider:     provider,
		BatchSize:    defaultBatchSize,
		lastSaved:    time.Now(),
	}
}

// OnProgress/OnFinished/OnError register the event callbacks spec §4.12
// names (progressUpdated, finished, error).
func (p *Pipeline) OnProgress(fn func(processed, total int)) { p.onProgress = fn }
func (p *Pipeline) OnFinished(fn func())                     { p.onFinished = fn }
func (p *Pipeline) OnError(fn func(error))                   { p.onError = fn }

// IsRunning reports whether the background loop is active.
func (p *Pipeline) IsRunning() bool { return p.running.Load() }

// ProcessedCount returns the cumulative number of embedded items.
func (p *Pipeline) ProcessedCount() int64 { return p.processed.Load() }

// Pause/Resume gate the loop without stopping it.
func (p *Pipeline) Pause()  { p.paused.Store(true) }
func (p *Pipeline) Resume() { p.paused.Store(false) }

// Start launches the background loop; it exits on its own once no
// candidates remain (spec §4.12 step 6).
func (p *Pipeline) Start(ctx context.Context) {
	if p.running.Swap(true) {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.running.Store(false)
		p.run(ctx)
	}()
}

// Stop signals the loop to exit and waits for it.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pipeline) run(ctx context.Context) {
	total, err := p.Source.CountUnembedded(p.GenerationID)
	if err != nil {
		p.emitError(err)
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if p.paused.Load() {
			time.Sleep(loopSleep)
			continue
		}

		remaining, err := p.Source.CountUnembedded(p.GenerationID)
		if err != nil {
			p.emitError(err)
			return
		}
		if remaining == 0 {
			p.maybeSave(0, true)
			if p.onFinished != nil {
				p.onFinished()
			}
			return
		}

		batchSize := p.batchSizeForPressure()
		candidates, err := p.Source.FetchUnembeddedBatch(p.GenerationID, batchSize)
		if err != nil {
			p.emitError(err)
			return
		}
		if len(candidates) == 0 {
			return
		}

		p.embedBatch(ctx, candidates)
		p.processed.Add(int64(len(candidates)))
		if p.onProgress != nil {
			p.onProgress(int(p.processed.Load()), total)
		}
		p.maybeSave(len(candidates), false)

		select {
		case <-ctx.Done():
			return
		case <-time.After(loopSleep):
		}
	}
}

func (p *Pipeline) batchSizeForPressure() int {
	size := p.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	if p.Pressure == nil {
		return size
	}
	soft, hard := p.Pressure()
	if hard {
		if minHardBatchSize > size {
			return size
		}
		return minHardBatchSize
	}
	if soft {
		return max1(size / 2)
	}
	return size
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// embedBatch embeds candidates together; on batch failure it retries
// items one by one (spec §4.12 step 3).
func (p *Pipeline) embedBatch(ctx context.Context, candidates []Candidate) {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Content
	}

	vectors, err := p.Embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(candidates) {
		for _, c := range candidates {
			p.embedOne(ctx, c)
		}
		return
	}
	for i, c := range candidates {
		p.storeEmbedding(c, vectors[i])
	}
}

func (p *Pipeline) embedOne(ctx context.Context, c Candidate) {
	vectors, err := p.Embedder.Embed(ctx, []string{c.Content})
	if err != nil || len(vectors) != 1 {
		p.emitError(fmt.Errorf("embed item %d: %w", c.ItemID, err))
		return
	}
	p.storeEmbedding(c, vectors[0])
}

// storeEmbedding adds the vector then the mapping, rolling back the
// vector if the mapping insert fails (spec §4.12 step 4).
func (p *Pipeline) storeEmbedding(c Candidate, embedding []float32) {
	label, err := p.Index.AddVector(embedding)
	if err != nil {
		p.emitError(fmt.Errorf("add vector for item %d: %w", c.ItemID, err))
		return
	}
	err = p.Mappings.AddMapping(model.VectorMapping{
		ItemID:       c.ItemID,
		Label:        label,
		ModelID:      p.ModelID,
		GenerationID: p.GenerationID,
		Dimensions:   len(embedding),
		Provider:     p.Provider,
		State:        "active",
	})
	if err != nil {
		p.Index.DeleteVector(label)
		p.emitError(fmt.Errorf("add mapping for item %d: %w", c.ItemID, err))
	}
}

func (p *Pipeline) maybeSave(items int, force bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinceSave += items
	if !force && p.sinceSave < saveEveryItems && time.Since(p.lastSaved) < saveEveryInterval {
		return
	}
	if p.IndexPath == "" || p.MetaPath == "" {
		return
	}
	if err := p.Index.Save(p.IndexPath, p.MetaPath); err != nil {
		p.emitError(err)
		return
	}
	p.sinceSave = 0
	p.lastSaved = time.Now()
}

func (p *Pipeline) emitError(err error) {
	if p.onError != nil {
		p.onError(err)
	}
}

// OllamaEmbedder calls an Ollama embeddings endpoint (spec §A.3's
// EmbeddingConfig.OllamaHost).
type OllamaEmbedder struct {
	Host    string
	Model   string
	Client  *http.Client
}

// NewOllamaEmbedder returns an embedder targeting host for model.
func NewOllamaEmbedder(host, model string) *OllamaEmbedder {
	return &OllamaEmbedder{Host: host, Model: model, Client: &http.Client{Timeout: 30 * time.Second}}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.Model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed returned status %d", resp.StatusCode)
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	return out.Embeddings, nil
}
