// Package vector implements VectorIndex (spec §4.10): an append-only
// approximate-nearest-neighbor index over fixed-dimensional embeddings,
// wrapping github.com/coder/hnsw. Grounded on the teacher's
// internal/store/hnsw.go wrapper (graph construction, distance metric,
// save/load), adapted to spec's label/tombstone/JSON-meta contract
// instead of the teacher's string-id/gob-metadata scheme.
package vector

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// ErrAlreadyConfigured is returned by Configure after the index has been
// initialized once (spec §4.10: "rejected once initialized").
var ErrAlreadyConfigured = errors.New("vector index already configured")

// ErrInvalidDimensions is returned by Create when dimensions <= 0.
var ErrInvalidDimensions = errors.New("vector index dimensions must be positive")

// ErrDimensionMismatch is returned by Load when the sidecar's dimensions
// disagree with the index's configured dimensions.
type ErrDimensionMismatch struct{ Configured, Found int }

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector index dimension mismatch: configured %d, found %d", e.Configured, e.Found)
}

// Metadata describes one embedding model generation (spec §4.10).
type Metadata struct {
	SchemaVersion int    `json:"schemaVersion"`
	Dimensions    int    `json:"dimensions"`
	ModelID       string `json:"modelId"`
	GenerationID  string `json:"generationId"`
	Provider      string `json:"provider"`
	EfConstruction int   `json:"efConstruction"`
	M             int    `json:"m"`
}

// meta is the on-disk JSON sidecar (spec §4.10 save/load).
type meta struct {
	Metadata
	TotalElements   uint64    `json:"totalElements"`
	DeletedElements uint64    `json:"deletedElements"`
	NextLabel       uint64    `json:"nextLabel"`
	LastPersisted   time.Time `json:"lastPersisted"`
}

// Hit is one result of Search.
type Hit struct {
	Label    uint64
	Distance float32
}

const schemaVersion = 1
const growthThreshold = 0.8
const rebuildThreshold = 0.20

// Index is the append-only ANN index. All operations are safe under a
// single write lock (spec §4.10: "thread-safe under an internal write
// lock").
type Index struct {
	mu sync.RWMutex

	configured bool
	created    bool
	meta       Metadata

	graph     *hnsw.Graph[uint64]
	tombstone map[uint64]bool

	capacity        uint64
	totalElements   uint64
	deletedElements uint64
	nextLabel       uint64
}

// New returns an unconfigured Index.
func New() *Index {
	return &Index{tombstone: make(map[uint64]bool)}
}

// Configure sets the index metadata. Rejected once initialized.
func (idx *Index) Configure(m Metadata) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.configured {
		return ErrAlreadyConfigured
	}
	if m.SchemaVersion == 0 {
		m.SchemaVersion = schemaVersion
	}
	idx.meta = m
	idx.configured = true
	return nil
}

// Create initializes an empty graph at the configured dimensions,
// rejecting dimensions <= 0.
func (idx *Index) Create(initialCapacity uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.meta.Dimensions <= 0 {
		return ErrInvalidDimensions
	}
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	if idx.meta.M > 0 {
		graph.M = idx.meta.M
	}
	if idx.meta.EfConstruction > 0 {
		graph.EfSearch = idx.meta.EfConstruction
	}
	idx.graph = graph
	idx.tombstone = make(map[uint64]bool)
	idx.capacity = initialCapacity
	idx.created = true
	return nil
}

// AddVector assigns the next monotonically increasing label to embedding,
// doubling capacity bookkeeping once usage crosses 80% (spec §4.10).
func (idx *Index) AddVector(embedding []float32) (uint64, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.created {
		return 0, errors.New("vector index not created")
	}
	if len(embedding) != idx.meta.Dimensions {
		return 0, ErrDimensionMismatch{Configured: idx.meta.Dimensions, Found: len(embedding)}
	}

	label := idx.nextLabel
	idx.nextLabel++
	idx.graph.Add(hnsw.MakeNode(label, embedding))
	idx.totalElements++

	if idx.capacity > 0 && float64(idx.totalElements) >= float64(idx.capacity)*growthThreshold {
		idx.capacity *= 2
	}
	return label, nil
}

// DeleteVector soft-deletes label (tombstones it, leaving the graph node
// in place per the teacher's lazy-deletion pattern).
func (idx *Index) DeleteVector(label uint64) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.tombstone[label] {
		return false
	}
	idx.tombstone[label] = true
	idx.deletedElements++
	return true
}

// Search returns the top-k nearest neighbors to query in ascending
// distance, skipping tombstoned labels.
func (idx *Index) Search(query []float32, k int) ([]Hit, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.created {
		return nil, errors.New("vector index not created")
	}
	if len(query) != idx.meta.Dimensions {
		return nil, ErrDimensionMismatch{Configured: idx.meta.Dimensions, Found: len(query)}
	}
	if idx.graph.Len() == 0 {
		return nil, nil
	}

	fetch := k + len(idx.tombstone)
	nodes := idx.graph.Search(query, fetch)

	hits := make([]Hit, 0, k)
	for _, n := range nodes {
		if idx.tombstone[n.Key] {
			continue
		}
		dist := idx.graph.Distance(query, n.Value)
		hits = append(hits, Hit{Label: n.Key, Distance: dist})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// NeedsRebuild reports whether the tombstone ratio exceeds 20% (spec
// §4.10).
func (idx *Index) NeedsRebuild() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.totalElements == 0 {
		return false
	}
	return float64(idx.deletedElements)/float64(idx.totalElements) > rebuildThreshold
}

// Save persists the ANN graph to indexPath and a JSON metadata sidecar to
// metaPath. Both must be present for Load to succeed (spec §4.10
// persistence invariant).
func (idx *Index) Save(indexPath, metaPath string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if !idx.created {
		return errors.New("vector index not created")
	}

	if dir := filepath.Dir(indexPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create index dir: %w", err)
		}
	}

	tmpIndex := indexPath + ".tmp"
	f, err := os.Create(tmpIndex)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := idx.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmpIndex)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpIndex)
		return err
	}
	if err := os.Rename(tmpIndex, indexPath); err != nil {
		os.Remove(tmpIndex)
		return err
	}

	m := meta{
		Metadata:        idx.meta,
		TotalElements:   idx.totalElements,
		DeletedElements: idx.deletedElements,
		NextLabel:       idx.nextLabel,
		LastPersisted:   time.Now(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmpMeta := metaPath + ".tmp"
	if err := os.WriteFile(tmpMeta, data, 0o644); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return os.Rename(tmpMeta, metaPath)
}

// Load restores the ANN graph and metadata, refusing a dimension
// mismatch between the sidecar and the configured index.
func (idx *Index) Load(indexPath, metaPath string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read meta: %w", err)
	}
	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode meta: %w", err)
	}
	if idx.meta.Dimensions != 0 && m.Dimensions != idx.meta.Dimensions {
		return ErrDimensionMismatch{Configured: idx.meta.Dimensions, Found: m.Dimensions}
	}

	f, err := os.Open(indexPath)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	if m.M > 0 {
		graph.M = m.M
	}
	if err := graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	idx.graph = graph
	idx.meta = m.Metadata
	idx.totalElements = m.TotalElements
	idx.deletedElements = m.DeletedElements
	idx.nextLabel = m.NextLabel
	idx.tombstone = make(map[uint64]bool)
	idx.created = true
	idx.configured = true
	return nil
}

// Len returns the number of live (non-tombstoned) vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int(idx.totalElements - idx.deletedElements)
}
