package store

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// Backend selects which full-text engine FtsStore's content search runs
// against (spec §4.9's store is schema-defined, not backend-specific, so
// this is an implementation-level choice grounded on the teacher's
// bm25_factory.go dual-backend switch).
type Backend string

const (
	// BackendSQLite uses the FTS5 virtual table (default, concurrent
	// multi-reader access via WAL).
	BackendSQLite Backend = "sqlite"
	// BackendBleve uses a Bleve index (legacy; single-process only, no
	// OS-level file locking across processes).
	BackendBleve Backend = "bleve"
)

// bleveContentDoc is the document shape indexed into Bleve; only the
// searchable field is mapped, matching the teacher's BleveDocument.
type bleveContentDoc struct {
	Content string `json:"content"`
}

// bleveContentIndex wraps a Bleve index as an alternate backend for
// chunk content search, grounded on the teacher's BleveBM25Index.
type bleveContentIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

func newBleveContentIndex(path string) (*bleveContentIndex, error) {
	mapping := bleve.NewIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" || path == ":memory:" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		idx, err = bleve.Open(path)
		if err != nil {
			idx, err = bleve.New(path, mapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &bleveContentIndex{index: idx}, nil
}

func (b *bleveContentIndex) docID(itemID int64, chunkIndex int) string {
	return strconv.FormatInt(itemID, 10) + ":" + strconv.Itoa(chunkIndex)
}

// replaceChunks clears any existing documents for itemID and indexes the
// given chunks, mirroring FtsStore.ReplaceChunks for the FTS5 backend.
func (b *bleveContentIndex) replaceChunks(itemID int64, chunks []bleveChunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	// Bleve has no prefix-delete; chunk counts are small enough that a
	// bounded sweep over plausible indices is cheap and avoids keeping a
	// separate id-tracking table just for this backend.
	for i := 0; i < maxTrackedChunksPerItem; i++ {
		batch.Delete(b.docID(itemID, i))
	}
	for _, c := range chunks {
		if err := batch.Index(b.docID(itemID, c.Index), bleveContentDoc{Content: c.Content}); err != nil {
			return fmt.Errorf("index chunk: %w", err)
		}
	}
	return b.index.Batch(batch)
}

const maxTrackedChunksPerItem = 4096

type bleveChunk struct {
	Index   int
	Content string
}

// search returns content matches scored by Bleve's BM25-equivalent
// relevance, translated into FtsHit's item-id-keyed shape.
func (b *bleveContentIndex) search(query string, limit int) ([]FtsHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	q := bleve.NewMatchQuery(query)
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	hits := make([]FtsHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		itemIDStr, _, ok := strings.Cut(h.ID, ":")
		if !ok {
			continue
		}
		itemID, err := strconv.ParseInt(itemIDStr, 10, 64)
		if err != nil {
			continue
		}
		// Bleve's score is positive (higher = better); FtsHit's
		// convention from bm25() is non-positive (more negative =
		// stronger), so negate to keep callers' sort order uniform.
		hits = append(hits, FtsHit{ItemID: itemID, Score: -h.Score})
	}
	return hits, nil
}

func (b *bleveContentIndex) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}
