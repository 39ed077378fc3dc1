// Package indexer implements the stateless per-call prepare/apply split
// described by spec §4.7: prepareWorkItem runs off the critical DB path,
// applyPreparedWork runs inside the writer's transaction.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theroutercompany/betterspotlight/internal/chunk"
	"github.com/theroutercompany/betterspotlight/internal/extract"
	"github.com/theroutercompany/betterspotlight/internal/model"
	"github.com/theroutercompany/betterspotlight/internal/pathrules"
	"github.com/theroutercompany/betterspotlight/internal/queue"
)

// maxExtractionRetries bounds the extra extractor attempts prepareWorkItem
// makes beyond the item's existing retry count (spec: "up to (2 -
// retryCount) additional times").
const maxExtractionRetries = 2

// FailureStage names where a PreparedWork failure occurred, mirroring
// model.Failure.Stage.
const (
	StageMetadata   = "metadata"
	StageExtraction = "extraction"
)

// PreparedWork is the in-memory handoff from a prep worker to the writer
// (spec §3 PreparedWork).
type PreparedWork struct {
	Type         queue.ItemType
	Path         string
	Validation   pathrules.Decision
	Metadata     *Metadata
	Sensitivity  pathrules.Sensitivity
	ParentPath   string
	ContentHash  string
	Chunks       []model.Chunk
	HasExtracted bool
	NonExtractable bool
	Failure      *Failure
	Generation   int64
	RetryCount   int
	RebuildLane  bool
}

// Metadata is the filesystem metadata captured during prepareWorkItem.
type Metadata struct {
	Size       int64
	CreatedAt  time.Time
	ModifiedAt time.Time
	Mode       os.FileMode
	Readable   bool
}

// Failure carries the stage and message for a PreparedFailure.
type Failure struct {
	Stage   string
	Message string
}

// IndexStatus is the outcome of applyPreparedWork.
type IndexStatus int

const (
	StatusIndexed IndexStatus = iota
	StatusMetadataOnly
	StatusDeleted
	StatusExcluded
	StatusExtractionFailed
	StatusSkipped
)

func (s IndexStatus) String() string {
	switch s {
	case StatusIndexed:
		return "Indexed"
	case StatusMetadataOnly:
		return "MetadataOnly"
	case StatusDeleted:
		return "Deleted"
	case StatusExcluded:
		return "Excluded"
	case StatusExtractionFailed:
		return "ExtractionFailed"
	case StatusSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// IndexResult is returned by applyPreparedWork.
type IndexResult struct {
	Status         IndexStatus
	ChunksInserted int
	DurationMs     float64
}

// ItemStore is the subset of FtsStore/item-table operations applyPreparedWork
// needs. Kept narrow so indexer tests can use an in-memory fake instead of
// a real SQL backend.
type ItemStore interface {
	GetItemByPath(path string) (*model.Item, bool)
	UpsertItem(item *model.Item) (int64, error)
	DeleteItem(itemID int64) error
	ReplaceChunks(itemID int64, chunks []model.Chunk) error
	ClearFailure(itemID int64)
	RecordFailure(itemID int64, failure model.Failure)
}

// Indexer is stateless per call; it holds only references to its
// collaborators.
type Indexer struct {
	Store      ItemStore
	Extractor  *extract.ExtractionManager
	Rules      *pathrules.PathRules
	Chunker    *chunk.Chunker
}

// New returns an Indexer wired to its collaborators.
func New(store ItemStore, extractor *extract.ExtractionManager, rules *pathrules.PathRules, chunker *chunk.Chunker) *Indexer {
	return &Indexer{Store: store, Extractor: extractor, Rules: rules, Chunker: chunker}
}

// PrepareWorkItem runs off the critical DB path, dispatching on
// item.Type per spec §4.7.
func (ix *Indexer) PrepareWorkItem(ctx context.Context, item queue.WorkItem, generation int64) PreparedWork {
	prepared := PreparedWork{
		Type:        item.Type,
		Path:        item.Path,
		Generation:  generation,
		RetryCount:  item.RetryCount,
		RebuildLane: item.RebuildLane,
		ParentPath:  filepath.Dir(item.Path),
	}

	switch item.Type {
	case queue.Delete:
		prepared.Validation = pathrules.Include
		return prepared

	case queue.RescanDirectory:
		prepared.Validation = ix.Rules.Validate(item.Path, 0)
		if prepared.Validation == pathrules.Exclude {
			return prepared
		}
		ix.fillMetadata(&prepared)
		return prepared

	case queue.NewFile, queue.ModifiedContent:
		return ix.prepareFile(ctx, item, prepared)

	default:
		return prepared
	}
}

func (ix *Indexer) prepareFile(ctx context.Context, item queue.WorkItem, prepared PreparedWork) PreparedWork {
	size := pathrules.StatSize(item.Path)
	prepared.Validation = ix.Rules.Validate(item.Path, size)
	if prepared.Validation == pathrules.Exclude {
		return prepared
	}

	info, err := os.Stat(item.Path)
	if err != nil {
		prepared.Failure = &Failure{Stage: StageMetadata, Message: err.Error()}
		return prepared
	}
	prepared.Metadata = &Metadata{
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
		Mode:       info.Mode(),
		Readable:   isReadable(info),
	}
	prepared.Sensitivity = ix.Rules.ClassifySensitivity(item.Path)

	if prepared.Validation == pathrules.MetadataOnly {
		return prepared
	}

	kind := classifyKind(item.Path, info)
	if kind.NonExtractable() {
		prepared.NonExtractable = true
		return prepared
	}

	return ix.extractAndChunk(ctx, item, prepared, kind)
}

func (ix *Indexer) extractAndChunk(ctx context.Context, item queue.WorkItem, prepared PreparedWork, kind model.Kind) PreparedWork {
	attempts := 1 + max0(maxExtractionRetries-item.RetryCount)
	var res extract.Result
	for i := 0; i < attempts; i++ {
		res = ix.Extractor.Extract(ctx, kind, item.Path)
		if res.Status == extract.StatusOK || !res.Status.Transient() {
			break
		}
	}

	switch res.Status {
	case extract.StatusOK:
		prepared.ContentHash = contentHash(res.Text)
		prepared.HasExtracted = true
		chunks := ix.Chunker.Split(item.Path, res.Text)
		prepared.Chunks = make([]model.Chunk, len(chunks))
		for i, c := range chunks {
			prepared.Chunks[i] = model.Chunk{ID: c.ID, Index: c.Index, Content: c.Content, Offset: c.Start}
		}
		return prepared

	case extract.StatusUnsupportedFormat:
		prepared.NonExtractable = true
		return prepared

	default:
		msg := "extraction failed"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		prepared.Failure = &Failure{Stage: StageExtraction, Message: msg}
		return prepared
	}
}

func (ix *Indexer) fillMetadata(prepared *PreparedWork) {
	info, err := os.Stat(prepared.Path)
	if err != nil {
		prepared.Failure = &Failure{Stage: StageMetadata, Message: err.Error()}
		return
	}
	prepared.Metadata = &Metadata{
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
		Mode:       info.Mode(),
		Readable:   isReadable(info),
	}
	prepared.Sensitivity = ix.Rules.ClassifySensitivity(prepared.Path)
}

// ApplyPreparedWork runs inside the writer's transaction (spec §4.7).
func (ix *Indexer) ApplyPreparedWork(prepared PreparedWork) IndexResult {
	start := time.Now()
	result := ix.applyPreparedWork(prepared)
	result.DurationMs = float64(time.Since(start).Microseconds()) / 1000.0
	return result
}

func (ix *Indexer) applyPreparedWork(prepared PreparedWork) IndexResult {
	if prepared.Type == queue.Delete {
		existing, ok := ix.Store.GetItemByPath(prepared.Path)
		if ok {
			_ = ix.Store.DeleteItem(existing.ID)
		}
		return IndexResult{Status: StatusDeleted}
	}

	if prepared.Validation == pathrules.Exclude {
		return IndexResult{Status: StatusExcluded}
	}

	if prepared.Metadata == nil {
		return IndexResult{Status: StatusExtractionFailed}
	}

	existing, hadExisting := ix.Store.GetItemByPath(prepared.Path)
	if hadExisting && prepared.Type == queue.ModifiedContent &&
		existing.Size == prepared.Metadata.Size && existing.ModifiedAt.Equal(prepared.Metadata.ModifiedAt) {
		return IndexResult{Status: StatusSkipped}
	}

	item := &model.Item{
		Path:        prepared.Path,
		Basename:    filepath.Base(prepared.Path),
		Extension:   strings.ToLower(strings.TrimPrefix(filepath.Ext(prepared.Path), ".")),
		Size:        prepared.Metadata.Size,
		ModifiedAt:  prepared.Metadata.ModifiedAt,
		IndexedAt:   time.Now(),
		Sensitivity: toModelSensitivity(prepared.Sensitivity),
		ParentPath:  prepared.ParentPath,
	}
	if hadExisting {
		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
		item.ContentHash = existing.ContentHash
		item.Pinned = existing.Pinned
	} else {
		item.CreatedAt = prepared.Metadata.ModifiedAt
	}
	if prepared.HasExtracted {
		item.ContentHash = prepared.ContentHash
	}

	itemID, err := ix.Store.UpsertItem(item)
	if err != nil {
		return IndexResult{Status: StatusExtractionFailed}
	}

	if prepared.Validation == pathrules.MetadataOnly {
		return IndexResult{Status: StatusMetadataOnly}
	}

	if prepared.NonExtractable {
		ix.Store.ClearFailure(itemID)
		return IndexResult{Status: StatusIndexed}
	}

	if prepared.Failure != nil {
		ix.Store.RecordFailure(itemID, model.Failure{
			ItemID:    itemID,
			Stage:     prepared.Failure.Stage,
			Message:   prepared.Failure.Message,
			Timestamp: time.Now(),
		})
		return IndexResult{Status: StatusExtractionFailed}
	}

	if hadExisting && prepared.HasExtracted && existing.ContentHash == prepared.ContentHash {
		return IndexResult{Status: StatusSkipped}
	}

	if err := ix.Store.ReplaceChunks(itemID, prepared.Chunks); err != nil {
		return IndexResult{Status: StatusExtractionFailed}
	}
	ix.Store.ClearFailure(itemID)
	return IndexResult{Status: StatusIndexed, ChunksInserted: len(prepared.Chunks)}
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func toModelSensitivity(s pathrules.Sensitivity) model.Sensitivity {
	switch s {
	case pathrules.SensitivePath:
		return model.SensitivitySensitive
	case pathrules.Hidden:
		return model.SensitivityHidden
	default:
		return model.SensitivityNormal
	}
}

func isReadable(info os.FileInfo) bool {
	return info.Mode().Perm()&0o400 != 0
}

// classifyKind infers an item kind from its extension. This is a
// deliberately small, extensible table; kinds absent from it default to
// Unknown (non-extractable, per spec §4.7).
func classifyKind(path string, info os.FileInfo) model.Kind {
	if info.IsDir() {
		return model.KindDirectory
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return model.KindMarkdown
	case ".txt", ".log", ".csv", ".json", ".yaml", ".yml", ".xml", ".toml":
		return model.KindText
	case ".go", ".py", ".js", ".ts", ".tsx", ".jsx", ".java", ".c", ".cc", ".cpp", ".h", ".hpp", ".rs", ".rb":
		return model.KindCode
	case ".pdf":
		return model.KindPdf
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return model.KindImage
	case ".zip", ".tar", ".gz", ".7z", ".rar":
		return model.KindArchive
	case ".exe", ".dll", ".so", ".dylib", ".bin":
		return model.KindBinary
	default:
		return model.KindUnknown
	}
}
