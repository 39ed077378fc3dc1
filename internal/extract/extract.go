// Package extract provides the extractor routing table and concurrency
// gate described by spec §9: per-kind extractors dispatched through a
// global semaphore, with a status contract prep workers use to decide
// retry vs. permanent failure.
package extract

import (
	"context"
	"io"
	"os"

	"golang.org/x/sync/semaphore"

	"github.com/theroutercompany/betterspotlight/internal/model"
)

// Status classifies the outcome of an extraction attempt.
type Status int

const (
	StatusOK Status = iota
	StatusUnsupportedFormat
	StatusInaccessible
	StatusTimeout
	StatusUnknown
)

// Transient reports whether the prep worker should retry this status
// (spec §4.7: Inaccessible/Timeout/Unknown are retried; UnsupportedFormat
// is permanent).
func (s Status) Transient() bool {
	switch s {
	case StatusInaccessible, StatusTimeout, StatusUnknown:
		return true
	default:
		return false
	}
}

// Result is the outcome of one extraction attempt.
type Result struct {
	Text   string
	Status Status
	Err    error
}

// Extractor converts a file's bytes into plain text for chunking.
type Extractor interface {
	Extract(ctx context.Context, path string) Result
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, path string) Result

func (f ExtractorFunc) Extract(ctx context.Context, path string) Result { return f(ctx, path) }

// PlainTextExtractor reads UTF-8 text verbatim. It is the one built-in
// backend; Pdf/Ocr/Mdls backends are external collaborators out of scope
// per spec §1, registered the same way if/when they exist.
type PlainTextExtractor struct {
	MaxBytes int64
}

// NewPlainTextExtractor returns a PlainTextExtractor capped at maxBytes
// (0 means unlimited).
func NewPlainTextExtractor(maxBytes int64) *PlainTextExtractor {
	return &PlainTextExtractor{MaxBytes: maxBytes}
}

func (e *PlainTextExtractor) Extract(ctx context.Context, path string) Result {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return Result{Status: StatusInaccessible, Err: err}
		}
		return Result{Status: StatusUnknown, Err: err}
	}
	defer func() { _ = f.Close() }()

	var reader io.Reader = f
	if e.MaxBytes > 0 {
		reader = io.LimitReader(f, e.MaxBytes)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		select {
		case <-ctx.Done():
			return Result{Status: StatusTimeout, Err: ctx.Err()}
		default:
		}
		return Result{Status: StatusUnknown, Err: err}
	}
	return Result{Text: string(data), Status: StatusOK}
}

// routingTable maps an item kind to the extractor backend responsible
// for it. Kinds absent from the table are non-extractable and never
// reach ExtractionManager.Extract.
type routingTable map[model.Kind]Extractor

// ExtractionManager routes extraction requests to the backend registered
// for an item's kind, bounding total in-flight extractions with a
// weighted semaphore (spec §9's "global extraction concurrency
// semaphore").
type ExtractionManager struct {
	routes routingTable
	sem    *semaphore.Weighted
}

// NewManager returns an ExtractionManager with maxConcurrent simultaneous
// extractions allowed.
func NewManager(maxConcurrent int64) *ExtractionManager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &ExtractionManager{
		routes: make(routingTable),
		sem:    semaphore.NewWeighted(maxConcurrent),
	}
}

// Register binds an Extractor to a Kind.
func (m *ExtractionManager) Register(kind model.Kind, extractor Extractor) {
	m.routes[kind] = extractor
}

// Extract dispatches to the registered extractor for kind, blocking on
// the concurrency semaphore until a slot is free or ctx is cancelled.
func (m *ExtractionManager) Extract(ctx context.Context, kind model.Kind, path string) Result {
	extractor, ok := m.routes[kind]
	if !ok {
		return Result{Status: StatusUnsupportedFormat}
	}
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return Result{Status: StatusTimeout, Err: err}
	}
	defer m.sem.Release(1)

	return extractor.Extract(ctx, path)
}
