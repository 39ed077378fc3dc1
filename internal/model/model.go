// Package model holds the shared domain entities (spec §3) used across the
// indexing pipeline and the query path: Item, Chunk, VectorMapping,
// GenerationState, Interaction, Frequency, Feedback, and Failure.
package model

import "time"

// Kind tags the extractable nature of an item.
type Kind int

const (
	KindUnknown Kind = iota
	KindDirectory
	KindText
	KindCode
	KindMarkdown
	KindPdf
	KindImage
	KindArchive
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindText:
		return "text"
	case KindCode:
		return "code"
	case KindMarkdown:
		return "markdown"
	case KindPdf:
		return "pdf"
	case KindImage:
		return "image"
	case KindArchive:
		return "archive"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// NonExtractable reports whether items of kind k never produce chunks
// (spec §4.7: Directory, Archive, Binary, Unknown are metadata-only).
func (k Kind) NonExtractable() bool {
	switch k {
	case KindDirectory, KindArchive, KindBinary, KindUnknown:
		return true
	default:
		return false
	}
}

// Sensitivity classifies how a path should be handled by the scorer and
// by any future access controls.
type Sensitivity int

const (
	SensitivityNormal Sensitivity = iota
	SensitivitySensitive
	SensitivityHidden
)

// Item is one indexed path (spec §3 Item entity).
type Item struct {
	ID          int64
	Path        string
	Basename    string
	Extension   string
	Kind        Kind
	Size        int64
	CreatedAt   time.Time
	ModifiedAt  time.Time
	IndexedAt   time.Time
	ContentHash string
	Sensitivity Sensitivity
	Pinned      bool
	ParentPath  string
}

// Chunk is one text fragment of an item's extracted content.
type Chunk struct {
	ID      string
	ItemID  int64
	Index   int
	Content string
	Offset  int
}

// VectorMapping links an item to its embedding's position in the ANN
// index for a given model generation (spec §3 VectorMapping).
type VectorMapping struct {
	ItemID         int64
	Label          uint64
	ModelID        string
	GenerationID   string
	Dimensions     int
	Provider       string
	PassageOrdinal int
	State          string
}

// GenerationState tracks one embedding model generation's lifecycle.
type GenerationState struct {
	GenerationID string
	ModelID      string
	Dimensions   int
	Provider     string
	State        string // building | active | retired
	ProgressPct  float64
	Active       bool
}

// MatchType records how a search result satisfied a query, for scoring
// and feedback classification.
type MatchType string

const (
	MatchExactName    MatchType = "exact_name"
	MatchPrefixName   MatchType = "prefix_name"
	MatchContainsName MatchType = "contains_name"
	MatchExactPath    MatchType = "exact_path"
	MatchPrefixPath   MatchType = "prefix_path"
	MatchContent      MatchType = "content"
	MatchFuzzy        MatchType = "fuzzy"
	MatchSemantic     MatchType = "semantic"
)

// Interaction is an append-only record of a selected search result.
type Interaction struct {
	ID             int64
	NormalizedQuery string
	ItemID         int64
	Path           string
	MatchType      MatchType
	ResultPosition int
	FrontmostApp   string
	Timestamp      time.Time
}

// Frequency is the aggregated open-count/recency signal for an item.
type Frequency struct {
	ItemID           int64
	OpenCount        int
	LastOpenedAt     time.Time
	TotalInteractions int
}

// FeedbackAction is the kind of user action recorded in the Feedback
// stream.
type FeedbackAction string

const (
	ActionOpen  FeedbackAction = "open"
	ActionPin   FeedbackAction = "pin"
	ActionUnpin FeedbackAction = "unpin"
)

// Feedback is one raw user-action event.
type Feedback struct {
	ID        int64
	ItemID    int64
	Action    FeedbackAction
	Query     string
	Timestamp time.Time
}

// Failure records why an item's most recent extraction/apply failed.
// Cleared on the item's next successful reindex.
type Failure struct {
	ItemID    int64
	Stage     string
	Message   string
	Timestamp time.Time
}
