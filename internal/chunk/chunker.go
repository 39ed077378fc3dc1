package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	DefaultTargetSize = 1000
	DefaultMinSize    = 500
	DefaultMaxSize    = 2000
)

// Chunker splits text into chunks targeting TargetSize characters, never
// below MinSize (except for a final short tail) and never above MaxSize.
type Chunker struct {
	TargetSize int
	MinSize    int
	MaxSize    int
}

// NewChunker returns a Chunker configured with the spec's defaults.
func NewChunker() *Chunker {
	return &Chunker{TargetSize: DefaultTargetSize, MinSize: DefaultMinSize, MaxSize: DefaultMaxSize}
}

// Split splits text into chunks, assigning deterministic ids derived from
// (path, index) so re-chunking identical input yields identical ids.
func (c *Chunker) Split(path, text string) []Chunk {
	if len(text) == 0 {
		return nil
	}

	var chunks []Chunk
	chunkStart := 0
	index := 0

	for chunkStart < len(text) {
		remaining := len(text) - chunkStart
		if remaining <= c.MaxSize {
			// Tail absorption: whatever is left fits in one chunk, even if
			// it falls below MinSize, so take it whole rather than force a
			// split that would leave a short trailing chunk.
			chunks = append(chunks, c.newChunk(path, index, text, chunkStart, len(text)))
			break
		}

		targetEnd := chunkStart + c.TargetSize
		if targetEnd > len(text) {
			targetEnd = len(text)
		}
		lowBound := chunkStart + c.MinSize

		splitAt := c.findBoundary(text, chunkStart, targetEnd, lowBound)

		chunks = append(chunks, c.newChunk(path, index, text, chunkStart, splitAt))
		chunkStart = splitAt
		index++
	}

	return chunks
}

// findBoundary searches backward from targetEnd down to lowBound for the
// highest-priority boundary: paragraph, then sentence, then word. Falls
// back to a force-split at targetEnd (clamped to MaxSize) if none found.
func (c *Chunker) findBoundary(text string, chunkStart, targetEnd, lowBound int) int {
	if lowBound < chunkStart {
		lowBound = chunkStart
	}

	if at, ok := findLast(text, "\n\n", lowBound, targetEnd); ok {
		return at + 2
	}
	if at, ok := findLastSentenceEnd(text, lowBound, targetEnd); ok {
		return at
	}
	if at, ok := findLast(text, " ", lowBound, targetEnd); ok {
		return at + 1
	}

	forced := targetEnd
	if forced-chunkStart > c.MaxSize {
		forced = chunkStart + c.MaxSize
	}
	if forced > len(text) {
		forced = len(text)
	}
	if forced <= chunkStart {
		forced = chunkStart + 1
	}
	return forced
}

// findLast finds the rightmost occurrence of sep that starts at an index in
// [low, high], returning the index of the start of the match.
func findLast(text, sep string, low, high int) (int, bool) {
	end := high + len(sep)
	if end > len(text) {
		end = len(text)
	}
	if low >= end {
		return 0, false
	}
	window := text[low:end]
	idx := strings.LastIndex(window, sep)
	if idx < 0 {
		return 0, false
	}
	return low + idx, true
}

// findLastSentenceEnd finds the rightmost ". ", "!\n", or "?\n" within the
// window, returning the index immediately after the matched boundary.
func findLastSentenceEnd(text string, low, high int) (int, bool) {
	if high > len(text) {
		high = len(text)
	}
	best := -1
	for _, sep := range []string{". ", "!\n", "?\n"} {
		if idx, ok := findLast(text, sep, low, high); ok {
			end := idx + len(sep)
			if end > best {
				best = end
			}
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

func (c *Chunker) newChunk(path string, index int, text string, start, end int) Chunk {
	return Chunk{
		ID:      chunkID(path, index),
		Index:   index,
		Content: text[start:end],
		Start:   start,
		End:     end,
	}
}

func chunkID(path string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d", path, index)))
	return hex.EncodeToString(h[:16])
}
