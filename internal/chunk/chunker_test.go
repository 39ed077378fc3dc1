package chunk

import (
	"strings"
	"testing"
)

func TestSplitEmptyYieldsZeroChunks(t *testing.T) {
	c := NewChunker()
	if got := c.Split("file.txt", ""); len(got) != 0 {
		t.Fatalf("expected 0 chunks, got %d", len(got))
	}
}

func TestSplitShortTextYieldsOneChunk(t *testing.T) {
	c := NewChunker()
	text := "hello world"
	got := c.Split("file.txt", text)
	if len(got) != 1 || got[0].Content != text {
		t.Fatalf("expected single chunk with full text, got %+v", got)
	}
}

func TestSplitRespectsMaxSize(t *testing.T) {
	c := NewChunker()
	text := strings.Repeat("word ", 2000) // 10000 chars, no paragraph/sentence boundaries
	chunks := c.Split("file.txt", text)
	for _, ch := range chunks {
		if len(ch.Content) > c.MaxSize {
			t.Fatalf("chunk %d exceeds MaxSize: %d", ch.Index, len(ch.Content))
		}
	}
}

func TestSplitReproducesInputInOrder(t *testing.T) {
	c := NewChunker()
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100)
	chunks := c.Split("file.txt", text)

	var rebuilt strings.Builder
	for _, ch := range chunks {
		rebuilt.WriteString(ch.Content)
	}
	if rebuilt.String() != text {
		t.Fatal("concatenated chunks do not reproduce the input text")
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	c := &Chunker{TargetSize: 20, MinSize: 5, MaxSize: 40}
	text := "first paragraph here\n\nsecond paragraph that continues on for a while longer than the first"
	chunks := c.Split("file.txt", text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Content, "\n\n") {
		t.Fatalf("expected first chunk to end at paragraph boundary, got %q", chunks[0].Content)
	}
}

func TestSplitDeterministicIDs(t *testing.T) {
	c := NewChunker()
	text := strings.Repeat("some content ", 500)
	a := c.Split("file.txt", text)
	b := c.Split("file.txt", text)
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("chunk id mismatch at %d: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestSplitTailAbsorption(t *testing.T) {
	c := &Chunker{TargetSize: 20, MinSize: 10, MaxSize: 40}
	// Whole text fits within MaxSize, so it must stay a single chunk even
	// though it exceeds TargetSize: Split keeps any remainder that fits in
	// MaxSize whole instead of cutting it at the last word boundary.
	text := "0123456789 0123456789 0123"
	chunks := c.Split("file.txt", text)
	if len(chunks) != 1 {
		t.Fatalf("expected tail to be absorbed into a single chunk, got %d chunks: %+v", len(chunks), chunks)
	}
}

func TestSplitNeverExceedsMaxSizeAcrossBoundary(t *testing.T) {
	c := &Chunker{TargetSize: 20, MinSize: 10, MaxSize: 40}
	text := strings.Repeat("x", 41) // just over MaxSize, no boundaries at all
	chunks := c.Split("file.txt", text)
	for _, ch := range chunks {
		if len(ch.Content) > c.MaxSize {
			t.Fatalf("chunk exceeds MaxSize: %d", len(ch.Content))
		}
	}
	var total int
	for _, ch := range chunks {
		total += len(ch.Content)
	}
	if total != len(text) {
		t.Fatalf("chunks do not cover full text: got %d want %d", total, len(text))
	}
}
