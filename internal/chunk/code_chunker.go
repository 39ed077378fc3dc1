package chunk

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// CodeChunker splits source files along top-level declaration boundaries
// (functions, methods, classes) for extensions that have both a tree-sitter
// grammar and a declaration table in topLevelNodeTypes (.go and .py),
// falling back to the boundary-priority Chunker for everything else. The
// JavaScript-family extensions have a grammar registered but no declaration
// table, so they also take the fallback. Declaration boundaries keep related code together in a
// single chunk far more reliably than the generic paragraph/sentence
// heuristic.
type CodeChunker struct {
	fallback *Chunker
}

func NewCodeChunker(fallback *Chunker) *CodeChunker {
	return &CodeChunker{fallback: fallback}
}

var languageByExt = map[string]*sitter.Language{
	".go": golang.GetLanguage(),
	".js": javascript.GetLanguage(),
	".jsx": javascript.GetLanguage(),
	".ts": javascript.GetLanguage(),
	".tsx": javascript.GetLanguage(),
	".py": python.GetLanguage(),
}

// topLevelNodeTypes lists the tree-sitter node kinds treated as declaration
// boundaries, per supported grammar.
var topLevelNodeTypes = map[string]map[string]bool{
	".go": {"function_declaration": true, "method_declaration": true, "type_declaration": true},
	".py": {"function_definition": true, "class_definition": true},
}

// Split splits source text for ext (e.g. ".go") into chunks. If ext has no
// registered grammar, or parsing fails, it falls back to c.fallback.
func (c *CodeChunker) Split(ctx context.Context, path, ext, text string) []Chunk {
	lang, ok := languageByExt[normalizedExt(ext)]
	if !ok {
		return c.fallback.Split(path, text)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, []byte(text))
	if err != nil || tree == nil {
		return c.fallback.Split(path, text)
	}
	defer tree.Close()

	boundaries := declarationBoundaries(tree.RootNode(), topLevelNodeTypes[normalizedExt(ext)])
	if len(boundaries) < 2 {
		return c.fallback.Split(path, text)
	}

	return c.splitAtBoundaries(path, text, boundaries)
}

func normalizedExt(ext string) string {
	if len(ext) > 0 && ext[0] != '.' {
		return "." + ext
	}
	return ext
}

// declarationBoundaries walks the top-level children of root and returns
// the byte offsets where a new declaration begins, always including 0.
func declarationBoundaries(root *sitter.Node, wanted map[string]bool) []int {
	if wanted == nil {
		return nil
	}
	var bounds []int
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if wanted[child.Type()] {
			bounds = append(bounds, int(child.StartByte()))
		}
	}
	if len(bounds) == 0 || bounds[0] != 0 {
		bounds = append([]int{0}, bounds...)
	}
	return bounds
}

// splitAtBoundaries builds one chunk per declaration span, splitting any
// span that individually exceeds MaxSize further with the fallback text
// splitter so the size invariant still holds.
func (c *CodeChunker) splitAtBoundaries(path, text string, bounds []int) []Chunk {
	var chunks []Chunk
	for i, start := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		span := text[start:end]
		if len(span) > c.fallback.MaxSize {
			for _, sub := range c.fallback.Split(path, span) {
				chunks = append(chunks, Chunk{
					ID:      chunkID(path, len(chunks)),
					Index:   len(chunks),
					Content: sub.Content,
					Start:   start + sub.Start,
					End:     start + sub.End,
				})
			}
			continue
		}
		chunks = append(chunks, Chunk{
			ID:      chunkID(path, len(chunks)),
			Index:   len(chunks),
			Content: span,
			Start:   start,
			End:     end,
		})
	}
	return chunks
}
