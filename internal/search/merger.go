// Package search implements the query-time stack: SearchMerger (spec
// §4.13), Scorer (§4.14), and QueryPlanner (§4.15). Grounded on the
// teacher's internal/search package — RRFFusion's rank-lookup-then-score
// shape (internal/search/fusion.go) adapted to the spec's item-id keyed,
// lexical/semantic two-stream merge instead of the teacher's BM25/vector
// chunk-id streams.
package search

import "sort"

// LexicalHit is one ranked lexical (FTS) result, 1-based rank order
// implied by slice position.
type LexicalHit struct {
	ItemID int64
	Score  float64 // raw bm25-derived score; sign/scale irrelevant to rank
}

// SemanticHit is one ranked semantic (vector) result.
type SemanticHit struct {
	ItemID  int64
	CosineSimilarity float64
}

// Origin records which stream(s) contributed a merged result.
type Origin string

const (
	OriginLexicalOnly  Origin = "lexical_only"
	OriginSemanticOnly Origin = "semantic_only"
	OriginBoth         Origin = "both"
)

// MergedResult is one item after reciprocal-rank fusion.
type MergedResult struct {
	ItemID         int64
	Score          float64
	Origin         Origin
	LexicalRank    int // 1-based, 0 if absent
	SemanticRank   int // 1-based, 0 if absent
	NormalizedLexical  float64
	NormalizedSemantic float64
}

// MergeWeights configures SearchMerger.Merge (spec §4.13 defaults).
type MergeWeights struct {
	LexicalWeight       float64
	SemanticWeight      float64
	SimilarityThreshold  float64
	RRFK                int
	MaxResults          int
}

// DefaultMergeWeights returns the spec's default fusion parameters.
func DefaultMergeWeights() MergeWeights {
	return MergeWeights{
		LexicalWeight:       0.6,
		SemanticWeight:      0.4,
		SimilarityThreshold:  0.7,
		RRFK:                60,
		MaxResults:          20,
	}
}

// NormalizeLexicalScore maps a raw lexical score into [0,1] against the
// batch's maximum. Returns 0 when maxScore <= 0.
func NormalizeLexicalScore(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	n := score / maxScore
	return clamp01(n)
}

// NormalizeSemanticScore maps a cosine similarity into [0,1] relative to
// threshold; values at or below threshold normalize to 0.
func NormalizeSemanticScore(cosineSim, threshold float64) float64 {
	if cosineSim <= threshold {
		return 0
	}
	if threshold >= 1 {
		return 0
	}
	return clamp01((cosineSim - threshold) / (1 - threshold))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Merge fuses lexical and semantic result streams via reciprocal-rank
// fusion (spec §4.13's five-step algorithm).
func Merge(lexical []LexicalHit, semantic []SemanticHit, w MergeWeights) []MergedResult {
	if w.RRFK <= 0 {
		w.RRFK = 60
	}
	if w.MaxResults <= 0 {
		w.MaxResults = 20
	}

	var maxLexicalScore float64
	for _, h := range lexical {
		if h.Score > maxLexicalScore {
			maxLexicalScore = h.Score
		}
	}

	lexicalRank := make(map[int64]int, len(lexical))
	lexicalNorm := make(map[int64]float64, len(lexical))
	for i, h := range lexical {
		lexicalRank[h.ItemID] = i + 1
		lexicalNorm[h.ItemID] = NormalizeLexicalScore(h.Score, maxLexicalScore)
	}

	semanticRank := make(map[int64]int, len(semantic))
	semanticNorm := make(map[int64]float64, len(semantic))
	for i, h := range semantic {
		semanticRank[h.ItemID] = i + 1
		semanticNorm[h.ItemID] = NormalizeSemanticScore(h.CosineSimilarity, w.SimilarityThreshold)
	}

	seen := make(map[int64]bool, len(lexical)+len(semantic))
	var order []int64
	for _, h := range lexical {
		if !seen[h.ItemID] {
			seen[h.ItemID] = true
			order = append(order, h.ItemID)
		}
	}
	for _, h := range semantic {
		if !seen[h.ItemID] {
			seen[h.ItemID] = true
			order = append(order, h.ItemID)
		}
	}

	results := make([]MergedResult, 0, len(order))
	for _, id := range order {
		lr, hasLexical := lexicalRank[id]
		sr, hasSemantic := semanticRank[id]

		var origin Origin
		switch {
		case hasLexical && hasSemantic:
			origin = OriginBoth
		case hasLexical:
			origin = OriginLexicalOnly
		default:
			origin = OriginSemanticOnly
		}

		var score float64
		if hasLexical {
			score += w.LexicalWeight / float64(w.RRFK+lr)
		}
		if hasSemantic {
			score += w.SemanticWeight / float64(w.RRFK+sr)
		}

		if origin == OriginSemanticOnly && (semanticNorm[id] <= 0 || score <= 0) {
			continue
		}

		results = append(results, MergedResult{
			ItemID:             id,
			Score:              score,
			Origin:             origin,
			LexicalRank:        lr,
			SemanticRank:       sr,
			NormalizedLexical:  lexicalNorm[id],
			NormalizedSemantic: semanticNorm[id],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ItemID < results[j].ItemID
	})

	if len(results) > w.MaxResults {
		results = results[:w.MaxResults]
	}
	return results
}
