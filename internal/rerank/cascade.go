// Package rerank implements the optional cross-encoder reranker cascade
// (spec §4.15 step 10), grounded on original_source's
// src/core/ranking/reranker_cascade.{h,cpp} and cross_encoder_reranker.h:
// a cheap stage-1 pass over the top candidates, and a stage-2 pass
// reserved for an ambiguous top-K, both bypassed when their model is
// unavailable or the shared per-query rerank budget runs out.
package rerank

import (
	"context"
	"time"
)

// Candidate is the minimal view of a ranked result a CrossEncoderStage
// needs. internal/search converts its own Result slice into these before
// invoking Run and reads CrossEncoderBoost back afterward.
type Candidate struct {
	ItemID             int64
	Document           string
	Score              float64
	SemanticNormalized float64
	CrossEncoderBoost  float64
}

// StageConfig configures one cascade stage.
type StageConfig struct {
	Weight            float64
	MaxCandidates     int
	MinScoreThreshold float64
}

// Stage is a cross-encoder reranker: given a query and candidates sorted
// by Score descending, it scores up to cfg.MaxCandidates of them and adds
// a soft boost to each candidate's CrossEncoderBoost in place.
type Stage interface {
	IsAvailable(ctx context.Context) bool
	Rerank(ctx context.Context, query string, candidates []*Candidate, cfg StageConfig) (boosted int, err error)
}

// Config is the cascade's tuning knobs (spec §6 defaults).
type Config struct {
	Enabled                  bool
	Stage1MaxCandidates      int
	Stage2MaxCandidates      int
	RerankBudgetMs           int
	Stage1Weight             float64
	Stage2Weight             float64
	AmbiguityMarginThreshold float64
}

// DefaultConfig returns spec §6's defaults, matching
// original_source's RerankerCascadeConfig.
func DefaultConfig() Config {
	return Config{
		Enabled:                  true,
		Stage1MaxCandidates:      40,
		Stage2MaxCandidates:      12,
		RerankBudgetMs:           120,
		Stage1Weight:             18,
		Stage2Weight:             35,
		AmbiguityMarginThreshold: 0.08,
	}
}

// Stats reports what the cascade actually did.
type Stats struct {
	Stage1Applied bool
	Stage2Applied bool
	Ambiguous     bool
	Stage1Depth   int
	Stage2Depth   int
	ElapsedMs     int64
}

// Run executes the two-stage cascade in place over candidates, which
// must already be sorted by Score descending. Either stage may be nil,
// in which case that step is skipped. elapsedBeforeCascadeMs is the time
// already spent on fanout/merge/score, counted against the shared
// per-query rerank budget (spec §5: "the rerank cascade checks the
// [budget] between stages").
func Run(ctx context.Context, query string, candidates []*Candidate, stage1, stage2 Stage, cfg Config, elapsedBeforeCascadeMs int64) Stats {
	var stats Stats
	if !cfg.Enabled || len(candidates) == 0 {
		return stats
	}

	start := time.Now()

	if stage1 != nil && stage1.IsAvailable(ctx) && elapsedBeforeCascadeMs < int64(cfg.RerankBudgetMs) {
		depth := cappedDepth(cfg.Stage1MaxCandidates, len(candidates))
		stats.Stage1Depth = depth
		boosted, err := stage1.Rerank(ctx, query, candidates[:depth], StageConfig{
			Weight: cfg.Stage1Weight, MaxCandidates: depth, MinScoreThreshold: 0.05,
		})
		stats.Stage1Applied = err == nil && boosted > 0
	}

	elapsedSoFar := elapsedBeforeCascadeMs + time.Since(start).Milliseconds()
	if elapsedSoFar >= int64(cfg.RerankBudgetMs) {
		stats.ElapsedMs = time.Since(start).Milliseconds()
		return stats
	}

	stats.Ambiguous = isAmbiguousTopK(candidates, cfg.AmbiguityMarginThreshold)
	if stats.Ambiguous && stage2 != nil && stage2.IsAvailable(ctx) {
		depth := cappedDepth(cfg.Stage2MaxCandidates, len(candidates))
		stats.Stage2Depth = depth
		boosted, err := stage2.Rerank(ctx, query, candidates[:depth], StageConfig{
			Weight: cfg.Stage2Weight, MaxCandidates: depth, MinScoreThreshold: 0.10,
		})
		stats.Stage2Applied = err == nil && boosted > 0
	}

	stats.ElapsedMs = time.Since(start).Milliseconds()
	return stats
}

func cappedDepth(max, available int) int {
	if max > available {
		return available
	}
	return max
}

// isAmbiguousTopK reports whether the top results justify the expensive
// stage-2 pass: either the score margin between positions 0 and 1 is
// thin, or the top 10 split between clearly-semantic and clearly-not
// matches (spec §4.15 step 10). original_source compares the margin
// directly against a [0,1]-scale threshold; our Scorer's Final lives on
// an unbounded additive scale (spec §4.14), so the margin is normalized
// against the leading score before comparing, keeping the "thin margin"
// test meaningful regardless of how large Final gets.
func isAmbiguousTopK(candidates []*Candidate, marginThreshold float64) bool {
	if len(candidates) < 2 {
		return false
	}
	lead := candidates[0].Score
	if lead <= 0 {
		lead = 1
	}
	if (candidates[0].Score-candidates[1].Score)/lead < marginThreshold {
		return true
	}

	topK := len(candidates)
	if topK > 10 {
		topK = 10
	}
	var highSemantic, lowSemantic int
	for _, c := range candidates[:topK] {
		switch {
		case c.SemanticNormalized >= 0.55:
			highSemantic++
		case c.SemanticNormalized <= 0.12:
			lowSemantic++
		}
	}
	return highSemantic >= 3 && lowSemantic >= 3
}
