package search

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/theroutercompany/betterspotlight/internal/feedback"
	"github.com/theroutercompany/betterspotlight/internal/model"
	"github.com/theroutercompany/betterspotlight/internal/rerank"
	"github.com/theroutercompany/betterspotlight/internal/store"
	"github.com/theroutercompany/betterspotlight/internal/vector"
	"github.com/theroutercompany/betterspotlight/internal/vectorstore"
)

// m2SignalBoostWeight rewards items whose kind matches the user's
// dominant TypeAffinity bucket — a weak secondary ("M2") personalization
// signal distinct from the per-directory feedbackBoost (spec §4.14's
// feedbackBoost/m2SignalBoost are both "set externally by QueryPlanner
// based on interaction data" but left otherwise unspecified; this is the
// Open Question decision recorded in DESIGN.md).
const m2SignalBoostWeight = 12.0

// pathPreferenceLookupFanout bounds how many PathPreference rows Plan
// consults per query when computing feedbackBoost.
const pathPreferenceLookupFanout = 20

// Category is the query classification used to pick fusion weights
// (spec §4.15 step 2).
type Category string

const (
	CategoryNaturalLanguage Category = "natural_language"
	CategoryPathOrCode      Category = "path_or_code"
	CategoryShortAmbiguous  Category = "short_ambiguous"
)

// Classify buckets a normalized query using the spec's simple heuristics:
// presence of a path separator, token count, and length.
func Classify(normalized string) Category {
	if strings.ContainsAny(normalized, "/\\") {
		return CategoryPathOrCode
	}
	tokens := strings.Fields(normalized)
	if len(tokens) <= 1 && len(normalized) <= 4 {
		return CategoryShortAmbiguous
	}
	if len(tokens) >= 4 {
		return CategoryNaturalLanguage
	}
	return CategoryShortAmbiguous
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeQuery trims, lowercases, compresses whitespace, and strips a
// trailing wildcard (spec §4.15 step 1).
func NormalizeQuery(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = whitespaceRun.ReplaceAllString(q, " ")
	q = strings.TrimSuffix(q, "*")
	return q
}

// Embedder is the subset of embed.Embedder the planner needs for
// query-time embedding (spec §4.15 step 6).
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is one ranked, fully-scored search hit returned to the caller.
type Result struct {
	Item               model.Item
	MatchType          model.MatchType
	Breakdown          ScoreBreakdown
	Origin             Origin
	Snippet            string  // FTS5 snippet() highlight, empty for non-content matches
	SemanticNormalized float64 // [0,1]; feeds the rerank cascade's ambiguity gate
}

// Mode selects strict/relaxed/auto FTS dispatch (spec §4.15 step 3).
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeStrict  Mode = "strict"
	ModeRelaxed Mode = "relaxed"
)

// Options configures one Plan call.
type Options struct {
	Limit        int
	Mode         Mode
	CwdPath      string
	FrontmostApp string
	QueryPrefix  string // model-specific prefix prepended before embedding
	GenerationID string
}

// Planner composes FtsStore, VectorIndex, SearchMerger, and Scorer into
// the end-to-end query path (spec §4.15).
type Planner struct {
	Fts      *store.FtsStore
	Vectors  *vector.Index
	Mappings *vectorstore.Store
	Embedder Embedder
	Weights  ScoreWeights
	MergeW   MergeWeights
	Feedback *feedback.Tracker // optional; nil skips step 9's interaction boosts

	// RerankStage1/RerankStage2 are the step 10 cross-encoder cascade
	// (internal/rerank). Either or both may be nil, in which case that
	// stage is bypassed exactly as when its model is unavailable.
	RerankStage1 rerank.Stage
	RerankStage2 rerank.Stage
	RerankConfig rerank.Config

	fuzzyThreshold int
}

// NewPlanner returns a Planner with spec defaults; Embedder, Vectors, and
// Mappings may be nil, in which case semantic fusion is skipped.
func NewPlanner(fts *store.FtsStore, vectors *vector.Index, mappings *vectorstore.Store, embedder Embedder) *Planner {
	return &Planner{
		Fts:            fts,
		Vectors:        vectors,
		Mappings:       mappings,
		Embedder:       embedder,
		Weights:        DefaultScoreWeights(),
		MergeW:         DefaultMergeWeights(),
		RerankConfig:   rerank.DefaultConfig(),
		fuzzyThreshold: 2,
	}
}

// Plan runs the full query pipeline and returns ranked results (spec
// §4.15 steps 1-11).
func (p *Planner) Plan(ctx context.Context, rawQuery string, opts Options) ([]Result, error) {
	queryStart := time.Now()
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	normalized := NormalizeQuery(rawQuery)
	if normalized == "" {
		return nil, nil
	}
	category := Classify(normalized)
	fanout := opts.Limit * 3
	if fanout < opts.Limit {
		fanout = opts.Limit
	}

	ftsHits, err := p.dispatchFts(normalized, fanout, opts.Mode)
	if err != nil {
		return nil, err
	}
	if len(ftsHits) == 0 {
		ftsHits, err = p.fuzzyFallback(normalized, fanout)
		if err != nil {
			return nil, err
		}
	}

	items := make(map[int64]model.Item, len(ftsHits))
	snippets := make(map[int64]string, len(ftsHits))
	lexicalHits := make([]LexicalHit, 0, len(ftsHits))
	for _, h := range ftsHits {
		item, ok := p.Fts.GetItemById(h.ItemID)
		if !ok {
			continue
		}
		items[h.ItemID] = *item
		snippets[h.ItemID] = h.Snippet
		lexicalHits = append(lexicalHits, LexicalHit{ItemID: h.ItemID, Score: -h.Score})
	}

	matchTypes := make(map[int64]model.MatchType, len(items))
	for id, item := range items {
		matchTypes[id] = ClassifyMatch(normalized, item.Basename, item.Path, p.fuzzyThreshold)
	}

	var semanticHits []SemanticHit
	mergeW := p.MergeW
	if p.shouldUseSemantic(category) && p.Embedder != nil && p.Vectors != nil && p.Mappings != nil {
		mergeW = adaptiveMergeWeights(category, strongLexical(lexicalHits))
		semanticHits, err = p.semanticSearch(ctx, opts.QueryPrefix+rawQuery, opts.GenerationID, mergeW.SimilarityThreshold)
		if err != nil {
			semanticHits = nil
		}
		for _, h := range semanticHits {
			if _, ok := items[h.ItemID]; ok {
				continue
			}
			if item, ok := p.Fts.GetItemById(h.ItemID); ok {
				items[h.ItemID] = *item
				matchTypes[h.ItemID] = model.MatchSemantic
			}
		}
	}

	mergeW.MaxResults = fanout
	merged := Merge(lexicalHits, semanticHits, mergeW)
	merged = capSemanticOnly(merged, category, strongLexical(lexicalHits))

	qc := QueryContext{CwdPath: opts.CwdPath, FrontmostApp: opts.FrontmostApp, Now: time.Now()}
	structured := ParseStructuredQuery(rawQuery, qc.Now)
	results := make([]Result, 0, len(merged))
	for _, m := range merged {
		item, ok := items[m.ItemID]
		if !ok {
			continue
		}
		mt := matchTypes[m.ItemID]
		freq := p.Fts.GetFrequency(m.ItemID)
		cand := Candidate{
			ItemID:     m.ItemID,
			Path:       item.Path,
			ModifiedAt: item.ModifiedAt,
			MatchType:  mt,
			OpenCount:  freq.OpenCount,
			Pinned:     item.Pinned,
		}
		if mt == model.MatchContent {
			cand.BM25RawScore = -m.NormalizedLexical
		}
		breakdown := Score(cand, qc, p.Weights)
		breakdown.SemanticBoost = m.NormalizedSemantic * p.Weights.ContentMatchWeight
		breakdown.StructuredBoost = structuredQueryBoost(structured, item.Path, item.ModifiedAt, p.Weights)
		p.applyFeedbackBoosts(&breakdown, item)
		recomputeFinal(&breakdown)
		results = append(results, Result{
			Item: item, MatchType: mt, Breakdown: breakdown, Origin: m.Origin,
			Snippet: snippets[m.ItemID], SemanticNormalized: m.NormalizedSemantic,
		})
	}

	sortResultsByScore(results)
	p.applyRerankCascade(ctx, normalized, results, queryStart)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// applyRerankCascade runs step 10's optional cross-encoder cascade over
// results, which must already be sorted by score. A no-op when neither
// RerankStage1 nor RerankStage2 is configured.
func (p *Planner) applyRerankCascade(ctx context.Context, query string, results []Result, queryStart time.Time) {
	if p.RerankStage1 == nil && p.RerankStage2 == nil {
		return
	}
	candidates := make([]*rerank.Candidate, len(results))
	for i := range results {
		doc := results[i].Snippet
		if doc == "" {
			doc = results[i].Item.Basename
		}
		candidates[i] = &rerank.Candidate{
			ItemID:             results[i].Item.ID,
			Document:           doc,
			Score:              results[i].Breakdown.Final,
			SemanticNormalized: results[i].SemanticNormalized,
		}
	}

	elapsed := time.Since(queryStart).Milliseconds()
	rerank.Run(ctx, query, candidates, p.RerankStage1, p.RerankStage2, p.RerankConfig, elapsed)

	for i := range results {
		results[i].Breakdown.CrossEncoderBoost = candidates[i].CrossEncoderBoost
		recomputeFinal(&results[i].Breakdown)
	}
	sortResultsByScore(results)
}

// applyFeedbackBoosts fills in step 9's feedbackBoost/m2SignalBoost from
// interaction data. Both are left at zero when no feedback.Tracker is
// wired (e.g. a fresh index with no recorded interactions yet).
func (p *Planner) applyFeedbackBoosts(b *ScoreBreakdown, item model.Item) {
	if p.Feedback == nil {
		return
	}
	b.FeedbackBoost = p.Feedback.BoostForPath(item.Path, pathPreferenceLookupFanout)
	if ta, err := p.Feedback.TypeAffinity(); err == nil && affinityMatchesKind(ta.PrimaryAffinity, item.Kind) {
		b.M2SignalBoost = m2SignalBoostWeight
	}
}

func affinityMatchesKind(bucket feedback.Bucket, kind model.Kind) bool {
	switch bucket {
	case feedback.BucketCode:
		return kind == model.KindCode
	case feedback.BucketDocument:
		return kind == model.KindText || kind == model.KindMarkdown || kind == model.KindPdf
	case feedback.BucketMedia:
		return kind == model.KindImage
	default:
		return kind != model.KindCode && kind != model.KindText && kind != model.KindMarkdown &&
			kind != model.KindPdf && kind != model.KindImage
	}
}

func (p *Planner) dispatchFts(normalized string, fanout int, mode Mode) ([]store.FtsHit, error) {
	switch mode {
	case ModeStrict:
		return p.Fts.SearchFts5(normalized, fanout, false)
	case ModeRelaxed:
		return p.Fts.SearchFts5(normalized, fanout, true)
	default:
		hits, err := p.Fts.SearchFts5(normalized, fanout, false)
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 {
			return hits, nil
		}
		hits, err = p.Fts.SearchFts5(normalized, fanout, true)
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 {
			return hits, nil
		}
		return p.Fts.SearchFts5(typoCorrect(normalized), fanout, true)
	}
}

// floorBM25Score is the synthetic score assigned to name-fuzzy fallback
// hits so they still rank beneath any real FTS match (spec §4.15 step 4).
const floorBM25Score = -0.01

func (p *Planner) fuzzyFallback(normalized string, limit int) ([]store.FtsHit, error) {
	hits, err := p.Fts.SearchByNameFuzzy(normalized, limit)
	if err != nil {
		return nil, err
	}
	out := make([]store.FtsHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, store.FtsHit{ItemID: h.ItemID, Score: floorBM25Score})
	}
	return out, nil
}

// typoCorrect is a minimal rewrite pass: FTS5 query syntax characters are
// stripped so a strict-mode syntax error becomes a plain relaxed search.
func typoCorrect(q string) string {
	replacer := strings.NewReplacer(`"`, "", "*", "", "^", "", ":", " ")
	return strings.TrimSpace(replacer.Replace(q))
}

func (p *Planner) shouldUseSemantic(category Category) bool {
	return category == CategoryNaturalLanguage || category == CategoryShortAmbiguous
}

func strongLexical(hits []LexicalHit) bool {
	if len(hits) == 0 {
		return false
	}
	return hits[0].Score >= 5
}

// adaptiveMergeWeights implements spec §4.15 step 6's weight table.
func adaptiveMergeWeights(category Category, strongLex bool) MergeWeights {
	w := DefaultMergeWeights()
	switch category {
	case CategoryNaturalLanguage:
		if strongLex {
			w.LexicalWeight, w.SemanticWeight, w.SimilarityThreshold = 0.55, 0.45, 0.78
		} else {
			w.LexicalWeight, w.SemanticWeight, w.SimilarityThreshold = 0.45, 0.55, 0.74
		}
	case CategoryPathOrCode:
		w.LexicalWeight, w.SemanticWeight = 0.75, 0.25
	case CategoryShortAmbiguous:
		w.LexicalWeight, w.SemanticWeight = 0.65, 0.35
	}
	return w
}

const semanticSearchK = 50

func (p *Planner) semanticSearch(ctx context.Context, queryText, generationID string, threshold float64) ([]SemanticHit, error) {
	vectors, err := p.Embedder.Embed(ctx, []string{queryText})
	if err != nil || len(vectors) == 0 {
		return nil, err
	}
	hits, err := p.Vectors.Search(vectors[0], semanticSearchK)
	if err != nil {
		return nil, err
	}
	out := make([]SemanticHit, 0, len(hits))
	for _, h := range hits {
		sim := 1 - float64(h.Distance)
		if sim < threshold {
			continue
		}
		itemID, ok, err := p.Mappings.GetItemId(h.Label, generationID)
		if err != nil || !ok {
			continue
		}
		out = append(out, SemanticHit{ItemID: itemID, CosineSimilarity: sim})
	}
	return out, nil
}

// capSemanticOnly enforces spec §4.15 step 7's cap on semantic-only
// results (NL: 6-8 depending on lexical strength; others: 3-4).
func capSemanticOnly(results []MergedResult, category Category, strongLex bool) []MergedResult {
	limit := 4
	switch category {
	case CategoryNaturalLanguage:
		if strongLex {
			limit = 6
		} else {
			limit = 8
		}
	default:
		limit = 3
	}

	out := make([]MergedResult, 0, len(results))
	semanticOnlyCount := 0
	for _, r := range results {
		if r.Origin == OriginSemanticOnly {
			semanticOnlyCount++
			if semanticOnlyCount > limit {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func sortResultsByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Breakdown.Final, results[j].Breakdown.Final
		if a != b {
			return a > b
		}
		return results[i].Item.ID < results[j].Item.ID
	})
}
