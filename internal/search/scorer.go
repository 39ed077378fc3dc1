package search

import (
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/theroutercompany/betterspotlight/internal/model"
)

// ScoreWeights holds the configurable multipliers behind every Scorer
// component (spec §4.14; defaults listed in spec §6).
type ScoreWeights struct {
	ContentMatchWeight   float64
	RecencyWeight        float64
	RecencyDecayDays     float64
	FrequencyTier1       float64
	FrequencyTier2       float64
	FrequencyTier3       float64
	CwdBoostWeight       float64
	CwdMaxDepth          int
	AppContextBoostWeight float64
	PinnedBoostWeight    float64
	JunkPenaltyWeight    float64

	// Structured-query boost weights (spec §4.15 step 8).
	TemporalBoostWeight float64
	TemporalNearWeight  float64
	DocTypeIntentWeight float64
	EntityMatchWeight   float64
	EntityMatchCap      float64
}

// DefaultScoreWeights returns the spec §6 defaults.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		ContentMatchWeight:    1.0,
		RecencyWeight:         50,
		RecencyDecayDays:      14,
		FrequencyTier1:        10,
		FrequencyTier2:        25,
		FrequencyTier3:        40,
		CwdBoostWeight:        30,
		CwdMaxDepth:           2,
		AppContextBoostWeight: 20,
		PinnedBoostWeight:     60,
		JunkPenaltyWeight:     100,
		TemporalBoostWeight:   12,
		TemporalNearWeight:    6,
		DocTypeIntentWeight:   10,
		EntityMatchWeight:     8,
		EntityMatchCap:        16,
	}
}

var baseMatchScores = map[model.MatchType]float64{
	model.MatchExactName:    200,
	model.MatchPrefixName:   150,
	model.MatchContainsName: 100,
	model.MatchExactPath:    90,
	model.MatchPrefixPath:   80,
	model.MatchFuzzy:        30,
}

var junkInfixes = []string{
	"node_modules/", "__pycache__/", ".git/", "target/debug/", "target/release/",
	".venv/", "vendor/", "dist/", "build/", ".cache/",
}

// QueryContext carries the per-query signals the Scorer needs beyond the
// candidate item itself (spec §4.14's contextBoost/pinnedBoost inputs).
type QueryContext struct {
	CwdPath      string
	FrontmostApp string
	Now          time.Time
}

// appExtensions maps a frontmost-app bundle id to the extensions it
// favors (spec §4.14 contextBoost's app-context allow-list).
var appExtensions = map[string][]string{
	"com.microsoft.VSCode":   {".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".rs", ".java", ".c", ".cpp", ".h"},
	"com.apple.Terminal":     {".sh", ".bash", ".zsh", ".toml", ".yaml", ".yml", ".conf", ".env"},
	"com.googlecode.iterm2":  {".sh", ".bash", ".zsh", ".toml", ".yaml", ".yml", ".conf", ".env"},
	"com.apple.Preview":      {".pdf", ".png", ".jpg", ".jpeg", ".tiff", ".heic"},
	"com.adobe.Photoshop":    {".psd", ".png", ".jpg", ".jpeg", ".tiff", ".raw"},
	"com.apple.QuickTimePlayerX": {".mp4", ".mov", ".m4a", ".mp3", ".wav"},
}

// Candidate is the scorer's input: an item plus the signals gathered by
// the query planner (match type, bm25 score, recency, frequency).
type Candidate struct {
	ItemID       int64
	Path         string
	ModifiedAt   time.Time
	MatchType    model.MatchType
	BM25RawScore float64 // non-positive; only meaningful for MatchContent
	OpenCount    int
	Pinned       bool
}

// ScoreBreakdown is every additive component the Scorer computed for one
// candidate (spec §4.14).
type ScoreBreakdown struct {
	BaseMatchScore    float64
	RecencyBoost      float64
	FrequencyBoost    float64
	ContextBoost      float64
	PinnedBoost       float64
	JunkPenalty       float64
	SemanticBoost     float64 // set by QueryPlanner after merge
	FeedbackBoost     float64 // set by QueryPlanner from interaction data
	M2SignalBoost     float64 // set by QueryPlanner from interaction data
	StructuredBoost   float64 // set by QueryPlanner from temporal/doc-type/entity matches (step 8)
	CrossEncoderBoost float64 // set by QueryPlanner after the rerank cascade (step 10)
	Final             float64
}

// Score computes a ScoreBreakdown for one candidate (spec §4.14).
func Score(c Candidate, qc QueryContext, w ScoreWeights) ScoreBreakdown {
	var b ScoreBreakdown

	if c.MatchType == model.MatchContent {
		b.BaseMatchScore = math.Abs(c.BM25RawScore) * w.ContentMatchWeight
	} else {
		b.BaseMatchScore = baseMatchScores[c.MatchType]
	}

	b.RecencyBoost = recencyBoost(c.ModifiedAt, qc.Now, w.RecencyWeight, w.RecencyDecayDays)
	b.FrequencyBoost = frequencyBoost(c.OpenCount, w)
	b.ContextBoost = contextBoost(c.Path, qc, w)
	if c.Pinned {
		b.PinnedBoost = w.PinnedBoostWeight
	}
	b.JunkPenalty = junkPenalty(c.Path, w)

	recomputeFinal(&b)
	return b
}

// recomputeFinal reapplies spec §4.14's final-score formula. QueryPlanner
// calls it again after filling in SemanticBoost/FeedbackBoost/
// M2SignalBoost/CrossEncoderBoost, none of which Score itself can see.
func recomputeFinal(b *ScoreBreakdown) {
	sum := b.BaseMatchScore + b.RecencyBoost + b.FrequencyBoost + b.ContextBoost +
		b.PinnedBoost + b.SemanticBoost + b.FeedbackBoost + b.M2SignalBoost +
		b.StructuredBoost + b.CrossEncoderBoost - b.JunkPenalty
	if sum < 0 {
		sum = 0
	}
	b.Final = sum
}

func recencyBoost(modifiedAt, now time.Time, weight, decayDays float64) float64 {
	if modifiedAt.IsZero() {
		return 0
	}
	if now.IsZero() {
		now = time.Now()
	}
	if modifiedAt.After(now) {
		return weight
	}
	daysSinceMod := now.Sub(modifiedAt).Hours() / 24
	if decayDays <= 0 {
		decayDays = 14
	}
	return weight * math.Exp(-daysSinceMod/decayDays)
}

func frequencyBoost(openCount int, w ScoreWeights) float64 {
	switch {
	case openCount <= 0:
		return 0
	case openCount <= 5:
		return w.FrequencyTier1
	case openCount <= 20:
		return w.FrequencyTier2
	default:
		return w.FrequencyTier3
	}
}

func contextBoost(itemPath string, qc QueryContext, w ScoreWeights) float64 {
	var boost float64
	if qc.CwdPath != "" {
		if depth, under := pathDepthUnder(qc.CwdPath, itemPath); under {
			maxDepth := w.CwdMaxDepth
			if maxDepth <= 0 {
				maxDepth = 2
			}
			if depth == 0 {
				boost += w.CwdBoostWeight
			} else if depth <= maxDepth {
				boost += w.CwdBoostWeight * (1 - float64(depth)/float64(maxDepth+1))
			}
		}
	}
	if qc.FrontmostApp != "" {
		exts, ok := appExtensions[qc.FrontmostApp]
		if ok {
			ext := strings.ToLower(path.Ext(itemPath))
			for _, e := range exts {
				if ext == e {
					boost += w.AppContextBoostWeight
					break
				}
			}
		}
	}
	return boost
}

// pathDepthUnder reports how many path segments separate itemPath from
// cwd, when itemPath is under cwd.
func pathDepthUnder(cwd, itemPath string) (int, bool) {
	cwd = strings.TrimSuffix(filepathClean(cwd), "/")
	itemPath = filepathClean(itemPath)
	if itemPath == cwd {
		return 0, true
	}
	prefix := cwd + "/"
	if !strings.HasPrefix(itemPath, prefix) {
		return 0, false
	}
	rest := strings.TrimPrefix(itemPath, prefix)
	return strings.Count(rest, "/"), true
}

func filepathClean(p string) string {
	return path.Clean(p)
}

func junkPenalty(itemPath string, w ScoreWeights) float64 {
	for _, infix := range junkInfixes {
		if strings.Contains(itemPath, infix) {
			return w.JunkPenaltyWeight
		}
	}
	return 0
}

// RankResults sorts candidates by (score desc, itemId asc) for
// deterministic tie-breaking (spec §4.14 rankResults).
func RankResults(scored map[int64]ScoreBreakdown) []int64 {
	ids := make([]int64, 0, len(scored))
	for id := range scored {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := scored[ids[i]], scored[ids[j]]
		if a.Final != b.Final {
			return a.Final > b.Final
		}
		return ids[i] < ids[j]
	})
	return ids
}

// ClassifyMatch implements MatchClassifier (spec §4.14): given a query
// and a candidate's filename/path, returns the strongest applicable
// MatchType.
func ClassifyMatch(query, fileName, filePath string, fuzzyThreshold int) model.MatchType {
	q := strings.ToLower(strings.TrimSpace(query))
	fileName = strings.ToLower(fileName)
	filePath = strings.ToLower(filePath)

	nameForCompare := fileName
	if !strings.HasPrefix(fileName, ".") {
		nameForCompare = strings.TrimSuffix(fileName, path.Ext(fileName))
	}

	switch {
	case q == filePath:
		return model.MatchExactPath
	case q == nameForCompare:
		return model.MatchExactName
	case strings.HasPrefix(filePath, q):
		return model.MatchPrefixPath
	case strings.HasPrefix(nameForCompare, q):
		return model.MatchPrefixName
	case strings.Contains(nameForCompare, q):
		return model.MatchContainsName
	}

	if fuzzyThreshold <= 0 {
		fuzzyThreshold = 2
	}
	if levenshtein(q, nameForCompare) <= fuzzyThreshold {
		return model.MatchFuzzy
	}
	return model.MatchContent
}

// levenshtein computes edit distance with the classic O(n*m) dynamic
// program; no third-party implementation appears anywhere in the
// reference pack, so this stays on the standard library.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			cur[j] = minInt(minInt(del, ins), sub)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
