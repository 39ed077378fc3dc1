package search

import (
	"testing"
	"time"

	"github.com/theroutercompany/betterspotlight/internal/model"
)

func TestScoreBaseMatchScoreUsesFixedTable(t *testing.T) {
	w := DefaultScoreWeights()
	b := Score(Candidate{MatchType: model.MatchExactName}, QueryContext{Now: time.Now()}, w)
	if b.BaseMatchScore != 200 {
		t.Fatalf("expected 200 for ExactName, got %v", b.BaseMatchScore)
	}
}

func TestScoreContentUsesAbsBm25TimesWeight(t *testing.T) {
	w := DefaultScoreWeights()
	w.ContentMatchWeight = 2
	b := Score(Candidate{MatchType: model.MatchContent, BM25RawScore: -3.5}, QueryContext{Now: time.Now()}, w)
	if b.BaseMatchScore != 7 {
		t.Fatalf("expected 7, got %v", b.BaseMatchScore)
	}
}

func TestScoreRecencyBoostDecaysWithAge(t *testing.T) {
	w := DefaultScoreWeights()
	now := time.Now()
	fresh := Score(Candidate{MatchType: model.MatchFuzzy, ModifiedAt: now}, QueryContext{Now: now}, w)
	old := Score(Candidate{MatchType: model.MatchFuzzy, ModifiedAt: now.Add(-30 * 24 * time.Hour)}, QueryContext{Now: now}, w)
	if !(fresh.RecencyBoost > old.RecencyBoost) {
		t.Fatalf("expected fresher file to have higher recency boost: fresh=%v old=%v", fresh.RecencyBoost, old.RecencyBoost)
	}
}

func TestScoreRecencyBoostClampsFutureMtimeToFullWeight(t *testing.T) {
	w := DefaultScoreWeights()
	now := time.Now()
	b := Score(Candidate{MatchType: model.MatchFuzzy, ModifiedAt: now.Add(time.Hour)}, QueryContext{Now: now}, w)
	if b.RecencyBoost != w.RecencyWeight {
		t.Fatalf("expected full recency weight for future mtime, got %v", b.RecencyBoost)
	}
}

func TestScoreFrequencyBoostTiers(t *testing.T) {
	w := DefaultScoreWeights()
	tier1 := Score(Candidate{MatchType: model.MatchFuzzy, OpenCount: 3}, QueryContext{}, w)
	tier2 := Score(Candidate{MatchType: model.MatchFuzzy, OpenCount: 10}, QueryContext{}, w)
	tier3 := Score(Candidate{MatchType: model.MatchFuzzy, OpenCount: 25}, QueryContext{}, w)
	if tier1.FrequencyBoost != w.FrequencyTier1 || tier2.FrequencyBoost != w.FrequencyTier2 || tier3.FrequencyBoost != w.FrequencyTier3 {
		t.Fatalf("unexpected tiers: %v %v %v", tier1.FrequencyBoost, tier2.FrequencyBoost, tier3.FrequencyBoost)
	}
}

func TestScorePinnedBoostAppliesOnlyWhenPinned(t *testing.T) {
	w := DefaultScoreWeights()
	pinned := Score(Candidate{MatchType: model.MatchFuzzy, Pinned: true}, QueryContext{}, w)
	unpinned := Score(Candidate{MatchType: model.MatchFuzzy, Pinned: false}, QueryContext{}, w)
	if pinned.PinnedBoost != w.PinnedBoostWeight || unpinned.PinnedBoost != 0 {
		t.Fatalf("unexpected pinned boosts: %v %v", pinned.PinnedBoost, unpinned.PinnedBoost)
	}
}

func TestScoreJunkPenaltyAppliesForKnownInfixes(t *testing.T) {
	w := DefaultScoreWeights()
	b := Score(Candidate{MatchType: model.MatchFuzzy, Path: "/repo/node_modules/left-pad/index.js"}, QueryContext{}, w)
	if b.JunkPenalty != w.JunkPenaltyWeight {
		t.Fatalf("expected junk penalty applied, got %v", b.JunkPenalty)
	}
}

func TestScoreFinalNeverGoesNegative(t *testing.T) {
	w := DefaultScoreWeights()
	w.JunkPenaltyWeight = 10000
	b := Score(Candidate{MatchType: model.MatchFuzzy, Path: "/repo/node_modules/x.js"}, QueryContext{}, w)
	if b.Final != 0 {
		t.Fatalf("expected clamp to 0, got %v", b.Final)
	}
}

func TestScoreContextBoostAppliesUnderCwdWithDecay(t *testing.T) {
	w := DefaultScoreWeights()
	qc := QueryContext{CwdPath: "/repo/src", Now: time.Now()}
	direct := Score(Candidate{MatchType: model.MatchFuzzy, Path: "/repo/src/main.go"}, qc, w)
	nested := Score(Candidate{MatchType: model.MatchFuzzy, Path: "/repo/src/a/b/main.go"}, qc, w)
	outside := Score(Candidate{MatchType: model.MatchFuzzy, Path: "/elsewhere/main.go"}, qc, w)
	if !(direct.ContextBoost > nested.ContextBoost) {
		t.Fatalf("expected direct child to score higher than nested: %v vs %v", direct.ContextBoost, nested.ContextBoost)
	}
	if outside.ContextBoost != 0 {
		t.Fatalf("expected no boost outside cwd, got %v", outside.ContextBoost)
	}
}

func TestScoreAppContextBoostForAllowlistedExtension(t *testing.T) {
	w := DefaultScoreWeights()
	qc := QueryContext{FrontmostApp: "com.microsoft.VSCode"}
	code := Score(Candidate{MatchType: model.MatchFuzzy, Path: "/repo/main.go"}, qc, w)
	doc := Score(Candidate{MatchType: model.MatchFuzzy, Path: "/repo/readme.pdf"}, qc, w)
	if code.ContextBoost <= doc.ContextBoost {
		t.Fatalf("expected code file to get app-context boost under VSCode: code=%v doc=%v", code.ContextBoost, doc.ContextBoost)
	}
}

func TestRankResultsOrdersByScoreThenItemId(t *testing.T) {
	scored := map[int64]ScoreBreakdown{
		1: {Final: 10},
		2: {Final: 20},
		3: {Final: 20},
	}
	ids := RankResults(scored)
	if len(ids) != 3 || ids[0] != 2 || ids[1] != 3 || ids[2] != 1 {
		t.Fatalf("unexpected rank order: %v", ids)
	}
}

func TestClassifyMatchExactAndPrefixAndFuzzy(t *testing.T) {
	if got := ClassifyMatch("readme", "readme.md", "/repo/readme.md", 2); got != model.MatchExactName {
		t.Fatalf("expected ExactName, got %v", got)
	}
	if got := ClassifyMatch("read", "readme.md", "/repo/readme.md", 2); got != model.MatchPrefixName {
		t.Fatalf("expected PrefixName, got %v", got)
	}
	if got := ClassifyMatch("redme", "readme.md", "/repo/readme.md", 2); got != model.MatchFuzzy {
		t.Fatalf("expected Fuzzy, got %v", got)
	}
	if got := ClassifyMatch("totally unrelated phrase", "readme.md", "/repo/readme.md", 2); got != model.MatchContent {
		t.Fatalf("expected Content fallback, got %v", got)
	}
}

func TestClassifyMatchKeepsLeadingDotForDotfiles(t *testing.T) {
	if got := ClassifyMatch(".env", ".env", "/repo/.env", 2); got != model.MatchExactName {
		t.Fatalf("expected ExactName for dotfile, got %v", got)
	}
}
