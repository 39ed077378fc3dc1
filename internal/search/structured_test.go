package search

import (
	"testing"
	"time"
)

func TestParseStructuredQueryDetectsTemporalPhrase(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sq := ParseStructuredQuery("budget report from last month", now)
	if sq.Temporal == nil {
		t.Fatal("expected a temporal range to be detected")
	}
	if sq.Temporal.StartEpoch >= sq.Temporal.EndEpoch {
		t.Fatalf("expected start < end, got start=%d end=%d", sq.Temporal.StartEpoch, sq.Temporal.EndEpoch)
	}
}

func TestParseStructuredQueryNoTemporalPhrase(t *testing.T) {
	sq := ParseStructuredQuery("project plan", time.Now())
	if sq.Temporal != nil {
		t.Fatal("expected no temporal range")
	}
}

func TestParseStructuredQueryDetectsDocTypeIntent(t *testing.T) {
	sq := ParseStructuredQuery("find the budget spreadsheet", time.Now())
	if sq.DocTypeIntent != "financial_document" {
		t.Fatalf("expected financial_document, got %q", sq.DocTypeIntent)
	}
}

func TestParseStructuredQueryExtractsCapitalizedEntities(t *testing.T) {
	sq := ParseStructuredQuery("contract with Johnson Industries", time.Now())
	if len(sq.Entities) == 0 {
		t.Fatal("expected at least one entity")
	}
	found := false
	for _, e := range sq.Entities {
		if e.Text == "Johnson Industries" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Johnson Industries among entities, got %+v", sq.Entities)
	}
}

func TestDoctypeExtensionsForIntentCoversAllKnownIntents(t *testing.T) {
	intents := []string{
		"legal_document", "financial_document", "job_document", "presentation",
		"image", "spreadsheet", "notes", "documentation", "report",
		"application_form", "reference_material",
	}
	for _, intent := range intents {
		if len(DoctypeExtensionsForIntent(intent)) == 0 {
			t.Fatalf("expected non-empty extensions for intent %q", intent)
		}
	}
}

func TestDoctypeExtensionsForIntentUnknown(t *testing.T) {
	if exts := DoctypeExtensionsForIntent("not_a_real_intent"); len(exts) != 0 {
		t.Fatalf("expected no extensions for unknown intent, got %v", exts)
	}
}

func TestStructuredQueryBoostTemporalInRange(t *testing.T) {
	w := DefaultScoreWeights()
	sq := StructuredQuery{Temporal: &TemporalRange{StartEpoch: 1700000000, EndEpoch: 1702500000}}
	modAt := time.Unix(1701000000, 0)

	boost := structuredQueryBoost(sq, "/home/user/report.pdf", modAt, w)

	if boost != w.TemporalBoostWeight {
		t.Fatalf("expected %v, got %v", w.TemporalBoostWeight, boost)
	}
}

func TestStructuredQueryBoostTemporalNearMiss(t *testing.T) {
	w := DefaultScoreWeights()
	sq := StructuredQuery{Temporal: &TemporalRange{StartEpoch: 1700000000, EndEpoch: 1702500000}}
	rangeSize := sq.Temporal.EndEpoch - sq.Temporal.StartEpoch
	modAt := time.Unix(sq.Temporal.StartEpoch-rangeSize/2, 0)

	boost := structuredQueryBoost(sq, "/home/user/report.pdf", modAt, w)

	if boost != w.TemporalNearWeight {
		t.Fatalf("expected %v, got %v", w.TemporalNearWeight, boost)
	}
}

func TestStructuredQueryBoostTemporalOutOfRange(t *testing.T) {
	w := DefaultScoreWeights()
	sq := StructuredQuery{Temporal: &TemporalRange{StartEpoch: 1700000000, EndEpoch: 1702500000}}
	rangeSize := sq.Temporal.EndEpoch - sq.Temporal.StartEpoch
	modAt := time.Unix(sq.Temporal.StartEpoch-rangeSize*3, 0)

	boost := structuredQueryBoost(sq, "/home/user/old.pdf", modAt, w)

	if boost != 0 {
		t.Fatalf("expected 0, got %v", boost)
	}
}

func TestStructuredQueryBoostDocTypeExtensionMatch(t *testing.T) {
	w := DefaultScoreWeights()
	sq := StructuredQuery{DocTypeIntent: "financial_document"}

	if boost := structuredQueryBoost(sq, "/home/user/budget.pdf", time.Time{}, w); boost != w.DocTypeIntentWeight {
		t.Fatalf("expected %v, got %v", w.DocTypeIntentWeight, boost)
	}
	if boost := structuredQueryBoost(sq, "/home/user/budget.xlsx", time.Time{}, w); boost != w.DocTypeIntentWeight {
		t.Fatalf("expected %v, got %v", w.DocTypeIntentWeight, boost)
	}
	if boost := structuredQueryBoost(sq, "/home/user/notes.txt", time.Time{}, w); boost != 0 {
		t.Fatalf("expected 0, got %v", boost)
	}
}

func TestStructuredQueryBoostEntityMatch(t *testing.T) {
	w := DefaultScoreWeights()
	sq := StructuredQuery{Entities: []Entity{{Text: "Johnson"}}}

	boost := structuredQueryBoost(sq, "/home/user/Johnson_contract.pdf", time.Time{}, w)
	if boost != w.EntityMatchWeight {
		t.Fatalf("expected %v, got %v", w.EntityMatchWeight, boost)
	}

	boost = structuredQueryBoost(StructuredQuery{Entities: []Entity{{Text: "Acme"}}}, "/home/user/Acme/report.pdf", time.Time{}, w)
	if boost != w.EntityMatchWeight {
		t.Fatalf("expected %v, got %v", w.EntityMatchWeight, boost)
	}
}

func TestStructuredQueryBoostEntityCap(t *testing.T) {
	w := DefaultScoreWeights()
	sq := StructuredQuery{Entities: []Entity{{Text: "Alice"}, {Text: "Bob"}, {Text: "Charlie"}}}

	boost := structuredQueryBoost(sq, "/home/Alice/Bob/Charlie/file.pdf", time.Time{}, w)

	if boost != w.EntityMatchCap {
		t.Fatalf("expected boost capped at %v, got %v", w.EntityMatchCap, boost)
	}
}
