package ai

import (
	"testing"
	"time"

	"github.com/rolohq/rolo/pkg/common"
)

func TestExtractionDocumentToResult(t *testing.T) {
	doc := ExtractionDocument{
		People: []ExtractionPerson{
			{
				Ref:  "p1",
				Name: " Jane Doe ",
				Identifiers: []ExtractionIdentifier{
					{Namespace: "Handle", Value: "@jane"},
					{Namespace: "linkedin_url", Value: "ignored"},
					{Namespace: "address", Value: "  "},
				},
				Facts: []ExtractionFact{
					{Predicate: "Works_At", Object: "Acme Corp", Confidence: 0.9},
					{Predicate: "note", Object: "   ", Confidence: 0.5},
				},
			},
			{Ref: "p2", Name: "", Identifiers: nil},
			{Ref: "p3", Name: "Bob"},
		},
		Edges: []ExtractionEdge{
			{SourceRef: "p1", TargetRef: "p3", Kind: "Met"},
			{SourceRef: "p1", TargetRef: "p1", Kind: "knows"},
			{SourceRef: "p1", TargetRef: "p9", Kind: "knows"},
		},
	}

	observed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := doc.ToResult("ev1", observed)

	if res.EvidenceID != "ev1" || !res.ObservedAt.Equal(observed) {
		t.Fatalf("provenance not carried: %+v", res)
	}
	if len(res.People) != 2 {
		t.Fatalf("expected nameless identifier-less person dropped, got %d people", len(res.People))
	}
	jane := res.People[0]
	if jane.Name != "Jane Doe" {
		t.Fatalf("name not trimmed: %q", jane.Name)
	}
	if len(jane.Identifiers) != 1 || jane.Identifiers[common.NamespaceHandle] != "@jane" {
		t.Fatalf("identifier filtering wrong: %+v", jane.Identifiers)
	}
	if len(jane.Facts) != 1 || jane.Facts[0].Predicate != "works_at" {
		t.Fatalf("fact filtering wrong: %+v", jane.Facts)
	}
	if len(res.Edges) != 1 || res.Edges[0].Kind != "met" {
		t.Fatalf("expected only the p1->p3 edge, got %+v", res.Edges)
	}
}
