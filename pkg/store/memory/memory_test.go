package memory

import (
	"context"
	"testing"
	"time"

	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/store"
)

const testOwner = "owner_1"

func mustPerson(t *testing.T, s *Store, name string) common.Person {
	t.Helper()
	p, err := s.CreatePerson(context.Background(), common.Person{
		OwnerID:     testOwner,
		DisplayName: name,
	})
	if err != nil {
		t.Fatalf("CreatePerson(%q): %v", name, err)
	}
	return p
}

func TestBindIdentity(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := mustPerson(t, s, "Ada")
	b := mustPerson(t, s, "Bea")

	if err := s.BindIdentity(ctx, testOwner, "handle", "@Ada", a.ID); err != nil {
		t.Fatalf("bind: %v", err)
	}
	// Same person, different casing: no-op.
	if err := s.BindIdentity(ctx, testOwner, "handle", "@ada", a.ID); err != nil {
		t.Fatalf("rebind same person: %v", err)
	}
	// Different person: taken.
	if err := s.BindIdentity(ctx, testOwner, "handle", "@ADA", b.ID); err != store.ErrIdentityTaken {
		t.Fatalf("expected ErrIdentityTaken, got %v", err)
	}
	// Lookup is case-normalized.
	id, err := s.LookupIdentity(ctx, testOwner, "handle", "@ADA")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if id.PersonID != a.ID {
		t.Fatalf("identity points at %s, want %s", id.PersonID, a.ID)
	}
	// Other owners cannot see it.
	if _, err := s.LookupIdentity(ctx, "owner_2", "handle", "@ada"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound for other owner, got %v", err)
	}
}

func TestKeywordSearchSkipsMergedPersons(t *testing.T) {
	s := New()
	ctx := context.Background()
	keep := mustPerson(t, s, "Ada")
	dupe := mustPerson(t, s, "Ada L")

	for _, p := range []common.Person{keep, dupe} {
		_, err := s.AddAssertion(ctx, common.Assertion{
			OwnerID:    testOwner,
			PersonID:   p.ID,
			Predicate:  "works_at",
			ObjectText: "Initech " + p.ID,
			Confidence: 0.9,
			ObservedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("AddAssertion: %v", err)
		}
	}

	if _, err := s.MergePersons(ctx, testOwner, keep.ID, dupe.ID); err != nil {
		t.Fatalf("MergePersons: %v", err)
	}

	hits, err := s.SearchAssertionsByKeyword(ctx, testOwner, nil, "initech", 10)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for _, a := range hits {
		if a.PersonID != keep.ID {
			t.Fatalf("hit attributed to %s, want survivor %s", a.PersonID, keep.ID)
		}
	}
}

func TestSimilaritySearchFloor(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := mustPerson(t, s, "Ada")

	add := func(object string, emb []float32) {
		t.Helper()
		_, err := s.AddAssertion(ctx, common.Assertion{
			OwnerID:    testOwner,
			PersonID:   p.ID,
			Predicate:  "can_help_with",
			ObjectText: object,
			Confidence: 0.8,
			Embedding:  emb,
			ObservedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("AddAssertion(%q): %v", object, err)
		}
	}
	add("fundraising", []float32{1, 0, 0})
	add("robotics", []float32{0, 1, 0})

	hits, err := s.SearchAssertionsBySimilarity(ctx, testOwner, []float32{1, 0, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("similarity search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit above floor, got %d", len(hits))
	}
	if hits[0].Assertion.ObjectText != "fundraising" {
		t.Fatalf("unexpected hit %q", hits[0].Assertion.ObjectText)
	}
	if hits[0].Similarity < 0.99 {
		t.Fatalf("expected similarity ~1, got %f", hits[0].Similarity)
	}
}

func TestConflictLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := mustPerson(t, s, "Ada")
	b := mustPerson(t, s, "Ada L")

	c, err := s.CreateConflict(ctx, common.Conflict{
		OwnerID:       testOwner,
		Kind:          common.ConflictAmbiguousMatch,
		PersonID:      a.ID,
		OtherPersonID: b.ID,
		Score:         0.8,
		Reasons:       []string{"name similarity 0.80"},
	})
	if err != nil {
		t.Fatalf("CreateConflict: %v", err)
	}
	if c.Status != common.ConflictPending {
		t.Fatalf("new conflict status = %s, want pending", c.Status)
	}

	pending, err := s.ListConflicts(ctx, testOwner, common.ConflictPending)
	if err != nil {
		t.Fatalf("ListConflicts: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending conflict, got %d", len(pending))
	}

	if err := s.ResolveConflict(ctx, testOwner, c.ID, common.ConflictRejected, time.Now()); err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}

	pending, err = s.ListConflicts(ctx, testOwner, common.ConflictPending)
	if err != nil {
		t.Fatalf("ListConflicts after resolve: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending conflicts, got %d", len(pending))
	}

	got, err := s.GetConflict(ctx, testOwner, c.ID)
	if err != nil {
		t.Fatalf("GetConflict: %v", err)
	}
	if got.Status != common.ConflictRejected || got.ResolvedAt.IsZero() {
		t.Fatalf("conflict not closed: status=%s resolved_at=%v", got.Status, got.ResolvedAt)
	}

	if err := s.ResolveConflict(ctx, testOwner, "missing", common.ConflictRejected, time.Now()); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing conflict, got %v", err)
	}
}
