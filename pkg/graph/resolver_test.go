package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/store/memory"
)

const testOwner = "owner_1"

func newTestResolver(t *testing.T) (*Resolver, *memory.Store) {
	t.Helper()
	s := memory.New()
	r := NewResolver(s, NewLocalLocker(), ResolverConfig{
		AutoMatchThreshold: 0.85,
		ConfirmThreshold:   0.55,
		CandidateLimit:     5,
	})
	return r, s
}

func TestResolveCreatesPerson(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	res, err := r.Resolve(ctx, testOwner, common.CandidatePerson{
		Name:        "Jane Doe",
		Identifiers: map[string]string{common.NamespaceHandle: "@jane"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Created {
		t.Fatal("expected a new person")
	}
	if res.Person.DisplayName != "Jane Doe" {
		t.Fatalf("unexpected display name %q", res.Person.DisplayName)
	}
	if len(res.Conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %+v", res.Conflicts)
	}
}

func TestResolveReusesByIdentifier(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, testOwner, common.CandidatePerson{
		Name:        "Jane Doe",
		Identifiers: map[string]string{common.NamespaceHandle: "@jane"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// Same handle, totally different name: the identifier is authoritative.
	second, err := r.Resolve(ctx, testOwner, common.CandidatePerson{
		Name:        "J. from the conference",
		Identifiers: map[string]string{common.NamespaceHandle: "@Jane"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if second.Created {
		t.Fatal("expected reuse, got a new person")
	}
	if second.Person.ID != first.Person.ID {
		t.Fatalf("resolved to %s, want %s", second.Person.ID, first.Person.ID)
	}
}

func TestResolveAutoMatchByName(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, testOwner, common.CandidatePerson{Name: "Johann Sebastian"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := r.Resolve(ctx, testOwner, common.CandidatePerson{Name: "Johan Sebastian"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if second.Created {
		t.Fatalf("expected auto-match (score %v), got a new person", second.MatchScore)
	}
	if second.Person.ID != first.Person.ID {
		t.Fatal("auto-match resolved to the wrong person")
	}
}

func TestResolveConfirmationBandRaisesConflict(t *testing.T) {
	r, s := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, testOwner, common.CandidatePerson{Name: "Johann Sebastian"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// Similar enough to suspect a duplicate, not enough to auto-match.
	second, err := r.Resolve(ctx, testOwner, common.CandidatePerson{Name: "Johann Bastian"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !second.Created || second.Person.ID == first.Person.ID {
		t.Fatal("confirmation band must create a new person")
	}
	if len(second.Conflicts) != 1 {
		t.Fatalf("expected one ambiguous_match conflict, got %+v", second.Conflicts)
	}
	c := second.Conflicts[0]
	if c.Kind != common.ConflictAmbiguousMatch {
		t.Fatalf("conflict kind = %s", c.Kind)
	}
	if c.OtherPersonID != first.Person.ID {
		t.Fatal("conflict does not reference the similar person")
	}
	pending, err := s.ListConflicts(ctx, testOwner, common.ConflictPending)
	if err != nil {
		t.Fatalf("ListConflicts() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected conflict persisted, got %d", len(pending))
	}
}

func TestResolveDissimilarNamesStaySeparate(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, testOwner, common.CandidatePerson{Name: "Alice Martin"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := r.Resolve(ctx, testOwner, common.CandidatePerson{Name: "Yusuf Okafor"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !second.Created || second.Person.ID == first.Person.ID {
		t.Fatal("dissimilar names must create separate persons")
	}
}

func TestResolveIdentityCollisionConflict(t *testing.T) {
	r, s := newTestResolver(t)
	ctx := context.Background()

	a, err := r.Resolve(ctx, testOwner, common.CandidatePerson{
		Name:        "Priya Raman",
		Identifiers: map[string]string{common.NamespaceAddress: "priya@example.com"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	b, err := r.Resolve(ctx, testOwner, common.CandidatePerson{
		Name:        "Deepa Venkat",
		Identifiers: map[string]string{common.NamespaceHandle: "@deepa"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// One candidate carries identifiers pointing at both existing persons.
	res, err := r.Resolve(ctx, testOwner, common.CandidatePerson{
		Name: "Priya",
		Identifiers: map[string]string{
			common.NamespaceAddress: "priya@example.com",
			common.NamespaceHandle:  "@deepa",
		},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Person.ID != a.Person.ID {
		t.Fatal("highest-priority namespace must win")
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0].Kind != common.ConflictIdentityCollision {
		t.Fatalf("expected identity_collision conflict, got %+v", res.Conflicts)
	}
	if res.Conflicts[0].OtherPersonID != b.Person.ID {
		t.Fatal("conflict does not reference the colliding person")
	}

	// The colliding handle stays with its original person until review
	// merges; review re-points it, not the resolver.
	handle, err := s.LookupIdentity(ctx, testOwner, common.NamespaceHandle, "@deepa")
	if err != nil {
		t.Fatalf("LookupIdentity(handle) error = %v", err)
	}
	if handle.PersonID != b.Person.ID {
		t.Fatalf("colliding handle re-pointed to %s, want %s", handle.PersonID, b.Person.ID)
	}

	// The conflict is on record for review.
	pending, err := s.ListConflicts(ctx, testOwner, common.ConflictPending)
	if err != nil {
		t.Fatalf("ListConflicts() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending conflict, got %d", len(pending))
	}

	// Resolution stays usable afterwards: the same identifiers keep
	// converging on the winner without error.
	again, err := r.Resolve(ctx, testOwner, common.CandidatePerson{
		Name: "Priya",
		Identifiers: map[string]string{
			common.NamespaceAddress: "priya@example.com",
			common.NamespaceHandle:  "@deepa",
		},
	})
	if err != nil {
		t.Fatalf("Resolve() after collision error = %v", err)
	}
	if again.Person.ID != a.Person.ID {
		t.Fatal("repeat resolution must keep converging on the winner")
	}
}

func TestResolveOwnersIsolated(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	a, err := r.Resolve(ctx, "owner_a", common.CandidatePerson{
		Name:        "Sam Field",
		Identifiers: map[string]string{common.NamespaceHandle: "@sam"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	b, err := r.Resolve(ctx, "owner_b", common.CandidatePerson{
		Name:        "Sam Field",
		Identifiers: map[string]string{common.NamespaceHandle: "@sam"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if a.Person.ID == b.Person.ID || !b.Created {
		t.Fatal("identical identifiers under different owners must not collide")
	}
}

func TestResolveConcurrentSameIdentifier(t *testing.T) {
	r, s := newTestResolver(t)
	ctx := context.Background()

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Resolve(ctx, testOwner, common.CandidatePerson{
				Name:        "Race Target",
				Identifiers: map[string]string{common.NamespaceHandle: "@race"},
			})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = res.Person.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent resolutions diverged: %v", ids)
		}
	}
	persons, err := s.ListPersons(ctx, testOwner, 0, 0)
	if err != nil {
		t.Fatalf("ListPersons() error = %v", err)
	}
	if len(persons) != 1 {
		t.Fatalf("expected exactly one person, got %d", len(persons))
	}
}
