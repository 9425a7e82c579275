// Package store defines the persistence contract for the people graph.
// The pgx subpackage is the production Postgres implementation; the memory
// subpackage is a mutex-guarded in-process implementation used in tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rolohq/rolo/pkg/common"
)

var (
	// ErrNotFound is returned when a person, conflict, or metrics record
	// does not exist under the requesting owner.
	ErrNotFound = errors.New("store: not found")
	// ErrIdentityTaken is returned by BindIdentity when the (owner,
	// namespace, value) key is already bound to a different person.
	ErrIdentityTaken = errors.New("store: identity already bound")
)

// PersonMatch is a name-similarity candidate with its score in [0, 1].
type PersonMatch struct {
	Person common.Person
	Score  float64
}

// AssertionHit is an assertion returned by semantic search with its cosine
// similarity to the query embedding.
type AssertionHit struct {
	Assertion  common.Assertion
	Similarity float64
}

// MergeStats summarizes what a merge moved, dropped, and rewired.
type MergeStats struct {
	AssertionsMoved   int `json:"assertions_moved"`
	AssertionsDeduped int `json:"assertions_deduped"`
	IdentitiesMoved   int `json:"identities_moved"`
	EdgesRewired      int `json:"edges_rewired"`
}

// GraphStore is the persistence surface for one owner-partitioned people
// graph. Every method is scoped by owner id; no call can observe or touch
// another owner's rows.
type GraphStore interface {
	// Persons.
	CreatePerson(ctx context.Context, p common.Person) (common.Person, error)
	GetPerson(ctx context.Context, ownerID, personID string) (common.Person, error)
	UpdatePerson(ctx context.Context, ownerID, personID, displayName, summary string) (common.Person, error)
	ListPersons(ctx context.Context, ownerID string, limit, offset int) ([]common.Person, error)

	// Identity index.
	LookupIdentity(ctx context.Context, ownerID, namespace, value string) (common.Identity, error)
	// BindIdentity is atomic: it either binds the key to personID or fails
	// with ErrIdentityTaken, never both. Binding a key already pointing at
	// the same person is a no-op.
	BindIdentity(ctx context.Context, ownerID, namespace, value, personID string) error
	ListIdentities(ctx context.Context, ownerID, personID string) ([]common.Identity, error)

	// FindPersonsByName returns active persons whose display name is
	// similar to name, best first.
	FindPersonsByName(ctx context.Context, ownerID, name string, limit int) ([]PersonMatch, error)

	// Assertions. AddAssertion is signature-idempotent per person: a second
	// assertion with the same signature reports deduped=true and leaves the
	// stored row untouched.
	AddAssertion(ctx context.Context, a common.Assertion) (deduped bool, err error)
	ListAssertions(ctx context.Context, ownerID, personID string) ([]common.Assertion, error)

	// Edges. UpsertEdge collapses parallel edges of one kind by bumping the
	// evidence count and re-deriving the weight.
	UpsertEdge(ctx context.Context, ownerID, sourceID, targetID, kind string) (common.Edge, error)
	ListEdges(ctx context.Context, ownerID, personID string) ([]common.Edge, error)

	// Contact history and derived metrics.
	RecordContact(ctx context.Context, ev common.ContactEvent) error
	ListContacts(ctx context.Context, ownerID, personID string) ([]common.ContactEvent, error)
	PutMetrics(ctx context.Context, m common.RelationshipMetrics) error
	GetMetrics(ctx context.Context, ownerID, personID string) (common.RelationshipMetrics, error)

	// Conflicts.
	CreateConflict(ctx context.Context, c common.Conflict) (common.Conflict, error)
	GetConflict(ctx context.Context, ownerID, conflictID string) (common.Conflict, error)
	ListConflicts(ctx context.Context, ownerID string, status common.ConflictStatus) ([]common.Conflict, error)
	ResolveConflict(ctx context.Context, ownerID, conflictID string, status common.ConflictStatus, at time.Time) error

	// MergePersons atomically folds mergeID into keepID: re-points
	// identities, moves non-duplicate assertions, rewires and re-collapses
	// edges, unions contact history, and marks mergeID merged. The caller
	// holds the owner's merge lock and has validated both persons.
	MergePersons(ctx context.Context, ownerID, keepID, mergeID string) (MergeStats, error)

	// Search funnels. Semantic search ranks by embedding similarity with a
	// floor; keyword search matches normalized object text per predicate.
	SearchAssertionsBySimilarity(ctx context.Context, ownerID string, embedding []float32, floor float64, limit int) ([]AssertionHit, error)
	SearchAssertionsByKeyword(ctx context.Context, ownerID string, predicates []string, token string, limit int) ([]common.Assertion, error)
}
