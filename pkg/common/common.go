package common

import "time"

// PersonStatus is the lifecycle state of a Person node. People are never
// hard-deleted; merges and deletions are status transitions so that history
// stays auditable.
type PersonStatus string

const (
	PersonActive  PersonStatus = "active"
	PersonMerged  PersonStatus = "merged"
	PersonDeleted PersonStatus = "deleted"
)

// Person is a canonical human entity in one owner's graph.
//
// A merged Person carries no assertions; the Merge Engine moves or discards
// them all and records the surviving node in MergedInto.
type Person struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`
	DisplayName string       `json:"display_name"`
	Summary     string       `json:"summary,omitempty"`
	Status      PersonStatus `json:"status"`
	MergedInto  string       `json:"merged_into,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Identity namespaces. An identity value is meaningful only together with
// its namespace; "alice" the handle and "alice" the free-text name are
// different identifiers.
const (
	NamespaceHandle   = "handle"
	NamespaceAddress  = "address"
	NamespaceNativeID = "native_id"
	NamespaceName     = "free_text_name"
)

// Identity binds an external identifier to exactly one Person.
// (owner, namespace, lowercased value) is unique; identities are never
// updated in place, only re-pointed during merges.
type Identity struct {
	OwnerID   string    `json:"owner_id"`
	Namespace string    `json:"namespace"`
	Value     string    `json:"value"`
	PersonID  string    `json:"person_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Predicate vocabulary for assertions. The set is fixed; extractors that
// emit anything else get their facts dropped at ingestion.
const (
	PredicateWorksAt     = "works_at"
	PredicateRole        = "role"
	PredicateCanHelpWith = "can_help_with"
	PredicateMetOn       = "met_on"
	PredicateMetAt       = "met_at"
	PredicateLivesIn     = "lives_in"
	PredicateInterestIn  = "interested_in"
	PredicateKnows       = "knows"
	PredicateNote        = "note"
)

// KnownPredicates lists every predicate accepted at ingestion.
var KnownPredicates = []string{
	PredicateWorksAt,
	PredicateRole,
	PredicateCanHelpWith,
	PredicateMetOn,
	PredicateMetAt,
	PredicateLivesIn,
	PredicateInterestIn,
	PredicateKnows,
	PredicateNote,
}

// Assertion is an atomic, provenance-tagged fact about a Person.
//
// Signature is the normalized (predicate, object) fingerprint used to detect
// semantic duplicates: two assertions with equal signatures say the same
// thing and only one survives a merge.
type Assertion struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	PersonID       string    `json:"person_id"`
	Predicate      string    `json:"predicate"`
	ObjectText     string    `json:"object_text"`
	ObjectPersonID string    `json:"object_person_id,omitempty"`
	Confidence     float64   `json:"confidence"`
	EvidenceID     string    `json:"evidence_id"`
	Signature      string    `json:"signature"`
	Embedding      []float32 `json:"-"`
	ObservedAt     time.Time `json:"observed_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Edge is a directed, typed relationship between two Persons under the same
// owner. Weight is derived from EvidenceCount and bounded above; parallel
// edges of the same kind are collapsed by summing evidence counts.
type Edge struct {
	OwnerID       string    `json:"owner_id"`
	SourceID      string    `json:"source_id"`
	TargetID      string    `json:"target_id"`
	Kind          string    `json:"kind"`
	Weight        float64   `json:"weight"`
	EvidenceCount int       `json:"evidence_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Tier is the categorical tie strength of a relationship.
type Tier string

const (
	TierStrong  Tier = "strong"
	TierWeak    Tier = "weak"
	TierDormant Tier = "dormant"
	TierUnknown Tier = "unknown"
)

// RelationshipMetrics holds the recency/frequency/momentum scores for one
// (owner, person) pair. One record per pair, created lazily on first
// evidence and recomputed whenever new evidence arrives.
type RelationshipMetrics struct {
	OwnerID      string      `json:"owner_id"`
	PersonID     string      `json:"person_id"`
	Recency      float64     `json:"recency"`
	Frequency    float64     `json:"frequency"`
	Momentum     float64     `json:"momentum"`
	Composite    float64     `json:"composite"`
	Tier         Tier        `json:"tier"`
	ContactCount int         `json:"contact_count"`
	DeepestKind  string      `json:"deepest_kind,omitempty"`
	FirstContact time.Time   `json:"first_contact"`
	LastContact  time.Time   `json:"last_contact"`
	RecomputedAt time.Time   `json:"recomputed_at"`
	ContactLog   []time.Time `json:"-"`
}

// ContactEvent is one dated observation of interaction with a person. The
// scorer's inputs; metrics are recomputed from the full event history so a
// merge that unions two histories yields the same numbers as if the events
// had always belonged to one person.
type ContactEvent struct {
	OwnerID    string    `json:"owner_id"`
	PersonID   string    `json:"person_id"`
	Kind       string    `json:"kind,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ConflictKind classifies why two Persons were flagged for review.
type ConflictKind string

const (
	// ConflictIdentityCollision: supplied identifiers resolved to different
	// existing Persons during one resolution.
	ConflictIdentityCollision ConflictKind = "identity_collision"
	// ConflictAmbiguousMatch: name similarity landed in the confirmation
	// band, strong enough to suspect a duplicate but not to auto-merge.
	ConflictAmbiguousMatch ConflictKind = "ambiguous_match"
)

// ConflictStatus is the review state of a Conflict record.
type ConflictStatus string

const (
	ConflictPending    ConflictStatus = "pending"
	ConflictMerged     ConflictStatus = "merged"
	ConflictRejected   ConflictStatus = "rejected"
	ConflictAutoMerged ConflictStatus = "auto_merged"
)

// Conflict records a suspected duplicate pair or an identifier collision
// for human review. Only Status and ResolvedAt ever change after creation.
type Conflict struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	Kind          ConflictKind   `json:"kind"`
	PersonID      string         `json:"person_id"`
	OtherPersonID string         `json:"other_person_id"`
	Score         float64        `json:"score"`
	Reasons       []string       `json:"reasons"`
	Status        ConflictStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	ResolvedAt    time.Time      `json:"resolved_at,omitzero"`
}

// CandidatePerson is one person proposed by the extractor from a piece of
// evidence, before resolution against the graph.
type CandidatePerson struct {
	// Ref is the extractor-local key used by CandidateEdge endpoints.
	Ref         string            `json:"ref"`
	Name        string            `json:"name"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
	Facts       []CandidateFact   `json:"facts,omitempty"`
}

// CandidateFact is one proposed assertion about a candidate person.
type CandidateFact struct {
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// CandidateEdge is a proposed relationship between two candidate persons,
// referenced by their extractor-local refs.
type CandidateEdge struct {
	SourceRef string `json:"source_ref"`
	TargetRef string `json:"target_ref"`
	Kind      string `json:"kind"`
}

// ExtractionResult is what the extractor emits for one piece of raw
// evidence: candidate people with facts, and relationships between them.
type ExtractionResult struct {
	EvidenceID string            `json:"evidence_id"`
	ObservedAt time.Time         `json:"observed_at,omitzero"`
	People     []CandidatePerson `json:"people"`
	Edges      []CandidateEdge   `json:"edges,omitempty"`
}
