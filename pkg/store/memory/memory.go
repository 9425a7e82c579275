// Package memory implements store.GraphStore with in-process maps. It backs
// tests and local experiments; semantics mirror the pgx implementation,
// including identity uniqueness and signature-idempotent assertions.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/store"
)

type Store struct {
	mu sync.Mutex

	persons    map[string]common.Person              // person id -> person
	identities map[string]common.Identity            // owner|ns|key -> identity
	assertions map[string][]common.Assertion         // person id -> assertions
	edges      map[string]common.Edge                // owner|src|dst|kind -> edge
	contacts   map[string][]common.ContactEvent      // person id -> events
	metrics    map[string]common.RelationshipMetrics // person id -> metrics
	conflicts  map[string]common.Conflict            // conflict id -> conflict
}

var _ store.GraphStore = (*Store)(nil)

func New() *Store {
	return &Store{
		persons:    make(map[string]common.Person),
		identities: make(map[string]common.Identity),
		assertions: make(map[string][]common.Assertion),
		edges:      make(map[string]common.Edge),
		contacts:   make(map[string][]common.ContactEvent),
		metrics:    make(map[string]common.RelationshipMetrics),
		conflicts:  make(map[string]common.Conflict),
	}
}

func identityKey(ownerID, namespace, value string) string {
	return ownerID + "|" + namespace + "|" + common.NormalizeKey(value)
}

func edgeKey(ownerID, sourceID, targetID, kind string) string {
	return ownerID + "|" + sourceID + "|" + targetID + "|" + kind
}

func (s *Store) CreatePerson(ctx context.Context, p common.Person) (common.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = gonanoid.Must()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = common.PersonActive
	}
	s.persons[p.ID] = p
	return p, nil
}

func (s *Store) GetPerson(ctx context.Context, ownerID, personID string) (common.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPersonLocked(ownerID, personID)
}

func (s *Store) getPersonLocked(ownerID, personID string) (common.Person, error) {
	p, ok := s.persons[personID]
	if !ok || p.OwnerID != ownerID {
		return common.Person{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdatePerson(ctx context.Context, ownerID, personID, displayName, summary string) (common.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getPersonLocked(ownerID, personID)
	if err != nil {
		return common.Person{}, err
	}
	if displayName != "" {
		p.DisplayName = displayName
	}
	if summary != "" {
		p.Summary = summary
	}
	p.UpdatedAt = time.Now()
	s.persons[personID] = p
	return p, nil
}

func (s *Store) ListPersons(ctx context.Context, ownerID string, limit, offset int) ([]common.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.Person
	for _, p := range s.persons {
		if p.OwnerID == ownerID && p.Status == common.PersonActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LookupIdentity(ctx context.Context, ownerID, namespace, value string) (common.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.identities[identityKey(ownerID, namespace, value)]
	if !ok {
		return common.Identity{}, store.ErrNotFound
	}
	return id, nil
}

func (s *Store) BindIdentity(ctx context.Context, ownerID, namespace, value, personID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey(ownerID, namespace, value)
	if existing, ok := s.identities[key]; ok {
		if existing.PersonID == personID {
			return nil
		}
		return store.ErrIdentityTaken
	}
	s.identities[key] = common.Identity{
		OwnerID:   ownerID,
		Namespace: namespace,
		Value:     common.NormalizeValue(value),
		PersonID:  personID,
		CreatedAt: time.Now(),
	}
	return nil
}

func (s *Store) ListIdentities(ctx context.Context, ownerID, personID string) ([]common.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.Identity
	for _, id := range s.identities {
		if id.OwnerID == ownerID && id.PersonID == personID {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace == out[j].Namespace {
			return out[i].Value < out[j].Value
		}
		return out[i].Namespace < out[j].Namespace
	})
	return out, nil
}

func (s *Store) FindPersonsByName(ctx context.Context, ownerID, name string, limit int) ([]store.PersonMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.PersonMatch
	for _, p := range s.persons {
		if p.OwnerID != ownerID || p.Status != common.PersonActive {
			continue
		}
		score := common.TrigramSimilarity(name, p.DisplayName)
		if score <= 0 {
			continue
		}
		out = append(out, store.PersonMatch{Person: p, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Person.ID < out[j].Person.ID
		}
		return out[i].Score > out[j].Score
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AddAssertion(ctx context.Context, a common.Assertion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getPersonLocked(a.OwnerID, a.PersonID); err != nil {
		return false, err
	}
	if a.Signature == "" {
		a.Signature = common.AssertionSignature(a.Predicate, a.ObjectText)
	}
	for _, existing := range s.assertions[a.PersonID] {
		if existing.Signature == a.Signature {
			return true, nil
		}
	}
	if a.ID == "" {
		a.ID = gonanoid.Must()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.assertions[a.PersonID] = append(s.assertions[a.PersonID], a)
	return false, nil
}

func (s *Store) ListAssertions(ctx context.Context, ownerID, personID string) ([]common.Assertion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.Assertion
	for _, a := range s.assertions[personID] {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) UpsertEdge(ctx context.Context, ownerID, sourceID, targetID, kind string) (common.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertEdgeLocked(ownerID, sourceID, targetID, kind, 1)
}

func (s *Store) upsertEdgeLocked(ownerID, sourceID, targetID, kind string, count int) (common.Edge, error) {
	key := edgeKey(ownerID, sourceID, targetID, kind)
	e, ok := s.edges[key]
	if !ok {
		e = common.Edge{
			OwnerID:  ownerID,
			SourceID: sourceID,
			TargetID: targetID,
			Kind:     kind,
		}
	}
	e.EvidenceCount += count
	e.Weight = common.EdgeWeight(e.EvidenceCount)
	e.UpdatedAt = time.Now()
	s.edges[key] = e
	return e, nil
}

func (s *Store) ListEdges(ctx context.Context, ownerID, personID string) ([]common.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.Edge
	for _, e := range s.edges {
		if e.OwnerID == ownerID && (e.SourceID == personID || e.TargetID == personID) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight == out[j].Weight {
			return out[i].TargetID < out[j].TargetID
		}
		return out[i].Weight > out[j].Weight
	})
	return out, nil
}

func (s *Store) RecordContact(ctx context.Context, ev common.ContactEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getPersonLocked(ev.OwnerID, ev.PersonID); err != nil {
		return err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	s.contacts[ev.PersonID] = append(s.contacts[ev.PersonID], ev)
	return nil
}

func (s *Store) ListContacts(ctx context.Context, ownerID, personID string) ([]common.ContactEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.ContactEvent
	for _, ev := range s.contacts[personID] {
		if ev.OwnerID == ownerID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (s *Store) PutMetrics(ctx context.Context, m common.RelationshipMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getPersonLocked(m.OwnerID, m.PersonID); err != nil {
		return err
	}
	s.metrics[m.PersonID] = m
	return nil
}

func (s *Store) GetMetrics(ctx context.Context, ownerID, personID string) (common.RelationshipMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.metrics[personID]
	if !ok || m.OwnerID != ownerID {
		return common.RelationshipMetrics{}, store.ErrNotFound
	}
	return m, nil
}

func (s *Store) CreateConflict(ctx context.Context, c common.Conflict) (common.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = gonanoid.Must()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.Status == "" {
		c.Status = common.ConflictPending
	}
	s.conflicts[c.ID] = c
	return c, nil
}

func (s *Store) GetConflict(ctx context.Context, ownerID, conflictID string) (common.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conflicts[conflictID]
	if !ok || c.OwnerID != ownerID {
		return common.Conflict{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListConflicts(ctx context.Context, ownerID string, status common.ConflictStatus) ([]common.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.Conflict
	for _, c := range s.conflicts {
		if c.OwnerID != ownerID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ResolveConflict(ctx context.Context, ownerID, conflictID string, status common.ConflictStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conflicts[conflictID]
	if !ok || c.OwnerID != ownerID {
		return store.ErrNotFound
	}
	c.Status = status
	c.ResolvedAt = at
	s.conflicts[conflictID] = c
	return nil
}

func (s *Store) MergePersons(ctx context.Context, ownerID, keepID, mergeID string) (store.MergeStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats store.MergeStats
	keep, err := s.getPersonLocked(ownerID, keepID)
	if err != nil {
		return stats, err
	}
	merge, err := s.getPersonLocked(ownerID, mergeID)
	if err != nil {
		return stats, err
	}

	// Re-point identities.
	for key, id := range s.identities {
		if id.OwnerID == ownerID && id.PersonID == mergeID {
			id.PersonID = keepID
			s.identities[key] = id
			stats.IdentitiesMoved++
		}
	}

	// Move assertions, dropping signature duplicates.
	seen := make(map[string]struct{})
	for _, a := range s.assertions[keepID] {
		seen[a.Signature] = struct{}{}
	}
	for _, a := range s.assertions[mergeID] {
		if _, dup := seen[a.Signature]; dup {
			stats.AssertionsDeduped++
			continue
		}
		seen[a.Signature] = struct{}{}
		a.PersonID = keepID
		s.assertions[keepID] = append(s.assertions[keepID], a)
		stats.AssertionsMoved++
	}
	delete(s.assertions, mergeID)

	// Rewire edges, collapsing onto existing parallel edges and dropping
	// any edge that would become a self-loop.
	for key, e := range s.edges {
		if e.OwnerID != ownerID {
			continue
		}
		if e.SourceID != mergeID && e.TargetID != mergeID {
			continue
		}
		delete(s.edges, key)
		src, dst := e.SourceID, e.TargetID
		if src == mergeID {
			src = keepID
		}
		if dst == mergeID {
			dst = keepID
		}
		if src == dst {
			continue
		}
		s.upsertEdgeLocked(ownerID, src, dst, e.Kind, e.EvidenceCount)
		stats.EdgesRewired++
	}

	// Union contact histories; metrics are recomputed by the caller.
	s.contacts[keepID] = append(s.contacts[keepID], s.contacts[mergeID]...)
	delete(s.contacts, mergeID)
	delete(s.metrics, mergeID)

	merge.Status = common.PersonMerged
	merge.MergedInto = keepID
	merge.UpdatedAt = time.Now()
	s.persons[mergeID] = merge

	keep.UpdatedAt = time.Now()
	s.persons[keepID] = keep
	return stats, nil
}

func (s *Store) SearchAssertionsBySimilarity(ctx context.Context, ownerID string, embedding []float32, floor float64, limit int) ([]store.AssertionHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.AssertionHit
	for personID, list := range s.assertions {
		p, ok := s.persons[personID]
		if !ok || p.OwnerID != ownerID || p.Status != common.PersonActive {
			continue
		}
		for _, a := range list {
			if len(a.Embedding) == 0 {
				continue
			}
			sim := cosineSimilarity(embedding, a.Embedding)
			if sim < floor {
				continue
			}
			out = append(out, store.AssertionHit{Assertion: a, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity == out[j].Similarity {
			return out[i].Assertion.ID < out[j].Assertion.ID
		}
		return out[i].Similarity > out[j].Similarity
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SearchAssertionsByKeyword(ctx context.Context, ownerID string, predicates []string, token string, limit int) ([]common.Assertion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token = common.NormalizeKey(token)
	if token == "" {
		return nil, nil
	}
	wanted := make(map[string]struct{}, len(predicates))
	for _, p := range predicates {
		wanted[p] = struct{}{}
	}

	var out []common.Assertion
	for personID, list := range s.assertions {
		p, ok := s.persons[personID]
		if !ok || p.OwnerID != ownerID || p.Status != common.PersonActive {
			continue
		}
		for _, a := range list {
			if len(wanted) > 0 {
				if _, ok := wanted[a.Predicate]; !ok {
					continue
				}
			}
			if !strings.Contains(common.NormalizeKey(a.ObjectText), token) {
				continue
			}
			out = append(out, a)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
