package pgx

import (
	"context"
	"fmt"
	"time"

	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/store"
)

// Edge weight lands in SQL so upsert stays one round trip; the expression
// mirrors common.EdgeWeight.
const upsertEdgeSQL = `
INSERT INTO edges (owner_id, source_id, target_id, kind, evidence_count, weight)
VALUES ($1, $2, $3, $4, $5, 1 - exp(-($5::float8) / 3))
ON CONFLICT (owner_id, source_id, target_id, kind) DO UPDATE
SET evidence_count = edges.evidence_count + EXCLUDED.evidence_count,
    weight         = 1 - exp(-((edges.evidence_count + EXCLUDED.evidence_count)::float8) / 3),
    updated_at     = now()
RETURNING owner_id, source_id, target_id, kind, weight, evidence_count, updated_at
`

const listEdgesSQL = `
SELECT owner_id, source_id, target_id, kind, weight, evidence_count, updated_at
FROM edges
WHERE owner_id = $1 AND (source_id = $2 OR target_id = $2)
ORDER BY weight DESC, target_id
`

const insertContactSQL = `
INSERT INTO contact_events (owner_id, person_id, kind, occurred_at)
VALUES ($1, $2, $3, $4)
`

const listContactsSQL = `
SELECT owner_id, person_id, COALESCE(kind, ''), occurred_at
FROM contact_events
WHERE owner_id = $1 AND person_id = $2
ORDER BY occurred_at, id
`

const upsertMetricsSQL = `
INSERT INTO relationship_metrics
  (owner_id, person_id, recency, frequency, momentum, composite, tier, contact_count, deepest_kind, first_contact, last_contact, recomputed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
ON CONFLICT (owner_id, person_id) DO UPDATE
SET recency       = EXCLUDED.recency,
    frequency     = EXCLUDED.frequency,
    momentum      = EXCLUDED.momentum,
    composite     = EXCLUDED.composite,
    tier          = EXCLUDED.tier,
    contact_count = EXCLUDED.contact_count,
    deepest_kind  = EXCLUDED.deepest_kind,
    first_contact = EXCLUDED.first_contact,
    last_contact  = EXCLUDED.last_contact,
    recomputed_at = EXCLUDED.recomputed_at
`

const getMetricsSQL = `
SELECT owner_id, person_id, recency, frequency, momentum, composite, tier, contact_count, COALESCE(deepest_kind, ''),
       first_contact, last_contact, recomputed_at
FROM relationship_metrics
WHERE owner_id = $1 AND person_id = $2
`

func (s *Store) UpsertEdge(ctx context.Context, ownerID, sourceID, targetID, kind string) (common.Edge, error) {
	return s.upsertEdge(ctx, s.db, ownerID, sourceID, targetID, kind, 1)
}

func (s *Store) upsertEdge(ctx context.Context, q querier, ownerID, sourceID, targetID, kind string, count int) (common.Edge, error) {
	var e common.Edge
	err := q.QueryRow(ctx, upsertEdgeSQL, ownerID, sourceID, targetID, kind, count).
		Scan(&e.OwnerID, &e.SourceID, &e.TargetID, &e.Kind, &e.Weight, &e.EvidenceCount, &e.UpdatedAt)
	if err != nil {
		return common.Edge{}, fmt.Errorf("upsert edge: %w", err)
	}
	return e, nil
}

func (s *Store) ListEdges(ctx context.Context, ownerID, personID string) ([]common.Edge, error) {
	rows, err := s.db.Query(ctx, listEdgesSQL, ownerID, personID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	var out []common.Edge
	for rows.Next() {
		var e common.Edge
		if err := rows.Scan(&e.OwnerID, &e.SourceID, &e.TargetID, &e.Kind, &e.Weight, &e.EvidenceCount, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) RecordContact(ctx context.Context, ev common.ContactEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	if _, err := s.db.Exec(ctx, insertContactSQL, ev.OwnerID, ev.PersonID, ev.Kind, ev.OccurredAt); err != nil {
		return fmt.Errorf("insert contact event: %w", err)
	}
	return nil
}

func (s *Store) ListContacts(ctx context.Context, ownerID, personID string) ([]common.ContactEvent, error) {
	rows, err := s.db.Query(ctx, listContactsSQL, ownerID, personID)
	if err != nil {
		return nil, fmt.Errorf("list contact events: %w", err)
	}
	defer rows.Close()

	var out []common.ContactEvent
	for rows.Next() {
		var ev common.ContactEvent
		if err := rows.Scan(&ev.OwnerID, &ev.PersonID, &ev.Kind, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) PutMetrics(ctx context.Context, m common.RelationshipMetrics) error {
	_, err := s.db.Exec(ctx, upsertMetricsSQL,
		m.OwnerID, m.PersonID, m.Recency, m.Frequency, m.Momentum, m.Composite, m.Tier,
		m.ContactCount, m.DeepestKind, m.FirstContact, m.LastContact, m.RecomputedAt)
	if err != nil {
		return fmt.Errorf("upsert metrics: %w", err)
	}
	return nil
}

func (s *Store) GetMetrics(ctx context.Context, ownerID, personID string) (common.RelationshipMetrics, error) {
	var m common.RelationshipMetrics
	err := s.db.QueryRow(ctx, getMetricsSQL, ownerID, personID).Scan(
		&m.OwnerID, &m.PersonID, &m.Recency, &m.Frequency, &m.Momentum, &m.Composite, &m.Tier,
		&m.ContactCount, &m.DeepestKind, &m.FirstContact, &m.LastContact, &m.RecomputedAt)
	if err != nil {
		return common.RelationshipMetrics{}, notFoundAs(err, store.ErrNotFound)
	}
	return m, nil
}
