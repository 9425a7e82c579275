package pgx

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/store"
)

const searchSimilaritySQL = `
SELECT a.id, a.owner_id, a.person_id, a.predicate, a.object_text, COALESCE(a.object_person_id, ''),
       a.confidence, a.evidence_id, a.signature, a.observed_at, a.created_at,
       1 - (a.embedding <=> $2) AS similarity
FROM assertions a
JOIN people p ON p.owner_id = a.owner_id AND p.id = a.person_id
WHERE a.owner_id = $1
  AND p.status = 'active'
  AND a.embedding IS NOT NULL
  AND 1 - (a.embedding <=> $2) >= $3
ORDER BY a.embedding <=> $2
LIMIT $4
`

const searchKeywordSQL = `
SELECT a.id, a.owner_id, a.person_id, a.predicate, a.object_text, COALESCE(a.object_person_id, ''),
       a.confidence, a.evidence_id, a.signature, a.observed_at, a.created_at
FROM assertions a
JOIN people p ON p.owner_id = a.owner_id AND p.id = a.person_id
WHERE a.owner_id = $1
  AND p.status = 'active'
  AND ($2::text[] IS NULL OR a.predicate = ANY($2))
  AND lower(a.object_text) LIKE '%' || lower($3) || '%'
ORDER BY a.confidence DESC, a.observed_at DESC, a.id
LIMIT $4
`

func (s *Store) SearchAssertionsBySimilarity(ctx context.Context, ownerID string, embedding []float32, floor float64, limit int) ([]store.AssertionHit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, searchSimilaritySQL, ownerID, pgvector.NewVector(embedding), floor, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var out []store.AssertionHit
	for rows.Next() {
		var h store.AssertionHit
		err := rows.Scan(&h.Assertion.ID, &h.Assertion.OwnerID, &h.Assertion.PersonID,
			&h.Assertion.Predicate, &h.Assertion.ObjectText, &h.Assertion.ObjectPersonID,
			&h.Assertion.Confidence, &h.Assertion.EvidenceID, &h.Assertion.Signature,
			&h.Assertion.ObservedAt, &h.Assertion.CreatedAt, &h.Similarity)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) SearchAssertionsByKeyword(ctx context.Context, ownerID string, predicates []string, token string, limit int) ([]common.Assertion, error) {
	if limit <= 0 {
		limit = 50
	}
	var preds any
	if len(predicates) > 0 {
		preds = predicates
	}
	rows, err := s.db.Query(ctx, searchKeywordSQL, ownerID, preds, token, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var out []common.Assertion
	for rows.Next() {
		a, err := scanAssertion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
