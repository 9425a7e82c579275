package pgx

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pgvector/pgvector-go"

	"github.com/rolohq/rolo/pkg/common"
)

const insertAssertionSQL = `
INSERT INTO assertions
  (id, owner_id, person_id, predicate, object_text, object_person_id, confidence, evidence_id, signature, embedding, observed_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11)
ON CONFLICT (owner_id, person_id, signature) DO NOTHING
`

const listAssertionsSQL = `
SELECT id, owner_id, person_id, predicate, object_text, COALESCE(object_person_id, ''), confidence, evidence_id, signature, observed_at, created_at
FROM assertions
WHERE owner_id = $1 AND person_id = $2
ORDER BY observed_at, id
`

// AddAssertion is signature-idempotent per person: the unique index on
// (owner, person, signature) swallows duplicates and reports them back.
func (s *Store) AddAssertion(ctx context.Context, a common.Assertion) (bool, error) {
	if a.ID == "" {
		a.ID = gonanoid.Must()
	}
	if a.Signature == "" {
		a.Signature = common.AssertionSignature(a.Predicate, a.ObjectText)
	}
	var embedding any
	if len(a.Embedding) > 0 {
		embedding = pgvector.NewVector(a.Embedding)
	}
	tag, err := s.db.Exec(ctx, insertAssertionSQL,
		a.ID, a.OwnerID, a.PersonID, a.Predicate, a.ObjectText, a.ObjectPersonID,
		a.Confidence, a.EvidenceID, a.Signature, embedding, a.ObservedAt)
	if err != nil {
		return false, fmt.Errorf("insert assertion: %w", err)
	}
	return tag.RowsAffected() == 0, nil
}

func scanAssertion(row pgx.Row) (common.Assertion, error) {
	var a common.Assertion
	err := row.Scan(&a.ID, &a.OwnerID, &a.PersonID, &a.Predicate, &a.ObjectText, &a.ObjectPersonID,
		&a.Confidence, &a.EvidenceID, &a.Signature, &a.ObservedAt, &a.CreatedAt)
	return a, err
}

func (s *Store) ListAssertions(ctx context.Context, ownerID, personID string) ([]common.Assertion, error) {
	rows, err := s.db.Query(ctx, listAssertionsSQL, ownerID, personID)
	if err != nil {
		return nil, fmt.Errorf("list assertions: %w", err)
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
