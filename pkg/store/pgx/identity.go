package pgx

import (
	"context"
	"fmt"

	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/store"
)

const lookupIdentitySQL = `
SELECT owner_id, namespace, value, person_id, created_at
FROM identities
WHERE owner_id = $1 AND namespace = $2 AND value_key = $3
`

const insertIdentitySQL = `
INSERT INTO identities (owner_id, namespace, value, value_key, person_id)
VALUES ($1, $2, $3, $4, $5)
`

const listIdentitiesSQL = `
SELECT owner_id, namespace, value, person_id, created_at
FROM identities
WHERE owner_id = $1 AND person_id = $2
ORDER BY namespace, value
`

func (s *Store) LookupIdentity(ctx context.Context, ownerID, namespace, value string) (common.Identity, error) {
	var id common.Identity
	err := s.db.QueryRow(ctx, lookupIdentitySQL, ownerID, namespace, common.NormalizeKey(value)).
		Scan(&id.OwnerID, &id.Namespace, &id.Value, &id.PersonID, &id.CreatedAt)
	if err != nil {
		return common.Identity{}, notFoundAs(err, store.ErrNotFound)
	}
	return id, nil
}

// BindIdentity inserts the key or, if it exists, verifies it points at the
// same person. The unique index makes the insert race-safe; a lost race
// surfaces as ErrIdentityTaken for the resolver to retry on.
func (s *Store) BindIdentity(ctx context.Context, ownerID, namespace, value, personID string) error {
	_, err := s.db.Exec(ctx, insertIdentitySQL,
		ownerID, namespace, common.NormalizeValue(value), common.NormalizeKey(value), personID)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("bind identity: %w", err)
	}
	existing, err := s.LookupIdentity(ctx, ownerID, namespace, value)
	if err != nil {
		return fmt.Errorf("bind identity recheck: %w", err)
	}
	if existing.PersonID != personID {
		return store.ErrIdentityTaken
	}
	return nil
}

func (s *Store) ListIdentities(ctx context.Context, ownerID, personID string) ([]common.Identity, error) {
	rows, err := s.db.Query(ctx, listIdentitiesSQL, ownerID, personID)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []common.Identity
	for rows.Next() {
		var id common.Identity
		if err := rows.Scan(&id.OwnerID, &id.Namespace, &id.Value, &id.PersonID, &id.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
