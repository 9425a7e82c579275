package pgx

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/store"
)

const insertConflictSQL = `
INSERT INTO conflicts (id, owner_id, kind, person_id, other_person_id, score, reasons, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, owner_id, kind, person_id, other_person_id, score, reasons, status, created_at, COALESCE(resolved_at, 'epoch'::timestamptz)
`

const getConflictSQL = `
SELECT id, owner_id, kind, person_id, other_person_id, score, reasons, status, created_at, COALESCE(resolved_at, 'epoch'::timestamptz)
FROM conflicts
WHERE owner_id = $1 AND id = $2
`

const listConflictsSQL = `
SELECT id, owner_id, kind, person_id, other_person_id, score, reasons, status, created_at, COALESCE(resolved_at, 'epoch'::timestamptz)
FROM conflicts
WHERE owner_id = $1 AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id
`

const resolveConflictSQL = `
UPDATE conflicts
SET status = $3, resolved_at = $4
WHERE owner_id = $1 AND id = $2
`

func (s *Store) CreateConflict(ctx context.Context, c common.Conflict) (common.Conflict, error) {
	if c.ID == "" {
		c.ID = gonanoid.Must()
	}
	if c.Status == "" {
		c.Status = common.ConflictPending
	}
	if c.Reasons == nil {
		c.Reasons = []string{}
	}
	created, err := s.scanConflict(ctx, insertConflictSQL,
		c.ID, c.OwnerID, c.Kind, c.PersonID, c.OtherPersonID, c.Score, c.Reasons, c.Status)
	if err != nil {
		return common.Conflict{}, fmt.Errorf("insert conflict: %w", err)
	}
	return created, nil
}

func (s *Store) scanConflict(ctx context.Context, sql string, args ...any) (common.Conflict, error) {
	var c common.Conflict
	err := s.db.QueryRow(ctx, sql, args...).Scan(
		&c.ID, &c.OwnerID, &c.Kind, &c.PersonID, &c.OtherPersonID,
		&c.Score, &c.Reasons, &c.Status, &c.CreatedAt, &c.ResolvedAt)
	return c, err
}

func (s *Store) GetConflict(ctx context.Context, ownerID, conflictID string) (common.Conflict, error) {
	c, err := s.scanConflict(ctx, getConflictSQL, ownerID, conflictID)
	if err != nil {
		return common.Conflict{}, notFoundAs(err, store.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListConflicts(ctx context.Context, ownerID string, status common.ConflictStatus) ([]common.Conflict, error) {
	rows, err := s.db.Query(ctx, listConflictsSQL, ownerID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var out []common.Conflict
	for rows.Next() {
		var c common.Conflict
		err := rows.Scan(&c.ID, &c.OwnerID, &c.Kind, &c.PersonID, &c.OtherPersonID,
			&c.Score, &c.Reasons, &c.Status, &c.CreatedAt, &c.ResolvedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ResolveConflict(ctx context.Context, ownerID, conflictID string, status common.ConflictStatus, at time.Time) error {
	tag, err := s.db.Exec(ctx, resolveConflictSQL, ownerID, conflictID, status, at)
	if err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
