package pgx

import (
	"context"
	"fmt"

	"github.com/rolohq/rolo/pkg/store"
)

const mergeLockPersonsSQL = `
SELECT id FROM people
WHERE owner_id = $1 AND id = ANY($2)
FOR UPDATE
`

const mergeMoveIdentitiesSQL = `
UPDATE identities
SET person_id = $3
WHERE owner_id = $1 AND person_id = $2
`

const mergeListDuplicateAssertionsSQL = `
SELECT a.id
FROM assertions a
WHERE a.owner_id = $1 AND a.person_id = $2
  AND EXISTS (
    SELECT 1 FROM assertions k
    WHERE k.owner_id = $1 AND k.person_id = $3 AND k.signature = a.signature
  )
`

const mergeDeleteAssertionsSQL = `
DELETE FROM assertions
WHERE owner_id = $1 AND id = ANY($2)
`

const mergeMoveAssertionsSQL = `
UPDATE assertions
SET person_id = $3
WHERE owner_id = $1 AND person_id = $2
`

const mergeListEdgesSQL = `
SELECT source_id, target_id, kind, evidence_count
FROM edges
WHERE owner_id = $1 AND (source_id = $2 OR target_id = $2)
`

const mergeDeleteEdgesSQL = `
DELETE FROM edges
WHERE owner_id = $1 AND (source_id = $2 OR target_id = $2)
`

const mergeMoveContactsSQL = `
UPDATE contact_events
SET person_id = $3
WHERE owner_id = $1 AND person_id = $2
`

const mergeDeleteMetricsSQL = `
DELETE FROM relationship_metrics
WHERE owner_id = $1 AND person_id = $2
`

const mergeMarkPersonSQL = `
UPDATE people
SET status = 'merged', merged_into = $3, updated_at = now()
WHERE owner_id = $1 AND id = $2
`

// MergePersons folds mergeID into keepID in a single transaction. Identities
// and contact history move wholesale, assertions already present on the
// survivor are dropped by signature, and edges are re-pointed at the survivor
// with parallel edges of the same kind collapsed into one.
func (s *Store) MergePersons(ctx context.Context, ownerID, keepID, mergeID string) (store.MergeStats, error) {
	var stats store.MergeStats

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock both rows so concurrent merges touching either person serialize.
	rows, err := tx.Query(ctx, mergeLockPersonsSQL, ownerID, []string{keepID, mergeID})
	if err != nil {
		return stats, fmt.Errorf("lock persons: %w", err)
	}
	locked := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return stats, err
		}
		locked++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}
	if locked != 2 {
		return stats, store.ErrNotFound
	}

	tag, err := tx.Exec(ctx, mergeMoveIdentitiesSQL, ownerID, mergeID, keepID)
	if err != nil {
		return stats, fmt.Errorf("move identities: %w", err)
	}
	stats.IdentitiesMoved = int(tag.RowsAffected())

	dupRows, err := tx.Query(ctx, mergeListDuplicateAssertionsSQL, ownerID, mergeID, keepID)
	if err != nil {
		return stats, fmt.Errorf("find duplicate assertions: %w", err)
	}
	var dupIDs []string
	for dupRows.Next() {
		var id string
		if err := dupRows.Scan(&id); err != nil {
			dupRows.Close()
			return stats, err
		}
		dupIDs = append(dupIDs, id)
	}
	dupRows.Close()
	if err := dupRows.Err(); err != nil {
		return stats, err
	}
	if len(dupIDs) > 0 {
		if _, err := tx.Exec(ctx, mergeDeleteAssertionsSQL, ownerID, dupIDs); err != nil {
			return stats, fmt.Errorf("drop duplicate assertions: %w", err)
		}
		stats.AssertionsDeduped = len(dupIDs)
	}

	tag, err = tx.Exec(ctx, mergeMoveAssertionsSQL, ownerID, mergeID, keepID)
	if err != nil {
		return stats, fmt.Errorf("move assertions: %w", err)
	}
	stats.AssertionsMoved = int(tag.RowsAffected())

	// Collect the merged person's edges, delete them, and replay each onto
	// the survivor so same-kind parallels collapse and self-loops vanish.
	type edgeRow struct {
		source, target, kind string
		count                int
	}
	edgeRows, err := tx.Query(ctx, mergeListEdgesSQL, ownerID, mergeID)
	if err != nil {
		return stats, fmt.Errorf("list merged edges: %w", err)
	}
	var edges []edgeRow
	for edgeRows.Next() {
		var e edgeRow
		if err := edgeRows.Scan(&e.source, &e.target, &e.kind, &e.count); err != nil {
			edgeRows.Close()
			return stats, err
		}
		edges = append(edges, e)
	}
	edgeRows.Close()
	if err := edgeRows.Err(); err != nil {
		return stats, err
	}
	if len(edges) > 0 {
		if _, err := tx.Exec(ctx, mergeDeleteEdgesSQL, ownerID, mergeID); err != nil {
			return stats, fmt.Errorf("delete merged edges: %w", err)
		}
		for _, e := range edges {
			src, dst := e.source, e.target
			if src == mergeID {
				src = keepID
			}
			if dst == mergeID {
				dst = keepID
			}
			if src == dst {
				continue
			}
			if _, err := s.upsertEdge(ctx, tx, ownerID, src, dst, e.kind, e.count); err != nil {
				return stats, fmt.Errorf("rewire edge: %w", err)
			}
			stats.EdgesRewired++
		}
	}

	if _, err := tx.Exec(ctx, mergeMoveContactsSQL, ownerID, mergeID, keepID); err != nil {
		return stats, fmt.Errorf("move contacts: %w", err)
	}
	if _, err := tx.Exec(ctx, mergeDeleteMetricsSQL, ownerID, mergeID); err != nil {
		return stats, fmt.Errorf("delete merged metrics: %w", err)
	}
	if _, err := tx.Exec(ctx, mergeMarkPersonSQL, ownerID, mergeID, keepID); err != nil {
		return stats, fmt.Errorf("mark merged person: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("commit merge: %w", err)
	}
	return stats, nil
}
