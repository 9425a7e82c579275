package pgx

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/store"
)

const insertPersonSQL = `
INSERT INTO people (id, owner_id, display_name, summary, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, owner_id, display_name, summary, status, COALESCE(merged_into, ''), created_at, updated_at
`

const getPersonSQL = `
SELECT id, owner_id, display_name, summary, status, COALESCE(merged_into, ''), created_at, updated_at
FROM people
WHERE owner_id = $1 AND id = $2
`

const updatePersonSQL = `
UPDATE people
SET display_name = COALESCE(NULLIF($3, ''), display_name),
    summary      = COALESCE(NULLIF($4, ''), summary),
    updated_at   = now()
WHERE owner_id = $1 AND id = $2
RETURNING id, owner_id, display_name, summary, status, COALESCE(merged_into, ''), created_at, updated_at
`

const listPersonsSQL = `
SELECT id, owner_id, display_name, summary, status, COALESCE(merged_into, ''), created_at, updated_at
FROM people
WHERE owner_id = $1 AND status = 'active'
ORDER BY created_at, id
LIMIT $2 OFFSET $3
`

const findPersonsByNameSQL = `
SELECT id, owner_id, display_name, summary, status, COALESCE(merged_into, ''), created_at, updated_at,
       similarity(lower(display_name), lower($2)) AS score
FROM people
WHERE owner_id = $1 AND status = 'active'
  AND lower(display_name) % lower($2)
ORDER BY score DESC, id
LIMIT $3
`

func scanPerson(row pgx.Row) (common.Person, error) {
	var p common.Person
	err := row.Scan(&p.ID, &p.OwnerID, &p.DisplayName, &p.Summary, &p.Status, &p.MergedInto, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) CreatePerson(ctx context.Context, p common.Person) (common.Person, error) {
	if p.ID == "" {
		p.ID = gonanoid.Must()
	}
	if p.Status == "" {
		p.Status = common.PersonActive
	}
	created, err := scanPerson(s.db.QueryRow(ctx, insertPersonSQL, p.ID, p.OwnerID, p.DisplayName, p.Summary, p.Status))
	if err != nil {
		return common.Person{}, fmt.Errorf("insert person: %w", err)
	}
	return created, nil
}

func (s *Store) GetPerson(ctx context.Context, ownerID, personID string) (common.Person, error) {
	p, err := scanPerson(s.db.QueryRow(ctx, getPersonSQL, ownerID, personID))
	if err != nil {
		return common.Person{}, notFoundAs(err, store.ErrNotFound)
	}
	return p, nil
}

func (s *Store) UpdatePerson(ctx context.Context, ownerID, personID, displayName, summary string) (common.Person, error) {
	p, err := scanPerson(s.db.QueryRow(ctx, updatePersonSQL, ownerID, personID, displayName, summary))
	if err != nil {
		return common.Person{}, notFoundAs(err, store.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListPersons(ctx context.Context, ownerID string, limit, offset int) ([]common.Person, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, listPersonsSQL, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var out []common.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) FindPersonsByName(ctx context.Context, ownerID, name string, limit int) ([]store.PersonMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(ctx, findPersonsByNameSQL, ownerID, common.NormalizeName(name), limit)
	if err != nil {
		return nil, fmt.Errorf("find persons by name: %w", err)
	}
	defer rows.Close()

	var out []store.PersonMatch
	for rows.Next() {
		var m store.PersonMatch
		err := rows.Scan(
			&m.Person.ID, &m.Person.OwnerID, &m.Person.DisplayName, &m.Person.Summary,
			&m.Person.Status, &m.Person.MergedInto, &m.Person.CreatedAt, &m.Person.UpdatedAt,
			&m.Score,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
