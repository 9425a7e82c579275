// Package pgx implements store.GraphStore on Postgres via pgx/v5.
// Embeddings live in pgvector columns, name similarity uses pg_trgm, and
// merges run in one transaction. Schema migrations are in migrations/.
package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolohq/rolo/pkg/store"
)

// Store is a pool-backed GraphStore. It is safe for concurrent use.
type Store struct {
	db *pgxpool.Pool
}

var _ store.GraphStore = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// querier lets the same row helpers run against the pool or a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFoundAs(err error, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}
