package graph

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Locker serializes work on one string key. The production implementation
// is the Postgres lease lock; LocalLocker covers tests and single-process
// runs.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// ResolutionKey is the lock key serializing identity resolution for one
// (owner, namespace, value) triple. Value is case-normalized so both sides
// of a race hash to the same key.
func ResolutionKey(ownerID, namespace, value string) string {
	return "resolve:" + ownerID + ":" + namespace + ":" + strings.ToLower(strings.TrimSpace(value))
}

// MergeKey is the lock key serializing merges for one owner. Merges rewrite
// edges on both endpoints, so one lock per owner keeps them ordered.
func MergeKey(ownerID string) string {
	return "merge:" + ownerID
}

// LocalLocker implements Locker with per-key in-process mutexes.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// withLocks acquires every key in sorted order before running fn. Sorting
// gives all callers one global acquisition order, so two resolutions sharing
// a subset of identifiers cannot deadlock.
func withLocks(ctx context.Context, locker Locker, keys []string, fn func(ctx context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var run func(ctx context.Context, rest []string) error
	run = func(ctx context.Context, rest []string) error {
		if len(rest) == 0 {
			return fn(ctx)
		}
		return locker.WithLock(ctx, rest[0], func(ctx context.Context) error {
			return run(ctx, rest[1:])
		})
	}
	return run(ctx, sorted)
}
