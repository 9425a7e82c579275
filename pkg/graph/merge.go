package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/logger"
	"github.com/rolohq/rolo/pkg/store"
)

var (
	ErrSelfMerge      = errors.New("graph: cannot merge a person into itself")
	ErrAlreadyMerged  = errors.New("graph: person is already merged")
	ErrPersonNotFound = errors.New("graph: person not found")
)

// Merger folds duplicate persons together. The store does the row movement
// in one transaction; Merger validates, serializes per owner, and settles
// the bookkeeping around it.
type Merger struct {
	store  store.GraphStore
	locker Locker
	scorer *Scorer
}

func NewMerger(s store.GraphStore, l Locker, scorer *Scorer) *Merger {
	return &Merger{store: s, locker: l, scorer: scorer}
}

// MergeResult reports what a completed merge did.
type MergeResult struct {
	Kept   common.Person    `json:"kept"`
	Merged string           `json:"merged"`
	Stats  store.MergeStats `json:"stats"`
}

// Merge folds mergeID into keepID under the owner's merge lock. Identities
// are re-pointed, assertions moved with signature dedup, edges rewired and
// collapsed, contact histories unioned, and the keep side's metrics
// recomputed from the combined history. Pending conflicts between the pair
// are settled as merged.
func (m *Merger) Merge(ctx context.Context, ownerID, keepID, mergeID string) (MergeResult, error) {
	var result MergeResult
	if keepID == mergeID {
		return result, ErrSelfMerge
	}

	err := m.locker.WithLock(ctx, MergeKey(ownerID), func(ctx context.Context) error {
		keep, err := m.store.GetPerson(ctx, ownerID, keepID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrPersonNotFound, keepID)
			}
			return err
		}
		merge, err := m.store.GetPerson(ctx, ownerID, mergeID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrPersonNotFound, mergeID)
			}
			return err
		}
		if keep.Status != common.PersonActive {
			return fmt.Errorf("%w: %s", ErrAlreadyMerged, keepID)
		}
		if merge.Status != common.PersonActive {
			return fmt.Errorf("%w: %s", ErrAlreadyMerged, mergeID)
		}

		stats, err := m.store.MergePersons(ctx, ownerID, keepID, mergeID)
		if err != nil {
			return fmt.Errorf("merge persons: %w", err)
		}

		if m.scorer != nil {
			if _, err := m.scorer.Recompute(ctx, ownerID, keepID); err != nil {
				logger.Warn("metrics recompute after merge failed", "owner", ownerID, "person", keepID, "error", err)
			}
		}
		if err := m.settleConflicts(ctx, ownerID, keepID, mergeID); err != nil {
			logger.Warn("conflict settlement after merge failed", "owner", ownerID, "error", err)
		}

		kept, err := m.store.GetPerson(ctx, ownerID, keepID)
		if err != nil {
			return err
		}
		result = MergeResult{Kept: kept, Merged: mergeID, Stats: stats}
		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}
	logger.Info("merged persons",
		"owner", ownerID,
		"keep", keepID,
		"merged", mergeID,
		"assertions_moved", result.Stats.AssertionsMoved,
		"assertions_deduped", result.Stats.AssertionsDeduped,
		"edges_rewired", result.Stats.EdgesRewired,
	)
	return result, nil
}

// settleConflicts closes every pending conflict that paired the two persons,
// in either orientation.
func (m *Merger) settleConflicts(ctx context.Context, ownerID, keepID, mergeID string) error {
	pending, err := m.store.ListConflicts(ctx, ownerID, common.ConflictPending)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, c := range pending {
		pair := (c.PersonID == keepID && c.OtherPersonID == mergeID) ||
			(c.PersonID == mergeID && c.OtherPersonID == keepID)
		if !pair {
			continue
		}
		if err := m.store.ResolveConflict(ctx, ownerID, c.ID, common.ConflictMerged, now); err != nil {
			return err
		}
	}
	return nil
}
