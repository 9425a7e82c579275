// Package graph implements the write-side engines of the people graph:
// identity resolution, merging, relationship scoring, and the ingestion
// pipeline that ties them together.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/rolohq/rolo/internal/util"
	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/logger"
	"github.com/rolohq/rolo/pkg/store"
)

var (
	ErrEmptyCandidate = errors.New("graph: candidate has no name and no identifiers")
)

// identifier namespaces in authority order. When supplied identifiers hit
// different persons, the hit from the earliest namespace wins and the
// divergence becomes a Conflict record.
var namespacePriority = []string{
	common.NamespaceNativeID,
	common.NamespaceAddress,
	common.NamespaceHandle,
	common.NamespaceName,
}

// ResolverConfig carries the matching thresholds. Defaults come from env in
// DefaultResolverConfig; tests set them directly.
type ResolverConfig struct {
	// AutoMatchThreshold: name similarity at or above this reuses the
	// existing person without review.
	AutoMatchThreshold float64
	// ConfirmThreshold: similarity in [ConfirmThreshold, AutoMatchThreshold)
	// creates a new person plus an ambiguous_match conflict for review.
	ConfirmThreshold float64
	// CandidateLimit bounds the name similarity scan.
	CandidateLimit int
}

func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		AutoMatchThreshold: util.GetEnvNumeric("RESOLVER_AUTO_MATCH_THRESHOLD", 0.85),
		ConfirmThreshold:   util.GetEnvNumeric("RESOLVER_CONFIRM_THRESHOLD", 0.70),
		CandidateLimit:     int(util.GetEnvNumeric("RESOLVER_CANDIDATE_LIMIT", 5)),
	}
}

// Resolver maps extractor candidates onto canonical persons.
type Resolver struct {
	store  store.GraphStore
	locker Locker
	cfg    ResolverConfig
}

func NewResolver(s store.GraphStore, l Locker, cfg ResolverConfig) *Resolver {
	if cfg.AutoMatchThreshold == 0 {
		cfg.AutoMatchThreshold = 0.85
	}
	if cfg.ConfirmThreshold == 0 {
		cfg.ConfirmThreshold = 0.70
	}
	if cfg.CandidateLimit == 0 {
		cfg.CandidateLimit = 5
	}
	return &Resolver{store: s, locker: l, cfg: cfg}
}

// Resolution is the outcome of resolving one candidate.
type Resolution struct {
	Person common.Person
	// Created reports whether a new person node was minted.
	Created bool
	// MatchScore is the name similarity that justified reuse, when the
	// person was found by similarity rather than identity.
	MatchScore float64
	// Conflicts created during this resolution (identifier collisions,
	// ambiguous matches).
	Conflicts []common.Conflict
}

type identifier struct {
	namespace string
	value     string
}

// Resolve finds or creates the person a candidate refers to. All identifier
// keys are lease-locked for the duration, so two concurrent resolutions of
// the same identifier serialize and converge on one person.
func (r *Resolver) Resolve(ctx context.Context, ownerID string, cand common.CandidatePerson) (Resolution, error) {
	ids := candidateIdentifiers(cand)
	if len(ids) == 0 {
		return Resolution{}, ErrEmptyCandidate
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, ResolutionKey(ownerID, id.namespace, id.value))
	}

	var res Resolution
	err := withLocks(ctx, r.locker, keys, func(ctx context.Context) error {
		var err error
		res, err = r.resolveLocked(ctx, ownerID, cand, ids)
		if err == nil {
			return nil
		}
		// A bind race slipped past the locks (another process, lock
		// expiry). The winner's identity row is visible now, so one
		// re-resolution converges on it.
		if errors.Is(err, store.ErrIdentityTaken) {
			logger.Warn("identity bind race, re-resolving", "owner", ownerID, "name", cand.Name)
			res, err = r.resolveLocked(ctx, ownerID, cand, ids)
		}
		return err
	})
	if err != nil {
		return Resolution{}, err
	}
	return res, nil
}

func (r *Resolver) resolveLocked(ctx context.Context, ownerID string, cand common.CandidatePerson, ids []identifier) (Resolution, error) {
	var res Resolution

	// Identifier hits are authoritative. Collect one hit per namespace in
	// authority order; the first hit wins, later divergent hits become
	// identity_collision conflicts.
	var winner *common.Person
	for _, id := range ids {
		ident, err := r.store.LookupIdentity(ctx, ownerID, id.namespace, id.value)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("lookup identity %s/%s: %w", id.namespace, id.value, err)
		}
		p, err := r.store.GetPerson(ctx, ownerID, ident.PersonID)
		if err != nil {
			return res, fmt.Errorf("load person %s: %w", ident.PersonID, err)
		}
		// Follow a merged node to its survivor.
		if p.Status == common.PersonMerged && p.MergedInto != "" {
			p, err = r.store.GetPerson(ctx, ownerID, p.MergedInto)
			if err != nil {
				return res, fmt.Errorf("follow merged person: %w", err)
			}
		}
		if winner == nil {
			w := p
			winner = &w
			continue
		}
		if winner.ID != p.ID {
			c, err := r.store.CreateConflict(ctx, common.Conflict{
				OwnerID:       ownerID,
				Kind:          common.ConflictIdentityCollision,
				PersonID:      winner.ID,
				OtherPersonID: p.ID,
				Score:         1,
				Reasons: []string{
					fmt.Sprintf("identifier %s:%s resolves to a different person", id.namespace, common.NormalizeKey(id.value)),
				},
				Status: common.ConflictPending,
			})
			if err != nil {
				return res, fmt.Errorf("record identity collision: %w", err)
			}
			res.Conflicts = append(res.Conflicts, c)
		}
	}

	if winner != nil {
		// A colliding identifier stays with the person it already points
		// at; the divergence is on record above and review re-points it by
		// merging. Only unbound identifiers attach to the winner.
		if err := r.bindIdentifiers(ctx, ownerID, winner.ID, ids, true); err != nil {
			return res, err
		}
		res.Person = *winner
		return res, nil
	}

	// No identity hit. Fall back to name similarity.
	if cand.Name != "" {
		matches, err := r.store.FindPersonsByName(ctx, ownerID, cand.Name, r.cfg.CandidateLimit)
		if err != nil {
			return res, fmt.Errorf("name similarity scan: %w", err)
		}
		if len(matches) > 0 && matches[0].Score >= r.cfg.AutoMatchThreshold {
			best := matches[0]
			if err := r.bindIdentifiers(ctx, ownerID, best.Person.ID, ids, false); err != nil {
				return res, err
			}
			res.Person = best.Person
			res.MatchScore = best.Score
			return res, nil
		}
		// Confirmation band: keep the candidates around but create a fresh
		// person; review decides whether to merge later.
		if len(matches) > 0 && matches[0].Score >= r.cfg.ConfirmThreshold {
			p, err := r.createPerson(ctx, ownerID, cand, ids)
			if err != nil {
				return res, err
			}
			c, err := r.store.CreateConflict(ctx, common.Conflict{
				OwnerID:       ownerID,
				Kind:          common.ConflictAmbiguousMatch,
				PersonID:      p.ID,
				OtherPersonID: matches[0].Person.ID,
				Score:         matches[0].Score,
				Reasons: []string{
					fmt.Sprintf("name %q is close to existing %q", cand.Name, matches[0].Person.DisplayName),
				},
				Status: common.ConflictPending,
			})
			if err != nil {
				return res, fmt.Errorf("record ambiguous match: %w", err)
			}
			res.Person = p
			res.Created = true
			res.MatchScore = matches[0].Score
			res.Conflicts = append(res.Conflicts, c)
			return res, nil
		}
	}

	p, err := r.createPerson(ctx, ownerID, cand, ids)
	if err != nil {
		return res, err
	}
	res.Person = p
	res.Created = true
	return res, nil
}

func (r *Resolver) createPerson(ctx context.Context, ownerID string, cand common.CandidatePerson, ids []identifier) (common.Person, error) {
	name := common.NormalizeValue(cand.Name)
	if name == "" {
		// Identifier-only candidate; surface the strongest identifier as a
		// provisional display name.
		name = ids[0].value
	}
	p, err := r.store.CreatePerson(ctx, common.Person{
		OwnerID:     ownerID,
		DisplayName: name,
		Status:      common.PersonActive,
	})
	if err != nil {
		return common.Person{}, fmt.Errorf("create person: %w", err)
	}
	if err := r.bindIdentifiers(ctx, ownerID, p.ID, ids, false); err != nil {
		return common.Person{}, err
	}
	return p, nil
}

// bindIdentifiers points every identifier at personID. With tolerateTaken
// set, identifiers already bound to another person are left in place (the
// caller has recorded the divergence as a conflict); without it a taken
// key propagates as store.ErrIdentityTaken so Resolve can re-resolve.
func (r *Resolver) bindIdentifiers(ctx context.Context, ownerID, personID string, ids []identifier, tolerateTaken bool) error {
	for _, id := range ids {
		err := r.store.BindIdentity(ctx, ownerID, id.namespace, id.value, personID)
		if err == nil {
			continue
		}
		if errors.Is(err, store.ErrIdentityTaken) {
			if tolerateTaken {
				continue
			}
			return err
		}
		return fmt.Errorf("bind identity %s/%s: %w", id.namespace, id.value, err)
	}
	return nil
}

// candidateIdentifiers flattens a candidate into namespace/value pairs in
// authority order. The candidate's name doubles as a free_text_name
// identity so repeated mentions of an unambiguous name converge without a
// similarity scan.
func candidateIdentifiers(cand common.CandidatePerson) []identifier {
	var out []identifier
	for _, ns := range namespacePriority {
		if ns == common.NamespaceName {
			continue
		}
		if v, ok := cand.Identifiers[ns]; ok && common.NormalizeValue(v) != "" {
			out = append(out, identifier{namespace: ns, value: common.NormalizeValue(v)})
		}
	}
	if name := common.NormalizeValue(cand.Name); name != "" {
		out = append(out, identifier{namespace: common.NamespaceName, value: name})
	}
	return out
}
