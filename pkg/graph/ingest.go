package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/rolohq/rolo/pkg/ai"
	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/logger"
	"github.com/rolohq/rolo/pkg/store"
)

var knownPredicates = func() map[string]struct{} {
	set := make(map[string]struct{}, len(common.KnownPredicates))
	for _, p := range common.KnownPredicates {
		set[p] = struct{}{}
	}
	return set
}()

// Pipeline commits one extraction result to the graph: resolve candidates,
// write assertions with embeddings, upsert edges, and refresh metrics.
type Pipeline struct {
	store    store.GraphStore
	resolver *Resolver
	scorer   *Scorer
	embedder ai.Embedder
}

func NewPipeline(s store.GraphStore, r *Resolver, sc *Scorer, e ai.Embedder) *Pipeline {
	return &Pipeline{store: s, resolver: r, scorer: sc, embedder: e}
}

// IngestStats reports what one ingestion changed.
type IngestStats struct {
	PersonsResolved   int `json:"persons_resolved"`
	PersonsCreated    int `json:"persons_created"`
	AssertionsAdded   int `json:"assertions_added"`
	AssertionsDeduped int `json:"assertions_deduped"`
	FactsDropped      int `json:"facts_dropped"`
	EdgesUpserted     int `json:"edges_upserted"`
	ConflictsRaised   int `json:"conflicts_raised"`
}

// Ingest commits one extraction result for one owner. Resolution failures
// on a single candidate abort the whole ingestion so the job can be
// retried; embedding failures degrade to assertions without vectors.
func (p *Pipeline) Ingest(ctx context.Context, ownerID string, res common.ExtractionResult) (IngestStats, error) {
	var stats IngestStats
	observedAt := res.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	byRef := make(map[string]common.Person, len(res.People))
	resolved := make([]Resolution, 0, len(res.People))
	for _, cand := range res.People {
		r, err := p.resolver.Resolve(ctx, ownerID, cand)
		if err != nil {
			return stats, fmt.Errorf("resolve candidate %q: %w", cand.Name, err)
		}
		stats.PersonsResolved++
		if r.Created {
			stats.PersonsCreated++
		}
		stats.ConflictsRaised += len(r.Conflicts)
		if cand.Ref != "" {
			byRef[cand.Ref] = r.Person
		}
		resolved = append(resolved, r)
	}

	embeddings := p.embedFacts(ctx, res.People)

	// The deepest kind a person appears in within this evidence colors
	// their contact event; bare mentions default to "mention".
	contactKind := make(map[string]string)
	for _, r := range resolved {
		contactKind[r.Person.ID] = "mention"
	}

	for i, cand := range res.People {
		person := resolved[i].Person
		for j, fact := range cand.Facts {
			if _, ok := knownPredicates[fact.Predicate]; !ok {
				stats.FactsDropped++
				logger.Debug("dropping fact with unknown predicate", "owner", ownerID, "predicate", fact.Predicate)
				continue
			}
			a := common.Assertion{
				OwnerID:    ownerID,
				PersonID:   person.ID,
				Predicate:  fact.Predicate,
				ObjectText: common.NormalizeValue(fact.Object),
				Confidence: clamp(fact.Confidence, 0, 1),
				EvidenceID: res.EvidenceID,
				Signature:  common.AssertionSignature(fact.Predicate, fact.Object),
				ObservedAt: observedAt,
			}
			if vecs, ok := embeddings[i]; ok && j < len(vecs) {
				a.Embedding = vecs[j]
			}
			deduped, err := p.store.AddAssertion(ctx, a)
			if err != nil {
				return stats, fmt.Errorf("add assertion: %w", err)
			}
			if deduped {
				stats.AssertionsDeduped++
			} else {
				stats.AssertionsAdded++
			}
		}
	}

	for _, e := range res.Edges {
		src, okSrc := byRef[e.SourceRef]
		dst, okDst := byRef[e.TargetRef]
		if !okSrc || !okDst || src.ID == dst.ID {
			continue
		}
		if _, err := p.store.UpsertEdge(ctx, ownerID, src.ID, dst.ID, e.Kind); err != nil {
			return stats, fmt.Errorf("upsert edge %s->%s: %w", src.ID, dst.ID, err)
		}
		stats.EdgesUpserted++
		for _, id := range []string{src.ID, dst.ID} {
			if kindDepth[e.Kind] > kindDepth[contactKind[id]] {
				contactKind[id] = e.Kind
			}
		}
	}

	for personID, kind := range contactKind {
		if _, err := p.scorer.RecordEvidence(ctx, common.ContactEvent{
			OwnerID:    ownerID,
			PersonID:   personID,
			Kind:       kind,
			OccurredAt: observedAt,
		}); err != nil {
			return stats, fmt.Errorf("record evidence for %s: %w", personID, err)
		}
	}

	logger.Info("ingested evidence",
		"owner", ownerID,
		"evidence", res.EvidenceID,
		"persons", stats.PersonsResolved,
		"created", stats.PersonsCreated,
		"assertions", stats.AssertionsAdded,
		"deduped", stats.AssertionsDeduped,
		"edges", stats.EdgesUpserted,
		"conflicts", stats.ConflictsRaised,
	)
	return stats, nil
}

// embedFacts batch-embeds every fact object in one model call. On failure
// the ingestion proceeds without vectors; those assertions stay reachable
// through the keyword funnel.
func (p *Pipeline) embedFacts(ctx context.Context, people []common.CandidatePerson) map[int][][]float32 {
	if p.embedder == nil {
		return nil
	}
	var inputs []string
	type span struct{ start, count int }
	spans := make([]span, len(people))
	for i, cand := range people {
		spans[i] = span{start: len(inputs), count: len(cand.Facts)}
		for _, f := range cand.Facts {
			inputs = append(inputs, f.Object)
		}
	}
	if len(inputs) == 0 {
		return nil
	}
	vecs, err := p.embedder.GenerateEmbeddings(ctx, inputs)
	if err != nil {
		logger.Warn("fact embedding failed, storing assertions without vectors", "error", err)
		return nil
	}
	out := make(map[int][][]float32, len(people))
	for i, sp := range spans {
		if sp.count == 0 {
			continue
		}
		out[i] = vecs[sp.start : sp.start+sp.count]
	}
	return out
}
