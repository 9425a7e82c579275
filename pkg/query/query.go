// Package query implements ranked retrieval over the people graph. Two
// funnels feed it: semantic similarity over assertion embeddings and
// keyword matching over assertion objects. Their union is ranked by one
// composite score combining match quality, fact confidence, relationship
// strength, and currency.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rolohq/rolo/internal/util"
	"github.com/rolohq/rolo/pkg/ai"
	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/logger"
	"github.com/rolohq/rolo/pkg/store"
)

// categoryWeights ranks keyword hits by how identifying their predicate
// category is. Employment is the strongest entity signal, meeting context
// the weakest; every entity-bearing category is present so no query is
// limited to its primary category.
var categoryWeights = map[string]float64{
	common.PredicateWorksAt:     1.0,
	common.PredicateRole:        0.9,
	common.PredicateCanHelpWith: 0.8,
	common.PredicateKnows:       0.7,
	common.PredicateInterestIn:  0.6,
	common.PredicateLivesIn:     0.6,
	common.PredicateNote:        0.5,
	common.PredicateMetAt:       0.45,
	common.PredicateMetOn:       0.4,
}

// Config carries the retrieval knobs.
type Config struct {
	// SimilarityFloor drops semantic hits below this cosine similarity.
	SimilarityFloor float64
	// EmbedTimeout bounds the query embedding call; timeouts degrade the
	// search to keyword-only.
	EmbedTimeout time.Duration
	// FunnelLimit bounds each funnel before merging.
	FunnelLimit int
	// DefaultLimit applies when the request does not set one.
	DefaultLimit int
}

func DefaultConfig() Config {
	return Config{
		SimilarityFloor: util.GetEnvNumeric("SEARCH_SIMILARITY_FLOOR", 0.30),
		EmbedTimeout:    time.Duration(util.GetEnvNumeric("SEARCH_EMBED_TIMEOUT_MS", 3000)) * time.Millisecond,
		FunnelLimit:     int(util.GetEnvNumeric("SEARCH_FUNNEL_LIMIT", 50)),
		DefaultLimit:    int(util.GetEnvNumeric("SEARCH_DEFAULT_LIMIT", 10)),
	}
}

// Engine executes searches. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	store    store.GraphStore
	embedder ai.Embedder
	cfg      Config
}

func NewEngine(s store.GraphStore, e ai.Embedder, cfg Config) *Engine {
	if cfg.SimilarityFloor == 0 {
		cfg.SimilarityFloor = 0.30
	}
	if cfg.EmbedTimeout == 0 {
		cfg.EmbedTimeout = 3 * time.Second
	}
	if cfg.FunnelLimit == 0 {
		cfg.FunnelLimit = 50
	}
	if cfg.DefaultLimit == 0 {
		cfg.DefaultLimit = 10
	}
	return &Engine{store: s, embedder: e, cfg: cfg}
}

// SupportingFact is one assertion that justified a result.
type SupportingFact struct {
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
	EvidenceID string  `json:"evidence_id"`
}

// SearchResult is one ranked person with the facts that matched.
type SearchResult struct {
	Person common.Person    `json:"person"`
	Score  float64          `json:"score"`
	Tier   common.Tier      `json:"tier"`
	Facts  []SupportingFact `json:"facts"`
}

// SearchResponse is the full response for one query.
type SearchResponse struct {
	Query    string         `json:"query"`
	Results  []SearchResult `json:"results"`
	Total    int            `json:"total"`
	Degraded bool           `json:"degraded,omitempty"`
}

type candidate struct {
	similarity float64
	confidence float64
	facts      []SupportingFact
	factSeen   map[string]struct{}
}

// Search runs both funnels and returns the top limit persons. An empty
// result set is a well-formed response, never an error.
func (e *Engine) Search(ctx context.Context, ownerID, queryText string, limit int) (SearchResponse, error) {
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	resp := SearchResponse{Query: queryText, Results: []SearchResult{}}
	if common.NormalizeValue(queryText) == "" {
		return resp, nil
	}

	byPerson := make(map[string]*candidate)

	semHits, degraded := e.semanticFunnel(ctx, ownerID, queryText)
	resp.Degraded = degraded
	for _, hit := range semHits {
		e.fold(byPerson, hit.Assertion, hit.Similarity)
	}

	keyHits, err := e.keywordFunnel(ctx, ownerID, queryText)
	if err != nil {
		return resp, err
	}
	for _, hit := range keyHits {
		e.fold(byPerson, hit.Assertion, hit.Similarity)
	}

	for personID, cand := range byPerson {
		person, err := e.store.GetPerson(ctx, ownerID, personID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return resp, fmt.Errorf("load person %s: %w", personID, err)
		}
		if person.Status != common.PersonActive {
			continue
		}

		var strength, currency float64
		tier := common.TierUnknown
		if m, err := e.store.GetMetrics(ctx, ownerID, personID); err == nil {
			strength = m.Composite / 100
			currency = m.Recency / 100
			tier = m.Tier
		} else if !errors.Is(err, store.ErrNotFound) {
			return resp, fmt.Errorf("load metrics %s: %w", personID, err)
		}

		sort.Slice(cand.facts, func(i, j int) bool {
			return cand.facts[i].Confidence > cand.facts[j].Confidence
		})
		if len(cand.facts) > 5 {
			cand.facts = cand.facts[:5]
		}
		resp.Results = append(resp.Results, SearchResult{
			Person: person,
			Score:  CompositeScore(cand.similarity, cand.confidence, strength, currency),
			Tier:   tier,
			Facts:  cand.facts,
		})
	}

	sort.Slice(resp.Results, func(i, j int) bool {
		if resp.Results[i].Score == resp.Results[j].Score {
			return resp.Results[i].Person.ID < resp.Results[j].Person.ID
		}
		return resp.Results[i].Score > resp.Results[j].Score
	})
	if len(resp.Results) > limit {
		resp.Results = resp.Results[:limit]
	}
	resp.Total = len(resp.Results)
	return resp, nil
}

// fold merges one funnel hit into the per-person candidate. The person's
// match quality is the MAX contribution, not the sum, so many weak facts
// never outrank one strong one.
func (e *Engine) fold(byPerson map[string]*candidate, a common.Assertion, contribution float64) {
	cand, ok := byPerson[a.PersonID]
	if !ok {
		cand = &candidate{factSeen: make(map[string]struct{})}
		byPerson[a.PersonID] = cand
	}
	if contribution > cand.similarity {
		cand.similarity = contribution
		cand.confidence = a.Confidence
	}
	if _, dup := cand.factSeen[a.Signature]; dup {
		return
	}
	cand.factSeen[a.Signature] = struct{}{}
	cand.facts = append(cand.facts, SupportingFact{
		Predicate:  a.Predicate,
		Object:     a.ObjectText,
		Confidence: a.Confidence,
		EvidenceID: a.EvidenceID,
	})
}

// semanticFunnel embeds the query and searches assertion embeddings. Any
// embedding failure degrades to keyword-only rather than failing the
// search.
func (e *Engine) semanticFunnel(ctx context.Context, ownerID, queryText string) ([]store.AssertionHit, bool) {
	if e.embedder == nil {
		return nil, true
	}
	eCtx, cancel := context.WithTimeout(ctx, e.cfg.EmbedTimeout)
	defer cancel()

	vec, err := e.embedder.GenerateEmbedding(eCtx, queryText)
	if err != nil {
		logger.Warn("query embedding failed, degrading to keyword search", "owner", ownerID, "error", err)
		return nil, true
	}
	hits, err := e.store.SearchAssertionsBySimilarity(ctx, ownerID, vec, e.cfg.SimilarityFloor, e.cfg.FunnelLimit)
	if err != nil {
		logger.Warn("semantic search failed, degrading to keyword search", "owner", ownerID, "error", err)
		return nil, true
	}
	return hits, false
}

// keywordFunnel matches extracted entity tokens against assertion objects
// across every predicate category, weighting hits by category.
func (e *Engine) keywordFunnel(ctx context.Context, ownerID, queryText string) ([]store.AssertionHit, error) {
	var out []store.AssertionHit
	for _, token := range entityTokens(queryText) {
		matches, err := e.store.SearchAssertionsByKeyword(ctx, ownerID, nil, token, e.cfg.FunnelLimit)
		if err != nil {
			return nil, fmt.Errorf("keyword search %q: %w", token, err)
		}
		for _, a := range matches {
			weight, ok := categoryWeights[a.Predicate]
			if !ok {
				weight = 0.4
			}
			out = append(out, store.AssertionHit{Assertion: a, Similarity: weight})
		}
	}
	return out, nil
}
