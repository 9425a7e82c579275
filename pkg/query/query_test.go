package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/store/memory"
)

const testOwner = "owner_1"

// mockEmbedder maps texts onto axis-aligned vectors keyed by keyword, so
// similarity is 1 for texts sharing a topic and 0 otherwise.
type mockEmbedder struct {
	topics map[string]int
	fail   bool
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if m.fail {
		return nil, errors.New("embedder down")
	}
	vec := make([]float32, 8)
	in := common.NormalizeKey(input)
	for topic, axis := range m.topics {
		if containsWord(in, topic) {
			vec[axis] = 1
		}
	}
	return vec, nil
}

func containsWord(s, w string) bool {
	for _, f := range strings.Fields(s) {
		if f == w {
			return true
		}
	}
	return false
}

func (m *mockEmbedder) GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		vec, err := m.GenerateEmbedding(ctx, in)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

type fixture struct {
	store  *memory.Store
	engine *Engine
	emb    *mockEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	emb := &mockEmbedder{topics: map[string]int{
		"fundraising": 0,
		"robotics":    1,
		"acme":        2,
	}}
	return &fixture{
		store: s,
		emb:   emb,
		engine: NewEngine(s, emb, Config{
			SimilarityFloor: 0.3,
			EmbedTimeout:    time.Second,
			FunnelLimit:     50,
			DefaultLimit:    10,
		}),
	}
}

func (f *fixture) addPerson(t *testing.T, name string, facts ...common.Assertion) common.Person {
	t.Helper()
	ctx := context.Background()
	p, err := f.store.CreatePerson(ctx, common.Person{OwnerID: testOwner, DisplayName: name})
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range facts {
		a.OwnerID = testOwner
		a.PersonID = p.ID
		if a.EvidenceID == "" {
			a.EvidenceID = "ev_seed"
		}
		if len(a.Embedding) == 0 {
			vec, err := f.emb.GenerateEmbedding(ctx, a.ObjectText)
			if err != nil {
				t.Fatal(err)
			}
			a.Embedding = vec
		}
		if _, err := f.store.AddAssertion(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func (f *fixture) recordContacts(t *testing.T, personID string, daysAgo ...float64) {
	t.Helper()
	now := time.Now()
	for _, d := range daysAgo {
		err := f.store.RecordContact(context.Background(), common.ContactEvent{
			OwnerID:    testOwner,
			PersonID:   personID,
			Kind:       "met",
			OccurredAt: now.Add(-time.Duration(d * 24 * float64(time.Hour))),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestSearchSemanticFunnel(t *testing.T) {
	f := newFixture(t)
	jane := f.addPerson(t, "Jane Doe",
		common.Assertion{Predicate: common.PredicateCanHelpWith, ObjectText: "fundraising strategy", Confidence: 0.9})
	f.addPerson(t, "Bob Ray",
		common.Assertion{Predicate: common.PredicateInterestIn, ObjectText: "robotics", Confidence: 0.8})

	resp, err := f.engine.Search(context.Background(), testOwner, "help with fundraising", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Degraded {
		t.Fatal("search should not be degraded")
	}
	if len(resp.Results) == 0 || resp.Results[0].Person.ID != jane.ID {
		t.Fatalf("expected Jane first, got %+v", resp.Results)
	}
	if len(resp.Results[0].Facts) == 0 {
		t.Fatal("results must name supporting facts")
	}
}

// A person whose only tie to a company is the meeting context must still
// surface for a query naming that company.
func TestSearchKeywordCoversAllCategories(t *testing.T) {
	f := newFixture(t)
	bob := f.addPerson(t, "Bob Ray",
		common.Assertion{Predicate: common.PredicateMetOn, ObjectText: "the Acme launch party", Confidence: 0.7})
	jane := f.addPerson(t, "Jane Doe",
		common.Assertion{Predicate: common.PredicateWorksAt, ObjectText: "Acme Corp", Confidence: 0.9})

	// Disable the semantic funnel so only keyword matching can find them.
	f.emb.fail = true

	resp, err := f.engine.Search(context.Background(), testOwner, "who do I know at Acme", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	found := map[string]bool{}
	for _, r := range resp.Results {
		found[r.Person.ID] = true
	}
	if !found[jane.ID] {
		t.Fatal("employment match missing")
	}
	if !found[bob.ID] {
		t.Fatal("meeting-context match missing: keyword funnel must cover every category")
	}
	if resp.Results[0].Person.ID != jane.ID {
		t.Fatal("employment category must outweigh meeting context")
	}
}

func TestSearchDegradesToKeywordOnly(t *testing.T) {
	f := newFixture(t)
	f.emb.fail = true
	jane := f.addPerson(t, "Jane Doe",
		common.Assertion{Predicate: common.PredicateWorksAt, ObjectText: "Acme Corp", Confidence: 0.9, Embedding: make([]float32, 8)})

	resp, err := f.engine.Search(context.Background(), testOwner, "Acme", 10)
	if err != nil {
		t.Fatalf("degraded search must not error, got %v", err)
	}
	if !resp.Degraded {
		t.Fatal("response must be marked degraded")
	}
	if len(resp.Results) != 1 || resp.Results[0].Person.ID != jane.ID {
		t.Fatalf("keyword funnel must still return results: %+v", resp.Results)
	}
}

func TestSearchRelationshipStrengthBreaksTies(t *testing.T) {
	f := newFixture(t)
	frequent := f.addPerson(t, "Jane Doe",
		common.Assertion{Predicate: common.PredicateWorksAt, ObjectText: "Acme Corp", Confidence: 0.9})
	distant := f.addPerson(t, "Bob Ray",
		common.Assertion{Predicate: common.PredicateWorksAt, ObjectText: "Acme Corp", Confidence: 0.9})

	f.recordContacts(t, frequent.ID, 1, 5, 10, 15)
	f.recordContacts(t, distant.ID, 300)
	for _, id := range []string{frequent.ID, distant.ID} {
		events, err := f.store.ListContacts(context.Background(), testOwner, id)
		if err != nil {
			t.Fatal(err)
		}
		m := computeMetricsForTest(testOwner, id, events)
		if err := f.store.PutMetrics(context.Background(), m); err != nil {
			t.Fatal(err)
		}
	}

	resp, err := f.engine.Search(context.Background(), testOwner, "Acme", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Person.ID != frequent.ID {
		t.Fatal("stronger relationship must rank first on equal matches")
	}
	if resp.Results[0].Score <= resp.Results[1].Score {
		t.Fatal("scores must reflect the ordering")
	}
}

func TestSearchEmptyQueryAndNoMatches(t *testing.T) {
	f := newFixture(t)
	f.addPerson(t, "Jane Doe",
		common.Assertion{Predicate: common.PredicateWorksAt, ObjectText: "Acme Corp", Confidence: 0.9})

	resp, err := f.engine.Search(context.Background(), testOwner, "   ", 10)
	if err != nil {
		t.Fatalf("empty query must not error, got %v", err)
	}
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Fatalf("empty query must return empty results: %+v", resp)
	}

	resp, err = f.engine.Search(context.Background(), testOwner, "Globex", 10)
	if err != nil {
		t.Fatalf("no-match search must not error, got %v", err)
	}
	if resp.Total != len(resp.Results) {
		t.Fatal("total must equal len(results)")
	}
	if len(resp.Results) != 0 {
		t.Fatalf("expected no results, got %+v", resp.Results)
	}
}

func TestSearchRespectsLimitAndOwner(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"A One", "B Two", "C Three"} {
		f.addPerson(t, name,
			common.Assertion{Predicate: common.PredicateWorksAt, ObjectText: "Acme Corp", Confidence: 0.9})
	}
	other, err := f.store.CreatePerson(context.Background(), common.Person{OwnerID: "owner_2", DisplayName: "Other Owner"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.AddAssertion(context.Background(), common.Assertion{
		OwnerID: "owner_2", PersonID: other.ID,
		Predicate: common.PredicateWorksAt, ObjectText: "Acme Corp", Confidence: 0.9,
		EvidenceID: "ev_seed",
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := f.engine.Search(context.Background(), testOwner, "Acme", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Results) != 2 || resp.Total != 2 {
		t.Fatalf("limit not applied: %+v", resp)
	}
	for _, r := range resp.Results {
		if r.Person.OwnerID != testOwner {
			t.Fatal("search crossed owners")
		}
	}
}

func TestCompositeScoreMonotonic(t *testing.T) {
	base := CompositeScore(0.5, 0.5, 0.5, 0.5)
	for name, score := range map[string]float64{
		"similarity": CompositeScore(0.9, 0.5, 0.5, 0.5),
		"confidence": CompositeScore(0.5, 0.9, 0.5, 0.5),
		"strength":   CompositeScore(0.5, 0.5, 0.9, 0.5),
		"currency":   CompositeScore(0.5, 0.5, 0.5, 0.9),
	} {
		if score <= base {
			t.Errorf("raising %s did not raise the score: %v <= %v", name, score, base)
		}
	}
	if CompositeScore(1, 1, 1, 1) > 1 || CompositeScore(0, 0, 0, 0) != 0 {
		t.Fatal("score out of bounds")
	}
	if CompositeScore(2, -1, 0.5, 0.5) != CompositeScore(1, 0, 0.5, 0.5) {
		t.Fatal("inputs must be clamped to [0,1]")
	}
}

// computeMetricsForTest mirrors the scorer's shape closely enough for
// ranking tests: strong for dense recent contact, dormant for stale.
func computeMetricsForTest(owner, person string, events []common.ContactEvent) common.RelationshipMetrics {
	now := time.Now()
	m := common.RelationshipMetrics{OwnerID: owner, PersonID: person, Tier: common.TierUnknown}
	if len(events) == 0 {
		return m
	}
	last := events[0].OccurredAt
	for _, ev := range events {
		if ev.OccurredAt.After(last) {
			last = ev.OccurredAt
		}
	}
	days := now.Sub(last).Hours() / 24
	rec := 100 * (1 - days/90)
	if rec < 0 {
		rec = 0
	}
	m.ContactCount = len(events)
	m.LastContact = last
	m.Recency = rec
	m.Composite = rec
	switch {
	case rec >= 60:
		m.Tier = common.TierStrong
	case rec >= 30:
		m.Tier = common.TierWeak
	default:
		m.Tier = common.TierDormant
	}
	return m
}
