package graph

import (
	"context"
	"testing"
	"time"

	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/store/memory"
)

func testScorer() *Scorer {
	return NewScorer(memory.New(), ScorerConfig{
		RecencyHorizonDays:      90,
		FrequencyTargetPerMonth: 4,
		MomentumWindowDays:      30,
		WeightRecency:           0.4,
		WeightFrequency:         0.4,
		WeightMomentum:          0.2,
		StrongThreshold:         60,
		WeakThreshold:           30,
	})
}

func eventsAt(owner, person string, kind string, daysAgo []float64, now time.Time) []common.ContactEvent {
	out := make([]common.ContactEvent, 0, len(daysAgo))
	for _, d := range daysAgo {
		out = append(out, common.ContactEvent{
			OwnerID:    owner,
			PersonID:   person,
			Kind:       kind,
			OccurredAt: now.Add(-time.Duration(d * 24 * float64(time.Hour))),
		})
	}
	return out
}

func TestComputeEmptyHistory(t *testing.T) {
	s := testScorer()
	m := s.Compute(testOwner, "p1", nil, time.Now())
	if m.Tier != common.TierUnknown || m.Composite != 0 || m.ContactCount != 0 {
		t.Fatalf("empty history must be unknown: %+v", m)
	}
}

func TestComputeRecencyDecays(t *testing.T) {
	s := testScorer()
	now := time.Now()

	fresh := s.Compute(testOwner, "p1", eventsAt(testOwner, "p1", "met", []float64{0}, now), now)
	stale := s.Compute(testOwner, "p1", eventsAt(testOwner, "p1", "met", []float64{45}, now), now)
	dead := s.Compute(testOwner, "p1", eventsAt(testOwner, "p1", "met", []float64{200}, now), now)

	if fresh.Recency != 100 {
		t.Fatalf("same-day contact recency = %v, want 100", fresh.Recency)
	}
	if !(stale.Recency < fresh.Recency && stale.Recency > 0) {
		t.Fatalf("mid-horizon recency out of range: %v", stale.Recency)
	}
	if dead.Recency != 0 {
		t.Fatalf("past-horizon recency = %v, want 0", dead.Recency)
	}
}

func TestComputeFrequencyMonotonicAndBounded(t *testing.T) {
	s := testScorer()
	now := time.Now()

	prev := 0.0
	for _, n := range []int{1, 3, 6, 12, 60, 300} {
		days := make([]float64, n)
		for i := range days {
			days[i] = float64(i) * 60 / float64(n) // spread over ~2 months
		}
		m := s.Compute(testOwner, "p1", eventsAt(testOwner, "p1", "met", days, now), now)
		if m.Frequency <= prev {
			t.Fatalf("frequency not increasing at n=%d: %v <= %v", n, m.Frequency, prev)
		}
		if m.Frequency > 100 {
			t.Fatalf("frequency above 100 at n=%d: %v", n, m.Frequency)
		}
		prev = m.Frequency
	}
}

func TestComputeMomentumTrend(t *testing.T) {
	s := testScorer()
	now := time.Now()

	// Old steady contact, then silence: cooling.
	cooling := s.Compute(testOwner, "p1",
		eventsAt(testOwner, "p1", "met", []float64{200, 170, 140, 110, 80, 50}, now), now)
	// Long quiet history, then a burst this month: accelerating.
	accelerating := s.Compute(testOwner, "p1",
		eventsAt(testOwner, "p1", "met", []float64{300, 20, 10, 5, 1}, now), now)
	// All contact inside the window: no baseline, steady.
	steady := s.Compute(testOwner, "p1",
		eventsAt(testOwner, "p1", "met", []float64{20, 10, 5}, now), now)

	if cooling.Momentum >= 50 {
		t.Fatalf("cooling momentum = %v, want < 50", cooling.Momentum)
	}
	if accelerating.Momentum <= 50 {
		t.Fatalf("accelerating momentum = %v, want > 50", accelerating.Momentum)
	}
	if steady.Momentum != 50 {
		t.Fatalf("windowed-only momentum = %v, want 50", steady.Momentum)
	}
	if accelerating.Momentum <= cooling.Momentum {
		t.Fatal("momentum must separate accelerating from cooling")
	}
}

func TestComputeTiers(t *testing.T) {
	s := testScorer()
	now := time.Now()

	// Dense recent contact lands strong.
	strong := s.Compute(testOwner, "p1",
		eventsAt(testOwner, "p1", "met", []float64{1, 3, 5, 8, 12, 15, 20, 25}, now), now)
	if strong.Tier != common.TierStrong {
		t.Fatalf("dense recent history tier = %s (composite %v), want strong", strong.Tier, strong.Composite)
	}

	// A single contact long ago is dormant.
	dormant := s.Compute(testOwner, "p1",
		eventsAt(testOwner, "p1", "met", []float64{85}, now), now)
	if dormant.Tier != common.TierDormant {
		t.Fatalf("stale history tier = %s (composite %v), want dormant", dormant.Tier, dormant.Composite)
	}

	// High-trust kind forces strong regardless of cadence.
	trusted := s.Compute(testOwner, "p1",
		eventsAt(testOwner, "p1", "cofounder", []float64{200}, now), now)
	if trusted.Tier != common.TierStrong {
		t.Fatalf("cofounder tier = %s, want strong", trusted.Tier)
	}
	if trusted.DeepestKind != "cofounder" {
		t.Fatalf("deepest kind = %q", trusted.DeepestKind)
	}
}

func TestRecordEvidencePersistsMetrics(t *testing.T) {
	st := memory.New()
	s := NewScorer(st, ScorerConfig{})
	fixed := time.Now()
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	p, err := st.CreatePerson(ctx, common.Person{OwnerID: testOwner, DisplayName: "Jane Doe"})
	if err != nil {
		t.Fatal(err)
	}
	m, err := s.RecordEvidence(ctx, common.ContactEvent{
		OwnerID:    testOwner,
		PersonID:   p.ID,
		Kind:       "met",
		OccurredAt: fixed,
	})
	if err != nil {
		t.Fatalf("RecordEvidence() error = %v", err)
	}
	if m.ContactCount != 1 || m.Recency != 100 {
		t.Fatalf("unexpected metrics: %+v", m)
	}

	stored, err := st.GetMetrics(ctx, testOwner, p.ID)
	if err != nil {
		t.Fatalf("GetMetrics() error = %v", err)
	}
	if stored.ContactCount != 1 {
		t.Fatalf("metrics not persisted: %+v", stored)
	}
}
