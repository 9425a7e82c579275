package graph

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rolohq/rolo/internal/util"
	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/store"
)

// highTrustKinds are interaction kinds that mark a relationship strong
// regardless of its contact cadence.
var highTrustKinds = map[string]struct{}{
	"cofounder":    {},
	"did_business": {},
	"invested":     {},
}

// kindDepth orders interaction kinds by how much trust they imply. The
// deepest kind ever observed is recorded on the metrics row.
var kindDepth = map[string]int{
	"mention":      1,
	"met":          2,
	"knows":        2,
	"intro":        3,
	"worked_with":  4,
	"did_business": 5,
	"invested":     5,
	"cofounder":    6,
}

// ScorerConfig carries the RFM tuning knobs. Zero values get defaults in
// NewScorer; DefaultScorerConfig reads them from env.
type ScorerConfig struct {
	// RecencyHorizonDays: recency decays linearly from 100 at the last
	// contact to 0 at this many days without contact.
	RecencyHorizonDays float64
	// FrequencyTargetPerMonth: contact rate at which frequency saturates
	// toward 100.
	FrequencyTargetPerMonth float64
	// MomentumWindowDays: size of the recent window compared against the
	// historical average rate.
	MomentumWindowDays float64

	WeightRecency   float64
	WeightFrequency float64
	WeightMomentum  float64

	StrongThreshold float64
	WeakThreshold   float64
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		RecencyHorizonDays:      util.GetEnvNumeric("SCORER_RECENCY_HORIZON_DAYS", 90),
		FrequencyTargetPerMonth: util.GetEnvNumeric("SCORER_FREQUENCY_TARGET_PER_MONTH", 4),
		MomentumWindowDays:      util.GetEnvNumeric("SCORER_MOMENTUM_WINDOW_DAYS", 30),
		WeightRecency:           util.GetEnvNumeric("SCORER_WEIGHT_RECENCY", 0.4),
		WeightFrequency:         util.GetEnvNumeric("SCORER_WEIGHT_FREQUENCY", 0.4),
		WeightMomentum:          util.GetEnvNumeric("SCORER_WEIGHT_MOMENTUM", 0.2),
		StrongThreshold:         util.GetEnvNumeric("SCORER_STRONG_THRESHOLD", 60),
		WeakThreshold:           util.GetEnvNumeric("SCORER_WEAK_THRESHOLD", 30),
	}
}

// Scorer derives relationship metrics from contact history.
type Scorer struct {
	store store.GraphStore
	cfg   ScorerConfig
	now   func() time.Time
}

func NewScorer(s store.GraphStore, cfg ScorerConfig) *Scorer {
	if cfg.RecencyHorizonDays == 0 {
		cfg.RecencyHorizonDays = 90
	}
	if cfg.FrequencyTargetPerMonth == 0 {
		cfg.FrequencyTargetPerMonth = 4
	}
	if cfg.MomentumWindowDays == 0 {
		cfg.MomentumWindowDays = 30
	}
	if cfg.WeightRecency == 0 && cfg.WeightFrequency == 0 && cfg.WeightMomentum == 0 {
		cfg.WeightRecency, cfg.WeightFrequency, cfg.WeightMomentum = 0.4, 0.4, 0.2
	}
	if cfg.StrongThreshold == 0 {
		cfg.StrongThreshold = 60
	}
	if cfg.WeakThreshold == 0 {
		cfg.WeakThreshold = 30
	}
	return &Scorer{store: s, cfg: cfg, now: time.Now}
}

// RecordEvidence appends one contact observation and synchronously refreshes
// the person's metrics. Callers that batch many observations may record them
// all and call Recompute once.
func (s *Scorer) RecordEvidence(ctx context.Context, ev common.ContactEvent) (common.RelationshipMetrics, error) {
	if err := s.store.RecordContact(ctx, ev); err != nil {
		return common.RelationshipMetrics{}, fmt.Errorf("record contact: %w", err)
	}
	return s.Recompute(ctx, ev.OwnerID, ev.PersonID)
}

// Recompute rebuilds the metrics row from the person's full contact history
// and stores it.
func (s *Scorer) Recompute(ctx context.Context, ownerID, personID string) (common.RelationshipMetrics, error) {
	events, err := s.store.ListContacts(ctx, ownerID, personID)
	if err != nil {
		return common.RelationshipMetrics{}, fmt.Errorf("list contacts: %w", err)
	}
	m := s.Compute(ownerID, personID, events, s.now())
	if err := s.store.PutMetrics(ctx, m); err != nil {
		return common.RelationshipMetrics{}, fmt.Errorf("put metrics: %w", err)
	}
	return m, nil
}

// Compute is the pure scoring function. Metrics depend only on the event
// set and the clock, so merged histories score the same as histories that
// were never split.
func (s *Scorer) Compute(ownerID, personID string, events []common.ContactEvent, now time.Time) common.RelationshipMetrics {
	m := common.RelationshipMetrics{
		OwnerID:      ownerID,
		PersonID:     personID,
		Tier:         common.TierUnknown,
		RecomputedAt: now,
	}
	if len(events) == 0 {
		return m
	}

	first, last := events[0].OccurredAt, events[0].OccurredAt
	deepest := ""
	deepestRank := 0
	for _, ev := range events {
		if ev.OccurredAt.Before(first) {
			first = ev.OccurredAt
		}
		if ev.OccurredAt.After(last) {
			last = ev.OccurredAt
		}
		if rank, ok := kindDepth[ev.Kind]; ok && rank > deepestRank {
			deepest, deepestRank = ev.Kind, rank
		}
	}
	m.ContactCount = len(events)
	m.FirstContact = first
	m.LastContact = last
	m.DeepestKind = deepest

	m.Recency = s.recency(last, now)
	m.Frequency = s.frequency(len(events), first, now)
	m.Momentum = s.momentum(events, first, now)
	m.Composite = s.cfg.WeightRecency*m.Recency +
		s.cfg.WeightFrequency*m.Frequency +
		s.cfg.WeightMomentum*m.Momentum
	m.Tier = s.tier(m.Composite, deepest)
	return m
}

// recency decays linearly from 100 at the last contact to 0 at the horizon.
func (s *Scorer) recency(last, now time.Time) float64 {
	days := now.Sub(last).Hours() / 24
	if days < 0 {
		days = 0
	}
	score := 100 * (1 - days/s.cfg.RecencyHorizonDays)
	return clamp(score, 0, 100)
}

// frequency saturates toward 100 as the per-month contact rate approaches
// the target rate.
func (s *Scorer) frequency(count int, first, now time.Time) float64 {
	months := now.Sub(first).Hours() / 24 / 30
	if months < 1 {
		months = 1
	}
	rate := float64(count) / months
	return 100 * (1 - math.Exp(-rate/s.cfg.FrequencyTargetPerMonth))
}

// momentum compares the recent-window contact rate against the historical
// average rate. 50 is steady state, above 50 the relationship is
// accelerating, below it is cooling. A history contained entirely in the
// window has no baseline and reads as steady.
func (s *Scorer) momentum(events []common.ContactEvent, first, now time.Time) float64 {
	windowStart := now.Add(-time.Duration(s.cfg.MomentumWindowDays * 24 * float64(time.Hour)))
	if !first.Before(windowStart) {
		return 50
	}

	recent := 0
	for _, ev := range events {
		if !ev.OccurredAt.Before(windowStart) {
			recent++
		}
	}
	totalDays := now.Sub(first).Hours() / 24
	avgRate := float64(len(events)) / totalDays
	recentRate := float64(recent) / s.cfg.MomentumWindowDays
	if avgRate == 0 {
		return 50
	}
	return clamp(100*recentRate/(recentRate+avgRate), 0, 100)
}

func (s *Scorer) tier(composite float64, deepest string) common.Tier {
	if _, ok := highTrustKinds[deepest]; ok {
		return common.TierStrong
	}
	switch {
	case composite >= s.cfg.StrongThreshold:
		return common.TierStrong
	case composite >= s.cfg.WeakThreshold:
		return common.TierWeak
	case composite > 0:
		return common.TierDormant
	default:
		return common.TierUnknown
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
