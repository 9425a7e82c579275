package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rolohq/rolo/internal/storage"
	"github.com/rolohq/rolo/internal/util"
	"github.com/rolohq/rolo/pkg/ai"
	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/graph"
	"github.com/rolohq/rolo/pkg/logger"
)

// sanitizeResult strips bytes Postgres text columns reject from every
// model-produced string before it reaches the store.
func sanitizeResult(res *common.ExtractionResult) {
	for i := range res.People {
		p := &res.People[i]
		p.Name = util.SanitizePostgresText(p.Name)
		for k, v := range p.Identifiers {
			p.Identifiers[k] = util.SanitizePostgresText(v)
		}
		for j := range p.Facts {
			p.Facts[j].Object = util.SanitizePostgresText(p.Facts[j].Object)
		}
	}
}

// ProcessIngestMessage loads the archived note, runs extraction against the
// model and commits the result to the graph. Any error is returned so the
// caller can route the message through the retry queue; the pipeline itself
// is idempotent on replay.
func ProcessIngestMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	aiClient ai.Client,
	pipeline *graph.Pipeline,
	msg string,
) error {
	job := new(IngestJob)
	if err := json.Unmarshal([]byte(msg), job); err != nil {
		return fmt.Errorf("unmarshal ingest job: %w", err)
	}

	text, err := storage.GetEvidence(ctx, s3Client, job.OwnerID, job.EvidenceID)
	if err != nil {
		return err
	}
	if tokens, err := ai.CountTokens(text); err == nil {
		logger.Debug("[Queue] Evidence loaded", "evidence_id", job.EvidenceID, "tokens", tokens)
	}

	observedAt := job.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	result, err := util.Retry(2, func() (common.ExtractionResult, error) {
		return aiClient.ExtractEvidence(ctx, job.EvidenceID, text, observedAt)
	})
	if err != nil {
		return fmt.Errorf("extract evidence %s: %w", job.EvidenceID, err)
	}
	sanitizeResult(&result)

	stats, err := pipeline.Ingest(ctx, job.OwnerID, result)
	if err != nil {
		return fmt.Errorf("ingest evidence %s: %w", job.EvidenceID, err)
	}

	logger.Info("[Queue] Evidence ingested",
		"owner_id", job.OwnerID,
		"evidence_id", job.EvidenceID,
		"persons_resolved", stats.PersonsResolved,
		"assertions_added", stats.AssertionsAdded,
	)
	return nil
}

// ProcessMetricsMessage rescores one relationship from its stored contact
// history.
func ProcessMetricsMessage(ctx context.Context, scorer *graph.Scorer, msg string) error {
	job := new(MetricsJob)
	if err := json.Unmarshal([]byte(msg), job); err != nil {
		return fmt.Errorf("unmarshal metrics job: %w", err)
	}

	metrics, err := scorer.Recompute(ctx, job.OwnerID, job.PersonID)
	if err != nil {
		return fmt.Errorf("recompute metrics for %s: %w", job.PersonID, err)
	}

	logger.Debug("[Queue] Metrics recomputed",
		"owner_id", job.OwnerID,
		"person_id", job.PersonID,
		"tier", metrics.Tier,
	)
	return nil
}
