package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/rolohq/rolo/internal/util"
	"github.com/rolohq/rolo/pkg/ai"
	"github.com/rolohq/rolo/pkg/common"
)

// Notes longer than this are clipped before extraction.
const maxExtractTokens = 24000

// ExtractEvidence runs structured extraction over one piece of evidence
// text and returns the candidate people, facts, and edges it mentions.
func (c *GraphOpenAIClient) ExtractEvidence(ctx context.Context, evidenceID, text string, observedAt time.Time) (common.ExtractionResult, error) {
	clipped, err := ai.TruncateTokens(text, maxExtractTokens)
	if err != nil {
		clipped = text
	}

	var doc ai.ExtractionDocument
	err = c.GenerateCompletionWithFormat(
		ctx,
		"evidence_extraction",
		"People, facts, and relationships mentioned in a personal note",
		clipped,
		&doc,
		ai.WithSystemPrompts(ai.ExtractionSystemPrompt),
		ai.WithTemperature(util.GetEnvNumeric("AI_EXTRACT_TEMPERATURE", 0.1)),
	)
	if err != nil {
		return common.ExtractionResult{}, fmt.Errorf("extract evidence %s: %w", evidenceID, err)
	}
	return doc.ToResult(evidenceID, observedAt), nil
}
