package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/rolohq/rolo/internal/util"
	"github.com/rolohq/rolo/pkg/ai"
	"github.com/rolohq/rolo/pkg/common"
)

const maxExtractTokens = 24000

// GenerateCompletionWithFormat sends prompt to the extraction model with a
// JSON schema reflected from out, and parses the response into out.
func (c *GraphOllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if out == nil {
		return errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	schemaObj := ai.GenerateSchema(out)
	formatBytes, err := json.Marshal(schemaObj)
	if err != nil {
		return err
	}
	var format json.RawMessage = formatBytes

	options := ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Format:   format,
		Options:  map[string]any{"temperature": options.Temperature},
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return err
	}
	defer c.reqLock.Release(1)

	start := time.Now()
	var final api.ChatResponse
	if err := c.Client.Chat(rCtx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   time.Since(start).Milliseconds(),
	})

	if final.Message.Content == "" {
		return fmt.Errorf("empty response from model")
	}
	return ai.UnmarshalFlexible(final.Message.Content, out)
}

// ExtractEvidence runs structured extraction over one piece of evidence
// text and returns the candidate people, facts, and edges it mentions.
func (c *GraphOllamaClient) ExtractEvidence(ctx context.Context, evidenceID, text string, observedAt time.Time) (common.ExtractionResult, error) {
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
