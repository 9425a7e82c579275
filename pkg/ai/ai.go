// Package ai defines the model-facing interfaces the graph consumes:
// embeddings for assertion objects and search queries, and structured
// extraction of people, facts, and relationships from raw evidence text.
// The openai and ollama subpackages implement both against their APIs.
package ai

import (
	"context"
	"time"

	"github.com/rolohq/rolo/pkg/common"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, input string) ([]float32, error)
	// GenerateEmbeddings embeds a batch in one request. The result is
	// positionally aligned with the input; blank inputs embed to zero
	// vectors without a model call.
	GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// Extractor turns one piece of raw evidence into candidate people, facts,
// and relationships for the ingestion pipeline.
type Extractor interface {
	ExtractEvidence(ctx context.Context, evidenceID, text string, observedAt time.Time) (common.ExtractionResult, error)
}

// Client is the full AI surface an adapter provides.
type Client interface {
	Embedder
	Extractor

	GetMetrics() ModelMetrics
	ResetMetrics()
}

// ModelMetrics accumulates usage across an adapter's lifetime.
type ModelMetrics struct {
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	TotalTokens  int   `json:"total_tokens"`
	DurationMs   int64 `json:"duration_ms"`
	Requests     int   `json:"requests"`
}

// Add folds one request's usage into the running totals.
func (m *ModelMetrics) Add(other ModelMetrics) {
	m.InputTokens += other.InputTokens
	m.OutputTokens += other.OutputTokens
	m.TotalTokens += other.TotalTokens
	m.DurationMs += other.DurationMs
	m.Requests++
}

// GenerateOptions holds per-request configuration for model calls.
type GenerateOptions struct {
	Model         string
	SystemPrompts []string
	Temperature   float64
}

// GenerateOption is a functional option for configuring model calls.
type GenerateOption func(*GenerateOptions)

// WithSystemPrompts sets the system prompts prepended to the request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}
