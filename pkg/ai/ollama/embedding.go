package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/rolohq/rolo/internal/util"
	"github.com/rolohq/rolo/pkg/ai"
)

const defaultDimensions = 1024

// GenerateEmbedding embeds one input text using the configured embedding
// model on Ollama.
func (c *GraphOllamaClient) GenerateEmbedding(ctx context.Context, input string) ([]float32, error) {
	res, err := c.GenerateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res))
	}
	return res[0], nil
}

// GenerateEmbeddings embeds a batch in one request. Blank inputs embed to
// zero vectors without touching the model.
func (c *GraphOllamaClient) GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	dim := int(util.GetEnvNumeric("AI_EMBED_DIM", defaultDimensions))

	idxMap := make([]int, 0, len(inputs))
	stringsIn := make([]string, 0, len(inputs))
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in) == "" {
			out[i] = make([]float32, dim)
			continue
		}
		idxMap = append(idxMap, i)
		stringsIn = append(stringsIn, in)
	}
	if len(stringsIn) == 0 {
		return out, nil
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: stringsIn,
	}

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(rCtx, req)
	if err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  res.TotalDuration.Milliseconds(),
	})

	if len(res.Embeddings) != len(stringsIn) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(res.Embeddings), len(stringsIn))
	}
	for i, emb := range res.Embeddings {
		vec := make([]float32, 0, dim)
		for _, v := range emb {
			if len(vec) >= dim {
				break
			}
			vec = append(vec, float32(v))
		}
		if len(vec) < dim {
			padded := make([]float32, dim)
			copy(padded, vec)
			vec = padded
		}
		out[idxMap[i]] = vec
	}
	return out, nil
}
