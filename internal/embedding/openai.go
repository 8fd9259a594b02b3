package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/theaipetcompany/memory-management-sub000/internal/observability"
	"github.com/theaipetcompany/memory-management-sub000/internal/provider"
)

// OpenAIEmbedder requests embeddings from the provider's image embedding
// endpoint.
type OpenAIEmbedder struct {
	client *provider.Client
	model  string
	dim    int
}

func NewOpenAIEmbedder(client *provider.Client, model string, dim int) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: client,
		model:  model,
		dim:    dim,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, image []byte) ([]float32, error) {
	start := time.Now()

	contentType := mimetype.Detect(image).String()
	vec, err := e.client.EmbedImage(ctx, e.model, contentType, image)
	if err != nil {
		observability.EmbeddingRequests.WithLabelValues("openai", "error").Inc()
		return nil, fmt.Errorf("provider embedding: %w", err)
	}
	if len(vec) != e.dim {
		observability.EmbeddingRequests.WithLabelValues("openai", "error").Inc()
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), e.dim)
	}

	observability.EmbeddingRequests.WithLabelValues("openai", "ok").Inc()
	observability.EmbeddingDuration.WithLabelValues("openai").Observe(time.Since(start).Seconds())
	return vec, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dim
}

// Compile-time assertion.
var _ Embedder = (*OpenAIEmbedder)(nil)
