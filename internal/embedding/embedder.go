// Package embedding produces face embedding vectors from images, either
// remotely through the provider API or locally through an ONNX model.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/theaipetcompany/memory-management-sub000/internal/config"
	"github.com/theaipetcompany/memory-management-sub000/internal/provider"
)

// Embedder turns an image into a face embedding vector. A failed or
// timed-out producer returns an error; there is no fallback vector.
type Embedder interface {
	Embed(ctx context.Context, image []byte) ([]float32, error)
	Dimension() int
}

// New builds the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig, client *provider.Client) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(client, cfg.Model, cfg.Dim), nil
	case "local":
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dim)
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}

// l2Normalize scales v to unit length in place. Zero vectors stay zero.
func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}
