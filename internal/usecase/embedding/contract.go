package embedding

import "context"

// Embedder computes embedding vectors through an external provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
