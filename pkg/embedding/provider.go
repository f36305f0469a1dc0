package embedding

import "context"

// Provider generates text embeddings. Implementations must be deterministic
// for identical input and return vectors of a fixed dimensionality.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
