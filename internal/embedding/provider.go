// Package embedding maps text to fixed-dimension vectors.
package embedding

import "context"

// Provider generates embeddings for batches of text. Implementations must
// preserve input order and count, and return vectors of a fixed dimension
// determined at initialization. Batching against the underlying model is an
// internal concern: callers must not assume any batch-size-dependent
// behavior.
//
// A provider that cannot reach its model fails with
// domain.ErrEmbeddingUnavailable, which is fatal for index builds.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
