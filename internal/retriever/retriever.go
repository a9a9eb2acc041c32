// Package retriever turns a query into a ranked set of supporting
// passages.
package retriever

import (
	"context"
	"fmt"

	"github.com/akaclinicalco/jtskb/internal/domain"
	"github.com/akaclinicalco/jtskb/internal/embedding"
	"github.com/akaclinicalco/jtskb/internal/index"
)

// PassageStore is the read-only slice of the knowledge store the retriever
// needs.
type PassageStore interface {
	Search(query []float32, k int) ([]index.Hit, error)
	Lookup(id string) (domain.Passage, error)
}

// Retriever resolves queries against the knowledge store. It holds only a
// read reference; nothing here mutates index state.
type Retriever struct {
	provider embedding.Provider
	store    PassageStore
}

// New creates a Retriever.
func New(provider embedding.Provider, store PassageStore) *Retriever {
	return &Retriever{provider: provider, store: store}
}

// Retrieve embeds the query, searches the index for k candidates, filters
// out hits below minScore, and resolves the survivors to passages. The
// result has length in [0, k]; an empty result is valid and means "no
// sufficiently relevant context". Equal scores are ordered by ascending
// passage id for reproducibility.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, minScore float32) (domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
			"invalid retrieval parameters", fmt.Errorf("k must be positive, got %d", k))
	}

	vecs, err := r.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
			"embedding provider unavailable",
			fmt.Errorf("expected 1 query embedding, got %d", len(vecs)))
	}

	hits, err := r.store.Search(vecs[0], k)
	if err != nil {
		return nil, err
	}

	result := make(domain.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < minScore {
			continue
		}
		p, err := r.store.Lookup(hit.ID)
		if err != nil {
			// An id the index returned but the store cannot resolve
			// means the two are out of sync.
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeCorruptStore,
				"index entry has no passage record", err)
		}
		result = append(result, domain.ScoredPassage{Passage: p, Score: hit.Score})
	}
	return result, nil
}
