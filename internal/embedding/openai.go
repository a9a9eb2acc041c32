package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/akaclinicalco/jtskb/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultOpenAIModel is the embedding model used when none is configured.
	DefaultOpenAIModel = openai.SmallEmbedding3
	// DefaultOpenAIDimensions is the dimension of text-embedding-3-small vectors.
	DefaultOpenAIDimensions = 1536

	// defaultBatchSize bounds how many inputs go into one API request.
	defaultBatchSize = 64
)

// ErrNoAPIKey is returned when no OpenAI API key is configured.
var ErrNoAPIKey = errors.New("OpenAI API key not set")

// EmbeddingAPI is the slice of the OpenAI client this package needs.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIConfig configures an OpenAI-backed provider.
type OpenAIConfig struct {
	APIKey     string
	Model      openai.EmbeddingModel
	Dimensions int
	BatchSize  int
}

// OpenAIProvider implements Provider on top of the OpenAI embeddings API.
type OpenAIProvider struct {
	api        EmbeddingAPI
	model      openai.EmbeddingModel
	dimensions int
	batchSize  int
}

// NewOpenAIProvider creates a provider with explicit configuration.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	p := newOpenAIProvider(openai.NewClient(cfg.APIKey), cfg)
	return p, nil
}

func newOpenAIProvider(api EmbeddingAPI, cfg OpenAIConfig) *OpenAIProvider {
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultOpenAIDimensions
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &OpenAIProvider{
		api:        api,
		model:      model,
		dimensions: dimensions,
		batchSize:  batchSize,
	}
}

// Dimensions returns the fixed embedding dimension.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// Embed generates embeddings for texts, preserving order and count.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := p.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: p.model,
		})
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
				"embedding provider unavailable", err)
		}
		if len(resp.Data) != end-start {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
				"embedding provider unavailable",
				fmt.Errorf("expected %d embeddings, got %d", end-start, len(resp.Data)))
		}

		for _, d := range resp.Data {
			if len(d.Embedding) != p.dimensions {
				return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
					"embedding provider unavailable",
					fmt.Errorf("embedding has %d dimensions, expected %d", len(d.Embedding), p.dimensions))
			}
			vectors = append(vectors, d.Embedding)
		}
	}

	return vectors, nil
}
