package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/akaclinicalco/jtskb/internal/domain"
)

// LocalConfig configures a provider backed by an Ollama-compatible
// embeddings endpoint running on the device.
type LocalConfig struct {
	BaseURL    string // e.g. http://127.0.0.1:11434
	Model      string // e.g. all-minilm
	Dimensions int
	Timeout    time.Duration
}

// LocalProvider talks to a local model server's /api/embed endpoint. It
// exists so fully-offline deployments can build and query the index without
// any cloud dependency.
type LocalProvider struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
}

// NewLocalProvider creates a provider for a local embeddings endpoint.
func NewLocalProvider(cfg LocalConfig) (*LocalProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding: local base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding: local model name is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding: local dimensions must be positive")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LocalProvider{
		client:     &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Dimensions returns the fixed embedding dimension.
func (p *LocalProvider) Dimensions() int {
	return p.dimensions
}

type localEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type localEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates embeddings for texts, preserving order and count.
func (p *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(localEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
			"embedding provider unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
			"embedding provider unavailable",
			fmt.Errorf("local embedder returned %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
			"embedding provider unavailable", err)
	}

	var out localEmbedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
			"embedding provider unavailable", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
			"embedding provider unavailable",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(out.Embeddings)))
	}
	for _, v := range out.Embeddings {
		if len(v) != p.dimensions {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
				"embedding provider unavailable",
				fmt.Errorf("embedding has %d dimensions, expected %d", len(v), p.dimensions))
		}
	}

	return out.Embeddings, nil
}
