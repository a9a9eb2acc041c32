package tier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akaclinicalco/jtskb/internal/domain"
)

// RemoteService is the full-featured guideline answering service reachable
// over the network (typically a beefier VM running the same corpus with a
// larger model).
type RemoteService struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewRemoteService creates a tier for a remote generation endpoint.
func NewRemoteService(name, baseURL string, timeout time.Duration) (*RemoteService, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("tier: remote base URL is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteService{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the tier name.
func (s *RemoteService) Name() string {
	return s.name
}

// Healthy probes the service's health endpoint.
func (s *RemoteService) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}

type remoteGenerateRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

type remoteGenerateResponse struct {
	AnswerText string `json:"answer_text"`
	Error      string `json:"error,omitempty"`
}

// Generate sends the prompt to the remote service's query endpoint.
func (s *RemoteService) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	payload, err := json.Marshal(remoteGenerateRequest{
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("remote service returned %s", resp.Status)
	}

	var out remoteGenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("malformed response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("remote service error: %s", out.Error)
	}
	if strings.TrimSpace(out.AnswerText) == "" {
		// Connected but returned nothing usable: a failure for fallback
		// purposes, not something to retry here.
		return "", fmt.Errorf("remote service returned an empty answer")
	}
	return strings.TrimSpace(out.AnswerText), nil
}
