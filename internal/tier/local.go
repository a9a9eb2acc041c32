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

// LocalModel is the on-device fallback: an Ollama-compatible runtime serving
// a small model. Slowest and least capable, but works with no network.
type LocalModel struct {
	name    string
	baseURL string
	model   string
	client  *http.Client
}

// NewLocalModel creates a tier for a local model runtime.
func NewLocalModel(name, baseURL, model string, timeout time.Duration) (*LocalModel, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("tier: local base URL is required")
	}
	if model == "" {
		return nil, fmt.Errorf("tier: local model name is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LocalModel{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the tier name.
func (l *LocalModel) Name() string {
	return l.name
}

// Healthy checks the runtime is up.
func (l *LocalModel) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/version", nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("version check returned %s", resp.Status)
	}
	return nil
}

type localGenerateRequest struct {
	Model   string       `json:"model"`
	Prompt  string       `json:"prompt"`
	Stream  bool         `json:"stream"`
	Options localOptions `json:"options"`
}

type localOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float32 `json:"temperature"`
}

type localGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Generate runs a non-streaming completion against the local runtime.
func (l *LocalModel) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	payload, err := json.Marshal(localGenerateRequest{
		Model:  l.model,
		Prompt: req.Prompt,
		Stream: false,
		Options: localOptions{
			NumPredict:  req.MaxTokens,
			Temperature: req.Temperature,
		},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("local runtime returned %s", resp.Status)
	}

	var out localGenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("malformed response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("local runtime error: %s", out.Error)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", fmt.Errorf("local runtime returned an empty answer")
	}
	return strings.TrimSpace(out.Response), nil
}
