package tier

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/akaclinicalco/jtskb/internal/domain"
)

// DefaultCloudModel is used when no chat model is configured.
const DefaultCloudModel = openai.GPT4oMini

// ChatAPI is the slice of the OpenAI client the cloud tier needs.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// CloudModel answers through a hosted chat-completion API.
type CloudModel struct {
	name   string
	client ChatAPI
	model  string
}

// NewCloudModel creates a tier backed by the OpenAI chat API.
func NewCloudModel(name, apiKey, model string) (*CloudModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tier: cloud API key is required")
	}
	return newCloudModel(name, openai.NewClient(apiKey), model), nil
}

func newCloudModel(name string, client ChatAPI, model string) *CloudModel {
	if model == "" {
		model = DefaultCloudModel
	}
	return &CloudModel{name: name, client: client, model: model}
}

// Name returns the tier name.
func (c *CloudModel) Name() string {
	return c.name
}

// Healthy verifies the API is reachable with the configured credentials.
func (c *CloudModel) Healthy(ctx context.Context) error {
	_, err := c.client.ListModels(ctx)
	return err
}

// Generate runs a single-turn chat completion over the assembled prompt.
func (c *CloudModel) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("completion returned an empty answer")
	}
	return answer, nil
}
