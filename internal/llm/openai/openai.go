package openai

import (
	"context"
	"errors"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"gemex-ace/internal/interfaces"
)

// Completer wraps the go-openai chat completion client.
type Completer struct {
	client *goopenai.Client
	model  string
}

var _ interfaces.Completer = (*Completer)(nil)

// New returns a completer; an empty baseURL talks to api.openai.com.
func New(apiKey, model, baseURL string) *Completer {
	if apiKey == "" {
		return &Completer{model: model}
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Completer{client: goopenai.NewClientWithConfig(cfg), model: model}
}

func (c *Completer) Name() string { return "openai" }

func (c *Completer) Complete(ctx context.Context, p interfaces.Prompt) (string, error) {
	if c.client == nil {
		return "", interfaces.ErrNotConfigured
	}

	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: p.System},
			{Role: goopenai.ChatMessageRoleUser, Content: p.User},
		},
		MaxTokens:      p.MaxTokens,
		Temperature:    p.Temperature,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject},
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
