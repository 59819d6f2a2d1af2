package claude

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"gemex-ace/internal/api"
	"gemex-ace/internal/interfaces"
)

const (
	defaultEndpoint  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// Completer calls the Anthropic messages API.
type Completer struct {
	client   *api.Client
	endpoint string
	model    string
	apiKey   string
}

var _ interfaces.Completer = (*Completer)(nil)

// New builds a Claude completer. An empty endpoint uses the public API; set it
// for proxies or gateways.
func New(apiKey, model, endpoint string, timeout time.Duration) *Completer {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Completer{
		client: api.NewClient(
			api.WithTimeout(timeout),
			api.WithHeader("x-api-key", apiKey),
			api.WithHeader("anthropic-version", anthropicVersion),
			api.WithLogging(true),
		),
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
	}
}

func (c *Completer) Name() string { return "claude" }

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *Completer) Complete(ctx context.Context, p interfaces.Prompt) (string, error) {
	if c.apiKey == "" {
		return "", interfaces.ErrNotConfigured
	}

	body := map[string]any{
		"model":       c.model,
		"system":      p.System,
		"messages":    []map[string]string{{"role": "user", "content": p.User}},
		"max_tokens":  p.MaxTokens,
		"temperature": p.Temperature,
	}
	req := api.NewRequest(http.MethodPost, c.endpoint).WithContext(ctx).WithBody(body)
	resp, err := c.client.DoWithRetry(req, api.DefaultRetryConfig())
	if err != nil {
		return "", err
	}

	var out messagesResponse
	if err := resp.ParseJSON(&out); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, part := range out.Content {
		if part.Type == "text" || part.Type == "" {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("claude returned no text content (stop_reason=" + out.StopReason + ")")
	}
	return strings.TrimSpace(b.String()), nil
}
