package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gemex-ace/internal/api"
	"gemex-ace/internal/interfaces"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Completer calls the Gemini generateContent REST endpoint.
type Completer struct {
	client  *api.Client
	baseURL string
	model   string
	apiKey  string
}

var _ interfaces.Completer = (*Completer)(nil)

func New(apiKey, model, baseURL string, timeout time.Duration) *Completer {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Completer{
		client:  api.NewClient(api.WithTimeout(timeout), api.WithLogging(true)),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
	}
}

func (c *Completer) Name() string { return "gemini" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
	GenerationConfig  struct {
		Temperature      float32 `json:"temperature"`
		MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
		ResponseMimeType string  `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (c *Completer) Complete(ctx context.Context, p interfaces.Prompt) (string, error) {
	if c.apiKey == "" {
		return "", interfaces.ErrNotConfigured
	}

	var body generateRequest
	if p.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: p.System}}}
	}
	body.Contents = []content{{Role: "user", Parts: []part{{Text: p.User}}}}
	body.GenerationConfig.Temperature = p.Temperature
	body.GenerationConfig.MaxOutputTokens = p.MaxTokens
	body.GenerationConfig.ResponseMimeType = "application/json"

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req := api.NewRequest(http.MethodPost, endpoint).WithContext(ctx).WithBody(body)
	resp, err := c.client.DoWithRetry(req, api.DefaultRetryConfig())
	if err != nil {
		return "", err
	}

	var out generateResponse
	if err := resp.ParseJSON(&out); err != nil {
		return "", err
	}
	if out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked the prompt: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	cand := out.Candidates[0]
	var b strings.Builder
	for _, pt := range cand.Content.Parts {
		b.WriteString(pt.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini response blocked (finish_reason=%s)", cand.FinishReason)
	}
	return strings.TrimSpace(b.String()), nil
}
