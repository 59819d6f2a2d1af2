package llm

import (
	"context"
	"os"
	"time"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/llm/claude"
	"gemex-ace/internal/llm/gemini"
	"gemex-ace/internal/llm/llmobs"
	"gemex-ace/internal/llm/noop"
	"gemex-ace/internal/llm/openai"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/store"
)

// NewCompleter returns the observable completer for the configured provider and
// model. Missing credentials are not an error: the completer reports
// ErrNotConfigured on use and the cycles degrade.
func NewCompleter(ctx context.Context, cfg *store.Config, model string) interfaces.Completer {
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second

	var c interfaces.Completer
	switch cfg.LLM.Provider {
	case "GEMINI":
		c = gemini.New(os.Getenv("GEMINI_API_KEY"), model, cfg.LLM.Endpoint, timeout)
	case "OPENAI":
		c = openai.New(os.Getenv("OPENAI_API_KEY"), model, cfg.LLM.Endpoint)
	case "CLAUDE":
		endpoint := cfg.LLM.Endpoint
		if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
			endpoint = ep
		}
		c = claude.New(os.Getenv("CLAUDE_API_KEY"), model, endpoint, timeout)
	default:
		c = noop.New()
	}

	logger.Info(ctx, "LLM completer configured", "provider", c.Name(), "model", model)
	return llmobs.Wrap(c, model)
}

// NewPair builds the generator and reflector from config, sharing the raw sink.
func NewPair(ctx context.Context, cfg *store.Config, raw RawSink) (*Generator, *Reflector) {
	gen := NewGenerator(NewCompleter(ctx, cfg, cfg.LLM.GeneratorModel), raw, Options{
		Symbol:      cfg.Symbol,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	refl := NewReflector(NewCompleter(ctx, cfg, cfg.LLM.ReflectorModel), raw, Options{
		Symbol:      cfg.Symbol,
		MaxTokens:   cfg.LLM.ReflectorMaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	return gen, refl
}
