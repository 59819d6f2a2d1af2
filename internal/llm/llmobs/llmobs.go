package llmobs

import (
	"context"
	"time"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/trace"
)

// observableCompleter wraps a Completer with logging and tracing
type observableCompleter struct {
	completer interfaces.Completer
	model     string
}

// Compile-time interface check
var _ interfaces.Completer = (*observableCompleter)(nil)

// Wrap wraps a completer with observability middleware
func Wrap(completer interfaces.Completer, model string) interfaces.Completer {
	return &observableCompleter{
		completer: completer,
		model:     model,
	}
}

func (oc *observableCompleter) Name() string {
	return oc.completer.Name()
}

// Complete runs the completion inside a span and logs its size and outcome
func (oc *observableCompleter) Complete(ctx context.Context, p interfaces.Prompt) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm."+oc.completer.Name()+".Complete")
	defer span.End()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting completion",
		"provider", oc.completer.Name(),
		"model", oc.model,
		"prompt_chars", len(p.System)+len(p.User),
		"max_tokens", p.MaxTokens,
	)

	start := time.Now()
	text, err := oc.completer.Complete(ctx, p)
	if err != nil {
		// Use ErrorWithErrSkip(1) to report the actual caller
		logger.ErrorWithErrSkip(ctx, 1, "Completion failed", err,
			"provider", oc.completer.Name(),
			"model", oc.model,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Completion received",
		"provider", oc.completer.Name(),
		"model", oc.model,
		"response_chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
