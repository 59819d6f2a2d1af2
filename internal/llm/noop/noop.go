package noop

import (
	"context"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/logger"
)

// Completer is used when no provider is configured. Every call fails with
// interfaces.ErrNotConfigured so callers fall back to their neutral output.
type Completer struct{}

var _ interfaces.Completer = (*Completer)(nil)

func New() *Completer {
	return &Completer{}
}

func (c *Completer) Name() string { return "none" }

func (c *Completer) Complete(ctx context.Context, p interfaces.Prompt) (string, error) {
	logger.Debug(ctx, "Noop completer called", "prompt_chars", len(p.User))
	return "", interfaces.ErrNotConfigured
}
