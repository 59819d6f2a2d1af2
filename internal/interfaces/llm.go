package interfaces

import (
	"context"
	"errors"

	"gemex-ace/internal/types"
)

// Prompt is one chat-style request to a language model.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// ErrNotConfigured is returned by completers that have no credentials.
var ErrNotConfigured = errors.New("llm provider not configured")

type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	Name() string
}

// Generator turns the playbook and market context into a daily plan.
// Implementations never fail: a degraded plan carries its error instead.
type Generator interface {
	Generate(ctx context.Context, pb *types.Playbook, snapshot types.MarketSnapshot) types.TradingPlan
}

// Reflector reviews a week of trade logs and proposes playbook insights.
type Reflector interface {
	Reflect(ctx context.Context, logs []types.TradeLog, pb *types.Playbook, summary types.WeeklySummary) types.Reflection
}
