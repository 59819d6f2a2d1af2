package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/types"
)

// RawSink keeps raw model output for debugging. tradelog.Store implements it.
type RawSink interface {
	SaveRawResponse(ctx context.Context, kind, text string) (string, error)
}

var ErrNotConfigured = interfaces.ErrNotConfigured

type Options struct {
	Symbol      string
	MaxTokens   int
	Temperature float32
}

type Generator struct {
	completer interfaces.Completer
	raw       RawSink
	opts      Options
	now       func() time.Time
}

var _ interfaces.Generator = (*Generator)(nil)

func NewGenerator(completer interfaces.Completer, raw RawSink, opts Options) *Generator {
	if opts.Symbol == "" {
		opts.Symbol = "EURUSD"
	}
	return &Generator{completer: completer, raw: raw, opts: opts, now: time.Now}
}

func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate asks the model for today's plan. Any failure yields a neutral plan
// carrying the error.
func (g *Generator) Generate(ctx context.Context, pb *types.Playbook, snapshot types.MarketSnapshot) types.TradingPlan {
	date := types.FormatDate(snapshot.Timestamp)
	if snapshot.Timestamp.IsZero() {
		date = types.FormatDate(g.now())
	}

	plan, err := g.generate(ctx, pb, snapshot)
	if err != nil {
		rationale := "Plan generation failed - staying flat"
		switch {
		case errors.Is(err, ErrNotConfigured):
			rationale = "LLM provider not configured - staying flat"
		case errors.Is(err, errInvalidResponse):
			rationale = "Model returned an unusable plan - staying flat"
		}
		logger.ErrorWithErr(ctx, "Plan generation degraded to neutral", err, "date", date)
		plan = types.NeutralPlan(date, rationale, err.Error())
	}
	if plan.Date != date {
		if plan.Date != "" {
			logger.Debug(ctx, "Replacing model plan date with cycle date", "model_date", plan.Date, "date", date)
		}
		plan.Date = date
	}

	logger.Plan(ctx, plan.Date, string(plan.Bias), string(plan.Confidence),
		"bullets_used", len(plan.PlaybookBulletsUsed),
		"degraded", plan.Error != "",
	)
	return plan
}

var errInvalidResponse = errors.New("invalid model response")

func (g *Generator) generate(ctx context.Context, pb *types.Playbook, snapshot types.MarketSnapshot) (types.TradingPlan, error) {
	system, user, err := GeneratorPrompt(g.opts.Symbol, pb, snapshot)
	if err != nil {
		return types.TradingPlan{}, err
	}
	text, err := g.completer.Complete(ctx, interfaces.Prompt{
		System:      system,
		User:        user,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	})
	if err != nil {
		return types.TradingPlan{}, fmt.Errorf("%s completion: %w", g.completer.Name(), err)
	}
	saveRaw(ctx, g.raw, "raw_response", text)

	plan, err := DecodePlan(text)
	if err != nil {
		return types.TradingPlan{}, fmt.Errorf("%w: %v", errInvalidResponse, err)
	}
	return plan, nil
}

func saveRaw(ctx context.Context, sink RawSink, kind, text string) {
	if sink == nil {
		return
	}
	if _, err := sink.SaveRawResponse(ctx, kind, text); err != nil {
		logger.Warn(ctx, "Could not save raw model response", "kind", kind, "error", err)
	}
}
