package llm

import (
	"context"
	"fmt"
	"time"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/types"
)

type Reflector struct {
	completer interfaces.Completer
	raw       RawSink
	opts      Options
}

var _ interfaces.Reflector = (*Reflector)(nil)

func NewReflector(completer interfaces.Completer, raw RawSink, opts Options) *Reflector {
	return &Reflector{completer: completer, raw: raw, opts: opts}
}

// Reflect reviews a week of logs. On failure it returns a reflection with no
// insights so curation becomes a plain version bump.
func (r *Reflector) Reflect(ctx context.Context, logs []types.TradeLog, pb *types.Playbook, summary types.WeeklySummary) types.Reflection {
	refl, err := r.reflect(ctx, logs, pb, summary)
	if err != nil {
		logger.ErrorWithErr(ctx, "Reflection degraded to empty", err, "week_ending", summary.WeekEnding)
		return types.Reflection{
			WeekEnding: summary.WeekEnding,
			Summary: types.ReflectionSummary{
				TotalTrades: len(logs),
				Error:       err.Error(),
			},
			Insights:          []types.Insight{},
			Recommendations:   []string{"Error generating reflection - review manually"},
			MarketRegimeNotes: "Analysis incomplete",
			Error:             err.Error(),
		}
	}

	if refl.WeekEnding == "" {
		refl.WeekEnding = summary.WeekEnding
	}
	for _, q := range refl.QuarantinedInsights {
		logger.Warn(ctx, "Quarantined malformed insight", "reason", q.Reason)
	}
	logger.Info(ctx, "Reflection received",
		"week_ending", refl.WeekEnding,
		"insights", len(refl.Insights),
		"quarantined", len(refl.QuarantinedInsights),
	)
	return refl
}

func (r *Reflector) reflect(ctx context.Context, logs []types.TradeLog, pb *types.Playbook, summary types.WeeklySummary) (types.Reflection, error) {
	system, user, err := ReflectorPrompt(logs, pb, summary)
	if err != nil {
		return types.Reflection{}, err
	}
	start := time.Now()
	text, err := r.completer.Complete(ctx, interfaces.Prompt{
		System:      system,
		User:        user,
		MaxTokens:   r.opts.MaxTokens,
		Temperature: r.opts.Temperature,
	})
	if err != nil {
		return types.Reflection{}, fmt.Errorf("%s completion: %w", r.completer.Name(), err)
	}
	logger.Debug(ctx, "Reflector completion finished", "duration_ms", time.Since(start).Milliseconds())
	saveRaw(ctx, r.raw, "reflection_raw", text)

	refl, err := DecodeReflection(text)
	if err != nil {
		return types.Reflection{}, fmt.Errorf("%w: %v", errInvalidResponse, err)
	}
	return refl, nil
}
