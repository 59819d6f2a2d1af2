package engineobs

import (
	"context"
	"time"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/trace"
	"gemex-ace/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) RunDaily(ctx context.Context, day time.Time) (*types.DailyResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.RunDaily")
	defer span.End()

	start := time.Now()
	date := types.FormatDate(day)

	result, err := oe.engine.RunDaily(ctx, day)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Daily cycle failed", err,
			"date", date,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Daily cycle completed",
		"run_id", result.RunID,
		"date", date,
		"bias", result.Plan.Bias,
		"confidence", result.Plan.Confidence,
		"status", result.TradeLog.Execution.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (oe *observableEngine) RunWeekly(ctx context.Context, weekEnding time.Time) (*types.WeeklyResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.RunWeekly")
	defer span.End()

	start := time.Now()
	key := types.FormatDate(weekEnding)

	result, err := oe.engine.RunWeekly(ctx, weekEnding)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Weekly cycle failed", err,
			"week_ending", key,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	fields := []any{
		"run_id", result.RunID,
		"week_ending", key,
		"skipped", result.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if result.Audit != nil {
		fields = append(fields, "playbook_version", result.Audit.ToVersion)
	}
	logger.InfoSkip(ctx, 1, "Weekly cycle completed", fields...)
	return result, nil
}
