package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gemex-ace/internal/curator"
	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/notify"
	"gemex-ace/internal/playbook"
	"gemex-ace/internal/tradelog"
	"gemex-ace/internal/types"
	"gemex-ace/internal/weekly"
)

var (
	// ErrCycleRunning is returned when a daily or weekly cycle is already in progress.
	ErrCycleRunning = errors.New("another cycle is already running")
	// ErrNoTradeLogs marks a week with nothing to reflect on.
	ErrNoTradeLogs = errors.New("no trade logs for week")
)

// Deps are the collaborators of one engine.
type Deps struct {
	Symbol    string
	Playbook  *playbook.Store
	Sessions  *tradelog.Store
	Snapshots interfaces.SnapshotBuilder
	Generator interfaces.Generator
	Simulator interfaces.Simulator
	Reflector interfaces.Reflector
	Curator   *curator.Curator
	Notifier  interfaces.Notifier
}

// Engine runs the daily generate/simulate cycle and the weekly
// reflect/curate cycle. Only one cycle runs at a time.
type Engine struct {
	symbol    string
	playbook  *playbook.Store
	sessions  *tradelog.Store
	weeks     *weekly.Aggregator
	snapshots interfaces.SnapshotBuilder
	generator interfaces.Generator
	simulator interfaces.Simulator
	reflector interfaces.Reflector
	curator   *curator.Curator
	notifier  interfaces.Notifier

	mu  sync.Mutex
	now func() time.Time
}

var _ interfaces.Engine = (*Engine)(nil)

func newEngine(d Deps) *Engine {
	if d.Curator == nil {
		d.Curator = curator.New()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Noop{}
	}
	return &Engine{
		symbol:    d.Symbol,
		playbook:  d.Playbook,
		sessions:  d.Sessions,
		weeks:     weekly.NewAggregator(d.Sessions),
		snapshots: d.Snapshots,
		generator: d.Generator,
		simulator: d.Simulator,
		reflector: d.Reflector,
		curator:   d.Curator,
		notifier:  d.Notifier,
		now:       time.Now,
	}
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RunDaily builds today's plan from the playbook and market snapshot,
// simulates it and stamps the cited bullets as used.
func (e *Engine) RunDaily(ctx context.Context, day time.Time) (*types.DailyResult, error) {
	if !e.mu.TryLock() {
		return nil, ErrCycleRunning
	}
	defer e.mu.Unlock()

	runID := uuid.NewString()
	date := types.FormatDate(day)
	logger.Info(ctx, "Daily cycle started", "run_id", runID, "date", date, "symbol", e.symbol)

	pb, err := e.playbook.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load playbook: %w", err)
	}

	snapshot := e.snapshots.Build(ctx, day)
	if snapshot.Error != "" {
		logger.Warn(ctx, "Market snapshot incomplete", "run_id", runID, "error", snapshot.Error)
	}

	plan := e.generator.Generate(ctx, pb, snapshot)
	if _, err := e.sessions.SavePlan(ctx, day, plan); err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}
	e.notify(ctx, runID, notify.FormatPlan(e.symbol, plan))

	log := e.simulator.Simulate(ctx, plan)
	if _, err := e.sessions.SaveTradeLog(ctx, day, log); err != nil {
		return nil, fmt.Errorf("save trade log: %w", err)
	}

	if missing := playbook.MarkUsed(pb, plan.PlaybookBulletsUsed, e.now()); len(missing) > 0 {
		logger.Warn(ctx, "Plan cites unknown playbook bullets", "run_id", runID, "bullet_ids", missing)
	}
	if err := e.playbook.Save(ctx, pb); err != nil {
		return nil, err
	}

	logger.Info(ctx, "Daily cycle finished",
		"run_id", runID,
		"date", date,
		"bias", plan.Bias,
		"status", log.Execution.Status,
		"outcome", log.Execution.Outcome,
		"playbook_version", pb.Metadata.Version,
	)
	return &types.DailyResult{
		RunID:    runID,
		Date:     date,
		Plan:     plan,
		TradeLog: log,
		Version:  pb.Metadata.Version,
	}, nil
}

// RunWeekly reflects on the trade logs of weekEnding's week and curates the
// playbook. A week without logs is skipped and leaves the playbook untouched.
func (e *Engine) RunWeekly(ctx context.Context, weekEnding time.Time) (*types.WeeklyResult, error) {
	if !e.mu.TryLock() {
		return nil, ErrCycleRunning
	}
	defer e.mu.Unlock()

	runID := uuid.NewString()
	key := types.FormatDate(weekEnding)
	logger.Info(ctx, "Weekly cycle started", "run_id", runID, "week_ending", key)

	logs, err := e.loadWeek(ctx, weekEnding)
	if errors.Is(err, ErrNoTradeLogs) {
		logger.Info(ctx, "No trade logs this week, skipping reflection", "run_id", runID, "week_ending", key)
		return &types.WeeklyResult{
			RunID:      runID,
			WeekEnding: key,
			Skipped:    true,
			Summary:    weekly.Summarize(weekEnding, nil),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	summary := weekly.Summarize(weekEnding, logs)

	pb, err := e.playbook.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load playbook: %w", err)
	}

	refl := e.reflector.Reflect(ctx, logs, pb, summary)
	if _, err := e.sessions.SaveReflection(ctx, weekEnding, refl); err != nil {
		return nil, fmt.Errorf("save reflection: %w", err)
	}

	res, err := e.curator.Apply(ctx, refl, pb)
	if err != nil {
		return nil, fmt.Errorf("curate playbook: %w", err)
	}
	if err := e.playbook.Save(ctx, res.Playbook); err != nil {
		return nil, err
	}
	audit := res.Audit(key)
	if _, err := e.sessions.SaveCuration(ctx, weekEnding, audit); err != nil {
		return nil, fmt.Errorf("save curation audit: %w", err)
	}
	if err := weekly.WriteCSV(e.sessions.WeeklyCSVPath(weekEnding), logs); err != nil {
		return nil, fmt.Errorf("write weekly csv: %w", err)
	}

	e.notify(ctx, runID, notify.FormatWeekly(summary, &refl, &audit))

	logger.Info(ctx, "Weekly cycle finished",
		"run_id", runID,
		"week_ending", key,
		"trades", summary.TotalTrades,
		"insights", len(refl.Insights),
		"from_version", audit.FromVersion,
		"to_version", audit.ToVersion,
		"pruned", len(audit.Pruned),
	)
	return &types.WeeklyResult{
		RunID:      runID,
		WeekEnding: key,
		Summary:    summary,
		Reflection: &refl,
		Audit:      &audit,
	}, nil
}

func (e *Engine) loadWeek(ctx context.Context, weekEnding time.Time) ([]types.TradeLog, error) {
	logs, err := e.weeks.LoadWeek(ctx, weekEnding)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, ErrNoTradeLogs
	}
	return logs, nil
}

// notify never fails a cycle.
func (e *Engine) notify(ctx context.Context, runID, text string) {
	if err := e.notifier.Notify(ctx, text); err != nil {
		logger.Warn(ctx, "Notification failed", "run_id", runID, "error", err)
	}
}
