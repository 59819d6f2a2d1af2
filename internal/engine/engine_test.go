package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemex-ace/internal/curator"
	"gemex-ace/internal/playbook"
	"gemex-ace/internal/tradelog"
	"gemex-ace/internal/types"
)

var (
	monday = time.Date(2025, 1, 6, 13, 0, 0, 0, time.UTC)
	friday = time.Date(2025, 1, 10, 22, 0, 0, 0, time.UTC)
	clock  = func() time.Time { return time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC) }
)

type fakeSnapshots struct{}

func (fakeSnapshots) Build(ctx context.Context, now time.Time) types.MarketSnapshot {
	return types.MarketSnapshot{Timestamp: now, Symbol: "EURUSD", CurrentPrice: 1.0412}
}

type fakeGenerator struct {
	plan    types.TradingPlan
	entered chan struct{}
	release chan struct{}
}

func (f *fakeGenerator) Generate(ctx context.Context, pb *types.Playbook, snapshot types.MarketSnapshot) types.TradingPlan {
	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	return f.plan
}

type fakeSimulator struct {
	plans []types.TradingPlan
}

func (f *fakeSimulator) Simulate(ctx context.Context, plan types.TradingPlan) types.TradeLog {
	f.plans = append(f.plans, plan)
	return filledLog(plan.Date, 42)
}

type fakeReflector struct {
	refl  types.Reflection
	calls int
	logs  []types.TradeLog
}

func (f *fakeReflector) Reflect(ctx context.Context, logs []types.TradeLog, pb *types.Playbook, summary types.WeeklySummary) types.Reflection {
	f.calls++
	f.logs = logs
	r := f.refl
	r.WeekEnding = summary.WeekEnding
	return r
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func filledLog(date string, pips int) types.TradeLog {
	outcome := types.OutcomeWin
	if pips < 0 {
		outcome = types.OutcomeLoss
	}
	return types.TradeLog{
		PlanID: date,
		Execution: types.Execution{
			Status:     types.StatusFilled,
			EntryPrice: 1.049,
			ExitPrice:  1.049 + float64(pips)/10000,
			PnLPips:    pips,
			PnLUSD:     float64(pips) * 10,
			Outcome:    outcome,
			Method:     "deterministic_oracle",
		},
		Feedback: types.Feedback{
			EntryQuality:            types.Simulated,
			ExitTiming:              types.ExitTakeProfitHit,
			UnexpectedEvents:        []string{},
			PlaybookBulletsFeedback: map[string]string{},
		},
	}
}

type harness struct {
	engine    *Engine
	playbook  *playbook.Store
	sessions  *tradelog.Store
	generator *fakeGenerator
	simulator *fakeSimulator
	reflector *fakeReflector
	notifier  *fakeNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		playbook: playbook.NewStore(filepath.Join(dir, "data", "playbook.json"), filepath.Join(dir, "data", "history")).WithClock(clock),
		sessions: tradelog.New(tradelog.Layout{
			SessionsDir:    filepath.Join(dir, "trading_session"),
			ReflectionsDir: filepath.Join(dir, "weekly_reflections"),
		}),
		generator: &fakeGenerator{plan: types.TradingPlan{
			Date:                "2025-01-06",
			Bias:                types.BiasBullish,
			EntryZone:           []float64{1.0485, 1.0495},
			StopLoss:            types.Float(1.0465),
			TakeProfit1:         types.Float(1.0535),
			Rationale:           "EMA stack bullish",
			Confidence:          types.ConfidenceHigh,
			PlaybookBulletsUsed: []string{"strat-001", "ghost-999"},
		}},
		simulator: &fakeSimulator{},
		reflector: &fakeReflector{refl: types.Reflection{
			Insights: []types.Insight{
				{Observation: "NY session held", SuggestedAction: types.ActionIncrementHelpful, BulletID: "strat-001"},
				{
					Observation:     "Spread widened at the open",
					SuggestedAction: types.ActionAddBullet,
					Section:         string(types.SectionTroubleshooting),
					Content:         "Skip entries in the first 15 minutes of the session",
				},
			},
			Recommendations: []string{"keep waiting for the NY open"},
		}},
		notifier: &fakeNotifier{},
	}
	require.NoError(t, h.playbook.Init())
	require.NoError(t, h.sessions.Init())

	h.engine = New(Deps{
		Symbol:    "EURUSD",
		Playbook:  h.playbook,
		Sessions:  h.sessions,
		Snapshots: fakeSnapshots{},
		Generator: h.generator,
		Simulator: h.simulator,
		Reflector: h.reflector,
		Curator:   curator.New().WithClock(clock),
		Notifier:  h.notifier,
	}).WithClock(clock)
	return h
}

func TestRunDailyPersistsPlanAndStampsUsage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.engine.RunDaily(ctx, monday)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "2025-01-06", res.Date)
	assert.Equal(t, "1.0", res.Version)
	assert.Equal(t, types.StatusFilled, res.TradeLog.Execution.Status)
	require.Len(t, h.simulator.plans, 1)

	plan, err := h.sessions.LoadPlan(monday)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, types.BiasBullish, plan.Bias)

	log, err := h.sessions.LoadTradeLog(monday)
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, 42, log.Execution.PnLPips)

	pb, err := h.playbook.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0", pb.Metadata.Version)
	b, _, ok := playbook.FindBullet(pb, "strat-001")
	require.True(t, ok)
	require.NotNil(t, b.LastUsed)
	assert.True(t, b.LastUsed.Equal(clock()))
	other, _, ok := playbook.FindBullet(pb, "strat-002")
	require.True(t, ok)
	assert.Nil(t, other.LastUsed)

	assert.Len(t, h.notifier.texts, 1)
}

func TestRunDailyIgnoresNotifierFailure(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("telegram down")

	res, err := h.engine.RunDaily(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, types.BiasBullish, res.Plan.Bias)

	log, err := h.sessions.LoadTradeLog(monday)
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestRunWeeklySkipsEmptyWeek(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.engine.RunWeekly(ctx, friday)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "2025-01-10", res.WeekEnding)
	assert.Nil(t, res.Reflection)
	assert.Nil(t, res.Audit)
	assert.Equal(t, 0, h.reflector.calls)
	assert.Empty(t, h.notifier.texts)

	_, err = os.Stat(h.playbook.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist), "skipped week must not touch the playbook")
}

func TestRunWeeklyCuratesPlaybook(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.sessions.SaveTradeLog(ctx, monday, filledLog("2025-01-06", 40))
	require.NoError(t, err)
	_, err = h.sessions.SaveTradeLog(ctx, monday.AddDate(0, 0, 2), filledLog("2025-01-08", -20))
	require.NoError(t, err)

	res, err := h.engine.RunWeekly(ctx, friday)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, h.reflector.calls)
	require.Len(t, h.reflector.logs, 2)
	assert.Equal(t, "2025-01-06", h.reflector.logs[0].PlanID)

	assert.Equal(t, 2, res.Summary.TotalTrades)
	assert.Equal(t, 20, res.Summary.TotalPips)
	require.NotNil(t, res.Audit)
	assert.Equal(t, "1.0", res.Audit.FromVersion)
	assert.Equal(t, "1.1", res.Audit.ToVersion)
	assert.Equal(t, []string{"strat-001"}, res.Audit.Helpful)
	assert.Len(t, res.Audit.Added, 1)

	pb, err := h.playbook.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.1", pb.Metadata.Version)
	assert.Equal(t, 6, pb.Metadata.TotalBullets)
	b, _, ok := playbook.FindBullet(pb, "strat-001")
	require.True(t, ok)
	assert.Equal(t, 1, b.HelpfulCount)

	refl, err := h.sessions.LoadReflection(tradelog.WeekKey(friday))
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10", refl.WeekEnding)
	assert.Len(t, refl.Insights, 2)

	_, err = os.Stat(h.sessions.WeeklyCSVPath(friday))
	assert.NoError(t, err)

	history, err := h.playbook.History()
	require.NoError(t, err)
	assert.Contains(t, history, "1.1")

	assert.Len(t, h.notifier.texts, 1)
}

func TestOverlappingCyclesAreRejected(t *testing.T) {
	h := newHarness(t)
	h.generator.entered = make(chan struct{})
	h.generator.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.engine.RunDaily(context.Background(), monday)
		done <- err
	}()
	<-h.generator.entered

	_, err := h.engine.RunWeekly(context.Background(), friday)
	assert.ErrorIs(t, err, ErrCycleRunning)
	_, err = h.engine.RunDaily(context.Background(), monday)
	assert.ErrorIs(t, err, ErrCycleRunning)

	close(h.generator.release)
	require.NoError(t, <-done)

	_, err = h.engine.RunWeekly(context.Background(), friday)
	assert.NoError(t, err)
}
