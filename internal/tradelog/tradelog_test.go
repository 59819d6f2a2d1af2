package tradelog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemex-ace/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s := New(Layout{
		SessionsDir:    filepath.Join(dir, "trading_session"),
		ReflectionsDir: filepath.Join(dir, "weekly_reflections"),
	})
	require.NoError(t, s.Init())
	return s
}

func TestPlanRoundTripWithMarkdownMirror(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	plan := types.TradingPlan{
		Date:                "2025-01-06",
		Bias:                types.BiasBullish,
		EntryZone:           []float64{1.05, 1.052},
		StopLoss:            types.Float(1.047),
		TakeProfit1:         types.Float(1.058),
		Confidence:          types.ConfidenceHigh,
		Rationale:           "Higher lows on H1",
		PlaybookBulletsUsed: []string{"strat-001"},
	}
	path, err := s.SavePlan(ctx, day, plan)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Layout().SessionsDir, "2025_01_06", "trading_plan.json"), path)

	loaded, err := s.LoadPlan(day)
	require.NoError(t, err)
	assert.Equal(t, plan, *loaded)

	md, err := os.ReadFile(filepath.Join(s.SessionDir(day), "trading_plan.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "**Bias:** bullish")
	assert.Contains(t, string(md), "1.05000 - 1.05200")
	assert.Contains(t, string(md), "`strat-001`")

	missing, err := s.LoadPlan(day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTradeLogOverwriteAndMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)

	_, err := s.SaveTradeLog(ctx, day, types.NoTradeLog("2025-01-07", "first"))
	require.NoError(t, err)
	_, err = s.SaveTradeLog(ctx, day, types.NoTradeLog("2025-01-07", "second"))
	require.NoError(t, err)

	log, err := s.LoadTradeLog(day)
	require.NoError(t, err)
	assert.Equal(t, "second", log.Execution.Reason)

	none, err := s.LoadTradeLog(day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Nil(t, none)

	sessions, err := s.ListSessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"2025_01_07"}, sessions)
}

func TestCorruptTradeLogIsAnError(t *testing.T) {
	s := newTestStore(t)
	day := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.MkdirAll(s.SessionDir(day), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.SessionDir(day), "trade_log.json"), []byte("{"), 0o644))

	_, err := s.LoadTradeLog(day)
	assert.Error(t, err)
}

func TestWeekKeyAndReflection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	friday := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025_W02", WeekKey(friday))
	assert.Equal(t, "2025_W01", WeekKey(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)))

	refl := types.Reflection{
		WeekEnding:      "2025-01-10",
		Insights:        []types.Insight{{SuggestedAction: types.ActionReviewBullet, BulletID: "strat-002"}},
		Recommendations: []string{"Tighten stops"},
	}
	path, err := s.SaveReflection(ctx, friday, refl)
	require.NoError(t, err)
	assert.Equal(t, "2025_W02_reflection.json", filepath.Base(path))

	loaded, err := s.LoadReflection("2025_W02")
	require.NoError(t, err)
	assert.Equal(t, refl, *loaded)

	keys, err := s.ListReflections()
	require.NoError(t, err)
	assert.Equal(t, []string{"2025_W02"}, keys)

	_, err = s.LoadReflection("../etc")
	assert.Error(t, err)
}

func TestSaveRawResponseAndCompress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	s.WithClock(func() time.Time { return now })

	path, err := s.SaveRawResponse(ctx, "generator", "raw text")
	require.NoError(t, err)
	assert.Equal(t, "generator_20250106_080000.txt", filepath.Base(path))

	old := now.AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, s.CompressOlder(14))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path + ".gz")
	assert.NoError(t, err)
}

func TestParseSessionDay(t *testing.T) {
	want := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2025-01-06", "2025_01_06"} {
		got, err := ParseSessionDay(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
