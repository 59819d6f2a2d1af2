package curator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemex-ace/internal/playbook"
	"gemex-ace/internal/types"
)

var t0 = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

func fixedCurator() *Curator {
	return New().WithClock(func() time.Time { return time.Date(2025, 1, 10, 17, 0, 0, 0, time.UTC) })
}

func reflection(insights ...types.Insight) types.Reflection {
	return types.Reflection{WeekEnding: "2025-01-10", Insights: insights}
}

func TestApplyEmptyReflectionOnlyBumpsVersion(t *testing.T) {
	pb := playbook.Initialize(t0)

	res, err := fixedCurator().Apply(context.Background(), reflection(), pb)
	require.NoError(t, err)

	assert.Equal(t, "1.1", res.Playbook.Metadata.Version)
	assert.Equal(t, pb.Sections, res.Playbook.Sections)
	assert.Equal(t, 5, res.Playbook.Metadata.TotalBullets)
	assert.Empty(t, res.Pruned)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	pb := playbook.Initialize(t0)
	before := playbook.Clone(pb)

	_, err := fixedCurator().Apply(context.Background(), reflection(
		types.Insight{SuggestedAction: types.ActionIncrementHarmful, BulletID: "strat-001"},
		types.Insight{SuggestedAction: types.ActionAddBullet, Section: "useful_code_and_templates", Content: "ATR stop = 1.5 * ATR14"},
	), pb)
	require.NoError(t, err)
	assert.Equal(t, before, pb)
}

func TestAddBullet(t *testing.T) {
	pb := playbook.Initialize(t0)

	res, err := fixedCurator().Apply(context.Background(), reflection(
		types.Insight{SuggestedAction: types.ActionAddBullet, Section: "troubleshooting_and_pitfalls", Content: "Fade the first London spike"},
		types.Insight{SuggestedAction: types.ActionAddBullet, Content: "No section given"},
		types.Insight{SuggestedAction: types.ActionAddBullet, Section: "misc", Content: "Lost"},
		types.Insight{SuggestedAction: types.ActionAddBullet, Section: "strategies_and_hard_rules", Content: "  "},
	), pb)
	require.NoError(t, err)

	out := res.Playbook
	assert.Equal(t, 7, out.Metadata.TotalBullets)
	assert.Equal(t, []string{"trou-20250110170000", "stra-20250110170000"}, res.Added)

	added, section, ok := playbook.FindBullet(out, "trou-20250110170000")
	require.True(t, ok)
	assert.Equal(t, types.SectionTroubleshooting, section)
	assert.Equal(t, "Fade the first London spike", added.Content)
	assert.Nil(t, added.LastUsed)
	assert.Zero(t, added.HelpfulCount)

	strategies := out.Sections[types.SectionStrategies]
	assert.Equal(t, "No section given", strategies[len(strategies)-1].Content)

	require.Len(t, res.Skipped, 2)
	assert.Equal(t, 2, res.Skipped[0].Index)
	assert.Contains(t, res.Skipped[0].Reason, "unknown section")
	assert.Equal(t, "empty content", res.Skipped[1].Reason)
}

func TestIncrementAndMissingBullet(t *testing.T) {
	pb := playbook.Initialize(t0)

	res, err := fixedCurator().Apply(context.Background(), reflection(
		types.Insight{SuggestedAction: types.ActionIncrementHelpful, BulletID: "strat-003"},
		types.Insight{SuggestedAction: types.ActionIncrementHelpful, BulletID: "strat-003"},
		types.Insight{SuggestedAction: types.ActionIncrementHarmful, BulletID: "code-001"},
		types.Insight{SuggestedAction: types.ActionIncrementHarmful, BulletID: "ghost-999"},
	), pb)
	require.NoError(t, err)

	b, _, _ := playbook.FindBullet(res.Playbook, "strat-003")
	assert.Equal(t, 2, b.HelpfulCount)
	b, _, _ = playbook.FindBullet(res.Playbook, "code-001")
	assert.Equal(t, 1, b.HarmfulCount)

	assert.Equal(t, []string{"strat-003", "strat-003"}, res.Helpful)
	assert.Equal(t, []string{"code-001"}, res.Harmful)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 5, res.Playbook.Metadata.TotalBullets)
}

func TestReviewBulletIsSurfacedNotApplied(t *testing.T) {
	pb := playbook.Initialize(t0)

	res, err := fixedCurator().Apply(context.Background(), reflection(
		types.Insight{SuggestedAction: types.ActionReviewBullet, BulletID: "strat-002", Observation: "Rule blocked two winners"},
	), pb)
	require.NoError(t, err)

	require.Len(t, res.Reviews, 1)
	assert.Equal(t, types.ReviewFlag{BulletID: "strat-002", Observation: "Rule blocked two winners", Found: true}, res.Reviews[0])
	assert.Equal(t, pb.Sections, res.Playbook.Sections)

	audit := res.Audit("2025-01-10")
	assert.Equal(t, "1.0", audit.FromVersion)
	assert.Equal(t, "1.1", audit.ToVersion)
	assert.Len(t, audit.Reviews, 1)
	assert.NotNil(t, audit.Added)
}

func TestPruneBoundary(t *testing.T) {
	pb := playbook.Initialize(t0)
	pb.Sections[types.SectionCode][0].HelpfulCount = 5
	pb.Sections[types.SectionCode][0].HarmfulCount = 7
	pb.Sections[types.SectionTroubleshooting][0].HelpfulCount = 5
	pb.Sections[types.SectionTroubleshooting][0].HarmfulCount = 8

	res, err := fixedCurator().Apply(context.Background(), reflection(), pb)
	require.NoError(t, err)

	_, _, kept := playbook.FindBullet(res.Playbook, "code-001")
	assert.True(t, kept, "5 helpful / 7 harmful stays")
	_, _, stillThere := playbook.FindBullet(res.Playbook, "pit-001")
	assert.False(t, stillThere, "5 helpful / 8 harmful is pruned")

	require.Len(t, res.Pruned, 1)
	assert.Equal(t, "pit-001", res.Pruned[0].ID)
	assert.Equal(t, 4, res.Playbook.Metadata.TotalBullets)
	assert.Equal(t, []types.Bullet{}, res.Playbook.Sections[types.SectionTroubleshooting])
}

func TestThreeWeeksOfHarmfulFeedbackPrunesBullet(t *testing.T) {
	c := fixedCurator()
	ctx := context.Background()
	pb := playbook.Initialize(t0)

	first := reflection(
		types.Insight{SuggestedAction: types.ActionAddBullet, Section: "troubleshooting_and_pitfalls", Content: "Thin liquidity on Friday afternoons"},
		types.Insight{SuggestedAction: types.ActionIncrementHarmful, BulletID: "pit-001"},
	)
	harmful := reflection(types.Insight{SuggestedAction: types.ActionIncrementHarmful, BulletID: "pit-001"})

	res, err := c.Apply(ctx, first, pb)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Playbook.Metadata.TotalBullets)

	res, err = c.Apply(ctx, harmful, res.Playbook)
	require.NoError(t, err)
	b, _, ok := playbook.FindBullet(res.Playbook, "pit-001")
	require.True(t, ok)
	assert.Equal(t, 2, b.HarmfulCount)

	res, err = c.Apply(ctx, harmful, res.Playbook)
	require.NoError(t, err)

	_, _, ok = playbook.FindBullet(res.Playbook, "pit-001")
	assert.False(t, ok)
	assert.Equal(t, "1.3", res.Playbook.Metadata.Version)
	assert.Equal(t, 5, res.Playbook.Metadata.TotalBullets)
	assert.NoError(t, playbook.CheckInvariant(res.Playbook))
}

func TestApplyRejectsBadVersion(t *testing.T) {
	pb := playbook.Initialize(t0)
	pb.Metadata.Version = "one"
	_, err := fixedCurator().Apply(context.Background(), reflection(), pb)
	assert.Error(t, err)
}

func TestApplyRejectsDriftedBulletCount(t *testing.T) {
	pb := playbook.Initialize(t0)
	pb.Metadata.TotalBullets = 9

	_, err := fixedCurator().Apply(context.Background(), reflection(
		types.Insight{SuggestedAction: types.ActionAddBullet, Content: "Wait for the 15m close"},
	), pb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total_bullets")
}

func TestAddAndPruneInOneCycleKeepsCount(t *testing.T) {
	pb := playbook.Initialize(t0)
	pb.Sections[types.SectionTroubleshooting][0].HarmfulCount = 3

	res, err := fixedCurator().Apply(context.Background(), reflection(
		types.Insight{SuggestedAction: types.ActionAddBullet, Section: "troubleshooting_and_pitfalls", Content: "Skip the first 15 minutes"},
		types.Insight{SuggestedAction: types.ActionAddBullet, Section: "useful_code_and_templates", Content: "ATR stop = 1.5 * ATR14"},
	), pb)
	require.NoError(t, err)

	require.Len(t, res.Added, 2)
	require.Len(t, res.Pruned, 1)
	assert.Equal(t, "pit-001", res.Pruned[0].ID)
	assert.Equal(t, 6, res.Playbook.Metadata.TotalBullets)
	assert.Equal(t, playbook.CountBullets(res.Playbook), res.Playbook.Metadata.TotalBullets)
}
