package playbook

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemex-ace/internal/types"
)

var t0 = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

func TestInitialize(t *testing.T) {
	pb := Initialize(t0)

	assert.Equal(t, "1.0", pb.Metadata.Version)
	assert.Equal(t, 5, pb.Metadata.TotalBullets)
	require.NoError(t, CheckInvariant(pb))

	assert.Len(t, pb.Sections[types.SectionStrategies], 3)
	assert.Len(t, pb.Sections[types.SectionCode], 1)
	assert.Len(t, pb.Sections[types.SectionTroubleshooting], 1)

	b, section, ok := FindBullet(pb, "pit-001")
	require.True(t, ok)
	assert.Equal(t, types.SectionTroubleshooting, section)
	assert.Equal(t, "Low liquidity after 3:00 PM EST - avoid new entries", b.Content)
	assert.Nil(t, b.LastUsed)
	assert.Zero(t, b.HelpfulCount)
}

func TestNextVersion(t *testing.T) {
	cases := map[string]string{"1.0": "1.1", "1.9": "2.0", "2.3": "2.4", "10.9": "11.0"}
	for in, want := range cases {
		got, err := NextVersion(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := NextVersion("v1")
	assert.Error(t, err)
}

func TestNewBulletIDIsUnique(t *testing.T) {
	pb := Initialize(t0)
	now := time.Date(2025, 1, 10, 17, 30, 5, 0, time.UTC)

	id := NewBulletID(pb, types.SectionTroubleshooting, now)
	assert.Equal(t, "trou-20250110173005", id)

	pb.Sections[types.SectionTroubleshooting] = append(pb.Sections[types.SectionTroubleshooting], types.Bullet{ID: id})
	assert.Equal(t, "trou-20250110173005-2", NewBulletID(pb, types.SectionTroubleshooting, now))
}

func TestMarkUsed(t *testing.T) {
	pb := Initialize(t0)
	missing := MarkUsed(pb, []string{"strat-001", "nope-1"}, t0.Add(time.Hour))

	assert.Equal(t, []string{"nope-1"}, missing)
	b, _, _ := FindBullet(pb, "strat-001")
	require.NotNil(t, b.LastUsed)
	assert.Equal(t, t0.Add(time.Hour), *b.LastUsed)
}

func TestCloneDoesNotAlias(t *testing.T) {
	pb := Initialize(t0)
	MarkUsed(pb, []string{"strat-001"}, t0)

	cp := Clone(pb)
	cp.Sections[types.SectionStrategies][0].HelpfulCount = 9
	*cp.Sections[types.SectionStrategies][0].LastUsed = t0.Add(time.Hour)

	assert.Zero(t, pb.Sections[types.SectionStrategies][0].HelpfulCount)
	assert.Equal(t, t0, *pb.Sections[types.SectionStrategies][0].LastUsed)
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "data", "playbook.json"), filepath.Join(dir, "data", "playbook_history")).
		WithClock(func() time.Time { return t0 })
	require.NoError(t, s.Init())
	return s, dir
}

func TestLoadInitializesMissingPlaybook(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	pb, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, pb.Metadata.TotalBullets)

	_, err = os.Stat(s.Path())
	require.NoError(t, err)

	versions, err := s.History()
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0"}, versions)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	pb := Initialize(t0)
	MarkUsed(pb, []string{"code-001"}, t0)
	require.NoError(t, s.Save(ctx, pb))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, pb, loaded)

	next, err := NextVersion(loaded.Metadata.Version)
	require.NoError(t, err)
	loaded.Metadata.Version = next
	require.NoError(t, s.Save(ctx, loaded))

	versions, err := s.History()
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0", "1.1"}, versions)

	old, err := s.LoadVersion(ctx, "1.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0", old.Metadata.Version)
}

func TestLoadRepairsTotalAndRejectsUnknownSection(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	pb := Initialize(t0)
	pb.Metadata.TotalBullets = 42
	b, err := json.Marshal(pb)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), b, 0o644))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Metadata.TotalBullets)

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"metadata":{"version":"1.0"},"sections":{"misc":[]}}`), 0o644))
	_, err = s.Load(ctx)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{not json`), 0o644))
	_, err = s.Load(ctx)
	assert.Error(t, err)
}

func TestSaveRefusesBrokenInvariant(t *testing.T) {
	s, _ := newTestStore(t)
	pb := Initialize(t0)
	pb.Metadata.TotalBullets = 4
	assert.Error(t, s.Save(context.Background(), pb))
}
