package backup

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemex-ace/internal/playbook"
	"gemex-ace/internal/store"
	"gemex-ace/internal/tradelog"
)

type memBucket struct {
	objects map[string][]byte
}

func (m *memBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (m *memBucket) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func (m *memBucket) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(m.objects[aws.ToString(in.Key)]))}, nil
}

func testConfig() *store.Config {
	cfg := store.Default()
	cfg.Backup.Bucket = "ace-state"
	cfg.Backup.Prefix = "ace"
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestArchiveRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "data", "playbook.json"), `{"v":1}`)
	writeFile(t, filepath.Join(src, "trading_session", "2025_01_06", "trading_plan.json"), `{}`)

	var buf bytes.Buffer
	n, err := WriteArchive(&buf, src, []string{"data/playbook.json", "trading_session", "weekly_reflections"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst := t.TempDir()
	n, err = ExtractArchive(&buf, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	b, err := os.ReadFile(filepath.Join(dst, "data", "playbook.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(b))
	assert.FileExists(t, filepath.Join(dst, "trading_session", "2025_01_06", "trading_plan.json"))
}

func TestBackupAndRestoreLatest(t *testing.T) {
	cfg := testConfig()
	src := t.TempDir()
	writeFile(t, filepath.Join(src, cfg.Paths.Playbook), `{"old":true}`)

	bucket := &memBucket{}
	m := New(bucket, cfg, src).WithClock(func() time.Time { return time.Date(2025, 1, 10, 17, 0, 0, 0, time.UTC) })
	first, err := m.Backup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ace/ace-session-20250110T170000Z.tar.gz", first)

	writeFile(t, filepath.Join(src, cfg.Paths.Playbook), `{"new":true}`)
	m.WithClock(func() time.Time { return time.Date(2025, 1, 17, 17, 0, 0, 0, time.UTC) })
	_, err = m.Backup(context.Background())
	require.NoError(t, err)

	dst := t.TempDir()
	key, err := New(bucket, cfg, dst).Restore(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "ace/ace-session-20250117T170000Z.tar.gz", key)

	b, err := os.ReadFile(filepath.Join(dst, cfg.Paths.Playbook))
	require.NoError(t, err)
	assert.Equal(t, `{"new":true}`, string(b))
}

func TestRestoreWithoutBackups(t *testing.T) {
	_, err := New(&memBucket{}, testConfig(), t.TempDir()).Restore(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoBackups)
}

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	pbStore := playbook.NewStore(filepath.Join(dir, "playbook.json"), filepath.Join(dir, "history"))
	logs := tradelog.New(tradelog.Layout{SessionsDir: filepath.Join(dir, "sessions"), ReflectionsDir: filepath.Join(dir, "reflections")})
	for d := 1; d <= 12; d++ {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "sessions", time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC).Format("2006_01_02")), 0o755))
	}

	sum, err := WriteSummary(context.Background(), filepath.Join(dir, "artifact_summary.json"), pbStore, logs, time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "1.0", sum.PlaybookVersion)
	assert.Equal(t, 5, sum.TotalBullets)
	assert.Equal(t, 12, sum.SessionCount)
	require.Len(t, sum.RecentSessions, 10)
	assert.Equal(t, "2025_01_12", sum.RecentSessions[9])
	assert.Empty(t, sum.RecentReflections)
	assert.FileExists(t, filepath.Join(dir, "artifact_summary.json"))
}
