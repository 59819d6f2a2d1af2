package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"gemex-ace/internal/logger"
	"gemex-ace/internal/store"
)

// ErrNoBackups is returned by Restore when the bucket holds no archives.
var ErrNoBackups = errors.New("no backups found")

const archivePrefix = "ace-session-"

// ObjectStore is the subset of the S3 client used for backups.
type ObjectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Manager archives the persisted state to an S3-compatible bucket.
type Manager struct {
	client ObjectStore
	bucket string
	prefix string
	root   string
	paths  []string
	now    func() time.Time
}

// NewS3Client builds a client for AWS or an S3-compatible endpoint (R2, MinIO).
// ACE_S3_ACCESS_KEY_ID and ACE_S3_SECRET_ACCESS_KEY override the default
// credential chain.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if id, secret := os.Getenv("ACE_S3_ACCESS_KEY_ID"), os.Getenv("ACE_S3_SECRET_ACCESS_KEY"); id != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(id, secret, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// New returns a manager that backs up the state paths of cfg, relative to root.
func New(client ObjectStore, cfg *store.Config, root string) *Manager {
	return &Manager{
		client: client,
		bucket: cfg.Backup.Bucket,
		prefix: strings.Trim(cfg.Backup.Prefix, "/"),
		root:   root,
		paths:  []string{cfg.Paths.Playbook, cfg.Paths.PlaybookHistory, cfg.Paths.Sessions, cfg.Paths.Reflections},
		now:    time.Now,
	}
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) key(name string) string {
	if m.prefix == "" {
		return name
	}
	return m.prefix + "/" + name
}

// Backup uploads a tar.gz of the state and returns its object key.
func (m *Manager) Backup(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	n, err := WriteArchive(&buf, m.root, m.paths)
	if err != nil {
		return "", err
	}
	key := m.key(archivePrefix + m.now().UTC().Format("20060102T150405Z") + ".tar.gz")
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	logger.Info(ctx, "State backup uploaded", "bucket", m.bucket, "key", key, "files", n, "bytes", buf.Len())
	return key, nil
}

// Latest returns the key of the newest archive.
func (m *Manager) Latest(ctx context.Context) (string, error) {
	var keys []string
	var token *string
	for {
		out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.bucket),
			Prefix:            aws.String(m.key(archivePrefix)),
			ContinuationToken: token,
		})
		if err != nil {
			return "", fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	if len(keys) == 0 {
		return "", ErrNoBackups
	}
	// Timestamps in the key sort lexically.
	sort.Slice(keys, func(i, j int) bool { return path.Base(keys[i]) < path.Base(keys[j]) })
	return keys[len(keys)-1], nil
}

// Restore downloads the newest archive (or key, when given) and extracts it
// under root. It returns the restored key.
func (m *Manager) Restore(ctx context.Context, key string) (string, error) {
	if key == "" {
		latest, err := m.Latest(ctx)
		if err != nil {
			return "", err
		}
		key = latest
	}
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	defer out.Body.Close()

	n, err := ExtractArchive(out.Body, m.root)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", key, err)
	}
	logger.Info(ctx, "State restored from backup", "key", key, "files", n)
	return key, nil
}
