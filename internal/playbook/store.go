package playbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gemex-ace/internal/logger"
	"gemex-ace/internal/store"
	"gemex-ace/internal/types"
)

// Store persists the canonical playbook and its per-version history.
type Store struct {
	path       string
	historyDir string
	now        func() time.Time
	mu         sync.Mutex
}

func NewStore(path, historyDir string) *Store {
	return &Store{
		path:       path,
		historyDir: historyDir,
		now:        time.Now,
	}
}

// WithClock overrides the clock used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Path() string { return s.path }

// Init creates the playbook and history directories.
func (s *Store) Init() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create playbook dir: %w", err)
	}
	if err := os.MkdirAll(s.historyDir, 0o755); err != nil {
		return fmt.Errorf("create playbook history dir: %w", err)
	}
	return nil
}

// Load reads the canonical playbook. A missing file is replaced by the
// seed playbook, which is saved before being returned.
func (s *Store) Load(ctx context.Context) (*types.Playbook, error) {
	var pb types.Playbook
	err := store.ReadJSON(s.path, &pb)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "No playbook found, initializing seed playbook", "path", s.path)
		seeded := Initialize(s.now())
		if err := s.Save(ctx, seeded); err != nil {
			return nil, err
		}
		return seeded, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load playbook: %w", err)
	}

	if err := normalize(ctx, &pb); err != nil {
		return nil, fmt.Errorf("load playbook %s: %w", s.path, err)
	}
	return &pb, nil
}

// normalize rejects unknown sections, fills absent ones and repairs total_bullets.
func normalize(ctx context.Context, pb *types.Playbook) error {
	if pb.Sections == nil {
		pb.Sections = emptySections()
	}
	for name := range pb.Sections {
		if !name.Valid() {
			return fmt.Errorf("unknown section %q", name)
		}
	}
	for _, name := range types.Sections {
		if pb.Sections[name] == nil {
			pb.Sections[name] = []types.Bullet{}
		}
	}
	if pb.Metadata.Version == "" {
		pb.Metadata.Version = InitialVersion
	}
	if _, err := decimal.NewFromString(pb.Metadata.Version); err != nil {
		return fmt.Errorf("invalid version %q", pb.Metadata.Version)
	}
	if got := CountBullets(pb); got != pb.Metadata.TotalBullets {
		logger.Warn(ctx, "Playbook total_bullets out of sync, repairing",
			"recorded", pb.Metadata.TotalBullets, "actual", got)
		pb.Metadata.TotalBullets = got
	}
	return nil
}

// Save stamps last_updated, rewrites the canonical file and archives a copy
// named after the current version.
func (s *Store) Save(ctx context.Context, pb *types.Playbook) error {
	if err := CheckInvariant(pb); err != nil {
		return fmt.Errorf("refusing to save playbook: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pb.Metadata.LastUpdated = s.now().UTC()

	if err := store.WriteJSON(s.path, pb); err != nil {
		return fmt.Errorf("save playbook: %w", err)
	}
	historyPath := filepath.Join(s.historyDir, historyFile(pb.Metadata.Version))
	if err := store.WriteJSON(historyPath, pb); err != nil {
		return fmt.Errorf("save playbook history: %w", err)
	}

	logger.Debug(ctx, "Playbook saved",
		"version", pb.Metadata.Version,
		"total_bullets", pb.Metadata.TotalBullets,
		"history", historyPath,
	)
	return nil
}

func historyFile(version string) string {
	return "playbook_v" + version + ".json"
}

// History lists archived versions in ascending order.
func (s *Store) History() ([]string, error) {
	entries, err := os.ReadDir(s.historyDir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	type ver struct {
		raw string
		d   decimal.Decimal
	}
	var versions []ver
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "playbook_v") || !strings.HasSuffix(name, ".json") {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, "playbook_v"), ".json")
		d, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		versions = append(versions, ver{raw, d})
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].d.LessThan(versions[j].d) })

	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.raw
	}
	return out, nil
}

// LoadVersion reads one archived version.
func (s *Store) LoadVersion(ctx context.Context, version string) (*types.Playbook, error) {
	if _, err := decimal.NewFromString(version); err != nil {
		return nil, fmt.Errorf("invalid version %q", version)
	}
	var pb types.Playbook
	if err := store.ReadJSON(filepath.Join(s.historyDir, historyFile(version)), &pb); err != nil {
		return nil, err
	}
	if err := normalize(ctx, &pb); err != nil {
		return nil, err
	}
	return &pb, nil
}
