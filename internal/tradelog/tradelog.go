package tradelog

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gemex-ace/internal/logger"
	"gemex-ace/internal/store"
	"gemex-ace/internal/types"
)

const (
	sessionDirLayout = "2006_01_02"
	debugDir         = "debug"
	planFile         = "trading_plan.json"
	planMarkdownFile = "trading_plan.md"
	tradeLogFile     = "trade_log.json"
)

// Layout names the directories session and weekly artifacts live under.
type Layout struct {
	SessionsDir    string
	ReflectionsDir string
}

// Store reads and writes per-session and per-week artifacts.
type Store struct {
	layout Layout
	now    func() time.Time
	mu     sync.Mutex
}

func New(layout Layout) *Store {
	return &Store{layout: layout, now: time.Now}
}

func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Layout() Layout { return s.layout }

// Init creates the session, debug and reflection directories.
func (s *Store) Init() error {
	for _, dir := range []string{
		s.layout.SessionsDir,
		filepath.Join(s.layout.SessionsDir, debugDir),
		s.layout.ReflectionsDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func (s *Store) SessionDir(day time.Time) string {
	return filepath.Join(s.layout.SessionsDir, day.Format(sessionDirLayout))
}

// SavePlan writes the plan JSON and its markdown mirror for the given day.
func (s *Store) SavePlan(ctx context.Context, day time.Time, plan types.TradingPlan) (string, error) {
	dir := s.SessionDir(day)
	path := filepath.Join(dir, planFile)
	if err := store.WriteJSON(path, plan); err != nil {
		return "", fmt.Errorf("save trading plan: %w", err)
	}
	if err := store.WriteFileAtomic(filepath.Join(dir, planMarkdownFile), []byte(RenderPlanMarkdown(plan))); err != nil {
		return "", fmt.Errorf("save trading plan markdown: %w", err)
	}
	logger.Debug(ctx, "Trading plan saved", "path", path)
	return path, nil
}

// LoadPlan returns nil without error when no plan exists for the day.
func (s *Store) LoadPlan(day time.Time) (*types.TradingPlan, error) {
	var plan types.TradingPlan
	if err := readOptional(filepath.Join(s.SessionDir(day), planFile), &plan); err != nil {
		if errors.Is(err, errMissing) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// SaveTradeLog writes the day's trade log, replacing any earlier run.
func (s *Store) SaveTradeLog(ctx context.Context, day time.Time, log types.TradeLog) (string, error) {
	path := filepath.Join(s.SessionDir(day), tradeLogFile)
	if err := store.WriteJSON(path, log); err != nil {
		return "", fmt.Errorf("save trade log: %w", err)
	}
	logger.Debug(ctx, "Trade log saved", "path", path)
	return path, nil
}

// LoadTradeLog returns nil without error when no log exists for the day.
func (s *Store) LoadTradeLog(day time.Time) (*types.TradeLog, error) {
	var log types.TradeLog
	if err := readOptional(filepath.Join(s.SessionDir(day), tradeLogFile), &log); err != nil {
		if errors.Is(err, errMissing) {
			return nil, nil
		}
		return nil, err
	}
	if log.Feedback.UnexpectedEvents == nil {
		log.Feedback.UnexpectedEvents = []string{}
	}
	return &log, nil
}

var errMissing = errors.New("missing")

func readOptional(path string, v any) error {
	err := store.ReadJSON(path, v)
	if errors.Is(err, os.ErrNotExist) {
		return errMissing
	}
	return err
}

// SaveRawResponse keeps a model's raw output for later debugging.
func (s *Store) SaveRawResponse(ctx context.Context, kind, text string) (string, error) {
	name := fmt.Sprintf("%s_%s.txt", kind, s.now().UTC().Format("20060102_150405"))
	path := filepath.Join(s.layout.SessionsDir, debugDir, name)
	if err := store.WriteFileAtomic(path, []byte(text)); err != nil {
		return "", fmt.Errorf("save raw %s response: %w", kind, err)
	}
	logger.Debug(ctx, "Raw LLM response saved", "kind", kind, "path", path)
	return path, nil
}

// ListSessions returns session day names (YYYY_MM_DD) in ascending order.
func (s *Store) ListSessions() ([]string, error) {
	entries, err := os.ReadDir(s.layout.SessionsDir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(sessionDirLayout, e.Name()); err != nil {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// ParseSessionDay accepts either 2006-01-02 or 2006_01_02.
func ParseSessionDay(s string) (time.Time, error) {
	return time.Parse(sessionDirLayout, strings.ReplaceAll(s, "-", "_"))
}

// CompressOlder gzips debug responses older than retentionDays.
func (s *Store) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	root := filepath.Join(s.layout.SessionsDir, debugDir)
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		return gzipFile(p)
	})
}

func gzipFile(p string) error {
	gz := p + ".gz"
	if _, err := os.Stat(gz); err == nil {
		return os.Remove(p)
	}

	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(gz)
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(p)
}
