package tradelog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gemex-ace/internal/logger"
	"gemex-ace/internal/store"
	"gemex-ace/internal/types"
)

const (
	reflectionSuffix = "_reflection.json"
	curationSuffix   = "_curation.json"
	tradesCSVSuffix  = "_trades.csv"
)

// WeekKey names a week by the ISO year and week number of its last day, e.g. 2025_W02.
func WeekKey(weekEnding time.Time) string {
	year, week := weekEnding.ISOWeek()
	return fmt.Sprintf("%d_W%02d", year, week)
}

func (s *Store) weekPath(weekEnding time.Time, suffix string) string {
	return filepath.Join(s.layout.ReflectionsDir, WeekKey(weekEnding)+suffix)
}

func (s *Store) SaveReflection(ctx context.Context, weekEnding time.Time, refl types.Reflection) (string, error) {
	path := s.weekPath(weekEnding, reflectionSuffix)
	if err := store.WriteJSON(path, refl); err != nil {
		return "", fmt.Errorf("save reflection: %w", err)
	}
	logger.Debug(ctx, "Reflection saved", "path", path)
	return path, nil
}

// LoadReflection reads a reflection by week key. Missing returns os.ErrNotExist.
func (s *Store) LoadReflection(key string) (*types.Reflection, error) {
	if strings.ContainsAny(key, `/\`) {
		return nil, fmt.Errorf("invalid week key %q", key)
	}
	var refl types.Reflection
	if err := store.ReadJSON(filepath.Join(s.layout.ReflectionsDir, key+reflectionSuffix), &refl); err != nil {
		return nil, err
	}
	return &refl, nil
}

func (s *Store) SaveCuration(ctx context.Context, weekEnding time.Time, audit types.CurationAudit) (string, error) {
	path := s.weekPath(weekEnding, curationSuffix)
	if err := store.WriteJSON(path, audit); err != nil {
		return "", fmt.Errorf("save curation audit: %w", err)
	}
	logger.Debug(ctx, "Curation audit saved", "path", path)
	return path, nil
}

func (s *Store) WeeklyCSVPath(weekEnding time.Time) string {
	return s.weekPath(weekEnding, tradesCSVSuffix)
}

// ListReflections returns the week keys that have a saved reflection, ascending.
func (s *Store) ListReflections() ([]string, error) {
	entries, err := os.ReadDir(s.layout.ReflectionsDir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), reflectionSuffix) {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), reflectionSuffix))
	}
	sort.Strings(out)
	return out, nil
}
