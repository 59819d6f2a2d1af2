package backup

import (
	"context"
	"time"

	"gemex-ace/internal/store"
	"gemex-ace/internal/types"
)

type PlaybookLoader interface {
	Load(ctx context.Context) (*types.Playbook, error)
}

type HistoryLister interface {
	ListSessions() ([]string, error)
	ListReflections() ([]string, error)
}

// ArtifactSummary is a small index of the persisted state, written next to
// each backup for quick inspection.
type ArtifactSummary struct {
	GeneratedAt       time.Time `json:"generated_at"`
	PlaybookVersion   string    `json:"playbook_version"`
	TotalBullets      int       `json:"total_bullets"`
	SessionCount      int       `json:"session_count"`
	RecentSessions    []string  `json:"recent_sessions"`
	ReflectionCount   int       `json:"reflection_count"`
	RecentReflections []string  `json:"recent_reflections"`
}

// Summarize builds the summary with the last 10 sessions and last 5 reflections.
func Summarize(ctx context.Context, pb PlaybookLoader, history HistoryLister, now time.Time) (ArtifactSummary, error) {
	book, err := pb.Load(ctx)
	if err != nil {
		return ArtifactSummary{}, err
	}
	sessions, err := history.ListSessions()
	if err != nil {
		return ArtifactSummary{}, err
	}
	reflections, err := history.ListReflections()
	if err != nil {
		return ArtifactSummary{}, err
	}
	return ArtifactSummary{
		GeneratedAt:       now.UTC(),
		PlaybookVersion:   book.Metadata.Version,
		TotalBullets:      book.Metadata.TotalBullets,
		SessionCount:      len(sessions),
		RecentSessions:    tail(sessions, 10),
		ReflectionCount:   len(reflections),
		RecentReflections: tail(reflections, 5),
	}, nil
}

// WriteSummary saves the summary as JSON at path.
func WriteSummary(ctx context.Context, path string, pb PlaybookLoader, history HistoryLister, now time.Time) (ArtifactSummary, error) {
	sum, err := Summarize(ctx, pb, history, now)
	if err != nil {
		return ArtifactSummary{}, err
	}
	return sum, store.WriteJSON(path, sum)
}

func tail(s []string, n int) []string {
	if len(s) <= n {
		return append([]string{}, s...)
	}
	return append([]string{}, s[len(s)-n:]...)
}
