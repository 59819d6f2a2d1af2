package curator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gemex-ace/internal/logger"
	"gemex-ace/internal/playbook"
	"gemex-ace/internal/types"
)

// PruneMargin is how far harmful_count may exceed helpful_count before a bullet is dropped.
const PruneMargin = 2

// Curator applies reflection insights to a playbook as deterministic delta updates.
type Curator struct {
	now func() time.Time
}

func New() *Curator {
	return &Curator{now: time.Now}
}

func (c *Curator) WithClock(now func() time.Time) *Curator {
	c.now = now
	return c
}

// Result is the curated playbook plus everything the run did to it.
type Result struct {
	Playbook    *types.Playbook
	FromVersion string
	Added       []string
	Helpful     []string
	Harmful     []string
	Reviews     []types.ReviewFlag
	Skipped     []types.SkippedInsight
	Pruned      []types.Bullet
}

// Audit converts the result into its persisted form.
func (r *Result) Audit(weekEnding string) types.CurationAudit {
	return types.CurationAudit{
		WeekEnding:  weekEnding,
		FromVersion: r.FromVersion,
		ToVersion:   r.Playbook.Metadata.Version,
		Added:       nonNil(r.Added),
		Helpful:     nonNil(r.Helpful),
		Harmful:     nonNil(r.Harmful),
		Reviews:     append([]types.ReviewFlag{}, r.Reviews...),
		Skipped:     append([]types.SkippedInsight{}, r.Skipped...),
		Pruned:      append([]types.Bullet{}, r.Pruned...),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Apply returns a new playbook with the reflection's insights applied, harmful
// bullets pruned and the version bumped by 0.1. The input playbook is not modified.
func (c *Curator) Apply(ctx context.Context, refl types.Reflection, pb *types.Playbook) (*Result, error) {
	nextVersion, err := playbook.NextVersion(pb.Metadata.Version)
	if err != nil {
		return nil, err
	}

	updated := playbook.Clone(pb)
	res := &Result{Playbook: updated, FromVersion: pb.Metadata.Version}
	now := c.now().UTC()

	for i, in := range refl.Insights {
		switch in.SuggestedAction {
		case types.ActionAddBullet:
			c.addBullet(ctx, res, i, in, now)
		case types.ActionIncrementHelpful, types.ActionIncrementHarmful:
			c.increment(ctx, res, i, in)
		case types.ActionReviewBullet:
			_, _, found := playbook.FindBullet(updated, in.BulletID)
			res.Reviews = append(res.Reviews, types.ReviewFlag{
				BulletID:    in.BulletID,
				Observation: in.Observation,
				Found:       found,
			})
			logger.Curation(ctx, string(in.SuggestedAction), in.BulletID,
				"observation", in.Observation, "found", found)
		default:
			res.Skipped = append(res.Skipped, types.SkippedInsight{
				Index:  i,
				Action: string(in.SuggestedAction),
				Reason: "unsupported suggested_action",
			})
		}
	}

	res.Pruned = prune(updated)
	for _, b := range res.Pruned {
		logger.Curation(ctx, "prune", b.ID,
			"helpful_count", b.HelpfulCount, "harmful_count", b.HarmfulCount)
	}

	updated.Metadata.Version = nextVersion
	if err := playbook.CheckInvariant(updated); err != nil {
		return nil, fmt.Errorf("curated playbook is inconsistent: %w", err)
	}

	logger.Info(ctx, "Curation complete",
		"from_version", res.FromVersion,
		"to_version", nextVersion,
		"added", len(res.Added),
		"pruned", len(res.Pruned),
		"reviews", len(res.Reviews),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

func (c *Curator) addBullet(ctx context.Context, res *Result, idx int, in types.Insight, now time.Time) {
	section := types.SectionName(strings.TrimSpace(in.Section))
	if section == "" {
		section = types.SectionStrategies
	}
	if !section.Valid() {
		logger.Warn(ctx, "Skipping add_bullet for unknown section", "section", in.Section)
		res.Skipped = append(res.Skipped, types.SkippedInsight{
			Index:  idx,
			Action: string(in.SuggestedAction),
			Reason: fmt.Sprintf("unknown section %q", in.Section),
		})
		return
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		res.Skipped = append(res.Skipped, types.SkippedInsight{
			Index:  idx,
			Action: string(in.SuggestedAction),
			Reason: "empty content",
		})
		return
	}

	pb := res.Playbook
	id := playbook.NewBulletID(pb, section, now)
	pb.Sections[section] = append(pb.Sections[section], types.Bullet{
		ID:        id,
		Content:   content,
		CreatedAt: now,
	})
	pb.Metadata.TotalBullets++
	res.Added = append(res.Added, id)
	logger.Curation(ctx, string(in.SuggestedAction), id, "section", string(section))
}

func (c *Curator) increment(ctx context.Context, res *Result, idx int, in types.Insight) {
	b, _, ok := playbook.FindBullet(res.Playbook, in.BulletID)
	if !ok {
		res.Skipped = append(res.Skipped, types.SkippedInsight{
			Index:  idx,
			Action: string(in.SuggestedAction),
			Reason: fmt.Sprintf("bullet %q not found", in.BulletID),
		})
		return
	}
	if in.SuggestedAction == types.ActionIncrementHelpful {
		b.HelpfulCount++
		res.Helpful = append(res.Helpful, b.ID)
	} else {
		b.HarmfulCount++
		res.Harmful = append(res.Harmful, b.ID)
	}
	logger.Curation(ctx, string(in.SuggestedAction), b.ID,
		"helpful_count", b.HelpfulCount, "harmful_count", b.HarmfulCount)
}

func prune(pb *types.Playbook) []types.Bullet {
	var removed []types.Bullet
	for _, name := range types.Sections {
		bullets := pb.Sections[name]
		kept := make([]types.Bullet, 0, len(bullets))
		for _, b := range bullets {
			if b.HarmfulCount > b.HelpfulCount+PruneMargin {
				removed = append(removed, b)
				continue
			}
			kept = append(kept, b)
		}
		pb.Sections[name] = kept
	}
	pb.Metadata.TotalBullets -= len(removed)
	return removed
}
