package playbook

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gemex-ace/internal/types"
)

const (
	InitialVersion = "1.0"
	idTimeLayout   = "20060102150405"
)

var versionStep = decimal.New(1, -1)

type seed struct {
	section types.SectionName
	id      string
	content string
}

var seedBullets = []seed{
	{types.SectionStrategies, "strat-001", "Only trade during NY session (9:30 AM - 4:00 PM EST)"},
	{types.SectionStrategies, "strat-002", "Avoid trading 30min before/after high-impact news"},
	{types.SectionStrategies, "strat-003", "Minimum risk-reward ratio: 1:1.5"},
	{types.SectionCode, "code-001", "Position sizing: (account_balance * risk_pct) / (entry - stop)"},
	{types.SectionTroubleshooting, "pit-001", "Low liquidity after 3:00 PM EST - avoid new entries"},
}

// Initialize returns the seed playbook at version 1.0.
func Initialize(now time.Time) *types.Playbook {
	now = now.UTC()
	pb := &types.Playbook{
		Metadata: types.Metadata{
			CreatedAt:   now,
			LastUpdated: now,
			Version:     InitialVersion,
		},
		Sections: emptySections(),
	}
	for _, s := range seedBullets {
		pb.Sections[s.section] = append(pb.Sections[s.section], types.Bullet{
			ID:        s.id,
			Content:   s.content,
			CreatedAt: now,
		})
	}
	Recount(pb)
	return pb
}

func emptySections() map[types.SectionName][]types.Bullet {
	m := make(map[types.SectionName][]types.Bullet, len(types.Sections))
	for _, s := range types.Sections {
		m[s] = []types.Bullet{}
	}
	return m
}

// CountBullets sums the bullets across all sections.
func CountBullets(pb *types.Playbook) int {
	n := 0
	for _, bullets := range pb.Sections {
		n += len(bullets)
	}
	return n
}

// Recount sets total_bullets from the section contents.
func Recount(pb *types.Playbook) {
	pb.Metadata.TotalBullets = CountBullets(pb)
}

func CheckInvariant(pb *types.Playbook) error {
	if got := CountBullets(pb); got != pb.Metadata.TotalBullets {
		return fmt.Errorf("total_bullets is %d but sections hold %d", pb.Metadata.TotalBullets, got)
	}
	for name := range pb.Sections {
		if !name.Valid() {
			return fmt.Errorf("unknown section %q", name)
		}
	}
	return nil
}

// Clone deep-copies a playbook so callers can mutate without aliasing.
func Clone(pb *types.Playbook) *types.Playbook {
	out := &types.Playbook{
		Metadata: pb.Metadata,
		Sections: make(map[types.SectionName][]types.Bullet, len(pb.Sections)),
	}
	for name, bullets := range pb.Sections {
		cp := make([]types.Bullet, len(bullets))
		for i, b := range bullets {
			cp[i] = b
			if b.LastUsed != nil {
				t := *b.LastUsed
				cp[i].LastUsed = &t
			}
		}
		out.Sections[name] = cp
	}
	return out
}

// FindBullet returns the first bullet with id, scanning sections in display order.
func FindBullet(pb *types.Playbook, id string) (*types.Bullet, types.SectionName, bool) {
	for _, name := range types.Sections {
		bullets := pb.Sections[name]
		for i := range bullets {
			if bullets[i].ID == id {
				return &bullets[i], name, true
			}
		}
	}
	return nil, "", false
}

// MarkUsed stamps last_used on every cited bullet and returns the ids it could not find.
func MarkUsed(pb *types.Playbook, ids []string, now time.Time) []string {
	var missing []string
	now = now.UTC()
	for _, id := range ids {
		b, _, ok := FindBullet(pb, id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		t := now
		b.LastUsed = &t
	}
	return missing
}

// NextVersion bumps a "major.minor" version string by 0.1.
func NextVersion(v string) (string, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return "", fmt.Errorf("invalid playbook version %q: %w", v, err)
	}
	return d.Add(versionStep).StringFixed(1), nil
}

// NewBulletID builds "<first 4 chars of section>-<YYYYMMDDhhmmss>", suffixed
// with -2, -3, ... when that id is already taken.
func NewBulletID(pb *types.Playbook, section types.SectionName, now time.Time) string {
	prefix := string(section)
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	base := prefix + "-" + now.UTC().Format(idTimeLayout)
	id := base
	for n := 2; ; n++ {
		if _, _, taken := FindBullet(pb, id); !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}
