package types

import "time"

type SectionName string

const (
	SectionStrategies      SectionName = "strategies_and_hard_rules"
	SectionCode            SectionName = "useful_code_and_templates"
	SectionTroubleshooting SectionName = "troubleshooting_and_pitfalls"
)

// Sections lists the playbook sections in display order.
var Sections = []SectionName{SectionStrategies, SectionCode, SectionTroubleshooting}

func (s SectionName) Valid() bool {
	switch s {
	case SectionStrategies, SectionCode, SectionTroubleshooting:
		return true
	}
	return false
}

// Bullet is one atomic rule or heuristic in the playbook.
type Bullet struct {
	ID           string     `json:"id"`
	Content      string     `json:"content"`
	HelpfulCount int        `json:"helpful_count"`
	HarmfulCount int        `json:"harmful_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used"`
}

type Metadata struct {
	CreatedAt    time.Time `json:"created_at"`
	LastUpdated  time.Time `json:"last_updated"`
	Version      string    `json:"version"`
	TotalBullets int       `json:"total_bullets"`
}

type Playbook struct {
	Metadata Metadata                 `json:"metadata"`
	Sections map[SectionName][]Bullet `json:"sections"`
}

// CurationAudit is the persisted record of one curator run.
type CurationAudit struct {
	WeekEnding  string           `json:"week_ending"`
	FromVersion string           `json:"from_version"`
	ToVersion   string           `json:"to_version"`
	Added       []string         `json:"added"`
	Helpful     []string         `json:"helpful"`
	Harmful     []string         `json:"harmful"`
	Reviews     []ReviewFlag     `json:"reviews"`
	Skipped     []SkippedInsight `json:"skipped"`
	Pruned      []Bullet         `json:"pruned"`
}

// ReviewFlag is a review_bullet insight surfaced to the operator.
type ReviewFlag struct {
	BulletID    string `json:"bullet_id"`
	Observation string `json:"observation"`
	Found       bool   `json:"found"`
}

type SkippedInsight struct {
	Index  int    `json:"index"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}
