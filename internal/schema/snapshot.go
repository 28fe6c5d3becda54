// Package schema defines the canonical snapshot and delta shapes consumed by presentation
// and aggregation layers.
package schema

import (
	"strings"
	"time"
	"unicode"

	"github.com/coachpo/scribe/internal/gamemode"
)

// OverallSkill is the aggregate pseudo-skill reported first by the upstream. It is never
// included in computed totals.
const OverallSkill = "Overall"

// IsAggregate reports whether name refers to the aggregate pseudo-skill.
func IsAggregate(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), OverallSkill)
}

// IndexSource records where the activity ordering used for a snapshot came from.
type IndexSource string

const (
	IndexDiscovered IndexSource = "discovered"
	IndexCached     IndexSource = "cached"
	IndexStatic     IndexSource = "static"
)

// SkillEntry is one normalized skill row.
type SkillEntry struct {
	Name  string `json:"name"`
	Rank  int64  `json:"rank"`
	Level int64  `json:"level"`
	XP    int64  `json:"xp"`
}

// ActivityEntry is one normalized activity row.
type ActivityEntry struct {
	Name  string `json:"name"`
	Rank  int64  `json:"rank"`
	Score int64  `json:"score"`
}

// OtherEntry preserves an upstream row the activity index does not know about.
type OtherEntry struct {
	Position int     `json:"position"`
	Values   []int64 `json:"values"`
}

// Snapshot is one normalized capture of an account's full stat set.
type Snapshot struct {
	ID            string          `json:"id"`
	Account       string          `json:"account"`
	RequestedMode gamemode.Mode   `json:"requested_mode,omitempty"`
	ResolvedMode  gamemode.Mode   `json:"resolved_mode"`
	Endpoint      string          `json:"endpoint,omitempty"`
	FetchedAt     time.Time       `json:"fetched_at"`
	Latency       time.Duration   `json:"latency_ns"`
	Skills        []SkillEntry    `json:"skills"`
	Activities    []ActivityEntry `json:"activities"`
	Other         []OtherEntry    `json:"other,omitempty"`
	TotalLevel    int64           `json:"total_level"`
	TotalXP       int64           `json:"total_xp"`
	IndexSource   IndexSource     `json:"index_source,omitempty"`
	PayloadHash   string          `json:"payload_hash,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
}

// Skill returns the named skill entry.
func (s Snapshot) Skill(name string) (SkillEntry, bool) {
	for _, entry := range s.Skills {
		if strings.EqualFold(entry.Name, name) {
			return entry, true
		}
	}
	return SkillEntry{}, false
}

// Activity returns the named activity entry.
func (s Snapshot) Activity(name string) (ActivityEntry, bool) {
	for _, entry := range s.Activities {
		if strings.EqualFold(entry.Name, name) {
			return entry, true
		}
	}
	return ActivityEntry{}, false
}

// ModeChanged reports whether the account resolved under a different mode than requested.
func (s Snapshot) ModeChanged() bool {
	return s.RequestedMode != "" && s.RequestedMode != s.ResolvedMode
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	clone := s
	clone.Skills = append([]SkillEntry(nil), s.Skills...)
	clone.Activities = append([]ActivityEntry(nil), s.Activities...)
	if s.Other != nil {
		clone.Other = make([]OtherEntry, len(s.Other))
		for i, other := range s.Other {
			clone.Other[i] = OtherEntry{Position: other.Position, Values: append([]int64(nil), other.Values...)}
		}
	}
	clone.Warnings = append([]string(nil), s.Warnings...)
	return clone
}

// AccountKey folds an account name into its storage key: lower-cased, with runs of
// whitespace, underscores, and hyphens collapsed to one space. The upstream treats these
// spellings as the same account.
func AccountKey(account string) string {
	fields := strings.FieldsFunc(strings.ToLower(account), func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
