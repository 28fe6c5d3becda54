package schema

import "github.com/coachpo/scribe/internal/gamemode"

// SkillDelta is the signed change of one skill between two snapshots.
type SkillDelta struct {
	XP    int64 `json:"xp_delta"`
	Level int64 `json:"level_delta"`
}

// ActivityDelta is the signed change of one activity between two snapshots.
type ActivityDelta struct {
	Score int64 `json:"score_delta"`
}

// Delta is the signed difference between two snapshots of the same account. It is derived
// from its parents and never persisted on its own.
type Delta struct {
	PreviousID   string                   `json:"previous_id"`
	CurrentID    string                   `json:"current_id"`
	PreviousMode gamemode.Mode            `json:"previous_mode"`
	CurrentMode  gamemode.Mode            `json:"current_mode"`
	TotalXP      int64                    `json:"total_xp_delta"`
	TotalLevel   int64                    `json:"total_level_delta"`
	Skills       map[string]SkillDelta    `json:"skills"`
	Activities   map[string]ActivityDelta `json:"activities"`
	ElapsedHours float64                  `json:"elapsed_hours"`
}

// ModeChanged reports whether the two parent snapshots resolved under different modes.
func (d Delta) ModeChanged() bool {
	return d.PreviousMode != d.CurrentMode
}

// IsZero reports whether no skill, activity, or total changed.
func (d Delta) IsZero() bool {
	if d.TotalXP != 0 || d.TotalLevel != 0 {
		return false
	}
	for _, s := range d.Skills {
		if s.XP != 0 || s.Level != 0 {
			return false
		}
	}
	for _, a := range d.Activities {
		if a.Score != 0 {
			return false
		}
	}
	return true
}
