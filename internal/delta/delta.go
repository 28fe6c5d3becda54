// Package delta computes signed differences between two snapshots of the same account.
package delta

import (
	"github.com/coachpo/scribe/internal/schema"
)

// Diff returns the delta from prev to curr, or nil when there is no previous snapshot.
// Skills and activities are matched by name; an entry missing on one side counts as zero.
// Values are signed and never clamped, and elapsed hours may be zero or negative.
func Diff(prev *schema.Snapshot, curr schema.Snapshot) *schema.Delta {
	if prev == nil {
		return nil
	}

	d := &schema.Delta{
		PreviousID:   prev.ID,
		CurrentID:    curr.ID,
		PreviousMode: prev.ResolvedMode,
		CurrentMode:  curr.ResolvedMode,
		TotalXP:      curr.TotalXP - prev.TotalXP,
		TotalLevel:   curr.TotalLevel - prev.TotalLevel,
		Skills:       make(map[string]schema.SkillDelta, len(curr.Skills)),
		Activities:   make(map[string]schema.ActivityDelta, len(curr.Activities)),
		ElapsedHours: curr.FetchedAt.Sub(prev.FetchedAt).Hours(),
	}

	for _, s := range prev.Skills {
		sd := d.Skills[s.Name]
		sd.XP -= s.XP
		sd.Level -= s.Level
		d.Skills[s.Name] = sd
	}
	for _, s := range curr.Skills {
		sd := d.Skills[s.Name]
		sd.XP += s.XP
		sd.Level += s.Level
		d.Skills[s.Name] = sd
	}
	for _, a := range prev.Activities {
		ad := d.Activities[a.Name]
		ad.Score -= a.Score
		d.Activities[a.Name] = ad
	}
	for _, a := range curr.Activities {
		ad := d.Activities[a.Name]
		ad.Score += a.Score
		d.Activities[a.Name] = ad
	}
	return d
}
