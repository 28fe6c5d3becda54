package delta

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coachpo/scribe/internal/schema"
)

// SkillGain is one skill's positive change.
type SkillGain struct {
	Name  string `json:"name"`
	XP    int64  `json:"xp_delta"`
	Level int64  `json:"level_delta"`
}

// ActivityGain is one activity's positive change.
type ActivityGain struct {
	Name  string `json:"name"`
	Score int64  `json:"score_delta"`
}

// Gains lists skills that gained xp or levels, by xp descending, and activities that gained
// score, by score descending. The aggregate skill is omitted. Ties sort by name.
func Gains(d *schema.Delta) ([]SkillGain, []ActivityGain) {
	if d == nil {
		return nil, nil
	}
	var skills []SkillGain
	for name, s := range d.Skills {
		if schema.IsAggregate(name) {
			continue
		}
		if s.XP > 0 || s.Level > 0 {
			skills = append(skills, SkillGain{Name: name, XP: s.XP, Level: s.Level})
		}
	}
	sort.Slice(skills, func(i, j int) bool {
		if skills[i].XP != skills[j].XP {
			return skills[i].XP > skills[j].XP
		}
		return skills[i].Name < skills[j].Name
	})

	var activities []ActivityGain
	for name, a := range d.Activities {
		if a.Score > 0 {
			activities = append(activities, ActivityGain{Name: name, Score: a.Score})
		}
	}
	sort.Slice(activities, func(i, j int) bool {
		if activities[i].Score != activities[j].Score {
			return activities[i].Score > activities[j].Score
		}
		return activities[i].Name < activities[j].Name
	})
	return skills, activities
}

const summaryTop = 3

// Summarize renders a one-line description of d, listing at most three entries per section.
func Summarize(d *schema.Delta) string {
	skills, activities := Gains(d)
	var fragments []string

	if d != nil && d.TotalXP != 0 {
		fragments = append(fragments, "ΔXP "+FormatNumber(d.TotalXP))
	}

	var leveled []SkillGain
	for _, s := range skills {
		if s.Level > 0 {
			leveled = append(leveled, s)
		}
	}
	switch {
	case len(leveled) > 0:
		parts := make([]string, 0, summaryTop)
		for _, s := range leveled[:min(summaryTop, len(leveled))] {
			parts = append(parts, s.Name+"(+"+strconv.FormatInt(s.Level, 10)+")")
		}
		fragments = append(fragments, "Levels: "+strings.Join(parts, ", "))
	case len(skills) > 0:
		parts := make([]string, 0, summaryTop)
		for _, s := range skills[:min(summaryTop, len(skills))] {
			parts = append(parts, s.Name+"("+FormatNumber(s.XP)+")")
		}
		fragments = append(fragments, "XP gains: "+strings.Join(parts, ", "))
	}

	if len(activities) > 0 {
		parts := make([]string, 0, summaryTop)
		for _, a := range activities[:min(summaryTop, len(activities))] {
			parts = append(parts, a.Name+"(+"+strconv.FormatInt(a.Score, 10)+")")
		}
		fragments = append(fragments, "Activities: "+strings.Join(parts, ", "))
	}

	if len(fragments) == 0 {
		return "No changes since last snapshot."
	}
	return strings.Join(fragments, " | ")
}

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
)

// FormatNumber abbreviates v with K, M, or B suffixes and two decimals.
func FormatNumber(v int64) string {
	value := decimal.NewFromInt(v)
	abs := value.Abs()
	var out string
	switch {
	case abs.GreaterThanOrEqual(billion):
		out = value.Div(billion).StringFixed(2) + "B"
	case abs.GreaterThanOrEqual(million):
		out = value.Div(million).StringFixed(2) + "M"
	case abs.GreaterThanOrEqual(thousand):
		out = value.Div(thousand).StringFixed(2) + "K"
	default:
		out = value.String()
	}
	if strings.HasPrefix(out, "-0.00") {
		return "0"
	}
	return out
}

// XPPerHour returns the total xp rate over the delta window, rounded to whole xp. It returns
// false when the window is not strictly positive.
func XPPerHour(d *schema.Delta) (decimal.Decimal, bool) {
	if d == nil || d.ElapsedHours <= 0 {
		return decimal.Zero, false
	}
	rate := decimal.NewFromInt(d.TotalXP).Div(decimal.NewFromFloat(d.ElapsedHours))
	return rate.Round(0), true
}
