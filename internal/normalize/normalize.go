// Package normalize maps positional hiscore payloads onto the canonical snapshot shape.
package normalize

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/coachpo/scribe/internal/activity"
	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/hiscore"
	"github.com/coachpo/scribe/internal/schema"
)

// Meta carries the resolution facts copied onto the snapshot.
type Meta struct {
	Account       string
	RequestedMode gamemode.Mode
	ResolvedMode  gamemode.Mode
	Endpoint      string
	FetchedAt     time.Time
	Latency       time.Duration
}

// Normalize walks payload rows against ordering. Negative sentinels become zero, positions the
// payload lacks become zero entries, and rows beyond the ordering are kept as Other entries.
// Totals sum every skill except the aggregate row.
func Normalize(payload hiscore.Payload, ordering activity.Ordering, meta Meta) schema.Snapshot {
	snap := schema.Snapshot{
		Account:       strings.TrimSpace(meta.Account),
		RequestedMode: meta.RequestedMode,
		ResolvedMode:  meta.ResolvedMode,
		Endpoint:      meta.Endpoint,
		FetchedAt:     meta.FetchedAt.UTC(),
		Latency:       meta.Latency,
		Skills:        make([]schema.SkillEntry, 0, 24),
		Activities:    make([]schema.ActivityEntry, 0, ordering.Len()),
		IndexSource:   ordering.Source,
		PayloadHash:   Hash(payload),
	}

	for _, d := range ordering.Descriptors {
		row, present := rowAt(payload, d.Position)
		if d.Category.IsSkill() {
			if present && len(row) < 3 {
				snap.Warnings = append(snap.Warnings, fmt.Sprintf("skill %s has %d columns", d.Name, len(row)))
			}
			snap.Skills = append(snap.Skills, schema.SkillEntry{
				Name:  d.Name,
				Rank:  column(row, 0),
				Level: column(row, 1),
				XP:    column(row, 2),
			})
			continue
		}
		if present && len(row) < 2 {
			snap.Warnings = append(snap.Warnings, fmt.Sprintf("activity %s has %d columns", d.Name, len(row)))
		}
		snap.Activities = append(snap.Activities, schema.ActivityEntry{
			Name:  d.Name,
			Rank:  column(row, 0),
			Score: column(row, 1),
		})
	}

	if missing := ordering.Len() - payload.Len(); missing > 0 {
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("payload is %d positions shorter than the activity index", missing))
	}
	for pos := ordering.Len(); pos < payload.Len(); pos++ {
		snap.Other = append(snap.Other, schema.OtherEntry{
			Position: pos,
			Values:   append([]int64(nil), payload.Rows[pos]...),
		})
	}
	if len(snap.Other) > 0 {
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("%d unknown payload positions preserved", len(snap.Other)))
	}

	snap.TotalLevel, snap.TotalXP = Totals(snap.Skills)
	return snap
}

// Totals sums level and xp over skills, skipping the aggregate pseudo-skill.
func Totals(skills []schema.SkillEntry) (level, xp int64) {
	for _, s := range skills {
		if schema.IsAggregate(s.Name) {
			continue
		}
		level += s.Level
		xp += s.XP
	}
	return level, xp
}

// Hash returns the hex xxh3-128 digest of the raw payload, falling back to the parsed rows
// when the raw body is unavailable.
func Hash(payload hiscore.Payload) string {
	data := payload.Raw
	if len(data) == 0 {
		buf := make([]byte, 0, payload.Len()*24)
		for _, row := range payload.Rows {
			for _, v := range row {
				buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
			}
			buf = append(buf, '\n')
		}
		data = buf
	}
	if len(data) == 0 {
		return ""
	}
	sum := xxh3.Hash128(data)
	return fmt.Sprintf("%016x%016x", sum.Hi, sum.Lo)
}

func rowAt(payload hiscore.Payload, position int) ([]int64, bool) {
	if position < 0 || position >= payload.Len() {
		return nil, false
	}
	return payload.Rows[position], true
}

func column(row []int64, i int) int64 {
	if i >= len(row) || row[i] < 0 {
		return 0
	}
	return row[i]
}
