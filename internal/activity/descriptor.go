// Package activity resolves the positional layout of the hiscore payload: which ordinal
// carries which skill, clue tier, minigame, boss, or points table.
package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/coachpo/scribe/internal/schema"
)

// Category groups descriptors by how the upstream reports them.
type Category string

const (
	CategorySkill    Category = "skill"
	CategoryClue     Category = "clue"
	CategoryMinigame Category = "minigame"
	CategoryBoss     Category = "boss"
	CategoryPoints   Category = "points"
)

// IsSkill reports whether rows of this category carry {rank, level, xp}.
func (c Category) IsSkill() bool { return c == CategorySkill }

// Descriptor binds an ordinal payload position to a stable identifier and display name.
type Descriptor struct {
	Position int      `json:"position"`
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// Ordering is a complete positional layout along with where it came from.
type Ordering struct {
	Descriptors []Descriptor       `json:"descriptors"`
	Source      schema.IndexSource `json:"source"`
	ResolvedAt  time.Time          `json:"resolved_at"`
}

// Len returns the number of descriptors.
func (o Ordering) Len() int { return len(o.Descriptors) }

// At returns the descriptor bound to position.
func (o Ordering) At(position int) (Descriptor, bool) {
	if position >= 0 && position < len(o.Descriptors) && o.Descriptors[position].Position == position {
		return o.Descriptors[position], true
	}
	for _, d := range o.Descriptors {
		if d.Position == position {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Validate checks that positions are contiguous from zero, identifiers are unique, and the
// ordering starts with the aggregate skill.
func (o Ordering) Validate() error {
	if len(o.Descriptors) == 0 {
		return fmt.Errorf("activity ordering is empty")
	}
	seen := make(map[string]struct{}, len(o.Descriptors))
	for i, d := range o.Descriptors {
		if d.Position != i {
			return fmt.Errorf("descriptor %q at index %d has position %d", d.ID, i, d.Position)
		}
		if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("descriptor at position %d missing id or name", i)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("duplicate descriptor id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	if !schema.IsAggregate(o.Descriptors[0].Name) {
		return fmt.Errorf("ordering must start with %s, got %q", schema.OverallSkill, o.Descriptors[0].Name)
	}
	return nil
}

// Clone returns a copy that shares no backing array with o.
func (o Ordering) Clone() Ordering {
	o.Descriptors = append([]Descriptor(nil), o.Descriptors...)
	return o
}

type entry struct {
	id   string
	name string
}

var skills = []entry{
	{"overall", schema.OverallSkill},
	{"attack", "Attack"},
	{"defence", "Defence"},
	{"strength", "Strength"},
	{"hitpoints", "Hitpoints"},
	{"ranged", "Ranged"},
	{"prayer", "Prayer"},
	{"magic", "Magic"},
	{"cooking", "Cooking"},
	{"woodcutting", "Woodcutting"},
	{"fletching", "Fletching"},
	{"fishing", "Fishing"},
	{"firemaking", "Firemaking"},
	{"crafting", "Crafting"},
	{"smithing", "Smithing"},
	{"mining", "Mining"},
	{"herblore", "Herblore"},
	{"agility", "Agility"},
	{"thieving", "Thieving"},
	{"slayer", "Slayer"},
	{"farming", "Farming"},
	{"runecraft", "Runecraft"},
	{"hunter", "Hunter"},
	{"construction", "Construction"},
}

var activities = []struct {
	entry
	category Category
}{
	{entry{"league_points", "League Points"}, CategoryPoints},
	{entry{"deadman_points", "Deadman Points"}, CategoryPoints},
	{entry{"bounty_hunter_hunter", "Bounty Hunter - Hunter"}, CategoryMinigame},
	{entry{"bounty_hunter_rogue", "Bounty Hunter - Rogue"}, CategoryMinigame},
	{entry{"bounty_hunter_legacy_hunter", "Bounty Hunter (Legacy) - Hunter"}, CategoryMinigame},
	{entry{"bounty_hunter_legacy_rogue", "Bounty Hunter (Legacy) - Rogue"}, CategoryMinigame},
	{entry{"clue_scrolls_all", "Clue Scrolls (all)"}, CategoryClue},
	{entry{"clue_scrolls_beginner", "Clue Scrolls (beginner)"}, CategoryClue},
	{entry{"clue_scrolls_easy", "Clue Scrolls (easy)"}, CategoryClue},
	{entry{"clue_scrolls_medium", "Clue Scrolls (medium)"}, CategoryClue},
	{entry{"clue_scrolls_hard", "Clue Scrolls (hard)"}, CategoryClue},
	{entry{"clue_scrolls_elite", "Clue Scrolls (elite)"}, CategoryClue},
	{entry{"clue_scrolls_master", "Clue Scrolls (master)"}, CategoryClue},
	{entry{"lms_rank", "LMS - Rank"}, CategoryMinigame},
	{entry{"pvp_arena_rank", "PvP Arena - Rank"}, CategoryMinigame},
	{entry{"soul_wars_zeal", "Soul Wars Zeal"}, CategoryMinigame},
	{entry{"rifts_closed", "Rifts closed"}, CategoryMinigame},
	{entry{"colosseum_glory", "Colosseum Glory"}, CategoryMinigame},
	{entry{"collections_logged", "Collections Logged"}, CategoryMinigame},
	{entry{"abyssal_sire", "Abyssal Sire"}, CategoryBoss},
	{entry{"alchemical_hydra", "Alchemical Hydra"}, CategoryBoss},
	{entry{"amoxliatl", "Amoxliatl"}, CategoryBoss},
	{entry{"araxxor", "Araxxor"}, CategoryBoss},
	{entry{"artio", "Artio"}, CategoryBoss},
	{entry{"barrows_chests", "Barrows Chests"}, CategoryBoss},
	{entry{"bryophyta", "Bryophyta"}, CategoryBoss},
	{entry{"callisto", "Callisto"}, CategoryBoss},
	{entry{"calvarion", "Calvar'ion"}, CategoryBoss},
	{entry{"cerberus", "Cerberus"}, CategoryBoss},
	{entry{"chambers_of_xeric", "Chambers of Xeric"}, CategoryBoss},
	{entry{"chambers_of_xeric_challenge_mode", "Chambers of Xeric: Challenge Mode"}, CategoryBoss},
	{entry{"chaos_elemental", "Chaos Elemental"}, CategoryBoss},
	{entry{"chaos_fanatic", "Chaos Fanatic"}, CategoryBoss},
	{entry{"commander_zilyana", "Commander Zilyana"}, CategoryBoss},
	{entry{"corporeal_beast", "Corporeal Beast"}, CategoryBoss},
	{entry{"crazy_archaeologist", "Crazy Archaeologist"}, CategoryBoss},
	{entry{"dagannoth_prime", "Dagannoth Prime"}, CategoryBoss},
	{entry{"dagannoth_rex", "Dagannoth Rex"}, CategoryBoss},
	{entry{"dagannoth_supreme", "Dagannoth Supreme"}, CategoryBoss},
	{entry{"deranged_archaeologist", "Deranged Archaeologist"}, CategoryBoss},
	{entry{"doom_of_mokhaiotl", "Doom of Mokhaiotl"}, CategoryBoss},
	{entry{"duke_sucellus", "Duke Sucellus"}, CategoryBoss},
	{entry{"general_graardor", "General Graardor"}, CategoryBoss},
	{entry{"giant_mole", "Giant Mole"}, CategoryBoss},
	{entry{"grotesque_guardians", "Grotesque Guardians"}, CategoryBoss},
	{entry{"hespori", "Hespori"}, CategoryBoss},
	{entry{"kalphite_queen", "Kalphite Queen"}, CategoryBoss},
	{entry{"king_black_dragon", "King Black Dragon"}, CategoryBoss},
	{entry{"kraken", "Kraken"}, CategoryBoss},
	{entry{"kreearra", "Kree'Arra"}, CategoryBoss},
	{entry{"kril_tsutsaroth", "K'ril Tsutsaroth"}, CategoryBoss},
	{entry{"lunar_chests", "Lunar Chests"}, CategoryBoss},
	{entry{"mimic", "Mimic"}, CategoryBoss},
	{entry{"nex", "Nex"}, CategoryBoss},
	{entry{"nightmare", "Nightmare"}, CategoryBoss},
	{entry{"phosanis_nightmare", "Phosani's Nightmare"}, CategoryBoss},
	{entry{"obor", "Obor"}, CategoryBoss},
	{entry{"phantom_muspah", "Phantom Muspah"}, CategoryBoss},
	{entry{"sarachnis", "Sarachnis"}, CategoryBoss},
	{entry{"scorpia", "Scorpia"}, CategoryBoss},
	{entry{"scurrius", "Scurrius"}, CategoryBoss},
	{entry{"skotizo", "Skotizo"}, CategoryBoss},
	{entry{"sol_heredit", "Sol Heredit"}, CategoryBoss},
	{entry{"spindel", "Spindel"}, CategoryBoss},
	{entry{"tempoross", "Tempoross"}, CategoryBoss},
	{entry{"the_gauntlet", "The Gauntlet"}, CategoryBoss},
	{entry{"the_corrupted_gauntlet", "The Corrupted Gauntlet"}, CategoryBoss},
	{entry{"the_hueycoatl", "The Hueycoatl"}, CategoryBoss},
	{entry{"the_leviathan", "The Leviathan"}, CategoryBoss},
	{entry{"the_royal_titans", "The Royal Titans"}, CategoryBoss},
	{entry{"the_whisperer", "The Whisperer"}, CategoryBoss},
	{entry{"theatre_of_blood", "Theatre of Blood"}, CategoryBoss},
	{entry{"theatre_of_blood_hard_mode", "Theatre of Blood: Hard Mode"}, CategoryBoss},
	{entry{"thermonuclear_smoke_devil", "Thermonuclear Smoke Devil"}, CategoryBoss},
	{entry{"tombs_of_amascut", "Tombs of Amascut"}, CategoryBoss},
	{entry{"tombs_of_amascut_expert_mode", "Tombs of Amascut: Expert Mode"}, CategoryBoss},
	{entry{"tzkal_zuk", "TzKal-Zuk"}, CategoryBoss},
	{entry{"tztok_jad", "TzTok-Jad"}, CategoryBoss},
	{entry{"vardorvis", "Vardorvis"}, CategoryBoss},
	{entry{"venenatis", "Venenatis"}, CategoryBoss},
	{entry{"vetion", "Vet'ion"}, CategoryBoss},
	{entry{"vorkath", "Vorkath"}, CategoryBoss},
	{entry{"wintertodt", "Wintertodt"}, CategoryBoss},
	{entry{"yama", "Yama"}, CategoryBoss},
	{entry{"zalcano", "Zalcano"}, CategoryBoss},
	{entry{"zulrah", "Zulrah"}, CategoryBoss},
}

// SkillDescriptors returns the fixed skill block that opens every payload.
func SkillDescriptors() []Descriptor {
	out := make([]Descriptor, len(skills))
	for i, s := range skills {
		out[i] = Descriptor{Position: i, ID: s.id, Name: s.name, Category: CategorySkill}
	}
	return out
}

// StaticOrdering returns the built-in ordering shipped with the binary.
func StaticOrdering() Ordering {
	descriptors := SkillDescriptors()
	for _, a := range activities {
		descriptors = append(descriptors, Descriptor{
			Position: len(descriptors),
			ID:       a.id,
			Name:     a.name,
			Category: a.category,
		})
	}
	return Ordering{Descriptors: descriptors, Source: schema.IndexStatic}
}

// known maps a folded display name to its static activity entry.
var known = func() map[string]Descriptor {
	out := make(map[string]Descriptor, len(activities))
	for _, a := range activities {
		out[foldLabel(a.name)] = Descriptor{ID: a.id, Name: a.name, Category: a.category}
	}
	return out
}()

func foldLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

// slug derives a stable identifier for a label the static table does not know.
func slug(label string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case r == '\'':
		default:
			if !underscore && b.Len() > 0 {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func guessCategory(label string) Category {
	lower := strings.ToLower(label)
	switch {
	case strings.HasPrefix(lower, "clue scrolls"):
		return CategoryClue
	case strings.HasSuffix(lower, "points"):
		return CategoryPoints
	case strings.Contains(lower, "bounty hunter"), strings.HasSuffix(lower, "- rank"):
		return CategoryMinigame
	default:
		return CategoryBoss
	}
}
