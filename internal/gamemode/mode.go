// Package gamemode describes the mutually exclusive account modes served by the hiscore
// service and the catalog of upstream endpoints that back them.
package gamemode

import (
	"fmt"
	"strings"
)

// Mode identifies an account category with its own leaderboard.
type Mode string

const (
	Main       Mode = "main"
	Ironman    Mode = "ironman"
	Hardcore   Mode = "hardcore"
	Ultimate   Mode = "ultimate"
	Deadman    Mode = "deadman"
	Tournament Mode = "tournament"
	Seasonal   Mode = "seasonal"
)

// Priority is the canonical probe order used once requested and cached modes are exhausted.
var Priority = []Mode{Main, Ironman, Hardcore, Ultimate, Deadman, Tournament, Seasonal}

var aliases = map[string]Mode{
	"main":             Main,
	"regular":          Main,
	"normal":           Main,
	"ironman":          Ironman,
	"iron":             Ironman,
	"hardcore":         Hardcore,
	"hardcore-ironman": Hardcore,
	"hardcore_ironman": Hardcore,
	"hcim":             Hardcore,
	"ultimate":         Ultimate,
	"ultimate-ironman": Ultimate,
	"ultimate_ironman": Ultimate,
	"uim":              Ultimate,
	"deadman":          Deadman,
	"tournament":       Tournament,
	"seasonal":         Seasonal,
	"leagues":          Seasonal,
}

var labels = map[Mode]string{
	Main:       "Regular",
	Ironman:    "Ironman",
	Hardcore:   "Hardcore Ironman",
	Ultimate:   "Ultimate Ironman",
	Deadman:    "Deadman Mode",
	Tournament: "Tournament",
	Seasonal:   "Leagues",
}

// ParseMode converts user input into a Mode. Empty input and "auto" yield the zero Mode,
// meaning no mode was requested.
func ParseMode(raw string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	switch key {
	case "", "auto", "auto-detect":
		return "", nil
	}
	if mode, ok := aliases[key]; ok {
		return mode, nil
	}
	return "", fmt.Errorf("unknown gamemode %q", raw)
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	_, ok := labels[m]
	return ok
}

// Label returns the human-readable leaderboard name.
func (m Mode) Label() string {
	if label, ok := labels[m]; ok {
		return label
	}
	return string(m)
}

func (m Mode) String() string { return string(m) }
