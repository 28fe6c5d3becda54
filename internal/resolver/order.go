package resolver

import "github.com/coachpo/scribe/internal/gamemode"

// BuildProbeOrder returns the candidate modes for one resolution: the requested mode, then
// the cached mode when it differs, then every remaining mode in canonical priority. Unknown
// modes are ignored and no mode appears twice.
func BuildProbeOrder(requested, cached gamemode.Mode) []gamemode.Mode {
	order := make([]gamemode.Mode, 0, len(gamemode.Priority))
	seen := make(map[gamemode.Mode]struct{}, len(gamemode.Priority))
	add := func(mode gamemode.Mode) {
		if !mode.Valid() {
			return
		}
		if _, dup := seen[mode]; dup {
			return
		}
		seen[mode] = struct{}{}
		order = append(order, mode)
	}
	add(requested)
	add(cached)
	for _, mode := range gamemode.Priority {
		add(mode)
	}
	return order
}
