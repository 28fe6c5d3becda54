package gamemode

import (
	"net/url"
	"sort"
	"strings"

	"github.com/coachpo/scribe/errs"
)

const (
	// PlayerPlaceholder is substituted with the escaped account name.
	PlayerPlaceholder = "{player}"
	// DefaultBaseURL is the public hiscore host.
	DefaultBaseURL = "https://secure.runescape.com"

	liteEndpoint      = "index_lite.ws"
	discoveryEndpoint = "overall.ws?category_type=1"
)

// DefaultPaths maps every mode to its hiscore path segment.
func DefaultPaths() map[Mode]string {
	return map[Mode]string{
		Main:       "hiscore_oldschool",
		Ironman:    "hiscore_oldschool_ironman",
		Hardcore:   "hiscore_oldschool_hardcore_ironman",
		Ultimate:   "hiscore_oldschool_ultimate",
		Deadman:    "hiscore_oldschool_deadman",
		Tournament: "hiscore_oldschool_tournament",
		Seasonal:   "hiscore_oldschool_seasonal",
	}
}

// Endpoint is an immutable mode to URL template binding.
type Endpoint struct {
	Mode      Mode
	Template  string
	Discovery string
}

// URL renders the lookup URL for the provided account.
func (e Endpoint) URL(account string) string {
	return strings.Replace(e.Template, PlayerPlaceholder, url.QueryEscape(strings.TrimSpace(account)), 1)
}

// Catalog holds the endpoints for every known mode.
type Catalog struct {
	endpoints map[Mode]Endpoint
}

// NewCatalog validates the base URL and the per-mode path overrides and builds the catalog.
// Any malformed entry is a fatal configuration error.
func NewCatalog(baseURL string, overrides map[string]string) (*Catalog, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, errs.New("gamemode/catalog", errs.CodeFatalConfig,
			errs.WithMessage("invalid upstream base url"), errs.WithCause(err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errs.New("gamemode/catalog", errs.CodeFatalConfig,
			errs.WithMessage("upstream base url must use http or https"))
	}
	if parsed.Host == "" {
		return nil, errs.New("gamemode/catalog", errs.CodeFatalConfig,
			errs.WithMessage("upstream base url missing host"))
	}

	paths := DefaultPaths()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		mode, err := ParseMode(key)
		if err != nil || mode == "" {
			return nil, errs.New("gamemode/catalog", errs.CodeFatalConfig,
				errs.WithMode(key), errs.WithMessage("unknown gamemode in endpoint catalog"))
		}
		path := strings.Trim(strings.TrimSpace(overrides[key]), "/")
		if path == "" || strings.ContainsAny(path, " ?#") {
			return nil, errs.New("gamemode/catalog", errs.CodeFatalConfig,
				errs.WithMode(string(mode)), errs.WithMessage("invalid hiscore path "+overrides[key]))
		}
		paths[mode] = path
	}

	catalog := &Catalog{endpoints: make(map[Mode]Endpoint, len(paths))}
	for _, mode := range Priority {
		path := paths[mode]
		catalog.endpoints[mode] = Endpoint{
			Mode:      mode,
			Template:  base + "/m=" + path + "/" + liteEndpoint + "?player=" + PlayerPlaceholder,
			Discovery: base + "/m=" + path + "/" + discoveryEndpoint,
		}
	}
	return catalog, nil
}

// MustDefaultCatalog builds the catalog for the public upstream.
func MustDefaultCatalog() *Catalog {
	catalog, err := NewCatalog(DefaultBaseURL, nil)
	if err != nil {
		panic("gamemode: default catalog invalid: " + err.Error())
	}
	return catalog
}

// Endpoint returns the endpoint registered for mode.
func (c *Catalog) Endpoint(mode Mode) (Endpoint, bool) {
	if c == nil {
		return Endpoint{}, false
	}
	ep, ok := c.endpoints[mode]
	return ep, ok
}

// Modes lists the catalogued modes in canonical priority order.
func (c *Catalog) Modes() []Mode {
	out := make([]Mode, 0, len(Priority))
	for _, mode := range Priority {
		if _, ok := c.endpoints[mode]; ok {
			out = append(out, mode)
		}
	}
	return out
}
