package activity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/retry"
)

const discoveryUserAgent = "scribe-index-discovery/1.0"

// Discovery produces a fresh positional layout from the live upstream.
type Discovery interface {
	Discover(ctx context.Context) ([]Descriptor, error)
}

// Discoverer scrapes the activity table selector of the hiscore overview page.
type Discoverer struct {
	client *resty.Client
	url    string
	policy retry.Policy
	logger *log.Logger
}

// NewDiscoverer builds a scraper for the provided overview page URL.
func NewDiscoverer(pageURL string, timeout time.Duration, policy retry.Policy, logger *log.Logger) *Discoverer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", discoveryUserAgent)
	client.SetHeader("Accept", "text/html")
	return &Discoverer{client: client, url: pageURL, policy: policy, logger: logger}
}

var errImplausible = errors.New("implausible discovery result")

// Discover fetches the overview page and returns the skill block followed by every activity
// option in table order. Transport failures and 5xx responses are retried per the policy;
// implausible pages are not.
func (d *Discoverer) Discover(ctx context.Context) ([]Descriptor, error) {
	body, _, err := retry.Do(ctx, d.policy, func(ctx context.Context, attempt int) ([]byte, error) {
		resp, err := d.client.R().SetContext(ctx).Get(d.url)
		if err != nil {
			return nil, fmt.Errorf("discovery request: %w", err)
		}
		status := resp.StatusCode()
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
			return nil, fmt.Errorf("discovery status %d", status)
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("%w: status %d", errImplausible, status)
		}
		return resp.Body(), nil
	}, retry.WithRetryIf(func(err error) bool {
		return !errors.Is(err, errImplausible)
	}), retry.WithNotify(func(attempt int, err error, wait time.Duration) {
		if d.logger != nil {
			d.logger.Printf("index discovery attempt %d failed: %v (retrying in %s)", attempt, err, wait)
		}
	}))
	if err != nil {
		return nil, errs.New("activity/discover", errs.CodeDiscoveryDegraded,
			errs.WithMessage("activity page unavailable"), errs.WithCause(err))
	}

	options, err := parseOptions(bytes.NewReader(body))
	if err != nil {
		return nil, errs.New("activity/discover", errs.CodeDiscoveryDegraded,
			errs.WithMessage("activity page unparsable"), errs.WithCause(err))
	}
	descriptors, err := buildDescriptors(options)
	if err != nil {
		return nil, errs.New("activity/discover", errs.CodeDiscoveryDegraded,
			errs.WithMessage("activity page implausible"), errs.WithCause(err))
	}
	return descriptors, nil
}

type option struct {
	value int
	label string
}

// parseOptions returns the options of the first <select name="table"> element.
func parseOptions(r io.Reader) ([]option, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	sel := findSelect(root)
	if sel == nil {
		return nil, fmt.Errorf("%w: table selector missing", errImplausible)
	}
	var out []option
	for n := sel.FirstChild; n != nil; n = n.NextSibling {
		collectOptions(n, &out)
	}
	return out, nil
}

func findSelect(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "select" && attr(n, "name") == "table" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findSelect(c); found != nil {
			return found
		}
	}
	return nil
}

func collectOptions(n *html.Node, out *[]option) {
	if n.Type == html.ElementNode && n.Data == "option" {
		raw, ok := attrOK(n, "value")
		label := strings.Join(strings.Fields(text(n)), " ")
		if !ok || label == "" {
			return
		}
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || value < 0 {
			return
		}
		*out = append(*out, option{value: value, label: label})
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectOptions(c, out)
	}
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(text(c))
	}
	return b.String()
}

// buildDescriptors validates scraped options and appends them after the skill block.
// Zero options, duplicate or non-contiguous table values, and pages where no label is
// recognised are rejected.
func buildDescriptors(options []option) ([]Descriptor, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("%w: zero activity options", errImplausible)
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].value < options[j].value })

	descriptors := SkillDescriptors()
	base := len(descriptors)
	ids := make(map[string]struct{}, len(options))
	recognised := 0
	for i, opt := range options {
		if opt.value != i {
			if i > 0 && options[i-1].value == opt.value {
				return nil, fmt.Errorf("%w: duplicate table value %d", errImplausible, opt.value)
			}
			return nil, fmt.Errorf("%w: table values not contiguous at %d", errImplausible, opt.value)
		}
		d, ok := known[foldLabel(opt.label)]
		if ok {
			recognised++
		} else {
			d = Descriptor{ID: slug(opt.label), Name: opt.label, Category: guessCategory(opt.label)}
		}
		if _, dup := ids[d.ID]; dup || d.ID == "" {
			return nil, fmt.Errorf("%w: duplicate activity %q", errImplausible, opt.label)
		}
		ids[d.ID] = struct{}{}
		d.Position = base + i
		descriptors = append(descriptors, d)
	}
	if recognised == 0 {
		return nil, fmt.Errorf("%w: no recognised activity labels", errImplausible)
	}
	return descriptors, nil
}
