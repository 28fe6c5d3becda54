package activity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/retry"
)

const overviewPage = `<html><body>
<form><select name="category_type"><option value="0">Skills</option></select>
<select name="table" id="table">
  <option value="0">League  Points</option>
  <option value="1">Deadman Points</option>
  <option value="2">Clue Scrolls (all)</option>
  <option value="3">Sailing Regatta</option>
  <option value="4">Zulrah</option>
</select></form></body></html>`

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}
}

func TestParseOptionsReadsTableSelect(t *testing.T) {
	options, err := parseOptions(strings.NewReader(overviewPage))
	require.NoError(t, err)
	require.Len(t, options, 5)
	require.Equal(t, option{value: 0, label: "League Points"}, options[0])
	require.Equal(t, "Zulrah", options[4].label)
}

func TestParseOptionsMissingSelect(t *testing.T) {
	_, err := parseOptions(strings.NewReader("<html><body>maintenance</body></html>"))
	require.ErrorIs(t, err, errImplausible)
}

func TestBuildDescriptorsAppendsAfterSkills(t *testing.T) {
	options, err := parseOptions(strings.NewReader(overviewPage))
	require.NoError(t, err)

	descriptors, err := buildDescriptors(options)
	require.NoError(t, err)
	skillCount := len(SkillDescriptors())
	require.Len(t, descriptors, skillCount+5)

	unknown := descriptors[skillCount+3]
	require.Equal(t, "sailing_regatta", unknown.ID)
	require.Equal(t, "Sailing Regatta", unknown.Name)
	require.Equal(t, skillCount+3, unknown.Position)

	zulrah := descriptors[skillCount+4]
	require.Equal(t, "zulrah", zulrah.ID)
	require.Equal(t, CategoryBoss, zulrah.Category)

	ordering := Ordering{Descriptors: descriptors}
	require.NoError(t, ordering.Validate())
}

func TestBuildDescriptorsRejectsImplausiblePages(t *testing.T) {
	cases := map[string][]option{
		"empty":          nil,
		"duplicate":      {{0, "Zulrah"}, {0, "Vorkath"}},
		"gap":            {{0, "Zulrah"}, {2, "Vorkath"}},
		"only unknown":   {{0, "Foo"}, {1, "Bar"}},
		"duplicate name": {{0, "Zulrah"}, {1, "zulrah"}},
	}
	for name, options := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := buildDescriptors(options)
			require.ErrorIs(t, err, errImplausible)
		})
	}
}

func TestDiscovererFetchesPage(t *testing.T) {
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(overviewPage))
	}))
	defer srv.Close()

	d := NewDiscoverer(srv.URL, time.Second, fastPolicy(), nil)
	descriptors, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, len(SkillDescriptors())+5)
	require.Equal(t, discoveryUserAgent, agent.Load())
}

func TestDiscovererRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(overviewPage))
	}))
	defer srv.Close()

	_, err := NewDiscoverer(srv.URL, time.Second, fastPolicy(), nil).Discover(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestDiscovererDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewDiscoverer(srv.URL, time.Second, fastPolicy(), nil).Discover(context.Background())
	require.True(t, errs.Is(err, errs.CodeDiscoveryDegraded))
	require.Equal(t, int32(1), calls.Load())
}
