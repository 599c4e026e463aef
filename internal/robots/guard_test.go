// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func robotsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestLoadParsesRules(t *testing.T) {
	ts := robotsServer(t, http.StatusOK, `User-agent: *
Disallow: /private/
Crawl-delay: 5
Sitemap: https://example.com/sitemap.xml
`)
	g := New(ts.URL, "ArchilogBot")
	assert.False(t, g.Loaded())
	require.NoError(t, g.Load(context.Background(), ts.Client()))
	assert.True(t, g.Loaded())

	ok, err := g.CanFetch(ts.URL + "/public/")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.CanFetch(ts.URL + "/private/page")
	require.NoError(t, err)
	assert.False(t, ok)

	delay, set, err := g.CrawlDelay()
	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, 5*time.Second, delay)

	sitemaps, err := g.Sitemaps()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/sitemap.xml"}, sitemaps)
}

func TestLoadAgentSpecificGroup(t *testing.T) {
	ts := robotsServer(t, http.StatusOK, `User-agent: ArchilogBot
Disallow: /search/

User-agent: *
Allow: /
`)
	g := New(ts.URL, "ArchilogBot")
	require.NoError(t, g.Load(context.Background(), ts.Client()))

	ok, err := g.CanFetch(ts.URL + "/search/publ/api?q=x")
	require.NoError(t, err)
	assert.False(t, ok)

	other := New(ts.URL, "OtherBot")
	require.NoError(t, other.Load(context.Background(), ts.Client()))
	ok, err = other.CanFetch(ts.URL + "/search/publ/api")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoad404AllowsAll(t *testing.T) {
	ts := robotsServer(t, http.StatusNotFound, "")
	g := New(ts.URL, "ArchilogBot")
	require.NoError(t, g.Load(context.Background(), ts.Client()))

	ok, err := g.CanFetch(ts.URL + "/anywhere")
	require.NoError(t, err)
	assert.True(t, ok)

	_, set, err := g.CrawlDelay()
	require.NoError(t, err)
	assert.False(t, set)
}

func TestLoadServerErrorDisallowsAll(t *testing.T) {
	ts := robotsServer(t, http.StatusInternalServerError, "")
	g := New(ts.URL, "ArchilogBot")
	require.NoError(t, g.Load(context.Background(), ts.Client()))

	ok, err := g.CanFetch(ts.URL + "/anywhere")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueriesBeforeLoadFail(t *testing.T) {
	g := New("https://example.com/", "ArchilogBot")
	assert.Equal(t, "https://example.com/robots.txt", g.RobotsURL())

	_, err := g.CanFetch("https://example.com")
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, _, err = g.CrawlDelay()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = g.Sitemaps()
	assert.ErrorIs(t, err, ErrNotLoaded)
}
