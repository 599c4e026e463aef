// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package robots checks crawl permission against a site's robots.txt.
package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// ErrNotLoaded is returned by queries issued before Load succeeds.
var ErrNotLoaded = errors.New("robots.txt not loaded")

// loadTimeout bounds the robots.txt fetch independently of the client timeout.
var loadTimeout = 10 * time.Second

// Guard holds the parsed robots.txt of one site for one user agent.
// It is safe for concurrent use once loaded.
type Guard struct {
	baseURL   string
	userAgent string

	mu   sync.RWMutex
	data *robotstxt.RobotsData
}

// New returns an unloaded guard for baseURL (scheme and host, no trailing path).
func New(baseURL, userAgent string) *Guard {
	return &Guard{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
	}
}

// RobotsURL returns the robots.txt location the guard loads from.
func (g *Guard) RobotsURL() string { return g.baseURL + "/robots.txt" }

// Load fetches and parses robots.txt. A 404 allows everything; any other
// non-200 status disallows everything. Transport errors are returned and
// leave the guard unloaded.
func (g *Guard) Load(ctx context.Context, client *http.Client) error {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.RobotsURL(), nil)
	if err != nil {
		return fmt.Errorf("creating robots.txt request: %w", err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", g.RobotsURL(), err)
	}
	defer resp.Body.Close()

	var data *robotstxt.RobotsData
	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading %s: %w", g.RobotsURL(), err)
		}
		data, err = robotstxt.FromBytes(body)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", g.RobotsURL(), err)
		}
	case http.StatusNotFound:
		data, _ = robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	default:
		data, _ = robotstxt.FromStatusAndBytes(http.StatusInternalServerError, nil)
	}

	g.mu.Lock()
	g.data = data
	g.mu.Unlock()
	return nil
}

// Loaded reports whether Load has completed.
func (g *Guard) Loaded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.data != nil
}

func (g *Guard) robots() (*robotstxt.RobotsData, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.data == nil {
		return nil, ErrNotLoaded
	}
	return g.data, nil
}

// CanFetch reports whether the guard's user agent may fetch rawURL.
func (g *Guard) CanFetch(rawURL string) (bool, error) {
	data, err := g.robots()
	if err != nil {
		return false, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parsing %q: %w", rawURL, err)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, g.userAgent), nil
}

// CrawlDelay returns the Crawl-delay for the guard's user agent, and false
// when robots.txt sets none.
func (g *Guard) CrawlDelay() (time.Duration, bool, error) {
	data, err := g.robots()
	if err != nil {
		return 0, false, err
	}
	group := data.FindGroup(g.userAgent)
	if group == nil || group.CrawlDelay <= 0 {
		return 0, false, nil
	}
	return group.CrawlDelay, true, nil
}

// Sitemaps returns the Sitemap URLs listed in robots.txt.
func (g *Guard) Sitemaps() ([]string, error) {
	data, err := g.robots()
	if err != nil {
		return nil, err
	}
	return append([]string(nil), data.Sitemaps...), nil
}
