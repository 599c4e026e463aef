// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dblp retrieves the base paper set for a conference and year from
// the DBLP publication search API, honouring dblp.org's robots.txt.
package dblp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-crawler/internal/httputil"
	"github.com/pdiddy/paper-crawler/internal/metrics"
	"github.com/pdiddy/paper-crawler/internal/ratelimit"
	"github.com/pdiddy/paper-crawler/internal/robots"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// dblpBase is the DBLP site root. Declared as a var so tests can substitute
// an httptest server.
var dblpBase = "https://dblp.org"

const (
	searchPath = "/search/publ/api"

	// RobotsAgent is the agent name matched against dblp.org/robots.txt.
	RobotsAgent = "ArchilogBot"

	// DefaultMaxResults is the default "h" parameter.
	DefaultMaxResults = 1000
)

// ErrDisallowed is returned when robots.txt forbids the search endpoint.
var ErrDisallowed = errors.New("crawling disallowed by robots.txt")

// Options tunes retrieval.
type Options struct {
	// DropAuthorless drops hits whose authors normalize to an empty list.
	DropAuthorless bool

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Retriever fetches papers from DBLP. It is safe for concurrent use; the
// guard is loaded on first use.
type Retriever struct {
	client  *http.Client
	guard   *robots.Guard
	limiter *ratelimit.Limiter
	opts    Options

	// loadMu serializes the first robots.txt load across concurrent fetches.
	loadMu sync.Mutex

	// crawlDelay enforces a robots.txt Crawl-delay on top of limiter.
	crawlDelay *ratelimit.Limiter
}

// NewRetriever returns a Retriever using the shared client and limiter.
// A nil guard is replaced by one for dblp.org.
func NewRetriever(client *http.Client, guard *robots.Guard, limiter *ratelimit.Limiter, opts Options) *Retriever {
	if guard == nil {
		guard = robots.New(dblpBase, RobotsAgent)
	}
	return &Retriever{client: client, guard: guard, limiter: limiter, opts: opts}
}

// SearchURL returns the search endpoint checked against robots.txt.
func SearchURL() string { return dblpBase + searchPath }

// FetchPapers retrieves every paper of conf published in year, up to
// maxResults hits (DefaultMaxResults when <= 0), in DBLP order.
//
// A robots.txt disallow returns ErrDisallowed. HTTP errors are returned.
// A zero-hit or malformed response returns an empty slice and no error.
func (r *Retriever) FetchPapers(ctx context.Context, conf types.Conference, year, maxResults int) ([]*types.Paper, error) {
	if r.client == nil {
		return nil, errors.New("dblp: nil HTTP client")
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	log := r.opts.Logger.With().Str("source", types.SourceDBLP).Str("conf", string(conf)).Int("year", year).Logger()

	if err := r.loadRobots(ctx, log); err != nil {
		return nil, err
	}
	allowed, err := r.guard.CanFetch(SearchURL())
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%s: %w", SearchURL(), ErrDisallowed)
	}

	params := url.Values{
		"q":      {BuildQuery(conf, year)},
		"format": {"json"},
		"h":      {fmt.Sprintf("%d", maxResults)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, SearchURL()+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if err := r.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	if err := r.crawlDelay.Acquire(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := httputil.DoWithRetry(ctx, r.client, req, 0)
	if err != nil {
		r.opts.Metrics.ObserveRequest(types.SourceDBLP, metrics.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("DBLP search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	r.opts.Metrics.ObserveRequest(types.SourceDBLP, metrics.OutcomeOK, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("reading DBLP response: %w", err)
	}

	papers, err := parseResponse(body, r.opts.DropAuthorless, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to parse DBLP response")
		return []*types.Paper{}, nil
	}
	r.opts.Metrics.AddRetrieved(len(papers))
	log.Info().Int("papers", len(papers)).Msg("fetched papers from DBLP")
	return papers, nil
}

// loadRobots fetches robots.txt once and adopts its Crawl-delay.
func (r *Retriever) loadRobots(ctx context.Context, log zerolog.Logger) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	if r.guard.Loaded() {
		return nil
	}
	if err := r.guard.Load(ctx, r.client); err != nil {
		return fmt.Errorf("loading dblp robots.txt: %w", err)
	}
	delay, ok, err := r.guard.CrawlDelay()
	if err != nil {
		return err
	}
	if ok {
		log.Info().Dur("crawl_delay", delay).Msg("honouring robots.txt crawl delay")
		r.crawlDelay = ratelimit.Named(types.SourceDBLP, delay, r.opts.Metrics)
	}
	return nil
}

// BuildQuery returns the DBLP query for one conference stream and year. The
// space becomes "+" once URL-encoded: "stream:conf/recsys:+year:2025:".
func BuildQuery(conf types.Conference, year int) string {
	return fmt.Sprintf("stream:conf/%s: year:%d:", conf, year)
}
