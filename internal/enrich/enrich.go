// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich fills in abstracts and PDF links for papers retrieved from
// DBLP by querying Semantic Scholar, Unpaywall and arXiv.
//
// Each source is an Enricher. The Orchestrator runs enrichers as sequential
// passes over one paper collection; inside a pass an enricher fans out one
// goroutine per paper (or per DOI batch) bounded by a shared semaphore and
// the source's rate limiter. A goroutine only ever mutates the papers it was
// handed, so papers need no locking.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/paper-crawler/internal/httputil"
	"github.com/pdiddy/paper-crawler/internal/metrics"
	"github.com/pdiddy/paper-crawler/internal/ratelimit"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// Usage errors.
var (
	// ErrNoClient is returned when an enricher is used without an HTTP client.
	ErrNoClient = errors.New("enricher has no HTTP client")

	// ErrMissingEmail is returned by Unpaywall when no contact email is configured.
	ErrMissingEmail = errors.New("unpaywall requires a contact email")
)

// Enricher adds data from one source to papers in place.
type Enricher interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Enrich merges the source's data into papers. sem bounds in-flight
	// requests for the pass. An error aborts the pass; expected misses
	// (not found, unparsable item) are not errors.
	Enrich(ctx context.Context, papers []*types.Paper, sem *semaphore.Weighted, overwrite bool) error
}

// DefaultConcurrency bounds in-flight requests per pass when unset.
const DefaultConcurrency = 3

// PassResult describes one completed (or failed) enrichment pass.
type PassResult struct {
	Source   string
	Duration time.Duration
	Stats    Stats
	Err      error
}

// Orchestrator runs enrichers over a paper collection, one pass per enricher.
type Orchestrator struct {
	Enrichers   []Enricher
	Concurrency int
	Overwrite   bool
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics

	// OnPass, when set, is called after every pass.
	OnPass func(PassResult)
}

// Run enriches papers in place and returns them. Passes run in order and
// each pass finishes before the next starts, so later sources see earlier
// merges. The first failing pass stops the run; papers keep whatever was
// merged before the failure.
func (o *Orchestrator) Run(ctx context.Context, papers []*types.Paper) ([]*types.Paper, error) {
	concurrency := o.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	for _, e := range o.Enrichers {
		if err := ctx.Err(); err != nil {
			return papers, err
		}
		log := o.Logger.With().Str("source", e.Name()).Logger()
		log.Info().Int("papers", len(papers)).Msg("starting enrichment pass")

		start := time.Now()
		sem := semaphore.NewWeighted(int64(concurrency))
		err := e.Enrich(ctx, papers, sem, o.Overwrite)

		res := PassResult{
			Source:   e.Name(),
			Duration: time.Since(start),
			Stats:    Summarize(papers),
			Err:      err,
		}
		o.Metrics.ObservePass(e.Name(), res.Duration)
		if o.OnPass != nil {
			o.OnPass(res)
		}
		if err != nil {
			log.Error().Err(err).Dur("duration", res.Duration).Msg("enrichment pass failed")
			return papers, fmt.Errorf("%s enrichment: %w", e.Name(), err)
		}
		log.Info().
			Dur("duration", res.Duration).
			Float64("abstract_rate", res.Stats.AbstractRate()).
			Float64("pdf_rate", res.Stats.PDFRate()).
			Msg(res.Stats.String())
	}
	return papers, nil
}

// source carries what every adapter needs to issue requests.
type source struct {
	name    string
	client  *http.Client
	limiter *ratelimit.Limiter
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// fetch performs req under sem and the limiter and returns the body of a
// 200 response. Non-200 statuses come back as *httputil.StatusError. The
// semaphore is held until the body has been read.
func (s *source) fetch(ctx context.Context, sem *semaphore.Weighted, req *http.Request) ([]byte, error) {
	if s.client == nil {
		return nil, ErrNoClient
	}
	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer sem.Release(1)
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("%s limiter: %w", s.limiter.Name(), err)
	}

	start := time.Now()
	resp, err := httputil.DoWithRetry(s.log.WithContext(ctx), s.client, req, 0)
	if err != nil {
		outcome := metrics.OutcomeError
		if httputil.IsNotFound(err) {
			outcome = metrics.OutcomeNotFound
		}
		s.metrics.ObserveRequest(s.name, outcome, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.metrics.ObserveRequest(s.name, metrics.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("reading %s response: %w", s.name, err)
	}
	s.metrics.ObserveRequest(s.name, metrics.OutcomeOK, time.Since(start))
	return body, nil
}

// merge applies u to p and records the written fields.
func (s *source) merge(p *types.Paper, u types.PaperUpdate, overwrite bool) Change {
	if u.IsEmpty() {
		return Change{}
	}
	c := Merge(p, u, overwrite)
	if c.Any() {
		s.log.Debug().Str("source", s.name).Str("title", p.Title).
			Bool("abstract", c.Abstract).Bool("pdf_url", c.PDFURL).Msg("merged update")
	}
	if c.Abstract {
		s.metrics.AddEnriched(s.name, "abstract")
	}
	if c.PDFURL {
		s.metrics.AddEnriched(s.name, "pdf_url")
	}
	return c
}

// recoverable reports whether a failed lookup should count as "no data"
// rather than abort the pass: 404s and transport failures (timeouts,
// refused connections) are; other HTTP statuses and cancellation are not.
func recoverable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrNoClient) {
		return false
	}
	if httputil.IsNotFound(err) {
		return true
	}
	var se *httputil.StatusError
	return !errors.As(err, &se)
}
