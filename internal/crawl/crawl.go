// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawl sequences one run: retrieve papers from DBLP for every
// configured year, then enrich them pass by pass.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-crawler/internal/dblp"
	"github.com/pdiddy/paper-crawler/internal/enrich"
	"github.com/pdiddy/paper-crawler/internal/httputil"
	"github.com/pdiddy/paper-crawler/internal/metrics"
	"github.com/pdiddy/paper-crawler/internal/ratelimit"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// ErrNoYears is returned when the retrieval config names no year.
var ErrNoYears = errors.New("no publication years configured")

// sourceIntervals is the per-source request budget for a run.
var sourceIntervals = map[string]time.Duration{
	types.SourceDBLP:            ratelimit.DBLPInterval,
	types.SourceSemanticScholar: ratelimit.SemanticScholarInterval,
	types.SourceUnpaywall:       ratelimit.UnpaywallInterval,
	types.SourceArxiv:           ratelimit.ArxivInterval,
}

// Options carries the collaborators of a run.
type Options struct {
	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	// Client replaces the pooled client built from the HTTP config. The
	// caller keeps ownership of a client passed here.
	Client *http.Client

	// OnPass is forwarded to the orchestrator.
	OnPass func(enrich.PassResult)
}

// Result is the outcome of a run.
type Result struct {
	Papers []*types.Paper
	Stats  enrich.Stats
}

// Run retrieves and enriches papers. On an enrichment failure the papers
// retrieved so far, with whatever was merged before the failure, are still
// returned alongside the error.
func Run(ctx context.Context, cfg types.CrawlConfig, opts Options) (*Result, error) {
	r := newRunner(cfg, opts)
	defer r.close()

	enrichers, err := r.enrichers()
	if err != nil {
		return nil, err
	}
	papers, err := r.retrieve(ctx)
	if err != nil {
		return nil, err
	}
	return r.enrich(ctx, enrichers, papers)
}

// Enrich runs only the enrichment passes over an existing collection, such
// as one written by a previous retrieval.
func Enrich(ctx context.Context, cfg types.CrawlConfig, papers []*types.Paper, opts Options) (*Result, error) {
	r := newRunner(cfg, opts)
	defer r.close()

	enrichers, err := r.enrichers()
	if err != nil {
		return nil, err
	}
	return r.enrich(ctx, enrichers, papers)
}

// Retrieve runs only the DBLP stage.
func Retrieve(ctx context.Context, cfg types.CrawlConfig, opts Options) ([]*types.Paper, error) {
	r := newRunner(cfg, opts)
	defer r.close()
	return r.retrieve(ctx)
}

// runner owns the resources shared by every stage of one run.
type runner struct {
	cfg      types.CrawlConfig
	opts     Options
	client   *http.Client
	owned    bool
	limiters map[string]*ratelimit.Limiter
}

func newRunner(cfg types.CrawlConfig, opts Options) *runner {
	if cfg.Retrieval.Conference == "" {
		cfg.Retrieval.Conference = types.ConfRecSys
	}
	r := &runner{cfg: cfg, opts: opts, client: opts.Client, limiters: make(map[string]*ratelimit.Limiter)}
	if r.client == nil {
		r.client = httputil.NewClient(cfg.HTTP)
		r.owned = true
	}
	for name, interval := range sourceIntervals {
		r.limiters[name] = ratelimit.Named(name, interval, opts.Metrics)
	}
	return r
}

func (r *runner) close() {
	if r.owned {
		r.client.CloseIdleConnections()
	}
}

// retrieve fetches every configured year and concatenates the results in
// year order. Years are fetched concurrently under the shared DBLP limiter.
func (r *runner) retrieve(ctx context.Context) ([]*types.Paper, error) {
	if len(r.cfg.Retrieval.Years) == 0 {
		return nil, ErrNoYears
	}
	if _, known := types.ParseConference(string(r.cfg.Retrieval.Conference)); !known {
		r.opts.Logger.Warn().Str("conference", string(r.cfg.Retrieval.Conference)).
			Msg("conference is not in the known list; querying DBLP anyway")
	}
	ret := dblp.NewRetriever(r.client, nil, r.limiters[types.SourceDBLP], dblp.Options{
		DropAuthorless: r.cfg.Retrieval.DropAuthorless,
		Logger:         r.opts.Logger,
		Metrics:        r.opts.Metrics,
	})

	years := r.cfg.Retrieval.Years
	perYear := make([][]*types.Paper, len(years))
	err := enrich.ForEach(ctx, len(years), func(ctx context.Context, i int) error {
		papers, err := ret.FetchPapers(ctx, r.cfg.Retrieval.Conference, years[i], r.cfg.Retrieval.MaxResults)
		if err != nil {
			return fmt.Errorf("retrieving %s %d: %w", r.cfg.Retrieval.Conference, years[i], err)
		}
		perYear[i] = papers
		return nil
	})
	if err != nil {
		return nil, err
	}

	papers := []*types.Paper{}
	for _, batch := range perYear {
		papers = append(papers, batch...)
	}
	r.opts.Logger.Info().Int("papers", len(papers)).Ints("years", years).Msg("retrieval complete")
	return papers, nil
}

func (r *runner) enrich(ctx context.Context, enrichers []enrich.Enricher, papers []*types.Paper) (*Result, error) {
	orch := &enrich.Orchestrator{
		Enrichers:   enrichers,
		Concurrency: r.cfg.Enrichment.Concurrency,
		Overwrite:   r.cfg.Enrichment.Overwrite,
		Logger:      r.opts.Logger,
		Metrics:     r.opts.Metrics,
		OnPass:      r.opts.OnPass,
	}
	papers, err := orch.Run(ctx, papers)

	res := &Result{Papers: papers, Stats: enrich.Summarize(papers)}
	if err != nil {
		return res, err
	}
	r.opts.Logger.Info().Msg(res.Stats.String())
	return res, nil
}

// enrichers builds the configured sources in pass order. The arXiv limiter
// is shared with Semantic Scholar's arXiv link checks.
func (r *runner) enrichers() ([]enrich.Enricher, error) {
	ec := r.cfg.Enrichment
	var out []enrich.Enricher
	for _, name := range ec.Sources {
		switch name {
		case types.SourceSemanticScholar:
			out = append(out, &enrich.SemanticScholar{
				Client:           r.client,
				Limiter:          r.limiters[types.SourceSemanticScholar],
				APIKey:           ec.SemanticScholarAPIKey,
				VerifyArxivLinks: ec.VerifyArxivLinks,
				ArxivLimiter:     r.limiters[types.SourceArxiv],
				Logger:           r.opts.Logger,
				Metrics:          r.opts.Metrics,
			})
		case types.SourceUnpaywall:
			if ec.UnpaywallEmail == "" {
				return nil, fmt.Errorf("source %s: %w", name, enrich.ErrMissingEmail)
			}
			out = append(out, &enrich.Unpaywall{
				Client:  r.client,
				Limiter: r.limiters[types.SourceUnpaywall],
				Email:   ec.UnpaywallEmail,
				Logger:  r.opts.Logger,
				Metrics: r.opts.Metrics,
			})
		case types.SourceArxiv:
			out = append(out, &enrich.Arxiv{
				Client:  r.client,
				Limiter: r.limiters[types.SourceArxiv],
				Logger:  r.opts.Logger,
				Metrics: r.opts.Metrics,
			})
		default:
			return nil, fmt.Errorf("unknown enrichment source %q", name)
		}
	}
	return out, nil
}
