// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/paper-crawler/internal/metrics"
	"github.com/pdiddy/paper-crawler/internal/ratelimit"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests can
// substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// Arxiv enriches papers from the arXiv API, matching by DOI first and by
// exact title when the DOI finds nothing. Papers without a DOI are still
// looked up by title.
type Arxiv struct {
	Client *http.Client

	// Limiter should allow about one request per second; arXiv penalizes
	// bursts. Share it to keep one arXiv budget across a run.
	Limiter *ratelimit.Limiter

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Name returns the source identifier.
func (a *Arxiv) Name() string { return types.SourceArxiv }

func (a *Arxiv) source() *source {
	return &source{name: a.Name(), client: a.Client, limiter: a.Limiter, log: a.Logger, metrics: a.Metrics}
}

// Enrich looks up every paper, one goroutine per paper.
func (a *Arxiv) Enrich(ctx context.Context, papers []*types.Paper, sem *semaphore.Weighted, overwrite bool) error {
	if a.Client == nil {
		return ErrNoClient
	}
	src := a.source()

	return ForEach(ctx, len(papers), func(ctx context.Context, i int) error {
		p := papers[i]
		update, err := a.Lookup(ctx, p, sem)
		if err != nil {
			return err
		}
		if update != nil {
			src.merge(p, *update, overwrite)
		}
		return nil
	})
}

// Lookup tries the DOI query, then the title query when the DOI query
// found nothing. It returns nil when neither matches.
func (a *Arxiv) Lookup(ctx context.Context, p *types.Paper, sem *semaphore.Weighted) (*types.PaperUpdate, error) {
	if p.HasDOI() {
		u, err := a.FetchByDOI(ctx, p.DOI, sem)
		if err != nil || u != nil {
			return u, err
		}
	}
	if p.Title == "" {
		return nil, nil
	}
	return a.FetchByTitle(ctx, p.Title, sem)
}

// FetchByDOI queries arXiv for doi.
func (a *Arxiv) FetchByDOI(ctx context.Context, doi string, sem *semaphore.Weighted) (*types.PaperUpdate, error) {
	return a.query(ctx, "doi:"+doi, sem)
}

// FetchByTitle queries arXiv for an exact title. Double quotes are removed
// from the title so they cannot break the phrase query.
func (a *Arxiv) FetchByTitle(ctx context.Context, title string, sem *semaphore.Weighted) (*types.PaperUpdate, error) {
	return a.query(ctx, TitleQuery(title), sem)
}

// TitleQuery builds the exact-title search for title.
func TitleQuery(title string) string {
	return `ti:"` + strings.ReplaceAll(title, `"`, "") + `"`
}

// query returns the first entry for q. Request and parse failures are
// logged and reported as no match; only cancellation is returned.
func (a *Arxiv) query(ctx context.Context, q string, sem *semaphore.Weighted) (*types.PaperUpdate, error) {
	log := a.Logger.With().Str("source", a.Name()).Str("query", q).Logger()

	params := url.Values{
		"search_query": {q},
		"start":        {"0"},
		"max_results":  {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/atom+xml")

	body, err := a.source().fetch(ctx, sem, req)
	if err != nil {
		if ctx.Err() != nil || err == ErrNoClient {
			return nil, err
		}
		log.Warn().Err(err).Msg("arXiv fetch error")
		return nil, nil
	}

	update, err := parseArxivFeed(body, log)
	if err != nil {
		log.Warn().Err(err).Msg("failed to parse arXiv response")
		return nil, nil
	}
	return update, nil
}

// parseArxivFeed converts the first entry of an Atom feed. A feed without
// entries yields nil.
func parseArxivFeed(body []byte, log zerolog.Logger) (*types.PaperUpdate, error) {
	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decoding arXiv feed: %w", err)
	}
	if len(feed.Entries) == 0 {
		return nil, nil
	}
	entry := feed.Entries[0]

	u := &types.PaperUpdate{
		Title:    types.String(strings.TrimSpace(entry.Title)),
		Abstract: types.String(strings.TrimSpace(entry.Summary)),
		Authors:  []string{},
		Year:     types.Int(publishedYear(entry.Published, log)),
	}
	for _, au := range entry.Authors {
		if name := strings.TrimSpace(au.Name); name != "" {
			u.Authors = append(u.Authors, name)
		}
	}
	for _, link := range entry.Links {
		if link.Title == "pdf" {
			u.PDFURL = types.String(link.Href)
			break
		}
	}
	return u, nil
}

// publishedYear reads the year from an RFC 3339 timestamp, logging and
// returning 0 when it cannot.
func publishedYear(published string, log zerolog.Logger) int {
	published = strings.TrimSpace(published)
	if published == "" {
		return 0
	}
	if len(published) >= 4 {
		if y, err := strconv.Atoi(published[:4]); err == nil {
			return y
		}
	}
	log.Warn().Str("published", published).Msg("failed to parse published year from arXiv entry")
	return 0
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
	Links     []arxivLink   `xml:"link"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}
