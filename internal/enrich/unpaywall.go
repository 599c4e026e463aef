// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/paper-crawler/internal/metrics"
	"github.com/pdiddy/paper-crawler/internal/ratelimit"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// unpaywallAPIBase is the Unpaywall API root. Declared as a var so tests can
// substitute an httptest server.
var unpaywallAPIBase = "https://api.unpaywall.org"

// Unpaywall enriches papers with open-access PDF links, one DOI per request.
type Unpaywall struct {
	Client  *http.Client
	Limiter *ratelimit.Limiter

	// Email is sent with every request, as Unpaywall's terms require.
	Email string

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Name returns the source identifier.
func (u *Unpaywall) Name() string { return types.SourceUnpaywall }

func (u *Unpaywall) source() *source {
	return &source{name: u.Name(), client: u.Client, limiter: u.Limiter, log: u.Logger, metrics: u.Metrics}
}

// Enrich looks up every paper with a DOI, one goroutine per paper.
func (u *Unpaywall) Enrich(ctx context.Context, papers []*types.Paper, sem *semaphore.Weighted, overwrite bool) error {
	if u.Client == nil {
		return ErrNoClient
	}
	if u.Email == "" {
		return ErrMissingEmail
	}

	var targets []*types.Paper
	for _, p := range papers {
		if p.HasDOI() {
			targets = append(targets, p)
		}
	}
	src := u.source()

	return ForEach(ctx, len(targets), func(ctx context.Context, i int) error {
		p := targets[i]
		update, err := u.FetchByDOI(ctx, p.DOI, sem)
		if err != nil {
			return err
		}
		if update != nil {
			src.merge(p, *update, overwrite)
		}
		return nil
	})
}

// FetchByDOI returns the PDF location Unpaywall knows for doi, or nil when
// the DOI is unknown (404) or the response is unusable.
func (u *Unpaywall) FetchByDOI(ctx context.Context, doi string, sem *semaphore.Weighted) (*types.PaperUpdate, error) {
	if u.Email == "" {
		return nil, ErrMissingEmail
	}
	log := u.Logger.With().Str("source", u.Name()).Str("doi", doi).Logger()

	endpoint, err := url.Parse(unpaywallAPIBase)
	if err != nil {
		return nil, fmt.Errorf("parsing Unpaywall base URL: %w", err)
	}
	endpoint.Path += "/v2/" + doi
	endpoint.RawQuery = url.Values{"email": {u.Email}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := u.source().fetch(ctx, sem, req)
	if err != nil {
		if recoverable(ctx, err) {
			log.Debug().Err(err).Msg("no Unpaywall data")
			return nil, nil
		}
		return nil, fmt.Errorf("Unpaywall request for %s: %w", doi, err)
	}

	var resp unpaywallResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Warn().Err(err).Msg("failed to parse Unpaywall response")
		return nil, nil
	}
	if resp.DOI == nil {
		log.Warn().Msg("Unpaywall response is missing doi")
		return nil, nil
	}

	return &types.PaperUpdate{
		DOI:    resp.DOI,
		Title:  types.String(resp.Title),
		PDFURL: types.String(resp.pdfURL()),
	}, nil
}

// Unpaywall API JSON structures.
type unpaywallResponse struct {
	DOI            *string             `json:"doi"`
	Title          string              `json:"title"`
	IsOA           bool                `json:"is_oa"`
	BestOALocation *unpaywallLocation  `json:"best_oa_location"`
	OALocations    []unpaywallLocation `json:"oa_locations"`
}

type unpaywallLocation struct {
	URLForPDF     string `json:"url_for_pdf"`
	URLForLanding string `json:"url_for_landing_page"`
}

// pdfURL prefers the best location and otherwise takes the first location
// with a PDF, in listed order.
func (r unpaywallResponse) pdfURL() string {
	if r.BestOALocation != nil && r.BestOALocation.URLForPDF != "" {
		return r.BestOALocation.URLForPDF
	}
	for _, loc := range r.OALocations {
		if loc.URLForPDF != "" {
			return loc.URLForPDF
		}
	}
	return ""
}
