// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/paper-crawler/internal/metrics"
	"github.com/pdiddy/paper-crawler/internal/ratelimit"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// Base URLs. Declared as vars so tests can substitute httptest servers.
var (
	semanticAPIBase = "https://api.semanticscholar.org"
	arxivSiteBase   = "https://arxiv.org"
)

const (
	semanticBatchPath = "/graph/v1/paper/batch"
	semanticFields    = "externalIds,abstract,openAccessPdf"

	// MaxSemanticBatch is the most IDs the batch endpoint accepts per request.
	MaxSemanticBatch = 500
)

// arxivAbsPattern finds an arXiv abstract page in an openAccessPdf disclaimer.
var arxivAbsPattern = regexp.MustCompile(`https://arxiv\.org/abs/([\w./-]+)`)

// SemanticScholar enriches papers with abstracts and open-access PDF links
// from the Semantic Scholar batch API, keyed by DOI.
type SemanticScholar struct {
	Client  *http.Client
	Limiter *ratelimit.Limiter
	APIKey  string

	// BatchSize caps DOIs per request (MaxSemanticBatch when unset or larger).
	BatchSize int

	// VerifyArxivLinks HEAD-checks an arXiv abstract page found in a
	// disclaimer before using its PDF URL.
	VerifyArxivLinks bool

	// ArxivLimiter throttles those HEAD checks; share the arXiv enricher's
	// limiter to keep one arXiv budget per run.
	ArxivLimiter *ratelimit.Limiter

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Name returns the source identifier.
func (s *SemanticScholar) Name() string { return types.SourceSemanticScholar }

func (s *SemanticScholar) source() *source {
	return &source{name: s.Name(), client: s.Client, limiter: s.Limiter, log: s.Logger, metrics: s.Metrics}
}

// Enrich looks up every paper with a DOI, one request per batch of DOIs,
// batches running concurrently. Papers sharing a DOI all receive the update.
func (s *SemanticScholar) Enrich(ctx context.Context, papers []*types.Paper, sem *semaphore.Weighted, overwrite bool) error {
	if s.Client == nil {
		return ErrNoClient
	}

	byDOI := make(map[string][]*types.Paper)
	var dois []string
	for _, p := range papers {
		if !p.HasDOI() {
			continue
		}
		if _, seen := byDOI[p.DOI]; !seen {
			dois = append(dois, p.DOI)
		}
		byDOI[p.DOI] = append(byDOI[p.DOI], p)
	}
	if len(dois) == 0 {
		return nil
	}

	size := s.BatchSize
	if size <= 0 || size > MaxSemanticBatch {
		size = MaxSemanticBatch
	}
	batches := chunk(dois, size)
	src := s.source()

	return ForEach(ctx, len(batches), func(ctx context.Context, i int) error {
		updates, err := s.FetchBatch(ctx, batches[i], sem)
		if err != nil {
			return err
		}
		// Batches hold disjoint DOIs, so each goroutine writes its own papers.
		for doi, u := range updates {
			for _, p := range byDOI[doi] {
				src.merge(p, u, overwrite)
			}
		}
		return nil
	})
}

// FetchBatch looks up dois in one request and returns the updates found,
// keyed by the requested DOI. Entries the API answers with null are absent
// from the map. A 404 or an unparsable body yields an empty map.
func (s *SemanticScholar) FetchBatch(ctx context.Context, dois []string, sem *semaphore.Weighted) (map[string]types.PaperUpdate, error) {
	log := s.Logger.With().Str("source", s.Name()).Int("dois", len(dois)).Logger()
	src := s.source()

	ids := make([]string, len(dois))
	for i, doi := range dois {
		ids[i] = "DOI:" + doi
	}
	payload, err := json.Marshal(semanticBatchRequest{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("encoding Semantic Scholar request: %w", err)
	}

	params := url.Values{"fields": {semanticFields}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		semanticAPIBase+semanticBatchPath+"?"+params.Encode(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	body, err := src.fetch(ctx, sem, req)
	if err != nil {
		if recoverable(ctx, err) {
			log.Debug().Err(err).Msg("no Semantic Scholar data for batch")
			return map[string]types.PaperUpdate{}, nil
		}
		return nil, fmt.Errorf("Semantic Scholar batch request: %w", err)
	}

	var entries []*semanticPaper
	if err := json.Unmarshal(body, &entries); err != nil {
		log.Warn().Err(err).Msg("failed to parse Semantic Scholar response")
		return map[string]types.PaperUpdate{}, nil
	}
	if len(entries) != len(dois) {
		log.Warn().Int("entries", len(entries)).Msg("Semantic Scholar response length differs from request")
	}

	updates := make(map[string]types.PaperUpdate)
	for i, entry := range entries {
		if i >= len(dois) {
			break
		}
		if entry == nil {
			continue
		}
		u := types.PaperUpdate{
			DOI:      types.String(dois[i]),
			Abstract: types.String(entry.Abstract),
			PDFURL:   types.String(s.resolvePDF(ctx, entry.OpenAccessPDF, sem)),
		}
		if entry.Title != "" {
			u.Title = types.String(entry.Title)
		}
		updates[dois[i]] = u
	}
	return updates, nil
}

// resolvePDF prefers openAccessPdf.url and falls back to an arXiv abstract
// page named in the disclaimer. Any failure means no PDF.
func (s *SemanticScholar) resolvePDF(ctx context.Context, oa *semanticOpenAccess, sem *semaphore.Weighted) string {
	if oa == nil {
		return ""
	}
	if oa.URL != "" {
		return oa.URL
	}
	m := arxivAbsPattern.FindStringSubmatch(oa.Disclaimer)
	if m == nil {
		return ""
	}
	absURL := arxivSiteBase + "/abs/" + m[1]
	pdfURL := arxivSiteBase + "/pdf/" + m[1]
	if !s.VerifyArxivLinks {
		return pdfURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, absURL, nil)
	if err != nil {
		return ""
	}
	check := &source{name: types.SourceArxiv, client: s.Client, limiter: s.ArxivLimiter, log: s.Logger, metrics: s.Metrics}
	if _, err := check.fetch(ctx, sem, req); err != nil {
		s.Logger.Debug().Err(err).Str("url", absURL).Msg("arXiv abstract page not reachable")
		return ""
	}
	return pdfURL
}

// Semantic Scholar batch API JSON structures.
type semanticBatchRequest struct {
	IDs []string `json:"ids"`
}

type semanticPaper struct {
	PaperID       string              `json:"paperId"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract"`
	ExternalIDs   semanticExternalIDs `json:"externalIds"`
	OpenAccessPDF *semanticOpenAccess `json:"openAccessPdf"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

type semanticOpenAccess struct {
	URL        string `json:"url"`
	Status     string `json:"status"`
	Disclaimer string `json:"disclaimer"`
}
