// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for the pooled client used by every stage.
type HTTPConfig struct {
	// Timeout is the per-request timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "ArchilogBot/1.0"). It is also the agent matched against robots.txt.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxConnsPerHost bounds open connections per host (default 100).
	MaxConnsPerHost int `json:"max_conns_per_host" yaml:"max_conns_per_host" mapstructure:"max_conns_per_host"`

	// MaxIdleConns bounds keep-alive connections (default 20).
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns" mapstructure:"max_idle_conns"`

	// IdleConnTimeout is the keep-alive expiry (default 5s).
	IdleConnTimeout time.Duration `json:"idle_conn_timeout" yaml:"idle_conn_timeout" mapstructure:"idle_conn_timeout"`
}

// RetrievalConfig holds settings for the DBLP retrieval stage.
type RetrievalConfig struct {
	// Conference is the DBLP stream key (e.g. "recsys").
	Conference Conference `json:"conference" yaml:"conference" mapstructure:"conference"`

	// Years lists the publication years to crawl.
	Years []int `json:"years" yaml:"years" mapstructure:"years"`

	// MaxResults is the DBLP "h" parameter (default 1000).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// DropAuthorless drops hits whose author list normalizes to empty.
	DropAuthorless bool `json:"drop_authorless" yaml:"drop_authorless" mapstructure:"drop_authorless"`
}

// EnrichmentConfig holds settings for the enrichment passes.
type EnrichmentConfig struct {
	// Sources lists enrichers in pass order: "semantic_scholar", "unpaywall", "arxiv".
	Sources []string `json:"sources" yaml:"sources" mapstructure:"sources"`

	// Concurrency bounds in-flight requests per pass (default 3).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// Overwrite lets later sources replace an existing abstract or PDF URL.
	Overwrite bool `json:"overwrite" yaml:"overwrite" mapstructure:"overwrite"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// UnpaywallEmail is the contact address Unpaywall requires on every request.
	UnpaywallEmail string `json:"unpaywall_email,omitempty" yaml:"unpaywall_email,omitempty" mapstructure:"unpaywall_email"`

	// VerifyArxivLinks makes Semantic Scholar HEAD-check arXiv pages found in
	// openAccessPdf disclaimers before synthesizing a PDF URL.
	VerifyArxivLinks bool `json:"verify_arxiv_links" yaml:"verify_arxiv_links" mapstructure:"verify_arxiv_links"`
}

// CrawlConfig groups all stage configurations for one run.
type CrawlConfig struct {
	HTTP       HTTPConfig       `json:"http" yaml:"http" mapstructure:"http"`
	Retrieval  RetrievalConfig  `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
	Enrichment EnrichmentConfig `json:"enrichment" yaml:"enrichment" mapstructure:"enrichment"`
}

// Source names accepted in EnrichmentConfig.Sources.
const (
	SourceSemanticScholar = "semantic_scholar"
	SourceUnpaywall       = "unpaywall"
	SourceArxiv           = "arxiv"
	SourceDBLP            = "dblp"
)

// DefaultCrawlConfig returns the settings the crawler runs with when no
// config file or flag overrides them.
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		HTTP: HTTPConfig{
			Timeout:         30 * time.Second,
			UserAgent:       "ArchilogBot/1.0",
			MaxConnsPerHost: 100,
			MaxIdleConns:    20,
			IdleConnTimeout: 5 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Conference: ConfRecSys,
			MaxResults: 1000,
		},
		Enrichment: EnrichmentConfig{
			Sources:          []string{SourceSemanticScholar, SourceUnpaywall, SourceArxiv},
			Concurrency:      3,
			VerifyArxivLinks: true,
		},
	}
}
