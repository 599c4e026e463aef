// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-crawler/internal/secrets"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// Environment variables consulted for credentials after flags and config.
const (
	envUnpaywallEmail        = "UNPAYWALL_EMAIL"
	envSemanticScholarAPIKey = "SEMANTIC_SCHOLAR_API_KEY"
)

// setConfigDefaults registers every crawl setting with its default so config
// files and PAPER_CRAWLER_* variables can override any of them.
func setConfigDefaults(v *viper.Viper) {
	d := types.DefaultCrawlConfig()

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("http.max_conns_per_host", d.HTTP.MaxConnsPerHost)
	v.SetDefault("http.max_idle_conns", d.HTTP.MaxIdleConns)
	v.SetDefault("http.idle_conn_timeout", d.HTTP.IdleConnTimeout)

	v.SetDefault("retrieval.conference", string(d.Retrieval.Conference))
	v.SetDefault("retrieval.years", d.Retrieval.Years)
	v.SetDefault("retrieval.max_results", d.Retrieval.MaxResults)
	v.SetDefault("retrieval.drop_authorless", d.Retrieval.DropAuthorless)

	v.SetDefault("enrichment.sources", d.Enrichment.Sources)
	v.SetDefault("enrichment.concurrency", d.Enrichment.Concurrency)
	v.SetDefault("enrichment.overwrite", d.Enrichment.Overwrite)
	v.SetDefault("enrichment.semantic_scholar_api_key", "")
	v.SetDefault("enrichment.unpaywall_email", "")
	v.SetDefault("enrichment.verify_arxiv_links", d.Enrichment.VerifyArxivLinks)
}

// addRetrievalFlags registers the flags shared by crawl and fetch.
func addRetrievalFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("conference", "", "DBLP conference key (recsys, kdd, wsdm, www, sigir, cikm, ...)")
	f.IntSlice("year", nil, "publication year; repeat or comma-separate for several")
	f.Int("max-results", 0, "maximum DBLP hits per year (default 1000)")
	f.Bool("drop-authorless", false, "drop DBLP hits without authors")
	f.String("format", "table", "stdout format: table, json or yaml")
	f.StringP("output", "o", "", "also write papers to this .json, .yaml or .db file")
}

// addEnrichmentFlags registers the flags only crawl uses.
func addEnrichmentFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("sources", nil, "enrichment sources in pass order (semantic_scholar, unpaywall, arxiv)")
	f.Int("concurrency", 0, "in-flight requests per enrichment pass (default 3)")
	f.Bool("overwrite", false, "let later sources replace an existing abstract or PDF URL")
	f.String("unpaywall-email", "", "contact email sent to Unpaywall")
	f.String("semantic-scholar-api-key", "", "Semantic Scholar API key")
	f.Bool("no-verify-arxiv", false, "skip the HEAD check on arXiv links found by Semantic Scholar")
}

// crawlConfig resolves the run configuration: explicit flags, then the
// viper layer (environment and config file), then credentials from the
// environment and .secrets/.
func crawlConfig(cmd *cobra.Command) (types.CrawlConfig, error) {
	cfg := types.DefaultCrawlConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}

	f := cmd.Flags()
	if f.Changed("conference") {
		s, _ := f.GetString("conference")
		cfg.Retrieval.Conference = types.Conference(s)
	}
	if f.Changed("year") {
		cfg.Retrieval.Years, _ = f.GetIntSlice("year")
	}
	if f.Changed("max-results") {
		cfg.Retrieval.MaxResults, _ = f.GetInt("max-results")
	}
	if f.Changed("drop-authorless") {
		cfg.Retrieval.DropAuthorless, _ = f.GetBool("drop-authorless")
	}

	if f.Lookup("sources") != nil {
		if f.Changed("sources") {
			cfg.Enrichment.Sources, _ = f.GetStringSlice("sources")
		}
		if f.Changed("concurrency") {
			cfg.Enrichment.Concurrency, _ = f.GetInt("concurrency")
		}
		if f.Changed("overwrite") {
			cfg.Enrichment.Overwrite, _ = f.GetBool("overwrite")
		}
		if f.Changed("unpaywall-email") {
			cfg.Enrichment.UnpaywallEmail, _ = f.GetString("unpaywall-email")
		}
		if f.Changed("semantic-scholar-api-key") {
			cfg.Enrichment.SemanticScholarAPIKey, _ = f.GetString("semantic-scholar-api-key")
		}
		if noVerify, _ := f.GetBool("no-verify-arxiv"); noVerify {
			cfg.Enrichment.VerifyArxivLinks = false
		}
	}

	cfg.Enrichment.UnpaywallEmail = loadedSecrets.Or(secrets.UnpaywallEmail,
		firstNonEmpty(cfg.Enrichment.UnpaywallEmail, os.Getenv(envUnpaywallEmail)))
	cfg.Enrichment.SemanticScholarAPIKey = loadedSecrets.Or(secrets.SemanticScholarAPIKey,
		firstNonEmpty(cfg.Enrichment.SemanticScholarAPIKey, os.Getenv(envSemanticScholarAPIKey)))

	cfg.Retrieval.Conference, _ = types.ParseConference(string(cfg.Retrieval.Conference))
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
