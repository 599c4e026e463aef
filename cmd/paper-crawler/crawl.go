// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-crawler/internal/crawl"
	"github.com/pdiddy/paper-crawler/internal/enrich"
	"github.com/pdiddy/paper-crawler/internal/export"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Retrieve papers from DBLP and enrich them",
	Long: `Crawl retrieves every paper of a conference for the requested years from
DBLP, then runs the enrichment sources in order. Each source fills in missing
abstracts and PDF links; with --overwrite later sources replace earlier ones.

With --input, retrieval is skipped and a collection written earlier by
"fetch --output" or "crawl --output" is enriched instead.`,
	Example: `  paper-crawler crawl --conference recsys --year 2025
  paper-crawler crawl --year 2024,2025 --sources semantic_scholar,arxiv -o recsys.json
  paper-crawler crawl --input recsys.json --sources unpaywall --format yaml`,
	RunE: runCrawl,
}

func init() {
	addRetrievalFlags(crawlCmd)
	addEnrichmentFlags(crawlCmd)
	crawlCmd.Flags().String("input", "", "enrich papers from this .json, .yaml or .db file instead of DBLP")

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	cfg, err := crawlConfig(cmd)
	if err != nil {
		return err
	}

	opts := crawl.Options{
		Logger:  logger,
		Metrics: runMetrics,
		OnPass: func(p enrich.PassResult) {
			if p.Err == nil {
				fmt.Fprintf(os.Stderr, "%s: %s (%s)\n", p.Source, p.Stats, p.Duration.Round(time.Millisecond))
			}
		},
	}

	var (
		res    *crawl.Result
		runErr error
	)
	input, _ := cmd.Flags().GetString("input")
	if input != "" {
		papers, err := export.ReadFile(cmd.Context(), input)
		if err != nil {
			return err
		}
		logger.Info().Str("file", input).Int("papers", len(papers)).Msg("loaded papers")
		res, runErr = crawl.Enrich(cmd.Context(), cfg, papers, opts)
	} else {
		res, runErr = crawl.Run(cmd.Context(), cfg, opts)
	}
	if runErr != nil {
		if res == nil {
			return runErr
		}
		return emitPartial(cmd, res.Papers, format, runErr)
	}

	if err := emit(cmd, res.Papers, format); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, res.Stats)
	return nil
}

// emitPartial still writes what was enriched before a pass failed, then
// reports the failure.
func emitPartial(cmd *cobra.Command, papers []*types.Paper, format export.Format, runErr error) error {
	if err := emit(cmd, papers, format); err != nil {
		logger.Error().Err(err).Msg("writing partial results")
	}
	return runErr
}
