// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-crawler/internal/crawl"
	"github.com/pdiddy/paper-crawler/internal/export"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Retrieve papers from DBLP without enrichment",
	Long: `Fetch lists the papers of a conference for the requested years from DBLP,
honouring dblp.org's robots.txt. No enrichment source is contacted; pass the
result to "crawl --input" to enrich it later.`,
	Example: `  paper-crawler fetch --conference kdd --year 2024 -o kdd-2024.yaml`,
	RunE:    runFetch,
}

func init() {
	addRetrievalFlags(fetchCmd)
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	cfg, err := crawlConfig(cmd)
	if err != nil {
		return err
	}

	papers, err := crawl.Retrieve(cmd.Context(), cfg, crawl.Options{Logger: logger, Metrics: runMetrics})
	if err != nil {
		return err
	}
	if err := emit(cmd, papers, format); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d papers from %s %v\n", len(papers), cfg.Retrieval.Conference, cfg.Retrieval.Years)
	return nil
}

func outputFormat(cmd *cobra.Command) (export.Format, error) {
	s, _ := cmd.Flags().GetString("format")
	return export.ParseFormat(s)
}

// emit prints papers to stdout and writes --output when set.
func emit(cmd *cobra.Command, papers []*types.Paper, format export.Format) error {
	if err := export.Write(cmd.OutOrStdout(), papers, format); err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return nil
	}
	if err := export.WriteFile(cmd.Context(), output, papers); err != nil {
		return err
	}
	logger.Info().Str("file", output).Int("papers", len(papers)).Msg("wrote papers")
	return nil
}
