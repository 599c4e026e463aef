//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Crawl builds the CLI and crawls one conference. CONFERENCE (default
// recsys) and YEARS (comma-separated, required) select the papers; the
// result is written to output/<conference>-<years>.json.
func Crawl() error {
	mg.Deps(Build)

	conference := envOr("CONFERENCE", "recsys")
	years := os.Getenv("YEARS")
	if years == "" {
		return fmt.Errorf("set YEARS, e.g. YEARS=2024,2025 mage crawl")
	}
	out := filepath.Join("output", fmt.Sprintf("%s-%s.json", conference, years))

	return sh.RunV(binPath, "crawl",
		"--conference", conference,
		"--year", years,
		"--output", out,
		"--format", "table",
		"--metrics-file", filepath.Join("output", "metrics.prom"),
	)
}

// Fetch builds the CLI and retrieves one conference from DBLP without
// enrichment, using the same CONFERENCE and YEARS variables as Crawl.
func Fetch() error {
	mg.Deps(Build)

	conference := envOr("CONFERENCE", "recsys")
	years := os.Getenv("YEARS")
	if years == "" {
		return fmt.Errorf("set YEARS, e.g. YEARS=2025 mage fetch")
	}
	return sh.RunV(binPath, "fetch",
		"--conference", conference,
		"--year", years,
		"--output", filepath.Join("output", fmt.Sprintf("%s-%s-dblp.json", conference, years)),
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
