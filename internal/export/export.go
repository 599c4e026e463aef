// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export renders a paper collection as a table, JSON or YAML.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-crawler/internal/enrich"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// Format names an output encoding.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// FormatFromPath picks the encoding for an output file by extension:
// .yaml/.yml, .db/.sqlite, and JSON for anything else.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatJSON
	}
}

// Write renders papers to w in format f.
func Write(w io.Writer, papers []*types.Paper, f Format) error {
	switch f {
	case FormatTable:
		WriteTable(w, papers)
		return nil
	case FormatJSON:
		return WriteJSON(w, papers)
	case FormatYAML:
		return WriteYAML(w, papers)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

// WriteFile writes papers to path, choosing the format by extension.
func WriteFile(ctx context.Context, path string, papers []*types.Paper) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if FormatFromPath(path) == FormatSQLite {
		if err := WriteSQLite(ctx, path, papers); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(f, papers, FormatFromPath(path)); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// WriteTable prints one line per paper followed by the pass rates.
func WriteTable(w io.Writer, papers []*types.Paper) {
	if len(papers) == 0 {
		fmt.Fprintln(w, "No papers found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-56s  %-20s  %-4s  %-8s  %-3s\n",
		"#", "Title", "Authors", "Year", "Abstract", "PDF")
	fmt.Fprintln(w, strings.Repeat("-", 104))

	for i, p := range papers {
		fmt.Fprintf(w, "%-4d  %-56s  %-20s  %-4d  %-8s  %-3s\n",
			i+1, truncate(p.Title, 56), formatAuthors(p.Authors), p.Year,
			yesNo(p.Abstract != ""), yesNo(p.PDFURL != ""))
	}

	fmt.Fprintf(w, "\n%s\n", enrich.Summarize(papers))
}

// WriteJSON writes papers as an indented JSON array.
func WriteJSON(w io.Writer, papers []*types.Paper) error {
	if papers == nil {
		papers = []*types.Paper{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(papers)
}

// WriteYAML writes papers as a YAML sequence.
func WriteYAML(w io.Writer, papers []*types.Paper) error {
	if papers == nil {
		papers = []*types.Paper{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(papers); err != nil {
		return fmt.Errorf("marshaling papers: %w", err)
	}
	return enc.Close()
}

// ReadFile loads a collection written by WriteFile.
func ReadFile(ctx context.Context, path string) ([]*types.Paper, error) {
	format := FormatFromPath(path)
	if format == FormatSQLite {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return ReadSQLite(ctx, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var papers []*types.Paper
	if format == FormatYAML {
		err = yaml.Unmarshal(data, &papers)
	} else {
		err = json.Unmarshal(data, &papers)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return papers, nil
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 13) + " et al."
	}
}

// truncate shortens s to at most max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
