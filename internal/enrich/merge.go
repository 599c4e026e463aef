// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"fmt"

	"github.com/pdiddy/paper-crawler/pkg/types"
)

// Change reports which fields a merge wrote.
type Change struct {
	Abstract bool
	PDFURL   bool
}

// Any reports whether the merge wrote anything.
func (c Change) Any() bool { return c.Abstract || c.PDFURL }

// Merge copies the abstract and PDF URL of u into p. A field is written when
// u supplies a non-empty value and p's value is empty or overwrite is set.
// Title, authors, year, venue, DOI, type and EE belong to retrieval and are
// never touched. With overwrite unset, merging the same update twice leaves
// p as merging it once.
func Merge(p *types.Paper, u types.PaperUpdate, overwrite bool) Change {
	var c Change
	if v := types.StringValue(u.Abstract); v != "" && (p.Abstract == "" || overwrite) {
		c.Abstract = p.Abstract != v
		p.Abstract = v
	}
	if v := types.StringValue(u.PDFURL); v != "" && (p.PDFURL == "" || overwrite) {
		c.PDFURL = p.PDFURL != v
		p.PDFURL = v
	}
	return c
}

// Stats summarizes how complete a paper collection is.
type Stats struct {
	Total        int
	WithAbstract int
	WithPDF      int
}

// Summarize counts papers with a non-empty abstract and PDF URL.
func Summarize(papers []*types.Paper) Stats {
	s := Stats{Total: len(papers)}
	for _, p := range papers {
		if p.Abstract != "" {
			s.WithAbstract++
		}
		if p.PDFURL != "" {
			s.WithPDF++
		}
	}
	return s
}

// AbstractRate is the fraction of papers with an abstract (0 when empty).
func (s Stats) AbstractRate() float64 { return rate(s.WithAbstract, s.Total) }

// PDFRate is the fraction of papers with a PDF URL (0 when empty).
func (s Stats) PDFRate() float64 { return rate(s.WithPDF, s.Total) }

func (s Stats) String() string {
	return fmt.Sprintf("Total papers: %d, Abstract pass rate: %.4f (%d/%d), PDF pass rate: %.4f (%d/%d)",
		s.Total, s.AbstractRate(), s.WithAbstract, s.Total, s.PDFRate(), s.WithPDF, s.Total)
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
