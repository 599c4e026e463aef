// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-crawler pipeline:
// the Paper record produced by retrieval, the PaperUpdate fragment produced by
// enrichment sources, and the stage configurations.
package types

// Paper holds bibliographic metadata for a single publication.
// Retrieval always sets Title, Year and Venue; enrichment only ever adds
// Abstract and PDFURL. An empty optional string means "absent".
type Paper struct {
	// Title is the paper title as listed by DBLP.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the publication year.
	Year int `json:"year" yaml:"year"`

	// Venue is the conference or journal name (e.g. "RecSys").
	Venue string `json:"venue" yaml:"venue"`

	// DOI is the Digital Object Identifier, the cross-source join key.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Type is the DBLP publication type (e.g. "Conference and Workshop Papers").
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// EE is the electronic-edition link.
	EE string `json:"ee,omitempty" yaml:"ee,omitempty"`

	// PDFURL links to a PDF of the paper.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
}

// HasDOI reports whether the paper carries a DOI.
func (p *Paper) HasDOI() bool { return p.DOI != "" }

// PaperUpdate is the partial view of a paper returned by an enrichment
// source. Nil fields were not supplied by the source, which keeps "not
// fetched" distinct from "legitimately empty". Updates are never used as
// papers; the merge policy copies selected fields into an existing Paper.
type PaperUpdate struct {
	DOI      *string
	Title    *string
	Authors  []string
	Year     *int
	Abstract *string
	PDFURL   *string
}

// IsEmpty reports whether the update carries neither an abstract nor a PDF URL,
// the only fields enrichment merges.
func (u PaperUpdate) IsEmpty() bool {
	return StringValue(u.Abstract) == "" && StringValue(u.PDFURL) == ""
}

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences s, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Int returns a pointer to n.
func Int(n int) *int { return &n }
