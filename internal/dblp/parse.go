// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dblp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-crawler/pkg/types"
)

// DBLP search API JSON structures. DBLP collapses single-element lists into
// bare objects, so list-valued fields are kept raw and normalized by hand.
type searchResponse struct {
	Result struct {
		Hits *struct {
			Total string          `json:"@total"`
			Hit   json.RawMessage `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

type hit struct {
	Info *hitInfo `json:"info"`
}

type hitInfo struct {
	Title   json.RawMessage `json:"title"`
	Authors json.RawMessage `json:"authors"`
	Year    json.RawMessage `json:"year"`
	Venue   json.RawMessage `json:"venue"`
	DOI     json.RawMessage `json:"doi"`
	Type    json.RawMessage `json:"type"`
	EE      json.RawMessage `json:"ee"`
}

type authorsField struct {
	Author json.RawMessage `json:"author"`
}

type authorEntry struct {
	Text string `json:"text"`
}

var errMalformed = errors.New("malformed DBLP response")

// parseResponse decodes a search response into papers. Hits missing a
// title, year or venue are dropped; so are author-less hits when
// dropAuthorless is set. A zero-hit response yields an empty slice.
func parseResponse(body []byte, dropAuthorless bool, log zerolog.Logger) ([]*types.Paper, error) {
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if sr.Result.Hits == nil {
		return nil, fmt.Errorf("%w: missing result.hits", errMalformed)
	}
	total, err := strconv.Atoi(strings.TrimSpace(sr.Result.Hits.Total))
	if err != nil {
		return nil, fmt.Errorf("%w: @total %q", errMalformed, sr.Result.Hits.Total)
	}
	papers := []*types.Paper{}
	if total == 0 {
		log.Info().Msg("no papers found matching the criteria")
		return papers, nil
	}

	for i, raw := range rawList(sr.Result.Hits.Hit) {
		p, reason := parseHit(raw, dropAuthorless)
		if p == nil {
			log.Warn().Int("hit", i).Str("reason", reason).Msg("skipping DBLP hit")
			continue
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// parseHit converts one hit, returning nil and a reason when it is invalid.
func parseHit(raw json.RawMessage, dropAuthorless bool) (*types.Paper, string) {
	var h hit
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, "undecodable hit: " + err.Error()
	}
	if h.Info == nil {
		return nil, "missing info"
	}
	info := h.Info

	title := firstString(info.Title)
	if title == "" {
		return nil, "missing title"
	}
	yearStr := firstString(info.Year)
	if yearStr == "" {
		return nil, "missing year"
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return nil, fmt.Sprintf("invalid year %q", yearStr)
	}
	venue := firstString(info.Venue)
	if venue == "" {
		return nil, "missing venue"
	}
	authors := ParseAuthors(info.Authors)
	if dropAuthorless && len(authors) == 0 {
		return nil, "no authors"
	}

	return &types.Paper{
		Title:   title,
		Authors: authors,
		Year:    year,
		Venue:   venue,
		DOI:     firstString(info.DOI),
		Type:    firstString(info.Type),
		EE:      firstString(info.EE),
	}, ""
}

// ParseAuthors normalizes the DBLP "authors" field to an ordered list of
// names. The inner "author" may be a single object or a list; entries
// without text are skipped. Null or missing input yields an empty list.
func ParseAuthors(raw json.RawMessage) []string {
	authors := []string{}
	if isNull(raw) {
		return authors
	}
	var af authorsField
	if err := json.Unmarshal(raw, &af); err != nil {
		return authors
	}
	for _, entry := range rawList(af.Author) {
		var a authorEntry
		if err := json.Unmarshal(entry, &a); err != nil {
			continue
		}
		if name := strings.TrimSpace(a.Text); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

// rawList returns the elements of a JSON array, or the value itself as a
// one-element list when it is not an array.
func rawList(raw json.RawMessage) []json.RawMessage {
	if isNull(raw) {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] != '[' {
		return []json.RawMessage{trimmed}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil
	}
	return items
}

// firstString reads a string, a number, or the first element of a list of
// either. Anything else yields "".
func firstString(raw json.RawMessage) string {
	for _, item := range rawList(raw) {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			return n.String()
		}
		return ""
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
