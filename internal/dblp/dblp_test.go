// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dblp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-crawler/internal/httputil"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

// --- Author normalization ---

func TestParseAuthors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"single author object", `{"author":{"@pid":"1","text":"X"}}`, []string{"X"}},
		{"author list keeps order", `{"author":[{"text":"A"},{"text":"B"},{"text":"C"}]}`, []string{"A", "B", "C"}},
		{"entries without text skipped", `{"author":[{"text":"A"},{"@pid":"2"},{"text":""}]}`, []string{"A"}},
		{"null", `null`, []string{}},
		{"missing", ``, []string{}},
		{"empty authors object", `{}`, []string{}},
		{"unexpected type", `"someone"`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAuthors(json.RawMessage(tt.raw)))
		})
	}
}

// --- Response parsing ---

const sampleResponse = `{"result":{"hits":{"@total":"4","hit":[
 {"info":{"title":"First Paper.","authors":{"author":[{"text":"Alice"},{"text":"Bob"}]},"year":"2025","venue":"RecSys","doi":"10.1145/1","type":"Conference and Workshop Papers","ee":"https://doi.org/10.1145/1"}},
 {"info":{"authors":{"author":{"text":"NoTitle"}},"year":"2025","venue":"RecSys"}},
 {"info":{"title":"Single Author.","authors":{"author":{"text":"Carol"}},"year":"2025","venue":["RecSys","Workshop"]}},
 {"info":{"title":"No Venue.","authors":{"author":{"text":"Dan"}},"year":"2025"}},
 {"info":{"title":"No Authors.","year":"2025","venue":"RecSys"}},
 {"info":{"title":"Bad Year.","year":"twenty","venue":"RecSys"}}
]}}}`

func TestParseResponseDropsInvalidHitsAndKeepsOrder(t *testing.T) {
	papers, err := parseResponse([]byte(sampleResponse), false, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, papers, 3)

	assert.Equal(t, &types.Paper{
		Title:   "First Paper.",
		Authors: []string{"Alice", "Bob"},
		Year:    2025,
		Venue:   "RecSys",
		DOI:     "10.1145/1",
		Type:    "Conference and Workshop Papers",
		EE:      "https://doi.org/10.1145/1",
	}, papers[0])
	assert.Equal(t, "Single Author.", papers[1].Title)
	assert.Equal(t, []string{"Carol"}, papers[1].Authors)
	assert.Equal(t, "RecSys", papers[1].Venue)
	assert.Equal(t, "No Authors.", papers[2].Title)
	assert.Empty(t, papers[2].Authors)
}

func TestParseResponseDropAuthorless(t *testing.T) {
	papers, err := parseResponse([]byte(sampleResponse), true, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, "First Paper.", papers[0].Title)
	assert.Equal(t, "Single Author.", papers[1].Title)
}

func TestParseResponseZeroHits(t *testing.T) {
	papers, err := parseResponse([]byte(`{"result":{"hits":{"@total":"0","@sent":"0"}}}`), false, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, papers)
	assert.Empty(t, papers)
}

func TestParseResponseSingleHitObject(t *testing.T) {
	body := `{"result":{"hits":{"@total":"1","hit":{"info":{"title":"Only.","year":2024,"venue":"KDD"}}}}}`
	papers, err := parseResponse([]byte(body), false, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, 2024, papers[0].Year)
}

func TestParseResponseMalformed(t *testing.T) {
	for _, body := range []string{`not json`, `{"result":{}}`, `{"result":{"hits":{"@total":"many"}}}`} {
		_, err := parseResponse([]byte(body), false, zerolog.Nop())
		assert.ErrorIs(t, err, errMalformed, "body %q", body)
	}
}

func TestParseResponseMissingTotal(t *testing.T) {
	body := `{"result":{"hits":{"hit":[{"info":{"title":"Orphan.","authors":{"author":{"text":"A"}},"year":"2025","venue":"KDD"}}]}}}`
	_, err := parseResponse([]byte(body), false, zerolog.Nop())
	assert.ErrorIs(t, err, errMalformed)
}

func TestBuildQuery(t *testing.T) {
	// The parts are space separated; url.Values encodes the space as "+",
	// which is the form DBLP documents for its search URLs.
	assert.Equal(t, "stream:conf/recsys: year:2025:", BuildQuery(types.ConfRecSys, 2025))
}

// --- FetchPapers against a fake dblp.org ---

func fakeDBLP(t *testing.T, robots string, search http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		if robots == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, robots)
	})
	mux.HandleFunc(searchPath, search)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	old := dblpBase
	dblpBase = ts.URL
	t.Cleanup(func() { dblpBase = old })
	return ts
}

func TestFetchPapersRequest(t *testing.T) {
	var captured *http.Request
	ts := fakeDBLP(t, "", func(w http.ResponseWriter, r *http.Request) {
		captured = r
		fmt.Fprint(w, sampleResponse)
	})

	r := NewRetriever(ts.Client(), nil, nil, Options{Logger: zerolog.Nop()})
	papers, err := r.FetchPapers(context.Background(), types.ConfRecSys, 2025, 50)
	require.NoError(t, err)
	assert.Len(t, papers, 3)

	require.NotNil(t, captured)
	assert.Contains(t, captured.URL.RawQuery, "q=stream%3Aconf%2Frecsys%3A+year%3A2025%3A")
	q := captured.URL.Query()
	assert.Equal(t, "stream:conf/recsys: year:2025:", q.Get("q"))
	assert.Equal(t, "json", q.Get("format"))
	assert.Equal(t, "50", q.Get("h"))
}

func TestFetchPapersDisallowedByRobots(t *testing.T) {
	called := false
	ts := fakeDBLP(t, "User-agent: *\nDisallow: /search/\n", func(w http.ResponseWriter, _ *http.Request) {
		called = true
	})

	r := NewRetriever(ts.Client(), nil, nil, Options{Logger: zerolog.Nop()})
	_, err := r.FetchPapers(context.Background(), types.ConfRecSys, 2025, 0)
	assert.ErrorIs(t, err, ErrDisallowed)
	assert.False(t, called, "search endpoint must not be hit when disallowed")
}

func TestFetchPapersZeroHitsIsEmpty(t *testing.T) {
	ts := fakeDBLP(t, "", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"result":{"hits":{"@total":"0"}}}`)
	})

	r := NewRetriever(ts.Client(), nil, nil, Options{Logger: zerolog.Nop()})
	papers, err := r.FetchPapers(context.Background(), types.ConfWSDM, 1999, 0)
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestFetchPapersMalformedIsEmpty(t *testing.T) {
	ts := fakeDBLP(t, "", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	})

	r := NewRetriever(ts.Client(), nil, nil, Options{Logger: zerolog.Nop()})
	papers, err := r.FetchPapers(context.Background(), types.ConfKDD, 2024, 0)
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestFetchPapersMissingTotalIsEmpty(t *testing.T) {
	ts := fakeDBLP(t, "", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"result":{"hits":{"hit":[{"info":{"title":"Orphan.","year":"2024","venue":"KDD"}}]}}}`)
	})

	r := NewRetriever(ts.Client(), nil, nil, Options{Logger: zerolog.Nop()})
	papers, err := r.FetchPapers(context.Background(), types.ConfKDD, 2024, 0)
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestFetchPapersHTTPErrorPropagates(t *testing.T) {
	ts := fakeDBLP(t, "", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	r := NewRetriever(ts.Client(), nil, nil, Options{Logger: zerolog.Nop()})
	_, err := r.FetchPapers(context.Background(), types.ConfKDD, 2024, 0)
	require.Error(t, err)
	assert.True(t, httputil.IsStatus(err, http.StatusBadGateway))
}

func TestFetchPapersHonoursCrawlDelay(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)
	ts := fakeDBLP(t, "User-agent: *\nCrawl-delay: 0.2\n", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		fmt.Fprint(w, `{"result":{"hits":{"@total":"0"}}}`)
	})

	r := NewRetriever(ts.Client(), nil, nil, Options{Logger: zerolog.Nop()})
	for _, year := range []int{2024, 2025} {
		_, err := r.FetchPapers(context.Background(), types.ConfRecSys, year, 0)
		require.NoError(t, err)
	}
	require.Len(t, times, 2)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 150*time.Millisecond)
}
