// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/paper-crawler/internal/httputil"
	"github.com/pdiddy/paper-crawler/pkg/types"
)

func newUnpaywall(ts *httptest.Server) *Unpaywall {
	return &Unpaywall{Client: ts.Client(), Email: "me@example.com", Logger: zerolog.Nop()}
}

func TestUnpaywallFetchByDOIRequest(t *testing.T) {
	var path, email string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		email = r.URL.Query().Get("email")
		fmt.Fprint(w, `{"doi":"10.1145/123","best_oa_location":{"url_for_pdf":"https://x/best.pdf"}}`)
	}))
	defer ts.Close()
	setBase(t, &unpaywallAPIBase, ts.URL)

	u, err := newUnpaywall(ts).FetchByDOI(context.Background(), "10.1145/123", nil)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "/v2/10.1145/123", path)
	assert.Equal(t, "me@example.com", email)
	assert.Equal(t, "https://x/best.pdf", types.StringValue(u.PDFURL))
	assert.Nil(t, u.Abstract)
}

func TestUnpaywallPDFFallsBackToLocations(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"doi":"d","best_oa_location":{"url_for_pdf":null},
			"oa_locations":[{"url_for_pdf":""},{"url_for_pdf":"https://x/second.pdf"},{"url_for_pdf":"https://x/third.pdf"}]}`)
	}))
	defer ts.Close()
	setBase(t, &unpaywallAPIBase, ts.URL)

	u, err := newUnpaywall(ts).FetchByDOI(context.Background(), "d", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://x/second.pdf", types.StringValue(u.PDFURL))
}

func TestUnpaywallNoPDF(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"doi":"d","is_oa":false,"best_oa_location":null,"oa_locations":[]}`)
	}))
	defer ts.Close()
	setBase(t, &unpaywallAPIBase, ts.URL)

	u, err := newUnpaywall(ts).FetchByDOI(context.Background(), "d", nil)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Nil(t, u.PDFURL)
}

func TestUnpaywallMissingDOIIsNoData(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"best_oa_location":{"url_for_pdf":"https://x/best.pdf"}}`)
	}))
	defer ts.Close()
	setBase(t, &unpaywallAPIBase, ts.URL)

	u, err := newUnpaywall(ts).FetchByDOI(context.Background(), "d", nil)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUnpaywallNotFoundLeavesPaperUnchanged(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()
	setBase(t, &unpaywallAPIBase, ts.URL)

	papers := []*types.Paper{{Title: "T", DOI: "d", PDFURL: "existing"}}
	require.NoError(t, newUnpaywall(ts).Enrich(context.Background(), papers, nil, true))
	assert.Equal(t, "existing", papers[0].PDFURL)
}

func TestUnpaywallServerErrorPropagates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()
	setBase(t, &unpaywallAPIBase, ts.URL)

	err := newUnpaywall(ts).Enrich(context.Background(), []*types.Paper{{DOI: "d"}}, nil, false)
	require.Error(t, err)
	assert.True(t, httputil.IsStatus(err, http.StatusForbidden))
}

func TestUnpaywallEnrichSkipsPapersWithoutDOI(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"doi":"d","best_oa_location":{"url_for_pdf":"https://x/p.pdf"}}`)
	}))
	defer ts.Close()
	setBase(t, &unpaywallAPIBase, ts.URL)

	papers := []*types.Paper{{Title: "with", DOI: "d"}, {Title: "without"}}
	require.NoError(t, newUnpaywall(ts).Enrich(context.Background(), papers, semaphore.NewWeighted(2), false))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "https://x/p.pdf", papers[0].PDFURL)
	assert.Empty(t, papers[1].PDFURL)
}

func TestUnpaywallRequiresEmail(t *testing.T) {
	u := &Unpaywall{Client: http.DefaultClient, Logger: zerolog.Nop()}
	assert.ErrorIs(t, u.Enrich(context.Background(), []*types.Paper{{DOI: "d"}}, nil, false), ErrMissingEmail)
	_, err := u.FetchByDOI(context.Background(), "d", nil)
	assert.ErrorIs(t, err, ErrMissingEmail)
}

func TestUnpaywallEnrichServerErrorUnwindsSiblings(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/10.1/ok":
			fmt.Fprint(w, `{"doi":"10.1/ok","best_oa_location":{"url_for_pdf":"https://x/ok.pdf"}}`)
		case "/v2/10.1/bad":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			fmt.Fprint(w, `{"doi":"10.1/slow"}`)
		}
	}))
	defer ts.Close()
	setBase(t, &unpaywallAPIBase, ts.URL)

	ok := &types.Paper{Title: "ok", DOI: "10.1/ok"}
	papers := []*types.Paper{ok, {Title: "bad", DOI: "10.1/bad"}, {Title: "slow", DOI: "10.1/slow"}}

	// Let the ok lookup land before the failing one.
	var calls atomic.Int32
	up := newUnpaywall(ts)
	up.Client = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == "/v2/10.1/bad" {
			time.Sleep(50 * time.Millisecond)
		}
		calls.Add(1)
		return http.DefaultTransport.RoundTrip(r)
	})}

	start := time.Now()
	err := up.Enrich(context.Background(), papers, semaphore.NewWeighted(3), false)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second, "slow lookup is cancelled")

	assert.True(t, httputil.IsStatus(err, http.StatusInternalServerError))
	assert.Equal(t, 1, strings.Count(err.Error(), "HTTP 500"), err.Error())
	assert.NotContains(t, err.Error(), "10.1/slow")
	assert.Equal(t, "https://x/ok.pdf", ok.PDFURL)
	assert.Equal(t, int32(3), calls.Load())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
