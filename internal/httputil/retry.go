// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP plumbing shared by every source: the
// pooled client, the 429-retrying request call, and status classification.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Backoff bounds for HTTP 429 responses that carry no usable Retry-After.
// The delay for attempt n is drawn uniformly from
// [RetryMinDelay, min(RetryMaxDelay, retryMultiplier*2^n)].
// Tests override these to avoid real sleeps.
var (
	RetryMinDelay   = 1 * time.Second
	RetryMaxDelay   = 10 * time.Second
	retryMultiplier = 500 * time.Millisecond

	// MaxRetryAfter caps the wait a server can request through Retry-After.
	MaxRetryAfter = 60 * time.Second
)

// DefaultMaxAttempts caps the number of attempts, the first one included.
const DefaultMaxAttempts = 5

const maxErrorBody = 512

// StatusError reports a response whose status is not 200 OK.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// IsNotFound reports whether err is an HTTP 404.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// DoWithRetry executes req and retries on HTTP 429 (Too Many Requests).
//
// Only 200 OK is returned as a response; every other status is closed and
// returned as a *StatusError. A 429 is retried up to maxAttempts total
// attempts (DefaultMaxAttempts when maxAttempts <= 0), waiting for the
// Retry-After header when it holds a number of seconds and for jittered
// exponential backoff otherwise. After the last attempt the final 429 is
// returned as a *StatusError. Transport errors are returned as-is and never
// retried.
//
// Requests with a body must set GetBody (http.NewRequest does for the common
// reader types) so the body can be replayed. If ctx is cancelled during a
// backoff wait the function returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxAttempts int) (*http.Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	log := zerolog.Ctx(ctx)

	for attempt := 1; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("replaying request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case resp.StatusCode != http.StatusTooManyRequests:
			return nil, newStatusError(req, resp)
		case attempt >= maxAttempts:
			log.Error().Str("url", req.URL.String()).Int("attempts", attempt).Msg("rate limit exceeded, giving up")
			return nil, newStatusError(req, resp)
		}

		wait := retryDelay(resp.Header.Get("Retry-After"), attempt)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		log.Info().Str("url", req.URL.String()).Int("attempt", attempt).Dur("wait", wait).Msg("rate limited, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryDelay honours a Retry-After given in seconds (integer or fractional),
// capped at MaxRetryAfter; HTTP-date values and garbage fall back to backoff.
func retryDelay(retryAfter string, attempt int) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.ParseFloat(strings.TrimSpace(retryAfter), 64); err == nil && secs >= 0 {
			// Compare in seconds: large values overflow time.Duration.
			if secs >= MaxRetryAfter.Seconds() {
				return MaxRetryAfter
			}
			return time.Duration(secs * float64(time.Second))
		}
	}
	return backoff(attempt)
}

func backoff(attempt int) time.Duration {
	high := time.Duration(float64(retryMultiplier) * math.Pow(2, float64(attempt)))
	high = min(max(high, RetryMinDelay), RetryMaxDelay)
	if high <= RetryMinDelay {
		return RetryMinDelay
	}
	return RetryMinDelay + rand.N(high-RetryMinDelay)
}

// newStatusError drains and closes resp and captures a bounded body excerpt.
func newStatusError(req *http.Request, resp *http.Response) *StatusError {
	defer resp.Body.Close()
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	io.Copy(io.Discard, resp.Body)
	return &StatusError{
		StatusCode: resp.StatusCode,
		Method:     req.Method,
		URL:        req.URL.String(),
		Body:       strings.TrimSpace(string(excerpt)),
	}
}
