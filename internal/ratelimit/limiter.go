// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit bounds the request rate to a single external source.
// A Limiter is built once per source at the top of a run and injected into
// every component that calls that source, so the whole run shares one budget.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-crawler/internal/metrics"
)

// Default budgets per source. arXiv penalizes bursts, so it gets one
// request per second.
const (
	SemanticScholarInterval = 100 * time.Millisecond
	UnpaywallInterval       = 100 * time.Millisecond
	ArxivInterval           = time.Second
	DBLPInterval            = time.Second
)

// Limiter is a token bucket allowing permits requests per window.
// It is safe for concurrent use; the zero of *Limiter (nil) never blocks.
type Limiter struct {
	name    string
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// New returns a limiter that allows permits acquisitions per window, with a
// burst of permits. A non-positive window disables limiting.
func New(permits int, per time.Duration) *Limiter {
	if permits <= 0 {
		permits = 1
	}
	limit := rate.Inf
	if per > 0 {
		limit = rate.Every(per / time.Duration(permits))
	}
	return &Limiter{limiter: rate.NewLimiter(limit, permits)}
}

// Named returns a one-permit-per-interval limiter labeled name in metrics.
func Named(name string, interval time.Duration, m *metrics.Metrics) *Limiter {
	l := New(1, interval)
	l.name = name
	l.metrics = m
	return l
}

// Acquire blocks until a permit is available. The only error it returns is
// the context's, when ctx is done before a permit is granted.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		l.metrics.ObserveRateLimitWait(l.name, waited)
	}
	return nil
}

// Name returns the label the limiter reports under.
func (l *Limiter) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}
