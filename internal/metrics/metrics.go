// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics holds the Prometheus collectors for a crawl run. Collectors
// live on a private registry so concurrent runs (and tests) never collide on
// the global default registry. All methods are safe on a nil *Metrics, which
// disables recording.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "paper_crawler"

// Request outcomes recorded in SourceRequests.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics contains the collectors for one crawl.
type Metrics struct {
	Registry *prometheus.Registry

	// SourceRequests counts HTTP requests to paper sources, labeled by source and outcome.
	SourceRequests *prometheus.CounterVec

	// SourceRequestDuration observes request latency in seconds, labeled by source.
	SourceRequestDuration *prometheus.HistogramVec

	// RateLimitWait observes time spent blocked on a source's limiter.
	RateLimitWait *prometheus.HistogramVec

	// PapersEnriched counts merged fields, labeled by source and field ("abstract", "pdf_url").
	PapersEnriched *prometheus.CounterVec

	// PapersRetrieved counts papers produced by DBLP retrieval.
	PapersRetrieved prometheus.Counter

	// PassDuration observes the wall time of one enrichment pass, labeled by source.
	PassDuration *prometheus.HistogramVec
}

// New registers a fresh set of collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		SourceRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "HTTP requests issued to paper sources.",
		}, []string{"source", "outcome"}),
		SourceRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Latency of requests to paper sources, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"source"}),
		RateLimitWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ratelimit_wait_seconds",
			Help:      "Time spent waiting for a rate limiter permit.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"source"}),
		PapersEnriched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_enriched_total",
			Help:      "Paper fields filled in by enrichment sources.",
		}, []string{"source", "field"}),
		PapersRetrieved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_retrieved_total",
			Help:      "Papers produced by DBLP retrieval.",
		}),
		PassDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrichment_pass_duration_seconds",
			Help:      "Wall time of one enrichment pass.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"source"}),
	}
}

// ObserveRequest records one request and its latency.
func (m *Metrics) ObserveRequest(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SourceRequests.WithLabelValues(source, outcome).Inc()
	m.SourceRequestDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveRateLimitWait records time spent blocked on a limiter.
func (m *Metrics) ObserveRateLimitWait(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitWait.WithLabelValues(source).Observe(d.Seconds())
}

// AddEnriched counts one merged field.
func (m *Metrics) AddEnriched(source, field string) {
	if m == nil {
		return
	}
	m.PapersEnriched.WithLabelValues(source, field).Inc()
}

// AddRetrieved counts papers produced by retrieval.
func (m *Metrics) AddRetrieved(n int) {
	if m == nil {
		return
	}
	m.PapersRetrieved.Add(float64(n))
}

// ObservePass records the duration of an enrichment pass.
func (m *Metrics) ObservePass(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.PassDuration.WithLabelValues(source).Observe(d.Seconds())
}

// WriteTextfile writes the registry in the Prometheus text format, suitable
// for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
