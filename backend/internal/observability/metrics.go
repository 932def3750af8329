// Package observability exposes Prometheus metrics for context assembly,
// tool dispatch and the HTTP surface.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the service. Every method is
// safe to call on a nil Collector.
type Collector struct {
	registry *prometheus.Registry

	// Context assembly
	Fragments      *prometheus.CounterVec
	SourceFailures *prometheus.CounterVec
	Assembly       prometheus.Histogram

	// Tool dispatch
	ToolCalls *prometheus.CounterVec

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector creates a collector on its own registry, so tests can build
// as many as they like
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Fragments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "context_fragments_total",
				Help:      "Fragments that survived merging, by origin",
			},
			[]string{"origin"},
		),
		SourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "context_source_failures_total",
				Help:      "Context sources that errored or timed out, by origin",
			},
			[]string{"origin"},
		),
		Assembly: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "context_assembly_duration_seconds",
				Help:      "Time to assemble one context string",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2, 4, 8},
			},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Tool calls dispatched, by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		c.Fragments,
		c.SourceFailures,
		c.Assembly,
		c.ToolCalls,
		c.HTTPRequests,
		c.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordFragments counts fragments emitted for an origin
func (c *Collector) RecordFragments(origin string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Fragments.WithLabelValues(origin).Add(float64(n))
}

// RecordSourceFailure counts a failed or timed-out source
func (c *Collector) RecordSourceFailure(origin string) {
	if c == nil {
		return
	}
	c.SourceFailures.WithLabelValues(origin).Inc()
}

// RecordAssembly observes one assembly duration
func (c *Collector) RecordAssembly(d time.Duration) {
	if c == nil {
		return
	}
	c.Assembly.Observe(d.Seconds())
}

// RecordToolCall counts a dispatched tool call
func (c *Collector) RecordToolCall(tool, outcome string) {
	if c == nil {
		return
	}
	c.ToolCalls.WithLabelValues(tool, outcome).Inc()
}

// RecordHTTPRequest counts and times one HTTP request
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
