// Package metrics collects Prometheus metrics for the HTTP API and the
// check-in admission engine, and exposes them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdmissionRecorder is the slice of the collector the check-in service needs.
type AdmissionRecorder interface {
	RecordAdmission(outcome string)
}

// Nop discards everything. Used when metrics are not wired (tests).
type Nop struct{}

func (Nop) RecordAdmission(string)                           {}
func (Nop) RecordRequest(string, string, int, time.Duration) {}

// Collector registers and updates the service's metrics.
type Collector struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	admissions *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them on reg.
// Pass prometheus.NewRegistry() in tests to avoid global state.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkfit_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkfit_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkfit_admissions_total",
			Help: "Check-in admission decisions by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(c.requests, c.latency, c.admissions)

	return c
}

// RecordRequest counts one finished HTTP request. route is the router
// pattern (e.g. /activity/{id}), never the raw path, to keep label
// cardinality bounded.
func (c *Collector) RecordRequest(route, method string, status int, d time.Duration) {
	c.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(route, method).Observe(d.Seconds())
}

// RecordAdmission counts one admission decision.
func (c *Collector) RecordAdmission(outcome string) {
	c.admissions.WithLabelValues(outcome).Inc()
}

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
