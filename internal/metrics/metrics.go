// Package metrics holds the Prometheus collectors for fetching and parsing
// meeting pages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors recorded by the scraper.
type Metrics struct {
	registry *prometheus.Registry

	fetchTotal    *prometheus.CounterVec
	fetchDuration prometheus.Summary
	parseFailures prometheus.Counter
	meetings      *prometheus.CounterVec
	lastSuccessTS prometheus.Gauge
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chi_landmarks",
		Name:      "fetch_total",
		Help:      "Page fetches by result",
	}, []string{"result"})
	m.fetchDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "chi_landmarks",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent fetching and parsing the meeting page",
	})
	m.parseFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chi_landmarks",
		Name:      "parse_failures_total",
		Help:      "Pages whose meeting extraction aborted with an error",
	})
	m.meetings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chi_landmarks",
		Name:      "meetings_parsed_total",
		Help:      "Meeting records extracted, by status",
	}, []string{"status"})
	m.lastSuccessTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chi_landmarks",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful fetch",
	})

	m.registry.MustRegister(m.fetchTotal, m.fetchDuration, m.parseFailures, m.meetings, m.lastSuccessTS)
	return m
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFetch records one fetch attempt cycle.
func (m *Metrics) ObserveFetch(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
	if err != nil {
		m.fetchTotal.WithLabelValues("error").Inc()
		return
	}
	m.fetchTotal.WithLabelValues("ok").Inc()
	m.lastSuccessTS.SetToCurrentTime()
}

// ParseFailed counts an aborted extraction.
func (m *Metrics) ParseFailed() {
	if m == nil {
		return
	}
	m.parseFailures.Inc()
}

// MeetingParsed counts one extracted meeting.
func (m *Metrics) MeetingParsed(status string) {
	if m == nil {
		return
	}
	m.meetings.WithLabelValues(status).Inc()
}
