// Package metrics exposes prometheus collectors for the HTTP surface, the
// query service and the refresh channel.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/afroash/corrosion-monitor/internal/query"
)

// Metrics holds the service collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	queryDuration     *prometheus.HistogramVec
	queryErrors       *prometheus.CounterVec
	refreshTicks      *prometheus.CounterVec
	channelSessions   prometheus.Gauge
}

// Compile-time interface check
var _ query.Observer = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "query_duration_seconds",
			Help:    "Histogram of query service operation durations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "query_errors_total",
			Help: "Total failed query service operations by error kind.",
		}, []string{"operation", "kind"}),
		refreshTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refresh_ticks_total",
			Help: "Total refresh channel ticks by result.",
		}, []string{"result"}),
		channelSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "refresh_channel_sessions",
			Help: "Number of open refresh channel connections.",
		}),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.queryDuration,
		m.queryErrors,
		m.refreshTicks,
		m.channelSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the recorder
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// WrapHandler counts requests and records their duration under route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveQuery implements query.Observer
func (m *Metrics) ObserveQuery(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.queryErrors.WithLabelValues(operation, query.KindOf(err).String()).Inc()
	}
}

// RefreshTick counts one refresh channel tick
func (m *Metrics) RefreshTick(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = query.KindOf(err).String()
	}
	m.refreshTicks.WithLabelValues(result).Inc()
}

// SessionOpened increments the open refresh channel gauge
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.channelSessions.Inc()
}

// SessionClosed decrements the open refresh channel gauge
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.channelSessions.Dec()
}
