// Package metrics exposes Prometheus collectors for report exports, photo
// fetches and HTTP traffic. A Recorder owns its registry so tests and
// multiple servers never share global state.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"k3rs/backend/internal/report"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Recorder implements report.Observer on a private Prometheus registry.
type Recorder struct {
	reg *prometheus.Registry

	exports        *prometheus.CounterVec // k3rs_exports_total
	exportDuration *prometheus.SummaryVec // k3rs_export_duration_seconds
	photoFetches   *prometheus.CounterVec // k3rs_photo_fetch_total
	httpRequests   *prometheus.CounterVec // k3rs_http_requests_total
}

var _ report.Observer = (*Recorder)(nil)

// New registers every collector, plus the Go runtime and process collectors.
func New() (*Recorder, error) {
	reg := prometheus.NewRegistry()

	exports := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "k3rs_exports_total",
			Help: "Report exports, partitioned by format and status.",
		},
		[]string{"format", "status"},
	)
	exportDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "k3rs_export_duration_seconds",
			Help:       "Time spent rendering a report, partitioned by format and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"format", "status"},
	)
	photoFetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "k3rs_photo_fetch_total",
			Help: "Photo fetches made while rendering, partitioned by format and status.",
		},
		[]string{"format", "status"},
	)
	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "k3rs_http_requests_total",
			Help: "HTTP requests served, partitioned by method, route pattern and status code.",
		},
		[]string{"method", "route", "code"},
	)

	for name, c := range map[string]prometheus.Collector{
		"export counter":    exports,
		"export summary":    exportDuration,
		"photo counter":     photoFetches,
		"request counter":   httpRequests,
		"go collector":      collectors.NewGoCollector(),
		"process collector": collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register %s: %w", name, err)
		}
	}

	return &Recorder{
		reg:            reg,
		exports:        exports,
		exportDuration: exportDuration,
		photoFetches:   photoFetches,
		httpRequests:   httpRequests,
	}, nil
}

func status(ok bool) string {
	if ok {
		return statusSuccess
	}
	return statusFailure
}

// ExportFinished counts one export and observes its duration.
func (r *Recorder) ExportFinished(format report.Format, elapsed time.Duration, err error) {
	s := status(err == nil)
	r.exports.WithLabelValues(string(format), s).Inc()
	r.exportDuration.WithLabelValues(string(format), s).Observe(elapsed.Seconds())
}

// PhotoFetched counts one photo fetch outcome.
func (r *Recorder) PhotoFetched(format report.Format, ok bool) {
	r.photoFetches.WithLabelValues(string(format), status(ok)).Inc()
}

// ObserveRequest counts one served HTTP request.
func (r *Recorder) ObserveRequest(method, route string, code int) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
