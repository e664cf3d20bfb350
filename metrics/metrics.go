/*
metrics.go - Prometheus collectors for the payout server

PURPOSE:
  Counts engine computations, times HTTP requests and tracks the size of
  the last computed report. Every server owns its own registry so tests
  and multiple servers in one process never collide.

COLLECTORS:
  payout_computations_total{kind}                 summary | distribution | totals | report | calculate
  payout_http_request_duration_seconds{method,route,status}
  payout_report_persons                           persons in the last report
  payout_report_client_invoice_total              client invoice total of the last report

SEE ALSO:
  - api/middleware.go: Request timing
  - api/handlers.go: Computation counters
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/payout-engine/payout"
)

// Computation kinds.
const (
	KindSummary      = "summary"
	KindDistribution = "distribution"
	KindTotals       = "totals"
	KindReport       = "report"
	KindCalculate    = "calculate"
)

// Metrics holds the collectors and the registry they are registered on.
type Metrics struct {
	registry        *prometheus.Registry
	computations    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	reportPersons   prometheus.Gauge
	invoiceTotal    prometheus.Gauge
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payout",
			Name:      "computations_total",
			Help:      "Engine computations by kind.",
		}, []string{"kind"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "payout",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		reportPersons: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "payout",
			Name:      "report_persons",
			Help:      "Persons included in the last computed report.",
		}),
		invoiceTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "payout",
			Name:      "report_client_invoice_total",
			Help:      "Client invoice total of the last computed report.",
		}),
	}

	m.registry.MustRegister(
		m.computations,
		m.requestDuration,
		m.reportPersons,
		m.invoiceTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveComputation counts one computation of the given kind.
func (m *Metrics) ObserveComputation(kind string) {
	m.computations.WithLabelValues(kind).Inc()
}

// ObserveReport counts a report and records its size and invoice total.
func (m *Metrics) ObserveReport(kind string, r payout.Report) {
	m.ObserveComputation(kind)
	m.reportPersons.Set(float64(len(r.Summaries)))
	m.invoiceTotal.Set(r.Totals.ClientInvoiceTotal.InexactFloat64())
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
