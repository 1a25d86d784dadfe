package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec

	assignments     *prometheus.CounterVec
	dispatch        *prometheus.CounterVec
	sweeps          prometheus.Counter
	sweepReassigned prometheus.Counter
	sweepSkipped    prometheus.Counter
	availability    *prometheus.CounterVec
	statusChanges   *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		}, []string{"path", "method", "code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of http requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Requests that ended with an error envelope, by error code.",
		}, []string{"path", "method", "error_code"}),
		assignments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_assignments_total",
			Help: "Tickets assigned to an engineer, by the component that claimed them.",
		}, []string{"source"}),
		dispatch: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_dispatch_outcomes_total",
			Help: "Dispatch decisions at ticket creation, by outcome.",
		}, []string{"outcome"}),
		sweeps: factory.NewCounter(prometheus.CounterOpts{
			Name: "backlog_sweeps_total",
			Help: "Backlog sweeps that claimed at least one ticket.",
		}),
		sweepReassigned: factory.NewCounter(prometheus.CounterOpts{
			Name: "backlog_sweep_reassigned_total",
			Help: "Tickets reassigned by backlog sweeps.",
		}),
		sweepSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "backlog_sweep_conflicts_total",
			Help: "Backlog tickets skipped because another writer claimed them first.",
		}),
		availability: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "engineer_availability_changes_total",
			Help: "Engineer availability transitions, by new state.",
		}, []string{"available"}),
		statusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_status_changes_total",
			Help: "Ticket workflow transitions, by target status.",
		}, []string{"status"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordAssignment counts one claimed ticket.
func (m *Metrics) RecordAssignment(source string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(source).Inc()
}

// RecordDispatch counts a dispatch decision.
func (m *Metrics) RecordDispatch(outcome string) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(outcome).Inc()
}

// RecordSweep records one sweep's reassigned and skipped counts.
func (m *Metrics) RecordSweep(reassigned, skipped int) {
	if m == nil {
		return
	}
	if reassigned > 0 {
		m.sweeps.Inc()
	}
	m.sweepReassigned.Add(float64(reassigned))
	m.sweepSkipped.Add(float64(skipped))
}

// RecordAvailability counts an availability transition.
func (m *Metrics) RecordAvailability(available bool) {
	if m == nil {
		return
	}
	m.availability.WithLabelValues(strconv.FormatBool(available)).Inc()
}

// RecordStatusChange counts a workflow transition.
func (m *Metrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}
