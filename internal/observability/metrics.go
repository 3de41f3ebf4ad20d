package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spec-kit/issue-escalation/internal/domain"
)

// Metrics owns the Prometheus collectors for the service. All methods are
// safe to call on a nil *Metrics.
type Metrics struct {
	sweeps          *prometheus.CounterVec
	sweepDuration   *prometheus.HistogramVec
	ticketsChecked  prometheus.Counter
	escalations     *prometheus.CounterVec
	noops           *prometheus.CounterVec
	ticketErrors    prometheus.Counter
	notifications   *prometheus.CounterVec
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_sweeps_total",
			Help: "Escalation sweeps by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "escalation_sweep_duration_seconds",
			Help:    "Wall time of escalation sweeps",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		ticketsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escalation_tickets_checked_total",
			Help: "Overdue tickets evaluated by sweeps",
		}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_transitions_total",
			Help: "Successful escalations by target level",
		}, []string{"to_level"}),
		noops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_noops_total",
			Help: "Escalation attempts that did not transition, by reason",
		}, []string{"reason"}),
		ticketErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escalation_ticket_errors_total",
			Help: "Per-ticket failures during sweeps",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_notifications_total",
			Help: "Notification outcomes (queued, sent, failed, skipped)",
		}, []string{"outcome"}),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP errors by method, route and error code",
		}, []string{"method", "path", "code"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.sweeps, m.sweepDuration, m.ticketsChecked, m.escalations, m.noops,
			m.ticketErrors, m.notifications, m.requestCount, m.requestDuration, m.errorCount,
		)
	}
	return m
}

// RecordSweep records the outcome of one sweep.
func (m *Metrics) RecordSweep(summary domain.SweepSummary, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "failed"
	case summary.Skipped:
		outcome = "skipped"
	case summary.Cancelled:
		outcome = "cancelled"
	}
	trigger := string(summary.Trigger)
	m.sweeps.WithLabelValues(trigger, outcome).Inc()
	if !summary.StartedAt.IsZero() && !summary.FinishedAt.IsZero() {
		m.sweepDuration.WithLabelValues(trigger).Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	}
	m.ticketsChecked.Add(float64(summary.Checked))
}

// RecordEscalation records one escalation attempt result.
func (m *Metrics) RecordEscalation(result domain.EscalationResult) {
	if m == nil {
		return
	}
	if result.Escalated {
		m.escalations.WithLabelValues(strconv.Itoa(int(result.To))).Inc()
		return
	}
	m.noops.WithLabelValues(string(result.Reason)).Inc()
}

// RecordTicketError counts a per-ticket failure.
func (m *Metrics) RecordTicketError() {
	if m == nil {
		return
	}
	m.ticketErrors.Inc()
}

// RecordNotification counts a notification outcome.
func (m *Metrics) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(method, path, code).Inc()
}
