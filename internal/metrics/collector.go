// Package metrics wraps Prometheus instrumentation shared across the
// function runtime, stack orchestrator, log ledger and object store.
// These counters are process-internal: the HTTP surface is fully claimed
// by the AWS dialect multiplexing rules (every path not otherwise claimed
// is Object API), leaving no room for a /metrics route. They back a
// periodic debug-log summary and the CLI's status subcommand instead.
//
// Grounded on the teacher's internal/metrics.Metrics (prometheus +
// promauto wrapper), trimmed to this module's components.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/histogram this module instruments. Alongside
// the Prometheus collectors it keeps plain atomic tallies of the same
// events, cheap to read without walking the registry, for the periodic
// debug-log summary and the CLI status subcommand.
type Metrics struct {
	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec
	InvocationErrors   *prometheus.CounterVec

	StackTransitions *prometheus.CounterVec
	LedgerAppends    prometheus.Counter
	ObjectStoreOps   *prometheus.CounterVec

	invocations      atomic.Int64
	invocationErrors atomic.Int64
	stackTransitions atomic.Int64
	ledgerAppends    atomic.Int64
	objectOps        atomic.Int64
}

// Summary is a point-in-time snapshot of the atomic tallies, cheap to
// format into a log line or a status response.
type Summary struct {
	Invocations      int64 `json:"invocations"`
	InvocationErrors int64 `json:"invocation_errors"`
	StackTransitions int64 `json:"stack_transitions"`
	LedgerAppends    int64 `json:"ledger_appends"`
	ObjectOps        int64 `json:"object_ops"`
}

// Snapshot returns the current tallies.
func (m *Metrics) Snapshot() Summary {
	return Summary{
		Invocations:      m.invocations.Load(),
		InvocationErrors: m.invocationErrors.Load(),
		StackTransitions: m.stackTransitions.Load(),
		LedgerAppends:    m.ledgerAppends.Load(),
		ObjectOps:        m.objectOps.Load(),
	}
}

// New registers and returns a fresh metrics set against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InvocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microstack",
			Subsystem: "runtime",
			Name:      "invocations_total",
			Help:      "Total function invocations, by function and runtime.",
		}, []string{"function_name", "runtime", "status"}),

		InvocationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "microstack",
			Subsystem: "runtime",
			Name:      "invocation_duration_ms",
			Help:      "Function invocation duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"function_name", "runtime"}),

		InvocationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microstack",
			Subsystem: "runtime",
			Name:      "invocation_errors_total",
			Help:      "Function invocation faults and timeouts, by function.",
		}, []string{"function_name", "error_type"}),

		StackTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microstack",
			Subsystem: "stacks",
			Name:      "transitions_total",
			Help:      "Stack status transitions, by target status.",
		}, []string{"status"}),

		LedgerAppends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "microstack",
			Subsystem: "logs",
			Name:      "events_appended_total",
			Help:      "Total log events appended to the ledger.",
		}),

		ObjectStoreOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microstack",
			Subsystem: "objects",
			Name:      "operations_total",
			Help:      "Object store operations, by operation name.",
		}, []string{"operation"}),
	}
}

// ObserveInvocation records one completed invocation.
func (m *Metrics) ObserveInvocation(functionName, runtime string, success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.InvocationsTotal.WithLabelValues(functionName, runtime, status).Inc()
	m.InvocationDuration.WithLabelValues(functionName, runtime).Observe(float64(d.Milliseconds()))
	m.invocations.Add(1)
	if !success {
		m.InvocationErrors.WithLabelValues(functionName, "Unhandled").Inc()
		m.invocationErrors.Add(1)
	}
}

// ObserveStackTransition records one stack-level status transition.
func (m *Metrics) ObserveStackTransition(status string) {
	m.StackTransitions.WithLabelValues(status).Inc()
	m.stackTransitions.Add(1)
}

// ObserveLedgerAppend records one ledger append.
func (m *Metrics) ObserveLedgerAppend() {
	m.LedgerAppends.Inc()
	m.ledgerAppends.Add(1)
}

// ObserveObjectOp records one object-store operation.
func (m *Metrics) ObserveObjectOp(op string) {
	m.ObjectStoreOps.WithLabelValues(op).Inc()
	m.objectOps.Add(1)
}
