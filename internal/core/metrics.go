package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation names reported to MetricsRecorder.Observe.
const (
	OpCommit = "commit"
	OpFlush  = "flush"
	OpMerge  = "merge"
	OpLoad   = "load"
)

// Counter names reported to MetricsRecorder.Add.
const (
	CounterPins                  = "pins"
	CounterDiscardedScopes       = "discarded_scopes"
	CounterIDsGenerated          = "ids_generated"
	CounterIDsReclaimed          = "ids_reclaimed"
	CounterConsistencyViolations = "consistency_violations"
)

// MetricsRecorder receives operation timings and event counters from a session.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	Add(counter string, delta int64)
}

// Tracer opens spans around session operations that reach the store.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is closed with the operation's outcome.
type TraceSpan interface {
	End(err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
func (noopMetrics) Add(string, int64)                                    {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// PrometheusMetrics exports session metrics as a duration histogram and an
// event counter, both labelled.
type PrometheusMetrics struct {
	durations *prometheus.HistogramVec
	events    *prometheus.CounterVec
}

// NewPrometheusMetrics registers the collectors with reg. A nil registerer
// leaves them unregistered.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of session operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Session events such as pins and reclaimed ids.",
		}, []string{"event"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.durations, m.events} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe implements MetricsRecorder.
func (m *PrometheusMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "error"
	if success {
		status = "success"
	}
	m.durations.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// Add implements MetricsRecorder.
func (m *PrometheusMetrics) Add(counter string, delta int64) {
	if delta <= 0 {
		return
	}
	m.events.WithLabelValues(counter).Add(float64(delta))
}
