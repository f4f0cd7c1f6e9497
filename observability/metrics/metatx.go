package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetaTxMetrics tracks gateway submissions.
type MetaTxMetrics struct {
	submissions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	events      *prometheus.CounterVec
}

var (
	metaTxOnce     sync.Once
	metaTxRegistry *MetaTxMetrics
)

// MetaTx returns the process-wide gateway metrics, registering them with the
// default prometheus registry on first use.
func MetaTx() *MetaTxMetrics {
	metaTxOnce.Do(func() {
		metaTxRegistry = &MetaTxMetrics{
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "metagate",
				Subsystem: "gateway",
				Name:      "submissions_total",
				Help:      "Meta-transaction submissions segmented by policy, operation and outcome code.",
			}, []string{"policy", "operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "metagate",
				Subsystem: "gateway",
				Name:      "submission_duration_seconds",
				Help:      "Latency distribution for meta-transaction submissions.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"policy", "operation"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "metagate",
				Subsystem: "gateway",
				Name:      "events_emitted_total",
				Help:      "Notification events emitted after committed submissions.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			metaTxRegistry.submissions,
			metaTxRegistry.latency,
			metaTxRegistry.events,
		)
	})
	return metaTxRegistry
}

// Observe records one submission. outcome is "accepted" or a taxonomy code.
func (m *MetaTxMetrics) Observe(policy, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	policy = labelOrUnknown(policy)
	operation = labelOrUnknown(operation)
	m.submissions.WithLabelValues(policy, operation, labelOrUnknown(outcome)).Inc()
	m.latency.WithLabelValues(policy, operation).Observe(duration.Seconds())
}

// RecordEvent counts an emitted event.
func (m *MetaTxMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(labelOrUnknown(eventType)).Inc()
}

func labelOrUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
