// Package middleware provides classifier decorators and the Prometheus
// backed MetricsCollector used by the ensemble.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/fakescope/internal/ports"
)

const metricsNamespace = "fakescope"

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// Known metric names are routed to dedicated collectors; anything else lands
// in generic vectors labeled by metric name.
type PrometheusMetrics struct {
	classifierLatency  *prometheus.HistogramVec
	classifierRequests *prometheus.CounterVec
	circuitState       *prometheus.GaugeVec
	verdicts           *prometheus.CounterVec
	rejected           *prometheus.CounterVec
	fakeProbability    prometheus.Histogram

	operationLatency *prometheus.HistogramVec
	events           *prometheus.CounterVec
	gauges           *prometheus.GaugeVec
	values           *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
// Passing nil registers with the default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		// Classifier calls.
		classifierLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "classifier_duration_seconds",
				Help:      "Latency of single-modality classifier predictions.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"modality", "classifier", "status"},
		),
		classifierRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "classifier_requests_total",
				Help:      "Classifier predictions by outcome.",
			},
			[]string{"modality", "classifier", "status"},
		),
		circuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "classifier_circuit_state",
				Help:      "Circuit breaker state per classifier (0 closed, 1 open, 2 half-open).",
			},
			[]string{"modality", "classifier"},
		),

		// Ensemble outcomes.
		verdicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "verdicts_total",
				Help:      "Ensemble verdicts by label.",
			},
			[]string{"label"},
		),
		rejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rejected_total",
				Help:      "Predictions rejected before a verdict, by reason.",
			},
			[]string{"reason"},
		),
		fakeProbability: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "fake_probability",
				Help:      "Distribution of the combined fake probability.",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
			},
		),

		// Everything else.
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "operation_duration_seconds",
				Help:      "Latency of ensemble operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_total",
				Help:      "Counters without a dedicated collector.",
			},
			[]string{"metric"},
		),
		gauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "state",
				Help:      "Current values such as evaluation accuracy.",
			},
			[]string{"metric"},
		),
		values: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "values",
				Help:      "Histograms without a dedicated collector.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
	}
}

// labelOr returns labels[key], or "unknown" when it is missing or empty.
func labelOr(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return "unknown"
}

// RecordLatency implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	switch operation {
	case MetricClassifierPredict:
		pm.classifierLatency.WithLabelValues(
			labelOr(labels, "modality"),
			labelOr(labels, "classifier"),
			labelOr(labels, "status"),
		).Observe(duration.Seconds())
	default:
		pm.operationLatency.WithLabelValues(operation, labelOr(labels, "status")).Observe(duration.Seconds())
	}
}

// RecordCounter implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricClassifierRequests:
		pm.classifierRequests.WithLabelValues(
			labelOr(labels, "modality"),
			labelOr(labels, "classifier"),
			labelOr(labels, "status"),
		).Add(value)
	case "ensemble_verdicts_total":
		pm.verdicts.WithLabelValues(labelOr(labels, "label")).Add(value)
	case "ensemble_rejected_total":
		pm.rejected.WithLabelValues(labelOr(labels, "reason")).Add(value)
	default:
		pm.events.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricCircuitState:
		pm.circuitState.WithLabelValues(
			labelOr(labels, "modality"),
			labelOr(labels, "classifier"),
		).Set(value)
	default:
		pm.gauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, _ map[string]string,
) {
	switch metric {
	case "ensemble_fake_probability":
		pm.fakeProbability.Observe(value)
	default:
		pm.values.WithLabelValues(metric).Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
