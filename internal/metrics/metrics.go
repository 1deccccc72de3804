// Package metrics provides the prometheus metrics of regtrigger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/regtrigger/internal/logfields"
)

const metricNamespace = "regtrigger"

const (
	notificationsReceivedMetricName  = "notifications_received_total"
	notificationsDuplicateMetricName = "notifications_duplicate_total"
	buildsTriggeredMetricName        = "builds_triggered_total"
	projectionFailuresMetricName     = "projection_failures_total"
	triggerMatchErrorsMetricName     = "trigger_match_errors_total"
)

const (
	registryLabel = "registry"
	jobLabel      = "job"
	kindLabel     = "kind"
)

// ProjectionFailureKind is the value of the kind label of the projection
// failure metric.
type ProjectionFailureKind string

const (
	ProjectionFailureParameter ProjectionFailureKind = "parameter"
	ProjectionFailureEventType ProjectionFailureKind = "event_type"
	ProjectionFailureTrigger   ProjectionFailureKind = "trigger"
)

type metricCollector struct {
	notificationsReceived  *prometheus.CounterVec
	notificationsDuplicate prometheus.Counter
	buildsTriggered        *prometheus.CounterVec
	projectionFailures     *prometheus.CounterVec
	triggerMatchErrors     *prometheus.CounterVec
}

var metrics = newMetricCollector()

// logger is resolved on each use, the collector is created at package
// initialization before the global logger is configured.
func logger() *zap.Logger {
	return zap.L().Named("metrics")
}

func newMetricCollector() *metricCollector {
	return &metricCollector{
		notificationsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      notificationsReceivedMetricName,
				Help:      "count of received and successfully parsed registry notifications",
			},
			[]string{registryLabel},
		),
		notificationsDuplicate: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      notificationsDuplicateMetricName,
				Help:      "count of notifications that were dropped because they were delivered multiple times",
			},
		),
		buildsTriggered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      buildsTriggeredMetricName,
				Help:      "count of triggered builds",
			},
			[]string{jobLabel},
		),
		projectionFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      projectionFailuresMetricName,
				Help:      "count of failed parameter applications and event type projections",
			},
			[]string{kindLabel},
		),
		triggerMatchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      triggerMatchErrorsMetricName,
				Help:      "count of trigger filter query evaluation errors",
			},
			[]string{jobLabel},
		),
	}
}

func (m *metricCollector) logGetMetricFailed(metricName string, err error) {
	logger().Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

func (m *metricCollector) incVec(vec *prometheus.CounterVec, metricName string, labels prometheus.Labels) {
	cnt, err := vec.GetMetricWith(labels)
	if err != nil {
		m.logGetMetricFailed(metricName, err)
		return
	}

	cnt.Inc()
}

func NotificationReceivedInc(registry string) {
	metrics.incVec(
		metrics.notificationsReceived,
		notificationsReceivedMetricName,
		prometheus.Labels{registryLabel: registry},
	)
}

func NotificationDuplicateInc() {
	metrics.notificationsDuplicate.Inc()
}

func BuildTriggeredInc(job string) {
	metrics.incVec(
		metrics.buildsTriggered,
		buildsTriggeredMetricName,
		prometheus.Labels{jobLabel: job},
	)
}

func ProjectionFailureInc(kind ProjectionFailureKind) {
	metrics.incVec(
		metrics.projectionFailures,
		projectionFailuresMetricName,
		prometheus.Labels{kindLabel: string(kind)},
	)
}

func TriggerMatchErrorInc(job string) {
	metrics.incVec(
		metrics.triggerMatchErrors,
		triggerMatchErrorsMetricName,
		prometheus.Labels{jobLabel: job},
	)
}
