package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics — метрики воркера transactional outbox.
type OutboxMetrics struct {
	publishAttempts *prometheus.CounterVec
	pending         prometheus.Gauge
	oldestAge       prometheus.Gauge
	cleanupRuns     *prometheus.CounterVec
	cleanupDeleted  prometheus.Counter
}

// NewOutboxMetrics регистрирует метрики outbox в указанном registerer.
func NewOutboxMetrics(registerer prometheus.Registerer) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OutboxMetrics{
		publishAttempts: counterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_attempts_total",
			Help:      "Total number of outbox publish attempts grouped by result.",
		}, "result"),
		pending: gauge(registerer, prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_pending_records",
			Help:      "Current number of pending records in transactional outbox.",
		}),
		oldestAge: gauge(registerer, prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_oldest_pending_age_seconds",
			Help:      "Age in seconds of the oldest pending outbox record.",
		}),
		cleanupRuns: counterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_cleanup_runs_total",
			Help:      "Total number of outbox cleanup runs grouped by result.",
		}, "result"),
		cleanupDeleted: counter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_cleanup_deleted_total",
			Help:      "Total number of deleted sent outbox records.",
		}),
	}
}

// RecordPublish учитывает попытку публикации с результатом result.
func (m *OutboxMetrics) RecordPublish(result string) {
	if m != nil {
		m.publishAttempts.WithLabelValues(result).Inc()
	}
}

// SetBacklog обновляет размер backlog и возраст самого старого сообщения.
func (m *OutboxMetrics) SetBacklog(pending int, oldest time.Time) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	if pending == 0 || oldest.IsZero() {
		m.oldestAge.Set(0)
		return
	}
	age := time.Since(oldest).Seconds()
	if age < 0 {
		age = 0
	}
	m.oldestAge.Set(age)
}

// RecordCleanup учитывает прогон очистки и число удалённых записей.
func (m *OutboxMetrics) RecordCleanup(result string, deleted int) {
	if m == nil {
		return
	}
	m.cleanupRuns.WithLabelValues(result).Inc()
	if deleted > 0 {
		m.cleanupDeleted.Add(float64(deleted))
	}
}
