package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// gatherValue возвращает значение метрики по имени и меткам из registry.
func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if !labelsMatch(metric, labels) {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(labels) == 0 {
		return true
	}
	matched := 0
	for _, pair := range metric.GetLabel() {
		if value, ok := labels[pair.GetName()]; ok && value == pair.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

func TestOrderMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	done := m.RecordCreateStarted()
	require.Equal(t, float64(1), gatherValue(t, reg, "orderflow_orders_in_flight", nil))
	done()
	require.Equal(t, float64(0), gatherValue(t, reg, "orderflow_orders_in_flight", nil))
	require.Equal(t, float64(1), gatherValue(t, reg, "orderflow_create_order_duration_seconds", nil))

	m.RecordOrderCreated()
	m.RecordOrderCreated()
	m.RecordOrderProcessed()
	m.RecordPaymentFailed()
	m.RecordStockShortage()
	m.RecordNotifyFailure()
	m.RecordInvalidTransition()
	m.RecordTransition("pending", "processing")
	m.RecordTransition("pending", "processing")
	m.RecordTransition("processing", "shipped")
	m.RecordStepDuration("pay", 10*time.Millisecond)
	m.RecordTimelineEvent()
	m.RecordOutboxEvent()

	require.Equal(t, float64(2), gatherValue(t, reg, "orderflow_orders_created_total", nil))
	require.Equal(t, float64(1), gatherValue(t, reg, "orderflow_orders_processed_total", nil))
	require.Equal(t, float64(1), gatherValue(t, reg, "orderflow_payment_failed_total", nil))
	require.Equal(t, float64(1), gatherValue(t, reg, "orderflow_stock_shortage_total", nil))
	require.Equal(t, float64(1), gatherValue(t, reg, "orderflow_shipping_notify_failures_total", nil))
	require.Equal(t, float64(1), gatherValue(t, reg, "orderflow_order_invalid_transitions_total", nil))
	require.Equal(t, float64(2), gatherValue(t, reg, "orderflow_order_transitions_total", map[string]string{"from": "pending", "to": "processing"}))
	require.Equal(t, float64(1), gatherValue(t, reg, "orderflow_order_transitions_total", map[string]string{"from": "processing", "to": "shipped"}))
	require.Equal(t, float64(1), gatherValue(t, reg, "orderflow_order_step_duration_seconds", map[string]string{"step": "pay"}))
	require.Equal(t, float64(1), gatherValue(t, reg, "orderflow_timeline_events_total", nil))
	require.Equal(t, float64(1), gatherValue(t, reg, "orderflow_outbox_events_total", nil))
}

func TestOrderMetrics_ReRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewOrderMetricsWithRegisterer(reg)
	second := NewOrderMetricsWithRegisterer(reg)

	first.RecordOrderCreated()
	second.RecordOrderCreated()

	require.Equal(t, float64(2), gatherValue(t, reg, "orderflow_orders_created_total", nil))
}

func TestOrderMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *OrderMetrics

	require.NotPanics(t, func() {
		m.RecordCreateStarted()()
		m.RecordOrderCreated()
		m.RecordOrderProcessed()
		m.RecordPaymentFailed()
		m.RecordStockShortage()
		m.RecordNotifyFailure()
		m.RecordTransition("a", "b")
		m.RecordInvalidTransition()
		m.RecordStepDuration("pay", time.Second)
		m.RecordTimelineEvent()
		m.RecordOutboxEvent()
	})
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.RecordPublish("sent")
	m.RecordPublish("sent")
	m.RecordPublish("failed")
	m.SetBacklog(3, time.Now().Add(-time.Minute))

	require.Equal(t, float64(2), gatherValue(t, reg, "orderflow_outbox_publish_attempts_total", map[string]string{"result": "sent"}))
	require.Equal(t, float64(3), gatherValue(t, reg, "orderflow_outbox_pending_records", nil))
	require.GreaterOrEqual(t, gatherValue(t, reg, "orderflow_outbox_oldest_pending_age_seconds", nil), float64(59))

	m.SetBacklog(0, time.Time{})
	require.Equal(t, float64(0), gatherValue(t, reg, "orderflow_outbox_oldest_pending_age_seconds", nil))

	m.RecordCleanup("ok", 4)
	m.RecordCleanup("ok", 0)
	m.RecordCleanup("error", 1)
	require.Equal(t, float64(2), gatherValue(t, reg, "orderflow_outbox_cleanup_runs_total", map[string]string{"result": "ok"}))
	require.Equal(t, float64(5), gatherValue(t, reg, "orderflow_outbox_cleanup_deleted_total", nil))

	var nilMetrics *OutboxMetrics
	require.NotPanics(t, func() {
		nilMetrics.RecordPublish("sent")
		nilMetrics.SetBacklog(1, time.Now())
		nilMetrics.RecordCleanup("ok", 1)
	})
}
