package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orderflow"

// OrderMetrics содержит метрики оркестратора заказов. Все методы безопасны для nil.
type OrderMetrics struct {
	ordersCreated   prometheus.Counter
	ordersProcessed prometheus.Counter
	paymentFailed   prometheus.Counter
	stockShortage   prometheus.Counter
	notifyFailures  prometheus.Counter

	transitions        *prometheus.CounterVec
	invalidTransitions prometheus.Counter

	createDuration prometheus.Histogram
	stepDuration   *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	inFlight prometheus.Gauge
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в указанном registerer.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: counter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Total number of orders persisted in pending state",
		}),
		ordersProcessed: counter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_processed_total",
			Help:      "Total number of orders that were paid and had stock decremented",
		}),
		paymentFailed: counter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_failed_total",
			Help:      "Total number of orders cancelled after a failed payment",
		}),
		stockShortage: counter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_shortage_total",
			Help:      "Total number of paid orders that could not decrement stock",
		}),
		notifyFailures: counter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_notify_failures_total",
			Help:      "Total number of failed shipping notifications",
		}),
		transitions: counterVec(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Total number of persisted order status transitions",
		}, "from", "to"),
		invalidTransitions: counter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_invalid_transitions_total",
			Help:      "Total number of rejected status transitions",
		}),
		createDuration: histogram(registerer, prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "create_order_duration_seconds",
			Help:      "Duration of CreateOrder in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		stepDuration: histogramVec(registerer, prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_step_duration_seconds",
			Help:      "Duration of individual orchestration steps in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, "step"),
		timelineEvents: counter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_events_total",
			Help:      "Total number of timeline events recorded",
		}),
		outboxEvents: counter(registerer, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Total number of events enqueued to the outbox",
		}),
		inFlight: gauge(registerer, prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orders_in_flight",
			Help:      "Number of CreateOrder calls currently running",
		}),
	}
}

// RecordCreateStarted отмечает начало CreateOrder и возвращает функцию завершения.
func (m *OrderMetrics) RecordCreateStarted() func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	m.inFlight.Inc()
	return func() {
		m.inFlight.Dec()
		m.createDuration.Observe(time.Since(start).Seconds())
	}
}

func (m *OrderMetrics) RecordOrderCreated() {
	if m != nil {
		m.ordersCreated.Inc()
	}
}

func (m *OrderMetrics) RecordOrderProcessed() {
	if m != nil {
		m.ordersProcessed.Inc()
	}
}

func (m *OrderMetrics) RecordPaymentFailed() {
	if m != nil {
		m.paymentFailed.Inc()
	}
}

func (m *OrderMetrics) RecordStockShortage() {
	if m != nil {
		m.stockShortage.Inc()
	}
}

func (m *OrderMetrics) RecordNotifyFailure() {
	if m != nil {
		m.notifyFailures.Inc()
	}
}

// RecordTransition учитывает сохранённый переход статуса.
func (m *OrderMetrics) RecordTransition(from, to string) {
	if m != nil {
		m.transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *OrderMetrics) RecordInvalidTransition() {
	if m != nil {
		m.invalidTransitions.Inc()
	}
}

// RecordStepDuration записывает время выполнения шага.
func (m *OrderMetrics) RecordStepDuration(step string, duration time.Duration) {
	if m != nil {
		m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
	}
}

func (m *OrderMetrics) RecordTimelineEvent() {
	if m != nil {
		m.timelineEvents.Inc()
	}
}

func (m *OrderMetrics) RecordOutboxEvent() {
	if m != nil {
		m.outboxEvents.Inc()
	}
}
