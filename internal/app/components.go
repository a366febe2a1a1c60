package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/orderflow/internal/service/grpc"
	"github.com/vladislavdragonenkov/orderflow/internal/service/observe"
	"github.com/vladislavdragonenkov/orderflow/internal/service/outbox"
	"github.com/vladislavdragonenkov/orderflow/internal/service/payment"
	"github.com/vladislavdragonenkov/orderflow/internal/service/saga"
	"github.com/vladislavdragonenkov/orderflow/internal/service/shipping"
)

// components — собранный граф сервисов одного запуска.
type components struct {
	tracker      *observe.Tracker
	orderService *grpcsvc.OrderService
	outbox       *outbox.Worker
	cleanup      *outbox.CleanupWorker
	breaker      *payment.CircuitBreaker
}

// buildComponents связывает репозитории, внешние адаптеры и оркестратор.
// producer может быть nil: тогда доставка пишется в лог, а outbox не публикуется.
func buildComponents(
	cfg Config,
	storage *Storage,
	producer *kafka.Producer,
	registerer prometheus.Registerer,
	tracerProvider trace.TracerProvider,
	logger *log.Entry,
) (*components, error) {
	breaker := payment.NewCircuitBreaker(
		cfg.PaymentBreakerFailures,
		cfg.PaymentBreakerReset,
		logger.WithField("component", "payment-breaker"),
	)
	gateway := payment.NewBreakerGateway(
		payment.NewSimulatedGateway(
			logger.WithField("component", "payment"),
			payment.WithLatency(cfg.PaymentLatency),
			payment.WithSuccessRate(cfg.PaymentSuccessRate),
		),
		breaker,
	)

	var notifier domain.ShippingNotifier
	var publisher, dlq domain.OutboxPublisher
	if producer != nil {
		notifier = shipping.NewKafkaNotifier(producer, kafka.TopicShippingRequests)
		publisher = kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
		dlq = kafka.NewDLQPublisher(producer, kafka.TopicOrderEvents)
	} else {
		notifier = shipping.NewLogNotifier(cfg.ShippingLatency, logger.WithField("component", "shipping"))
	}

	// Без Kafka in-memory outbox некому вычитывать: события остаются только в timeline.
	// Postgres outbox копится и публикуется после запуска с брокерами.
	eventOutbox := storage.Outbox
	if producer == nil && cfg.StorageDriver != StorageDriverPostgres {
		eventOutbox = nil
		logger.Info("kafka is not configured, outbox events are disabled")
	}

	orchestrator, err := saga.NewOrchestrator(
		saga.Dependencies{
			Orders:   storage.Orders,
			Products: storage.Products,
			Payments: gateway,
			Shipping: notifier,
			Outbox:   eventOutbox,
			Timeline: storage.Timeline,
		},
		saga.WithLogger(logger.WithField("component", "saga")),
		saga.WithMetrics(metrics.NewOrderMetricsWithRegisterer(registerer)),
		saga.WithTracerProvider(tracerProvider),
		saga.WithPaymentTimeout(cfg.PaymentTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	tracker := observe.NewTracker(orchestrator)

	outboxMetrics := metrics.NewOutboxMetrics(registerer)
	worker := outbox.NewWorker(
		storage.Outbox,
		publisher,
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(outboxMetrics),
		outbox.WithDLQPublisher(dlq),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
	)

	var cleaner domain.OutboxCleaner
	if c, ok := storage.Outbox.(domain.OutboxCleaner); ok {
		cleaner = c
	}
	cleanup := outbox.NewCleanupWorker(
		cleaner,
		outbox.WithCleanupLogger(logger.WithField("component", "outbox-cleanup")),
		outbox.WithCleanupMetrics(outboxMetrics),
		outbox.WithRetention(cfg.OutboxRetention),
		outbox.WithCleanupInterval(cfg.OutboxCleanupInterval),
	)

	return &components{
		tracker:      tracker,
		orderService: grpcsvc.NewOrderService(tracker, tracker, logger.WithField("layer", "grpc")),
		outbox:       worker,
		cleanup:      cleanup,
		breaker:      breaker,
	}, nil
}

// registerCheckers добавляет проверки компонентов в health handler.
func registerCheckers(handler *health.Handler, storage *Storage, comps *components) {
	if storage.Checker != nil {
		handler.RegisterChecker("storage", storage.Checker)
	}
	handler.RegisterChecker("payment", health.NewStateChecker("payment", func() string {
		if comps.breaker.State() == payment.CircuitOpen {
			return "circuit open"
		}
		return ""
	}))
}
