package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
)

const (
	// DefaultPaymentTimeout ограничивает вызов платёжного шлюза.
	DefaultPaymentTimeout = 5 * time.Second

	tracerName = "github.com/vladislavdragonenkov/orderflow/internal/service/saga"

	maxStatusRetries = 3
	retryBaseDelay   = 10 * time.Millisecond
)

var (
	errPaymentDeclined   = errors.New("declined by gateway")
	errShippingDeclined  = errors.New("shipping notification not accepted")
	errMissingDependency = errors.New("saga: missing required dependency")
)

// Orchestrator управляет жизненным циклом заказа.
type Orchestrator interface {
	// CreateOrder создаёт заказ, проводит оплату и списывает остатки.
	CreateOrder(ctx context.Context, userID string, items []domain.OrderItem) (domain.Order, error)
	// GetOrder возвращает заказ; ok=false без ошибки, если заказа нет.
	GetOrder(ctx context.Context, id string) (domain.Order, bool, error)
	// GetUserOrders возвращает заказы пользователя, новые первыми. Никогда не nil.
	GetUserOrders(ctx context.Context, userID string) ([]domain.Order, error)
	// UpdateOrderStatus переводит заказ в новый статус по таблице переходов.
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error)
}

// Dependencies — коллабораторы оркестратора. Outbox, Timeline и Shipping опциональны.
type Dependencies struct {
	Orders   domain.OrderRepository
	Products domain.ProductRepository
	Payments domain.PaymentGateway
	Shipping domain.ShippingNotifier
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository
}

// Option настраивает оркестратор.
type Option func(*orchestrator)

func WithLogger(logger *log.Entry) Option {
	return func(o *orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics подключает метрики; без опции оркестратор работает без них.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(o *orchestrator) {
		o.metrics = m
	}
}

// WithTracerProvider задаёт провайдер трассировки вместо глобального.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *orchestrator) {
		if provider != nil {
			o.tracer = provider.Tracer(tracerName)
		}
	}
}

// WithPaymentTimeout задаёт таймаут оплаты. Неположительное значение игнорируется.
func WithPaymentTimeout(timeout time.Duration) Option {
	return func(o *orchestrator) {
		if timeout > 0 {
			o.paymentTimeout = timeout
		}
	}
}

type orchestrator struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
	payments domain.PaymentGateway
	shipping domain.ShippingNotifier
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository

	logger         *log.Entry
	metrics        *metrics.OrderMetrics
	tracer         trace.Tracer
	paymentTimeout time.Duration
}

// NewOrchestrator создаёт оркестратор заказов.
func NewOrchestrator(deps Dependencies, opts ...Option) (Orchestrator, error) {
	switch {
	case deps.Orders == nil:
		return nil, fmt.Errorf("%w: order repository", errMissingDependency)
	case deps.Products == nil:
		return nil, fmt.Errorf("%w: product repository", errMissingDependency)
	case deps.Payments == nil:
		return nil, fmt.Errorf("%w: payment gateway", errMissingDependency)
	}

	o := &orchestrator{
		orders:         deps.Orders,
		products:       deps.Products,
		payments:       deps.Payments,
		shipping:       deps.Shipping,
		outbox:         deps.Outbox,
		timeline:       deps.Timeline,
		logger:         log.WithField("component", "saga"),
		tracer:         otel.Tracer(tracerName),
		paymentTimeout: DefaultPaymentTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *orchestrator) CreateOrder(ctx context.Context, userID string, items []domain.OrderItem) (domain.Order, error) {
	ctx, span := o.tracer.Start(ctx, "order.CreateOrder", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Int("order.items", len(items)),
	))
	defer span.End()

	done := o.metrics.RecordCreateStarted()
	defer done()

	order, err := o.createOrder(ctx, userID, items)
	if order.ID != "" {
		span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.status", string(order.Status)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return order, err
}

func (o *orchestrator) createOrder(ctx context.Context, userID string, items []domain.OrderItem) (domain.Order, error) {
	var problems []error
	if userID == "" {
		problems = append(problems, domain.ErrUserRequired)
	}
	problems = append(problems, domain.ValidateItems(items)...)
	if len(problems) > 0 {
		return domain.Order{}, domain.NewOrderError(domain.ErrInvalidInput, "", errors.Join(problems...))
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Items:     append([]domain.OrderItem(nil), items...),
		Total:     domain.CalculateTotal(items),
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if problems := order.ValidateInvariants(); len(problems) > 0 {
		return domain.Order{}, domain.NewOrderError(domain.ErrInvalidInput, order.ID, errors.Join(problems...))
	}

	logger := o.logger.WithFields(log.Fields{"order_id": order.ID, "user_id": userID})

	if err := o.runStep(ctx, domain.SagaStepPersist, order.ID, func(ctx context.Context) error {
		return o.orders.Create(ctx, order)
	}); err != nil {
		logger.WithError(err).Error("failed to persist order")
		return domain.Order{}, fmt.Errorf("persist order %s: %w", order.ID, err)
	}
	o.metrics.RecordOrderCreated()
	o.emitEvent(ctx, &order, domain.EventOrderCreated, map[string]any{
		"items": len(order.Items),
	})
	logger.WithField("total", order.Total.StringFixed(2)).Info("order created")

	if err := o.runStep(ctx, domain.SagaStepPay, order.ID, func(ctx context.Context) error {
		return o.pay(ctx, order)
	}); err != nil {
		logger.WithError(err).Warn("payment failed, cancelling order")
		return o.compensatePayment(ctx, order, err)
	}

	if err := o.runStep(ctx, domain.SagaStepProcess, order.ID, func(ctx context.Context) error {
		return o.updateStatus(ctx, &order, domain.OrderStatusProcessing)
	}); err != nil {
		logger.WithError(err).Error("failed to move order to processing")
		return order, err
	}

	if err := o.runStep(ctx, domain.SagaStepStock, order.ID, func(ctx context.Context) error {
		return o.products.DecrementStock(ctx, domain.StockChanges(order.Items))
	}); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrProductNotFound) {
			o.metrics.RecordStockShortage()
			o.emitEvent(ctx, &order, domain.EventOrderStockShortage, map[string]any{
				"reason":     err.Error(),
				"product_id": domain.ErrorID(err),
			})
			logger.WithError(err).Warn("stock decrement rejected, order left in processing")
			return order, err
		}
		logger.WithError(err).Error("failed to decrement stock")
		return order, fmt.Errorf("decrement stock for order %s: %w", order.ID, err)
	}

	o.metrics.RecordOrderProcessed()
	logger.Info("order processed")
	return order, nil
}

// pay вызывает шлюз с таймаутом; отказ, ошибка и таймаут сводятся к PaymentFailed.
func (o *orchestrator) pay(ctx context.Context, order domain.Order) error {
	payCtx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
	defer cancel()

	approved, err := o.payments.ProcessPayment(payCtx, order.ID, order.Total)
	switch {
	case err != nil && errors.Is(payCtx.Err(), context.DeadlineExceeded):
		return domain.NewOrderError(domain.ErrPaymentFailed, order.ID,
			fmt.Errorf("timed out after %s: %w", o.paymentTimeout, err))
	case err != nil:
		return domain.NewOrderError(domain.ErrPaymentFailed, order.ID, err)
	case !approved:
		return domain.NewOrderError(domain.ErrPaymentFailed, order.ID, errPaymentDeclined)
	}
	return nil
}

// compensatePayment отменяет неоплаченный заказ. Остатки не трогаются.
func (o *orchestrator) compensatePayment(ctx context.Context, order domain.Order, payErr error) (domain.Order, error) {
	o.metrics.RecordPaymentFailed()

	// Компенсация выполняется и после отмены запроса вызывающей стороной.
	ctx = context.WithoutCancel(ctx)
	if err := o.runStep(ctx, domain.SagaStepCancel, order.ID, func(ctx context.Context) error {
		return o.updateStatus(ctx, &order, domain.OrderStatusCancelled)
	}); err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Error("failed to cancel order after payment failure")
		return order, errors.Join(payErr, fmt.Errorf("cancel order %s: %w", order.ID, err))
	}

	o.emitEvent(ctx, &order, domain.EventOrderPaymentFailed, map[string]any{
		"reason": payErr.Error(),
	})
	return order, payErr
}

func (o *orchestrator) GetOrder(ctx context.Context, id string) (domain.Order, bool, error) {
	order, err := o.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, fmt.Errorf("get order %s: %w", id, err)
	}
	return order, true, nil
}

func (o *orchestrator) GetUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := o.orders.ListByUser(ctx, userID, 0)
	if err != nil {
		return []domain.Order{}, fmt.Errorf("list orders for user %s: %w", userID, err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func (o *orchestrator) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	ctx, span := o.tracer.Start(ctx, "order.UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	order, err := o.updateOrderStatus(ctx, id, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return order, err
}

func (o *orchestrator) updateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.NewOrderError(domain.ErrInvalidInput, id,
			fmt.Errorf("%w: %q", domain.ErrUnknownOrderStatus, status))
	}

	order, err := o.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, domain.NewOrderError(domain.ErrOrderNotFound, id, nil)
		}
		return domain.Order{}, fmt.Errorf("load order %s: %w", id, err)
	}

	if err := o.runStep(ctx, domain.SagaStepStatus, id, func(ctx context.Context) error {
		return o.updateStatus(ctx, &order, status)
	}); err != nil {
		return order, err
	}

	if status == domain.OrderStatusShipped {
		o.notifyShipping(ctx, order)
	}
	return order, nil
}

// notifyShipping работает по принципу best-effort: ошибка логируется, статус не откатывается.
func (o *orchestrator) notifyShipping(ctx context.Context, order domain.Order) {
	if o.shipping == nil {
		return
	}

	err := o.runStep(ctx, domain.SagaStepNotify, order.ID, func(ctx context.Context) error {
		accepted, err := o.shipping.NotifyShipping(ctx, order)
		if err != nil {
			return err
		}
		if !accepted {
			return errShippingDeclined
		}
		return nil
	})
	if err != nil {
		o.metrics.RecordNotifyFailure()
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("shipping notification failed")
		return
	}
	o.emitEvent(ctx, &order, domain.EventOrderShipped, nil)
}

// updateStatus сохраняет новый статус с optimistic locking. При конфликте версий
// заказ перечитывается, переход проверяется заново, попытка повторяется с backoff.
func (o *orchestrator) updateStatus(ctx context.Context, order *domain.Order, newStatus domain.OrderStatus) error {
	for attempt := 0; attempt < maxStatusRetries; attempt++ {
		previous := *order
		if !domain.CanTransition(previous.Status, newStatus) {
			o.metrics.RecordInvalidTransition()
			return domain.NewOrderError(domain.ErrInvalidTransition, order.ID,
				fmt.Errorf("%s -> %s", previous.Status, newStatus))
		}

		next := previous
		next.Status = newStatus
		next.UpdatedAt = time.Now().UTC()

		err := o.orders.Save(ctx, next)
		if err == nil {
			next.Version = previous.Version + 1
			*order = next
			o.metrics.RecordTransition(string(previous.Status), string(newStatus))
			o.emitEvent(ctx, order, domain.EventOrderStatusChanged, map[string]any{
				"from": string(previous.Status),
				"to":   string(newStatus),
			})
			return nil
		}

		if !domain.IsVersionConflict(err) {
			o.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist status")
			if errors.Is(err, domain.ErrOrderNotFound) {
				return domain.NewOrderError(domain.ErrOrderNotFound, order.ID, nil)
			}
			return fmt.Errorf("save order %s: %w", order.ID, err)
		}
		if attempt == maxStatusRetries-1 {
			break
		}

		o.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"attempt":  attempt + 1,
			"version":  previous.Version,
		}).Warn("version conflict detected, retrying")

		fresh, loadErr := o.orders.Get(ctx, order.ID)
		if loadErr != nil {
			return fmt.Errorf("reload order %s after conflict: %w", order.ID, loadErr)
		}
		*order = fresh

		timer := time.NewTimer(retryBaseDelay * time.Duration(1<<attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("save order %s after %d attempts: %w", order.ID, maxStatusRetries, domain.ErrOrderVersionConflict)
}

// runStep оборачивает шаг в span и замеряет его длительность.
func (o *orchestrator) runStep(ctx context.Context, step domain.SagaStep, orderID string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "order."+string(step), trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	o.metrics.RecordStepDuration(string(step), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// emitEvent пишет событие в outbox и timeline. Ошибки записи не прерывают обработку заказа.
func (o *orchestrator) emitEvent(ctx context.Context, order *domain.Order, eventType string, metadata map[string]any) {
	logger := o.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"event":    eventType,
	})

	if o.outbox != nil {
		payload, err := json.Marshal(kafka.NewOrderEvent(kafka.EventTypeFor(eventType), *order, metadata))
		if err != nil {
			logger.WithError(err).Error("marshal event failed")
		} else if _, err := o.outbox.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     eventType,
			Payload:       payload,
		}); err != nil {
			logger.WithError(err).Error("enqueue event failed")
		} else {
			o.metrics.RecordOutboxEvent()
		}
	}

	if o.timeline != nil {
		reason, _ := metadata["reason"].(string)
		from, _ := metadata["from"].(string)
		to, _ := metadata["to"].(string)
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			From:     domain.OrderStatus(from),
			To:       domain.OrderStatus(to),
			Reason:   reason,
			Occurred: time.Now().UTC(),
		}
		if err := o.timeline.Append(ctx, event); err != nil {
			logger.WithError(err).Warn("append timeline event failed")
		} else {
			o.metrics.RecordTimelineEvent()
		}
	}
}

var _ Orchestrator = (*orchestrator)(nil)
