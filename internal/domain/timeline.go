package domain

import (
	"errors"
	"fmt"
	"time"
)

// Типы событий жизненного цикла заказа (timeline и outbox).
const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderPaymentFailed = "OrderPaymentFailed"
	EventOrderStockShortage = "OrderStockShortage"
	EventOrderShipped       = "OrderShipped"
)

// TimelineEvent — запись в истории заказа. From/To заполнены только для
// смены статуса, Reason — для отказов (оплата, остатки, доставка).
type TimelineEvent struct {
	OrderID  string
	Type     string
	From     OrderStatus
	To       OrderStatus
	Reason   string
	Occurred time.Time
}

// IsTransition сообщает, описывает ли событие смену статуса.
func (e TimelineEvent) IsTransition() bool {
	return e.To != ""
}

// ErrTimelineEventInvalid — у события нет заказа или типа.
var ErrTimelineEventInvalid = errors.New("timeline event requires order id and type")

// Validate проверяет обязательные поля события.
func (e TimelineEvent) Validate() error {
	if e.OrderID == "" || e.Type == "" {
		return NewOrderError(ErrInvalidInput, e.OrderID, ErrTimelineEventInvalid)
	}
	if e.To != "" && !e.To.Valid() {
		return NewOrderError(ErrInvalidInput, e.OrderID, fmt.Errorf("%w: %q", ErrUnknownOrderStatus, e.To))
	}
	return nil
}
