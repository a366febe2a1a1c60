package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// EventType определяет тип события в топиках Kafka.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderPaymentFailed EventType = "order.payment_failed"
	EventTypeOrderStockShortage EventType = "order.stock_shortage"
	EventTypeOrderShipped       EventType = "order.shipped"
	EventTypeShippingRequested  EventType = "shipping.requested"
	EventTypeUnknown            EventType = "unknown"
)

// Topics для Kafka.
const (
	TopicOrderEvents      = "orderflow.order.events"
	TopicShippingRequests = "orderflow.shipping.requests"
	TopicDeadLetterQueue  = "orderflow.dlq"
)

// Kafka headers.
const (
	HeaderEventType     = "x-event-type"
	HeaderOriginalTopic = "x-original-topic"
	HeaderFailedAt      = "x-failed-at"
)

var domainEventTypes = map[string]EventType{
	domain.EventOrderCreated:       EventTypeOrderCreated,
	domain.EventOrderStatusChanged: EventTypeOrderStatusChanged,
	domain.EventOrderPaymentFailed: EventTypeOrderPaymentFailed,
	domain.EventOrderStockShortage: EventTypeOrderStockShortage,
	domain.EventOrderShipped:       EventTypeOrderShipped,
}

// EventTypeFor переводит тип события outbox/timeline в тип события Kafka.
func EventTypeFor(domainEvent string) EventType {
	if eventType, ok := domainEventTypes[domainEvent]; ok {
		return eventType
	}
	return EventTypeUnknown
}

// OrderEvent — событие жизненного цикла заказа.
type OrderEvent struct {
	EventType EventType      `json:"event_type"`
	OrderID   string         `json:"order_id"`
	UserID    string         `json:"user_id"`
	Status    string         `json:"status"`
	Total     string         `json:"total"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewOrderEvent создает событие заказа по его текущему состоянию.
func NewOrderEvent(eventType EventType, order domain.Order, metadata map[string]any) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    string(order.Status),
		Total:     order.Total.StringFixed(2),
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// ShippingItem — позиция в запросе на отгрузку.
type ShippingItem struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// ShippingRequest — сообщение для службы доставки.
type ShippingRequest struct {
	EventType   EventType      `json:"event_type"`
	OrderID     string         `json:"order_id"`
	UserID      string         `json:"user_id"`
	Items       []ShippingItem `json:"items"`
	RequestedAt time.Time      `json:"requested_at"`
}

// NewShippingRequest собирает запрос на отгрузку заказа.
func NewShippingRequest(order domain.Order) *ShippingRequest {
	items := make([]ShippingItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ShippingItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return &ShippingRequest{
		EventType:   EventTypeShippingRequested,
		OrderID:     order.ID,
		UserID:      order.UserID,
		Items:       items,
		RequestedAt: time.Now().UTC(),
	}
}
