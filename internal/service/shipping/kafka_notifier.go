package shipping

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
)

// KafkaNotifier публикует запрос на отгрузку в топик службы доставки.
type KafkaNotifier struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaNotifier создаёт notifier поверх общего Kafka producer.
func NewKafkaNotifier(producer *kafka.Producer, topic string) *KafkaNotifier {
	if topic == "" {
		topic = kafka.TopicShippingRequests
	}
	return &KafkaNotifier{producer: producer, topic: topic}
}

// NotifyShipping возвращает true, если брокер подтвердил запись.
func (n *KafkaNotifier) NotifyShipping(ctx context.Context, order domain.Order) (bool, error) {
	if n.producer == nil {
		return false, fmt.Errorf("shipping kafka producer is not initialized")
	}

	request := kafka.NewShippingRequest(order)
	if err := n.producer.PublishEvent(ctx, n.topic, order.ID, request, map[string]string{
		kafka.HeaderEventType: string(request.EventType),
	}); err != nil {
		return false, fmt.Errorf("publish shipping request: %w", err)
	}
	return true, nil
}

var _ domain.ShippingNotifier = (*KafkaNotifier)(nil)
