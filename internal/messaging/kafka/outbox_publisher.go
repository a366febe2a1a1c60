package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// outboxEnvelope — формат outbox-сообщения в топике.
type outboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

func newEnvelope(event domain.OutboxMessage) outboxEnvelope {
	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return outboxEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     EventTypeFor(event.EventType),
		Payload:       payload,
		PublishedAt:   time.Now().UTC(),
	}
}

func messageKey(event domain.OutboxMessage) string {
	if event.AggregateID != "" {
		return event.AggregateID
	}
	return event.ID
}

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic}
}

// Publish отправляет сообщение; ключ — id заказа, чтобы события одного заказа
// попадали в одну партицию.
func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	return p.producer.PublishEvent(ctx, p.topic, messageKey(event), newEnvelope(event), map[string]string{
		HeaderEventType: event.EventType,
	})
}

// DLQPublisher отправляет в dead letter queue сообщения, исчерпавшие попытки публикации.
type DLQPublisher struct {
	producer      *Producer
	originalTopic string
}

// NewDLQPublisher создаёт паблишер в TopicDeadLetterQueue.
func NewDLQPublisher(producer *Producer, originalTopic string) *DLQPublisher {
	if originalTopic == "" {
		originalTopic = TopicOrderEvents
	}
	return &DLQPublisher{producer: producer, originalTopic: originalTopic}
}

// Publish кладёт сообщение в DLQ с заголовками об исходном топике и времени сбоя.
func (p *DLQPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}

	return p.producer.PublishEvent(ctx, TopicDeadLetterQueue, messageKey(event), newEnvelope(event), map[string]string{
		HeaderEventType:     event.EventType,
		HeaderOriginalTopic: p.originalTopic,
		HeaderFailedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	})
}

var (
	_ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
	_ domain.OutboxPublisher = (*DLQPublisher)(nil)
)
