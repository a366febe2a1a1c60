package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func TestOutboxPublisher_Publish(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var envelope map[string]any
		if err := json.Unmarshal(val, &envelope); err != nil {
			return err
		}
		if envelope["event_type"] != string(EventTypeOrderStatusChanged) {
			return errors.New("unexpected event type in envelope")
		}
		if envelope["aggregate_id"] != "order-123" {
			return errors.New("unexpected aggregate id")
		}
		return nil
	})

	publisher := NewOutboxPublisher(NewProducerFromSync(mockProducer, nil), "")

	err := publisher.Publish(context.Background(), domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "order-123",
		EventType:     domain.EventOrderStatusChanged,
		Payload:       []byte(`{"status":"processing"}`),
	})
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewOutboxPublisher(NewProducerFromSync(mockProducer, nil), TopicOrderEvents)

	err := publisher.Publish(context.Background(), domain.OutboxMessage{
		ID:          "outbox-2",
		AggregateID: "order-234",
		EventType:   domain.EventOrderPaymentFailed,
	})
	require.Error(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_PublishNilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, TopicOrderEvents)
	require.Error(t, publisher.Publish(context.Background(), domain.OutboxMessage{ID: "outbox-3"}))
}

func TestDLQPublisher_SetsOriginalTopicHeader(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicDeadLetterQueue {
			return errors.New("expected dlq topic, got " + msg.Topic)
		}
		for _, header := range msg.Headers {
			if string(header.Key) == HeaderOriginalTopic && string(header.Value) == TopicOrderEvents {
				return nil
			}
		}
		return errors.New("original topic header is missing")
	})

	publisher := NewDLQPublisher(NewProducerFromSync(mockProducer, nil), "")
	err := publisher.Publish(context.Background(), domain.OutboxMessage{
		ID:          "outbox-4",
		AggregateID: "order-9",
		EventType:   domain.EventOrderCreated,
		Payload:     []byte(`{"publish_error":"broker down"}`),
	})
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())

	var nilPublisher *DLQPublisher
	require.Error(t, nilPublisher.Publish(context.Background(), domain.OutboxMessage{}))
}
