package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/app"
	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
)

func mapLookup(values map[string]string) app.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

type fakeOffsetClient struct {
	partitions []int32
	oldest     map[int32]int64
	newest     map[int32]int64
	err        error
	closed     bool
}

func (c *fakeOffsetClient) GetOffset(_ string, partition int32, at int64) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	if at == sarama.OffsetOldest {
		return c.oldest[partition], nil
	}
	return c.newest[partition], nil
}

func (c *fakeOffsetClient) Partitions(string) ([]int32, error) {
	return c.partitions, c.err
}

func (c *fakeOffsetClient) Close() error {
	c.closed = true
	return nil
}

type fakePartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (c *fakePartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return c.messages }
func (c *fakePartitionConsumer) Errors() <-chan *sarama.ConsumerError { return c.errors }
func (c *fakePartitionConsumer) Close() error { return nil }

type fakeConsumerSource struct {
	byPartition map[int32][]*sarama.ConsumerMessage
	offsets     map[int32]int64
	closed      bool
}

func (s *fakeConsumerSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	if s.offsets == nil {
		s.offsets = make(map[int32]int64)
	}
	s.offsets[partition] = offset

	pc := &fakePartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage, len(s.byPartition[partition])),
		errors:   make(chan *sarama.ConsumerError),
	}
	for _, msg := range s.byPartition[partition] {
		if msg.Offset >= offset {
			pc.messages <- msg
		}
	}
	return pc, nil
}

func (s *fakeConsumerSource) Close() error {
	s.closed = true
	return nil
}

func dlqMessage(t *testing.T, partition int32, offset int64, orderID string) *sarama.ConsumerMessage {
	t.Helper()

	record, err := json.Marshal(map[string]any{
		"outbox_id":     "outbox-" + orderID,
		"order_id":      orderID,
		"event_type":    domain.EventOrderStatusChanged,
		"payload":       json.RawMessage(`{"status":"processing"}`),
		"publish_error": "broker unavailable",
		"failed_at":     time.Now().UTC(),
	})
	require.NoError(t, err)

	value, err := json.Marshal(map[string]any{
		"id":             "outbox-" + orderID,
		"aggregate_type": "order",
		"aggregate_id":   orderID,
		"event_type":     kafka.EventTypeFor(domain.EventOrderStatusChanged),
		"payload":        json.RawMessage(record),
	})
	require.NoError(t, err)

	return &sarama.ConsumerMessage{
		Topic:     kafka.TopicDeadLetterQueue,
		Partition: partition,
		Offset:    offset,
		Value:     value,
		Headers: []*sarama.RecordHeader{
			{Key: []byte(kafka.HeaderOriginalTopic), Value: []byte(kafka.TopicShippingRequests)},
		},
	}
}

func testConfig(execute bool) config {
	return config{
		brokers:     []string{"localhost:9092"},
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicOrderEvents,
		limit:       10,
		execute:     execute,
		idleTimeout: 200 * time.Millisecond,
	}
}

func TestParseConfig(t *testing.T) {
	t.Parallel()

	cfg, err := parseConfig([]string{"-limit", "5", "-execute"}, mapLookup(map[string]string{
		app.EnvKafkaBrokers: "kafka-1:9092, kafka-2:9092,",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.brokers)
	assert.Equal(t, kafka.TopicDeadLetterQueue, cfg.sourceTopic)
	assert.Equal(t, kafka.TopicOrderEvents, cfg.targetTopic)
	assert.Equal(t, 5, cfg.limit)
	assert.True(t, cfg.execute)
	assert.Equal(t, defaultIdleTimeout, cfg.idleTimeout)

	cfg, err = parseConfig([]string{"-brokers", "flag:9092"}, mapLookup(map[string]string{
		app.EnvKafkaBrokers: "env:9092",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"flag:9092"}, cfg.brokers)
	assert.False(t, cfg.execute)
}

func TestParseConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no brokers", args: nil},
		{name: "empty source", args: []string{"-brokers", "b:9092", "-source-topic", " "}},
		{name: "empty target", args: []string{"-brokers", "b:9092", "-target-topic", ""}},
		{name: "zero limit", args: []string{"-brokers", "b:9092", "-limit", "0"}},
		{name: "bad idle timeout", args: []string{"-brokers", "b:9092", "-idle-timeout", "0s"}},
		{name: "unknown flag", args: []string{"-nope"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseConfig(tt.args, mapLookup(nil))
			require.Error(t, err)
		})
	}
}

func TestExtractReplayMessage(t *testing.T) {
	t.Parallel()

	replay, err := extractReplayMessage(dlqMessage(t, 0, 3, "order-1"), kafka.TopicOrderEvents)
	require.NoError(t, err)
	assert.Equal(t, kafka.TopicShippingRequests, replay.topic)
	assert.Equal(t, "outbox-order-1", replay.event.ID)
	assert.Equal(t, "order", replay.event.AggregateType)
	assert.Equal(t, "order-1", replay.event.AggregateID)
	assert.Equal(t, domain.EventOrderStatusChanged, replay.event.EventType)
	assert.JSONEq(t, `{"status":"processing"}`, string(replay.event.Payload))

	msg := dlqMessage(t, 0, 4, "order-2")
	msg.Headers = nil
	replay, err = extractReplayMessage(msg, kafka.TopicOrderEvents)
	require.NoError(t, err)
	assert.Equal(t, kafka.TopicOrderEvents, replay.topic)
}

func TestExtractReplayMessageSkipsForeignPayloads(t *testing.T) {
	t.Parallel()

	for name, value := range map[string]string{
		"not json":      `not-json`,
		"empty payload": `{"id":"x"}`,
		"no event":      `{"id":"x","payload":{"order_id":"o"}}`,
	} {
		_, err := extractReplayMessage(&sarama.ConsumerMessage{Value: []byte(value)}, kafka.TopicOrderEvents)
		require.ErrorIs(t, err, errSkip, name)
	}
}

func TestReplayerDryRun(t *testing.T) {
	t.Parallel()

	client := &fakeOffsetClient{
		partitions: []int32{1, 0},
		oldest:     map[int32]int64{0: 0, 1: 0},
		newest:     map[int32]int64{0: 2, 1: 1},
	}
	consumer := &fakeConsumerSource{byPartition: map[int32][]*sarama.ConsumerMessage{
		0: {dlqMessage(t, 0, 0, "order-1"), {Partition: 0, Offset: 1, Value: []byte("garbage")}},
		1: {dlqMessage(t, 1, 0, "order-2")},
	}}

	stats, err := newReplayer(testConfig(false), client, consumer, nil).run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, replayStats{processed: 3, replayed: 2, skipped: 1}, stats)
}

func TestReplayerExecutePublishesToOriginalTopic(t *testing.T) {
	t.Parallel()

	syncProducer := mocks.NewSyncProducer(t, nil)
	syncProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != kafka.TopicShippingRequests {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "order-1" {
			return errors.New("unexpected key " + string(key))
		}
		return nil
	})

	client := &fakeOffsetClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 0},
		newest:     map[int32]int64{0: 1},
	}
	consumer := &fakeConsumerSource{byPartition: map[int32][]*sarama.ConsumerMessage{
		0: {dlqMessage(t, 0, 0, "order-1")},
	}}

	producer := kafka.NewProducerFromSync(syncProducer, nil)
	stats, err := newReplayer(testConfig(true), client, consumer, producer).run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.replayed)
	require.NoError(t, syncProducer.Close())
}

func TestReplayerExecuteRequiresProducer(t *testing.T) {
	t.Parallel()

	_, err := newReplayer(testConfig(true), &fakeOffsetClient{}, &fakeConsumerSource{}, nil).run(context.Background())
	require.Error(t, err)
}

func TestReplayerRespectsLimitAndFromNewest(t *testing.T) {
	t.Parallel()

	cfg := testConfig(false)
	cfg.limit = 2
	cfg.fromNewest = true

	messages := make([]*sarama.ConsumerMessage, 0, 5)
	for offset := int64(0); offset < 5; offset++ {
		messages = append(messages, dlqMessage(t, 0, offset, "order"))
	}
	client := &fakeOffsetClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 0},
		newest:     map[int32]int64{0: 5},
	}
	consumer := &fakeConsumerSource{byPartition: map[int32][]*sarama.ConsumerMessage{0: messages}}

	stats, err := newReplayer(cfg, client, consumer, nil).run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.processed)
	assert.Equal(t, int64(3), consumer.offsets[0])
}

func TestReplayerOffsetError(t *testing.T) {
	t.Parallel()

	client := &fakeOffsetClient{err: errors.New("metadata unavailable")}
	_, err := newReplayer(testConfig(false), client, &fakeConsumerSource{}, nil).run(context.Background())
	require.ErrorContains(t, err, "metadata unavailable")
}

func TestRunUsesInjectedDependencies(t *testing.T) {
	client := &fakeOffsetClient{partitions: []int32{0}, oldest: map[int32]int64{0: 0}, newest: map[int32]int64{0: 0}}
	consumer := &fakeConsumerSource{}

	original := newReplayDependencies
	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, *kafka.Producer, error) {
		return client, consumer, nil, nil
	}
	t.Cleanup(func() { newReplayDependencies = original })

	require.NoError(t, run(context.Background(), testConfig(false)))
	assert.True(t, client.closed)
	assert.True(t, consumer.closed)
}
