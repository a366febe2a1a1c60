package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
)

func memoryStorage() *Storage {
	return &Storage{
		Orders:   memory.NewOrderRepository(),
		Products: memory.NewProductRepository(),
		Users:    memory.NewUserRepository(),
		Outbox:   memory.NewOutboxRepository(),
		Timeline: memory.NewTimelineRepository(),
	}
}

func createTestOrder(t *testing.T, cfg Config, storage *Storage) domain.Order {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, storage.Products.Create(ctx, domain.Product{
		ID: "P1", Name: "P1", Price: decimal.NewFromInt(5), Stock: 10,
	}))

	comps, err := buildComponents(cfg, storage, nil, prometheus.NewRegistry(), noop.NewTracerProvider(), quietLogger())
	require.NoError(t, err)

	order, err := comps.tracker.CreateOrder(ctx, "U1", []domain.OrderItem{
		{ProductID: "P1", Quantity: 1, Price: decimal.NewFromInt(5)},
	})
	require.NoError(t, err)
	return order
}

func TestBuildComponents_MemoryWithoutKafkaSkipsOutbox(t *testing.T) {
	storage := memoryStorage()
	order := createTestOrder(t, testConfig(), storage)

	outbox, ok := storage.Outbox.(*memory.OutboxRepository)
	require.True(t, ok)
	assert.Empty(t, outbox.AllPending())

	events, err := storage.Timeline.List(context.Background(), order.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestBuildComponents_PostgresWithoutKafkaKeepsOutbox(t *testing.T) {
	cfg := testConfig()
	cfg.StorageDriver = StorageDriverPostgres

	storage := memoryStorage()
	createTestOrder(t, cfg, storage)

	outbox, ok := storage.Outbox.(*memory.OutboxRepository)
	require.True(t, ok)
	assert.NotEmpty(t, outbox.AllPending())
}
