package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentGateway описывает взаимодействие с платёжным провайдером.
type PaymentGateway interface {
	// ProcessPayment авторизует списание суммы заказа.
	// false без ошибки — отказ провайдера; ошибка — транспортный сбой.
	ProcessPayment(ctx context.Context, orderID string, amount decimal.Decimal) (bool, error)
}

// ShippingNotifier уведомляет службу доставки об отправке заказа.
type ShippingNotifier interface {
	// NotifyShipping работает по принципу best-effort.
	NotifyShipping(ctx context.Context, order Order) (bool, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxCleaner удаляет уже опубликованные сообщения outbox.
type OutboxCleaner interface {
	// DeleteSentBefore удаляет до limit сообщений со статусом sent,
	// обновлённых не позже before, и возвращает число удалённых.
	DeleteSentBefore(ctx context.Context, before time.Time, limit int) (int, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// SagaStep задаёт константы шагов для метрик/логов.
type SagaStep string

const (
	SagaStepPersist SagaStep = "persist"
	SagaStepPay     SagaStep = "pay"
	SagaStepCancel  SagaStep = "cancel"
	SagaStepProcess SagaStep = "process"
	SagaStepStock   SagaStep = "stock"
	SagaStepStatus  SagaStep = "status"
	SagaStepNotify  SagaStep = "notify"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
