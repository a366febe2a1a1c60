package payment

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов.
type MockGateway struct {
	mu sync.Mutex

	Approve bool
	Err     error
	// Delay имитирует медленный провайдер; ожидание прерывается отменой контекста.
	Delay time.Duration

	calls   int
	amounts []decimal.Decimal
}

// NewMockGateway возвращает mock, который одобряет все платежи.
func NewMockGateway() *MockGateway {
	return &MockGateway{Approve: true}
}

// ProcessPayment возвращает заранее настроенный результат и считает вызовы.
func (m *MockGateway) ProcessPayment(ctx context.Context, _ string, amount decimal.Decimal) (bool, error) {
	m.mu.Lock()
	m.calls++
	m.amounts = append(m.amounts, amount)
	approve, err, delay := m.Approve, m.Err, m.Delay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return approve, err
}

// Calls возвращает количество вызовов ProcessPayment.
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Amounts возвращает суммы, переданные в ProcessPayment, в порядке вызовов.
func (m *MockGateway) Amounts() []decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]decimal.Decimal(nil), m.amounts...)
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
