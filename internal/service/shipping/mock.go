package shipping

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// MockNotifier — конфигурируемая заглушка ShippingNotifier для тестов.
type MockNotifier struct {
	mu sync.Mutex

	Accept bool
	Err    error

	notified []string
}

// NewMockNotifier возвращает mock, принимающий все уведомления.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Accept: true}
}

// NotifyShipping запоминает id заказа и возвращает настроенный результат.
func (m *MockNotifier) NotifyShipping(_ context.Context, order domain.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notified = append(m.notified, order.ID)
	return m.Accept, m.Err
}

// Notified возвращает id заказов, по которым приходили уведомления.
func (m *MockNotifier) Notified() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.notified...)
}

var _ domain.ShippingNotifier = (*MockNotifier)(nil)
