// Package observe хранит снимок последних операций оркестратора для отладки.
package observe

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/saga"
)

// Snapshot — неавторитетная копия последнего наблюдаемого состояния.
type Snapshot struct {
	CurrentOrder *domain.Order
	OrderHistory []domain.Order
	Busy         bool
	LastError    string
}

// Tracker оборачивает saga.Orchestrator и строит Snapshot по результатам вызовов.
// Сам оркестратор о снимке ничего не знает.
type Tracker struct {
	next saga.Orchestrator

	mu       sync.RWMutex
	inFlight int
	current  *domain.Order
	history  []domain.Order
	lastErr  string
}

// NewTracker создаёт декоратор над оркестратором.
func NewTracker(next saga.Orchestrator) *Tracker {
	return &Tracker{next: next}
}

func (t *Tracker) CreateOrder(ctx context.Context, userID string, items []domain.OrderItem) (domain.Order, error) {
	t.begin()
	order, err := t.next.CreateOrder(ctx, userID, items)
	t.end(func() {
		if order.ID != "" {
			t.setCurrent(order)
		}
		t.setError(err)
	})
	return order, err
}

func (t *Tracker) GetOrder(ctx context.Context, id string) (domain.Order, bool, error) {
	t.begin()
	order, ok, err := t.next.GetOrder(ctx, id)
	t.end(func() {
		if ok {
			t.setCurrent(order)
		} else if err == nil {
			t.current = nil
		}
		t.setError(err)
	})
	return order, ok, err
}

func (t *Tracker) GetUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	t.begin()
	orders, err := t.next.GetUserOrders(ctx, userID)
	t.end(func() {
		if err == nil {
			t.history = cloneOrders(orders)
		}
		t.setError(err)
	})
	return orders, err
}

func (t *Tracker) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	t.begin()
	order, err := t.next.UpdateOrderStatus(ctx, id, status)
	t.end(func() {
		if err == nil {
			t.setCurrent(order)
		}
		t.setError(err)
	})
	return order, err
}

// Snapshot возвращает копию текущего состояния.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := Snapshot{
		OrderHistory: cloneOrders(t.history),
		Busy:         t.inFlight > 0,
		LastError:    t.lastErr,
	}
	if t.current != nil {
		current := cloneOrder(*t.current)
		snapshot.CurrentOrder = &current
	}
	return snapshot
}

func (t *Tracker) begin() {
	t.mu.Lock()
	t.inFlight++
	t.mu.Unlock()
}

func (t *Tracker) end(apply func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight--
	apply()
}

// setCurrent и setError вызываются под t.mu.
func (t *Tracker) setCurrent(order domain.Order) {
	current := cloneOrder(order)
	t.current = &current
}

// LastError хранит последнюю ошибку и не сбрасывается успешными вызовами.
func (t *Tracker) setError(err error) {
	if err != nil {
		t.lastErr = err.Error()
	}
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	return order
}

func cloneOrders(orders []domain.Order) []domain.Order {
	result := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		result = append(result, cloneOrder(order))
	}
	return result
}

var _ saga.Orchestrator = (*Tracker)(nil)
