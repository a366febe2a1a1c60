package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// TimelineRepository хранит историю заказов в памяти процесса.
type TimelineRepository struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.TimelineEvent
	now     func() time.Time
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() *TimelineRepository {
	return &TimelineRepository{
		byOrder: make(map[string][]domain.TimelineEvent),
		now:     time.Now,
	}
}

// Append вставляет событие по времени Occurred; события с одинаковым временем
// сохраняют порядок добавления. Пустой Occurred заменяется текущим временем.
func (r *TimelineRepository) Append(_ context.Context, event domain.TimelineEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Occurred.IsZero() {
		event.Occurred = r.now()
	}
	event.Occurred = event.Occurred.UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.byOrder[event.OrderID]
	pos := sort.Search(len(history), func(i int) bool {
		return history[i].Occurred.After(event.Occurred)
	})
	history = append(history, domain.TimelineEvent{})
	copy(history[pos+1:], history[pos:])
	history[pos] = event
	r.byOrder[event.OrderID] = history
	return nil
}

// List возвращает копию истории заказа; для неизвестного заказа — пустой срез.
func (r *TimelineRepository) List(_ context.Context, orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.TimelineEvent{}, r.byOrder[orderID]...), nil
}

// Transitions возвращает только смены статуса заказа.
func (r *TimelineRepository) Transitions(orderID string) []domain.TimelineEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.TimelineEvent
	for _, event := range r.byOrder[orderID] {
		if event.IsTransition() {
			result = append(result, event)
		}
	}
	return result
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
