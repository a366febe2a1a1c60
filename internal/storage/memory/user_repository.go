package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type userRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.User
	byEmail map[string]string
}

// NewUserRepository создаёт in-memory реализацию UserRepository.
func NewUserRepository() domain.UserRepository {
	return &userRepositoryInMemory{
		items:   make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

// Create регистрирует пользователя; email сравнивается без учёта регистра.
func (r *userRepositoryInMemory) Create(_ context.Context, user domain.User) error {
	if errs := user.Validate(); len(errs) > 0 {
		return domain.NewOrderError(domain.ErrInvalidInput, user.ID, errs[0])
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	key := strings.ToLower(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[key]; taken {
		return domain.ErrUserEmailTaken
	}
	r.items[user.ID] = user
	r.byEmail[key] = user.ID
	return nil
}

func (r *userRepositoryInMemory) Get(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.items[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (r *userRepositoryInMemory) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return r.items[id], nil
}

var _ domain.UserRepository = (*userRepositoryInMemory)(nil)
