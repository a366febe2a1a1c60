package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderVersionConflict, если ID уже занят.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает заказы пользователя (новые первыми); limit <= 0 — без ограничения.
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
}

// ProductRepository описывает хранилище товаров и их остатков.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	List(ctx context.Context) ([]Product, error)
	// UpdateStock выставляет остаток напрямую (сид, админка).
	UpdateStock(ctx context.Context, id string, stock int64) (Product, error)
	// DecrementStock атомарно списывает остатки по всем позициям или не списывает ничего.
	// Возвращает ErrInsufficientStock или ErrProductNotFound с id товара.
	DecrementStock(ctx context.Context, changes []StockChange) error
}

// UserRepository хранит пользователей.
type UserRepository interface {
	// Create возвращает ErrUserEmailTaken, если email уже занят.
	Create(ctx context.Context, user User) error
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
}
