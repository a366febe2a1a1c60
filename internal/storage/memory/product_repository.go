package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// productRepositoryInMemory хранит товары и остатки под одним мьютексом.
type productRepositoryInMemory struct {
	mu    sync.Mutex
	items map[string]domain.Product
}

// NewProductRepository создаёт in-memory реализацию ProductRepository.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Create добавляет товар; пустой ID заменяется на UUID.
func (r *productRepositoryInMemory) Create(_ context.Context, product domain.Product) error {
	if errs := product.Validate(); len(errs) > 0 {
		return domain.NewOrderError(domain.ErrInvalidInput, product.ID, errs[0])
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[product.ID]; exists {
		return domain.NewOrderError(domain.ErrInvalidInput, product.ID, domain.ErrOrderVersionConflict)
	}
	r.items[product.ID] = product
	return nil
}

func (r *productRepositoryInMemory) Get(_ context.Context, id string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.NewOrderError(domain.ErrProductNotFound, id, nil)
	}
	return product, nil
}

func (r *productRepositoryInMemory) List(_ context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, product := range r.items {
		result = append(result, product)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *productRepositoryInMemory) UpdateStock(_ context.Context, id string, stock int64) (domain.Product, error) {
	if stock < 0 {
		return domain.Product{}, domain.NewOrderError(domain.ErrInvalidInput, id, domain.ErrProductStockInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.NewOrderError(domain.ErrProductNotFound, id, nil)
	}
	product.Stock = stock
	product.Version++
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return product, nil
}

// DecrementStock сначала проверяет все списания, затем применяет их разом.
func (r *productRepositoryInMemory) DecrementStock(_ context.Context, changes []domain.StockChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Повторная свёртка на случай, если вызывающий передал дубликаты.
	merged := make(map[string]int64, len(changes))
	for _, change := range changes {
		if change.Quantity <= 0 {
			return domain.NewOrderError(domain.ErrInvalidInput, change.ProductID, domain.ErrItemQtyInvalid)
		}
		merged[change.ProductID] += change.Quantity
	}

	for _, change := range changes {
		product, ok := r.items[change.ProductID]
		if !ok {
			return domain.NewOrderError(domain.ErrProductNotFound, change.ProductID, nil)
		}
		if product.Stock < merged[change.ProductID] {
			return domain.NewOrderError(domain.ErrInsufficientStock, change.ProductID, nil)
		}
	}

	now := time.Now().UTC()
	for id, qty := range merged {
		product := r.items[id]
		product.Stock -= qty
		product.Version++
		product.UpdatedAt = now
		r.items[id] = product
	}
	return nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
