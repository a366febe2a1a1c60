package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

const productColumns = `id, name, description, price, stock, version, created_at, updated_at`

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
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

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,0,$6,$7)
	`, product.ID, product.Name, product.Description, product.Price, product.Stock, product.CreatedAt, now)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewOrderError(domain.ErrInvalidInput, product.ID, domain.ErrOrderVersionConflict)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.NewOrderError(domain.ErrProductNotFound, id, nil)
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (r *productRepository) UpdateStock(ctx context.Context, id string, stock int64) (domain.Product, error) {
	if stock < 0 {
		return domain.Product{}, domain.NewOrderError(domain.ErrInvalidInput, id, domain.ErrProductStockInvalid)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = $1,
		    version = version + 1,
		    updated_at = $2
		WHERE id = $3
		RETURNING `+productColumns, stock, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.NewOrderError(domain.ErrProductNotFound, id, nil)
		}
		return domain.Product{}, fmt.Errorf("update product stock: %w", err)
	}
	return product, nil
}

// DecrementStock списывает остатки в одной транзакции. Строки блокируются в порядке id,
// поэтому встречные заказы на одни и те же товары не взаимоблокируются.
// Любой промах откатывает всю транзакцию.
func (r *productRepository) DecrementStock(ctx context.Context, changes []domain.StockChange) error {
	merged := make(map[string]int64, len(changes))
	for _, change := range changes {
		if change.Quantity <= 0 {
			return domain.NewOrderError(domain.ErrInvalidInput, change.ProductID, domain.ErrItemQtyInvalid)
		}
		merged[change.ProductID] += change.Quantity
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, id := range ids {
			qty := merged[id]

			var stock int64
			err := tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&stock)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return domain.NewOrderError(domain.ErrProductNotFound, id, nil)
				}
				return fmt.Errorf("lock product %s: %w", id, err)
			}
			if stock < qty {
				return domain.NewOrderError(domain.ErrInsufficientStock, id, nil)
			}

			res, err := tx.ExecContext(ctx, `
				UPDATE products
				SET stock = stock - $1,
				    version = version + 1,
				    updated_at = $3
				WHERE id = $2
				  AND stock >= $1
			`, qty, id, now)
			if err != nil {
				return fmt.Errorf("decrement product %s: %w", id, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if affected == 0 {
				return domain.NewOrderError(domain.ErrInsufficientStock, id, nil)
			}
		}
		return nil
	})
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var product domain.Product
	if err := row.Scan(
		&product.ID, &product.Name, &product.Description, &product.Price,
		&product.Stock, &product.Version, &product.CreatedAt, &product.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	product.CreatedAt = product.CreatedAt.UTC()
	product.UpdatedAt = product.UpdatedAt.UTC()
	return product, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
