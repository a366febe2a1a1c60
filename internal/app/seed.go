package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// seedNamespace задаёт детерминированные идентификаторы демо-данных.
var seedNamespace = uuid.MustParse("7d1c3b0e-5f41-4c59-9a52-0c6f0b9e2a11")

type seedProduct struct {
	name  string
	price string
	stock int64
}

var demoUsers = []domain.User{
	{Email: "admin@example.com", Name: "Admin", Role: domain.UserRoleAdmin},
	{Email: "customer@example.com", Name: "Customer", Role: domain.UserRoleCustomer},
}

var demoProducts = []seedProduct{
	{name: "Product 1", price: "19.99", stock: 100},
	{name: "Product 2", price: "29.99", stock: 50},
	{name: "Product 3", price: "39.99", stock: 25},
}

func seedID(kind, key string) string {
	return uuid.NewSHA1(seedNamespace, []byte(kind+":"+key)).String()
}

// SeedDemoData заполняет хранилище демонстрационными пользователями и товарами.
// Повторный вызов ничего не меняет.
func SeedDemoData(ctx context.Context, users domain.UserRepository, products domain.ProductRepository, logger *log.Entry) error {
	for _, user := range demoUsers {
		_, err := users.GetByEmail(ctx, user.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return fmt.Errorf("lookup user %s: %w", user.Email, err)
		}
		user.ID = seedID("user", user.Email)
		if err := users.Create(ctx, user); err != nil && !errors.Is(err, domain.ErrUserEmailTaken) {
			return fmt.Errorf("create user %s: %w", user.Email, err)
		}
		logger.WithField("email", user.Email).Info("demo user created")
	}

	for _, item := range demoProducts {
		id := seedID("product", item.name)
		_, err := products.Get(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrProductNotFound) {
			return fmt.Errorf("lookup product %s: %w", item.name, err)
		}
		product := domain.Product{
			ID:          id,
			Name:        item.name,
			Description: "Demo product",
			Price:       decimal.RequireFromString(item.price),
			Stock:       item.stock,
		}
		if err := products.Create(ctx, product); err != nil {
			return fmt.Errorf("create product %s: %w", item.name, err)
		}
		logger.WithFields(log.Fields{"product_id": id, "stock": item.stock}).Info("demo product created")
	}
	return nil
}
