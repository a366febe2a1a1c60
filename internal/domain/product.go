package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product описывает товар каталога.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	// Stock никогда не уходит в минус: проверка выполняется до списания.
	Stock     int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет корректность полей товара.
func (p *Product) Validate() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if !p.Price.IsPositive() {
		errs = append(errs, ErrProductPriceInvalid)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrProductStockInvalid)
	}

	return errs
}
