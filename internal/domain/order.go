package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — оплата прошла, заказ собирается.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ получен клиентом. Терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён. Терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderTransitions — таблица допустимых переходов между статусами.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  nil,
	OrderStatusCancelled:  nil,
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal сообщает, что из статуса нет исходящих переходов.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

// ParseOrderStatus разбирает строковое значение статуса.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(raw)
	if !status.Valid() {
		return "", NewOrderError(ErrInvalidInput, "", ErrUnknownOrderStatus)
	}
	return status, nil
}

// CanTransition проверяет переход по таблице конечного автомата.
// Переход в тот же статус не считается допустимым.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ProductID string
	Quantity  int32
	// Price — цена за единицу на момент создания заказа; последующие изменения
	// цены товара на заказ не влияют.
	Price decimal.Decimal
}

// Subtotal возвращает стоимость позиции.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt32(i.Quantity))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID        string
	UserID    string
	Items     []OrderItem
	Total     decimal.Decimal
	Status    OrderStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CalculateTotal считает сумму заказа: Σ price × quantity.
func CalculateTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ValidateItems проверяет позиции заказа до его создания.
func ValidateItems(items []OrderItem) []error {
	var errs []error

	if len(items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, item := range items {
		if item.ProductID == "" {
			errs = append(errs, ErrItemProductRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if !item.Price.IsPositive() {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	return errs
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrUnknownOrderStatus)
	}
	errs = append(errs, ValidateItems(o.Items)...)

	// Сумма заказа всегда выводится из позиций.
	if !CalculateTotal(o.Items).Equal(o.Total) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// StockChange описывает списание остатка по одному товару.
type StockChange struct {
	ProductID string
	Quantity  int64
}

// StockChanges сворачивает позиции заказа в списания по товарам.
// Повторяющиеся товары суммируются, порядок — по первому вхождению.
func StockChanges(items []OrderItem) []StockChange {
	index := make(map[string]int, len(items))
	changes := make([]StockChange, 0, len(items))
	for _, item := range items {
		if pos, ok := index[item.ProductID]; ok {
			changes[pos].Quantity += int64(item.Quantity)
			continue
		}
		index[item.ProductID] = len(changes)
		changes = append(changes, StockChange{ProductID: item.ProductID, Quantity: int64(item.Quantity)})
	}
	return changes
}
