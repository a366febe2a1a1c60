package domain

import (
	"errors"
	"fmt"
)

// Виды ошибок оркестратора. Проверяются через errors.Is.
var (
	// ErrInvalidInput — некорректный запрос (пустой список позиций, qty <= 0 и т.п.).
	ErrInvalidInput = errors.New("invalid input")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrPaymentFailed — платёж отклонён, упал по транспорту или по таймауту.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrInsufficientStock — списание увело бы остаток в минус.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition — переход статуса не разрешён автоматом.
	ErrInvalidTransition = errors.New("invalid status transition")
)

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отсутствующего product_id в позиции.
	ErrItemProductRequired = errors.New("item product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции не положительная.
	ErrItemPriceInvalid = errors.New("item price must be positive")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// Ошибка неизвестного статуса заказа.
	ErrUnknownOrderStatus = errors.New("unknown order status")
	// Ошибки валидации товара.
	ErrProductNameRequired = errors.New("product name is required")
	ErrProductPriceInvalid = errors.New("product price must be positive")
	ErrProductStockInvalid = errors.New("product stock must be non-negative")
	// Ошибки валидации пользователя.
	ErrUserEmailRequired = errors.New("user email is required")
	ErrUserNameRequired  = errors.New("user name is required")
	ErrUserRoleInvalid   = errors.New("user role must be admin or customer")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserEmailTaken — email уже занят другим пользователем.
	ErrUserEmailTaken = errors.New("user email already registered")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// OrderError несёт вид ошибки, идентификатор сущности и исходную причину.
type OrderError struct {
	Kind error
	ID   string
	Err  error
}

// NewOrderError собирает ошибку оркестратора.
func NewOrderError(kind error, id string, cause error) error {
	return &OrderError{Kind: kind, ID: id, Err: cause}
}

func (e *OrderError) Error() string {
	msg := e.Kind.Error()
	if e.ID != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.ID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap позволяет errors.Is находить и вид ошибки, и причину.
func (e *OrderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ErrorID возвращает идентификатор сущности из OrderError, если он есть.
func ErrorID(err error) string {
	var orderErr *OrderError
	if errors.As(err, &orderErr) {
		return orderErr.ID
	}
	return ""
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
