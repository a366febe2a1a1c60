package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewFromDB(db), mock
}

func TestProductRepository_DecrementStockCommits(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewProductRepository(store)

	mock.ExpectBegin()
	// Строки блокируются в порядке id: p1 раньше p2, независимо от порядка в заказе.
	mock.ExpectQuery(`SELECT stock FROM products WHERE id = \$1 FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(10))
	mock.ExpectExec(`UPDATE products\s+SET stock = stock - \$1`).
		WithArgs(int64(5), "p1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT stock FROM products WHERE id = \$1 FOR UPDATE`).
		WithArgs("p2").
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(1))
	mock.ExpectExec(`UPDATE products\s+SET stock = stock - \$1`).
		WithArgs(int64(1), "p2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DecrementStock(context.Background(), []domain.StockChange{
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p1", Quantity: 3},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_DecrementStockRollsBackOnShortage(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewProductRepository(store)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT stock FROM products`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(5))
	mock.ExpectExec(`UPDATE products`).
		WithArgs(int64(1), "p1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT stock FROM products`).
		WithArgs("p2").
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.DecrementStock(context.Background(), []domain.StockChange{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 3},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.Equal(t, "p2", domain.ErrorID(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_DecrementStockUnknownProduct(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewProductRepository(store)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT stock FROM products`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.DecrementStock(context.Background(), []domain.StockChange{{ProductID: "ghost", Quantity: 1}})
	require.ErrorIs(t, err, domain.ErrProductNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_DecrementStockRejectsBadQuantity(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewProductRepository(store)

	err := repo.DecrementStock(context.Background(), []domain.StockChange{{ProductID: "p1", Quantity: 0}})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetScansDecimal(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewProductRepository(store)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM products WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "price", "stock", "version", "created_at", "updated_at"}).
			AddRow("p1", "Product 1", "", "19.99", int64(100), int64(0), now, now))

	product, err := repo.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, product.Price.Equal(decimal.RequireFromString("19.99")))
	require.Equal(t, int64(100), product.Stock)

	mock.ExpectQuery(`SELECT .+ FROM products WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateWritesItemsInTx(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)
	order := sampleOrder("order-1", "user-1", time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(order.ID, order.UserID, "pending", sqlmock.AnyArg(), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(order.ID, 0, "product-a", int32(2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(order.ID, 1, "product-b", int32(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), order))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateDuplicateIsVersionConflict(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO orders`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleOrder("dup", "user-1", time.Now().UTC()))
	require.ErrorIs(t, err, domain.ErrOrderVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_SaveDistinguishesConflictAndMissing(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)
	order := sampleOrder("order-1", "user-1", time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id FROM orders WHERE id = \$1`).
		WithArgs(order.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(order.ID))
	mock.ExpectRollback()
	require.ErrorIs(t, repo.Save(context.Background(), order), domain.ErrOrderVersionConflict)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id FROM orders WHERE id = \$1`).
		WithArgs(order.ID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()
	require.ErrorIs(t, repo.Save(context.Background(), order), domain.ErrOrderNotFound)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders`).
		WithArgs("processing", sqlmock.AnyArg(), order.ID, int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	order.Status = domain.OrderStatusProcessing
	require.NoError(t, repo.Save(context.Background(), order))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListByUserLoadsItems(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM orders\s+WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "total", "version", "created_at", "updated_at"}).
			AddRow("order-2", "user-1", "processing", "20.00", int64(1), now, now).
			AddRow("order-1", "user-1", "cancelled", "5.00", int64(1), now.Add(-time.Minute), now))
	mock.ExpectQuery(`SELECT product_id, quantity, price\s+FROM order_items`).
		WithArgs("order-2").
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "price"}).AddRow("P1", int64(2), "10.00"))
	mock.ExpectQuery(`SELECT product_id, quantity, price\s+FROM order_items`).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "price"}).AddRow("P2", int64(1), "5.00"))

	orders, err := repo.ListByUser(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, domain.OrderStatusProcessing, orders[0].Status)
	require.True(t, orders[0].Total.Equal(decimal.RequireFromString("20")))
	require.Equal(t, int32(2), orders[0].Items[0].Quantity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewUserRepository(store)

	mock.ExpectExec(`INSERT INTO users`).WillReturnError(&pgconn.PgError{Code: "23505"})
	err := repo.Create(context.Background(), domain.User{Email: "a@example.com", Name: "A", Role: domain.UserRoleCustomer})
	require.True(t, errors.Is(err, domain.ErrUserEmailTaken))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_MarkSentMissingRow(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOutboxRepository(store)

	mock.ExpectExec(`UPDATE outbox_messages`).
		WithArgs("missing", "sent", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.MarkSent(context.Background(), "missing"), domain.ErrOutboxPublish)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_DeleteSentBefore(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOutboxRepository(store).(domain.OutboxCleaner)
	before := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM outbox_messages`).
		WithArgs(before, 50).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := repo.DeleteSentBefore(context.Background(), before, 50)
	require.NoError(t, err)
	require.Equal(t, 7, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimelineRepository_AppendWritesTransition(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewTimelineRepository(store)
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO timeline_events`).
		WithArgs("o1", domain.EventOrderStatusChanged, "pending", "processing", "", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Append(context.Background(), domain.TimelineEvent{
		OrderID:  "o1",
		Type:     domain.EventOrderStatusChanged,
		From:     domain.OrderStatusPending,
		To:       domain.OrderStatusProcessing,
		Occurred: at,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimelineRepository_AppendRejectsInvalidEvent(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewTimelineRepository(store)

	err := repo.Append(context.Background(), domain.TimelineEvent{OrderID: "o1"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	err = repo.Append(context.Background(), domain.TimelineEvent{OrderID: "o1", Type: domain.EventOrderStatusChanged, To: "lost"})
	require.ErrorIs(t, err, domain.ErrUnknownOrderStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimelineRepository_ListScansStatuses(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewTimelineRepository(store)
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"order_id", "type", "from_status", "to_status", "reason", "occurred"}).
		AddRow("o1", domain.EventOrderCreated, "", "", "", at).
		AddRow("o1", domain.EventOrderStatusChanged, "pending", "cancelled", "", at.Add(time.Second)).
		AddRow("o1", domain.EventOrderPaymentFailed, "", "", "declined by gateway", at.Add(2*time.Second))
	mock.ExpectQuery(`SELECT order_id, type, from_status, to_status, reason, occurred`).
		WithArgs("o1").
		WillReturnRows(rows)

	history, err := repo.List(context.Background(), "o1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.False(t, history[0].IsTransition())
	require.Equal(t, domain.OrderStatusPending, history[1].From)
	require.Equal(t, domain.OrderStatusCancelled, history[1].To)
	require.Equal(t, "declined by gateway", history[2].Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}
