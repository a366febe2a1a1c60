package grpcsvc

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/observe"
	"github.com/vladislavdragonenkov/orderflow/internal/service/saga"
)

// SnapshotSource отдаёт снимок наблюдаемого состояния оркестратора.
type SnapshotSource interface {
	Snapshot() observe.Snapshot
}

// OrderService реализует gRPC API поверх оркестратора заказов.
type OrderService struct {
	saga      saga.Orchestrator
	snapshots SnapshotSource
	logger    *log.Entry
}

// NewOrderService конструирует сервис. snapshots может быть nil, тогда
// GetOrderContext возвращает Unimplemented.
func NewOrderService(orchestrator saga.Orchestrator, snapshots SnapshotSource, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	return &OrderService{
		saga:      orchestrator,
		snapshots: snapshots,
		logger:    logger,
	}
}

// CreateOrder создаёт заказ. При неудачной оплате в деталях статуса
// передаётся отменённый заказ.
func (s *OrderService) CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requiredString(req, fieldUserID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	items, err := itemsFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	order, err := s.saga.CreateOrder(ctx, userID, items)
	if err != nil {
		st := s.toStatus("CreateOrder", err)
		if order.ID != "" {
			st = withOrderDetail(st, order)
		}
		return nil, st.Err()
	}
	return orderResponse(order)
}

func (s *OrderService) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orderID, err := requiredString(req, fieldOrderID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	order, ok, err := s.saga.GetOrder(ctx, orderID)
	if err != nil {
		return nil, s.toStatus("GetOrder", err).Err()
	}
	if !ok {
		return nil, status.Error(codes.NotFound, domain.ErrOrderNotFound.Error())
	}
	return orderResponse(order)
}

func (s *OrderService) ListUserOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requiredString(req, fieldUserID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	orders, err := s.saga.GetUserOrders(ctx, userID)
	if err != nil {
		return nil, s.toStatus("ListUserOrders", err).Err()
	}

	resp, err := structpb.NewStruct(map[string]any{fieldOrders: ordersToList(orders)})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode orders")
	}
	return resp, nil
}

func (s *OrderService) UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orderID, err := requiredString(req, fieldOrderID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rawStatus, err := requiredString(req, fieldStatus)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	next, err := domain.ParseOrderStatus(rawStatus)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "unknown status %q", rawStatus)
	}

	order, err := s.saga.UpdateOrderStatus(ctx, orderID, next)
	if err != nil {
		return nil, s.toStatus("UpdateOrderStatus", err).Err()
	}
	return orderResponse(order)
}

// GetOrderContext возвращает снимок последних операций.
func (s *OrderService) GetOrderContext(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.snapshots == nil {
		return nil, status.Error(codes.Unimplemented, "order context tracking is disabled")
	}
	resp, err := SnapshotToStruct(s.snapshots.Snapshot())
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode order context")
	}
	return resp, nil
}

func orderResponse(order domain.Order) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(map[string]any{fieldOrder: orderToMap(order)})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode order")
	}
	return resp, nil
}

func withOrderDetail(st *status.Status, order domain.Order) *status.Status {
	detail, err := OrderToStruct(order)
	if err != nil {
		return st
	}
	withDetail, err := st.WithDetails(detail)
	if err != nil {
		return st
	}
	return withDetail
}

// toStatus переводит ошибки оркестратора в gRPC-коды.
func (s *OrderService) toStatus(operation string, err error) *status.Status {
	code := CodeFor(err)

	entry := s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"code":      code.String(),
	})
	if id := domain.ErrorID(err); id != "" {
		entry = entry.WithField("entity_id", id)
	}

	if code == codes.Internal {
		entry.Error("order operation failed")
		return status.New(code, "internal error")
	}
	entry.Warn("order operation rejected")
	return status.New(code, err.Error())
}

// CodeFor возвращает gRPC-код для ошибки оркестратора.
func CodeFor(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrPaymentFailed):
		return codes.DeadlineExceeded
	case errors.Is(err, domain.ErrInvalidInput):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrProductNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrPaymentFailed),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidTransition):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrOrderVersionConflict):
		return codes.Aborted
	default:
		return codes.Internal
	}
}

var _ OrderServiceServer = (*OrderService)(nil)
