package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName — полное имя gRPC-сервиса заказов.
const ServiceName = "orderflow.v1.OrderService"

// Полные имена методов.
const (
	MethodCreateOrder       = "/" + ServiceName + "/CreateOrder"
	MethodGetOrder          = "/" + ServiceName + "/GetOrder"
	MethodListUserOrders    = "/" + ServiceName + "/ListUserOrders"
	MethodUpdateOrderStatus = "/" + ServiceName + "/UpdateOrderStatus"
	MethodGetOrderContext   = "/" + ServiceName + "/GetOrderContext"
)

// OrderServiceServer — серверная сторона OrderService. Запросы и ответы передаются
// как google.protobuf.Struct.
type OrderServiceServer interface {
	CreateOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListUserOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateOrderStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrderContext(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(OrderServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// OrderServiceDesc описывает сервис для grpc.Server без сгенерированного кода.
var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateOrder",
			Handler:    unaryHandler(MethodCreateOrder, OrderServiceServer.CreateOrder),
		},
		{
			MethodName: "GetOrder",
			Handler:    unaryHandler(MethodGetOrder, OrderServiceServer.GetOrder),
		},
		{
			MethodName: "ListUserOrders",
			Handler:    unaryHandler(MethodListUserOrders, OrderServiceServer.ListUserOrders),
		},
		{
			MethodName: "UpdateOrderStatus",
			Handler:    unaryHandler(MethodUpdateOrderStatus, OrderServiceServer.UpdateOrderStatus),
		},
		{
			MethodName: "GetOrderContext",
			Handler:    unaryHandler(MethodGetOrderContext, OrderServiceServer.GetOrderContext),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orderflow/v1/order_service.proto",
}

// RegisterOrderServiceServer регистрирует реализацию на сервере.
func RegisterOrderServiceServer(registrar grpc.ServiceRegistrar, srv OrderServiceServer) {
	registrar.RegisterService(&OrderServiceDesc, srv)
}

// OrderServiceClient — клиент OrderService.
type OrderServiceClient struct {
	conn grpc.ClientConnInterface
}

// NewOrderServiceClient создаёт клиента поверх соединения.
func NewOrderServiceClient(conn grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{conn: conn}
}

func (c *OrderServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) CreateOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCreateOrder, in, opts...)
}

func (c *OrderServiceClient) GetOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetOrder, in, opts...)
}

func (c *OrderServiceClient) ListUserOrders(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListUserOrders, in, opts...)
}

func (c *OrderServiceClient) UpdateOrderStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodUpdateOrderStatus, in, opts...)
}

func (c *OrderServiceClient) GetOrderContext(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetOrderContext, in, opts...)
}
