package grpcsvc

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/observe"
)

// Поля запросов и ответов.
const (
	fieldOrder     = "order"
	fieldOrders    = "orders"
	fieldOrderID   = "order_id"
	fieldUserID    = "user_id"
	fieldItems     = "items"
	fieldProductID = "product_id"
	fieldQuantity  = "quantity"
	fieldPrice     = "price"
	fieldStatus    = "status"
)

func orderToMap(order domain.Order) map[string]any {
	items := make([]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			fieldProductID: item.ProductID,
			fieldQuantity:  float64(item.Quantity),
			fieldPrice:     item.Price.StringFixed(2),
		})
	}

	return map[string]any{
		"id":         order.ID,
		fieldUserID:  order.UserID,
		fieldStatus:  string(order.Status),
		"total":      order.Total.StringFixed(2),
		"version":    float64(order.Version),
		fieldItems:   items,
		"created_at": order.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": order.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func ordersToList(orders []domain.Order) []any {
	list := make([]any, 0, len(orders))
	for _, order := range orders {
		list = append(list, orderToMap(order))
	}
	return list
}

// OrderToStruct кодирует заказ в google.protobuf.Struct.
func OrderToStruct(order domain.Order) (*structpb.Struct, error) {
	return structpb.NewStruct(orderToMap(order))
}

// SnapshotToStruct кодирует снимок наблюдаемого состояния.
func SnapshotToStruct(snapshot observe.Snapshot) (*structpb.Struct, error) {
	fields := map[string]any{
		"current_order": nil,
		"order_history": ordersToList(snapshot.OrderHistory),
		"busy":          snapshot.Busy,
		"last_error":    snapshot.LastError,
	}
	if snapshot.CurrentOrder != nil {
		fields["current_order"] = orderToMap(*snapshot.CurrentOrder)
	}
	return structpb.NewStruct(fields)
}

func requiredString(req *structpb.Struct, field string) (string, error) {
	value, ok := req.GetFields()[field]
	if !ok {
		return "", fmt.Errorf("%s is required", field)
	}
	str, ok := value.GetKind().(*structpb.Value_StringValue)
	if !ok || str.StringValue == "" {
		return "", fmt.Errorf("%s must be a non-empty string", field)
	}
	return str.StringValue, nil
}

// itemsFromStruct разбирает позиции заказа. Цена принимается строкой ("10.00")
// или числом; количество — целым числом.
func itemsFromStruct(req *structpb.Struct) ([]domain.OrderItem, error) {
	raw := req.GetFields()[fieldItems].GetListValue()
	if raw == nil {
		return nil, fmt.Errorf("%s must be a list", fieldItems)
	}

	items := make([]domain.OrderItem, 0, len(raw.GetValues()))
	for idx, value := range raw.GetValues() {
		fields := value.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("items[%d] must be an object", idx)
		}

		quantity, err := quantityFromValue(fields[fieldQuantity])
		if err != nil {
			return nil, fmt.Errorf("items[%d].quantity: %w", idx, err)
		}
		price, err := priceFromValue(fields[fieldPrice])
		if err != nil {
			return nil, fmt.Errorf("items[%d].price: %w", idx, err)
		}

		items = append(items, domain.OrderItem{
			ProductID: fields[fieldProductID].GetStringValue(),
			Quantity:  quantity,
			Price:     price,
		})
	}
	return items, nil
}

func quantityFromValue(value *structpb.Value) (int32, error) {
	number, ok := value.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("must be a number")
	}
	n := number.NumberValue
	if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
		return 0, fmt.Errorf("must be an int32, got %v", n)
	}
	return int32(n), nil
}

func priceFromValue(value *structpb.Value) (decimal.Decimal, error) {
	switch kind := value.GetKind().(type) {
	case *structpb.Value_StringValue:
		price, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid decimal %q", kind.StringValue)
		}
		return price, nil
	case *structpb.Value_NumberValue:
		return decimal.NewFromFloat(kind.NumberValue), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("must be a decimal string or number")
	}
}
