package shipping

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// DefaultLogLatency — задержка имитации службы доставки.
const DefaultLogLatency = 500 * time.Millisecond

// LogNotifier имитирует службу доставки: ждёт latency и пишет заказ в лог.
type LogNotifier struct {
	latency time.Duration
	logger  *log.Entry
}

// NewLogNotifier создаёт notifier; отрицательная latency заменяется значением по умолчанию.
func NewLogNotifier(latency time.Duration, logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.New().WithField("component", "shipping-notifier")
	}
	if latency < 0 {
		latency = DefaultLogLatency
	}
	return &LogNotifier{latency: latency, logger: logger}
}

func (n *LogNotifier) NotifyShipping(ctx context.Context, order domain.Order) (bool, error) {
	if n.latency > 0 {
		timer := time.NewTimer(n.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	n.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"items":    len(order.Items),
	}).Info("shipping notification sent")
	return true, nil
}

var _ domain.ShippingNotifier = (*LogNotifier)(nil)
