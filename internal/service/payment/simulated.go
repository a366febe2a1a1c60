package payment

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

const (
	// DefaultSimulatedLatency — задержка «внешнего» провайдера по умолчанию.
	DefaultSimulatedLatency = time.Second
	// DefaultSuccessRate — доля одобренных платежей по умолчанию.
	DefaultSuccessRate = 0.95
)

// SimulatedGateway имитирует внешний платёжный сервис: ждёт latency и одобряет
// платёж с вероятностью successRate.
type SimulatedGateway struct {
	latency     time.Duration
	successRate float64
	roll        func() float64
	logger      *log.Entry
}

// SimulatedOption настраивает SimulatedGateway.
type SimulatedOption func(*SimulatedGateway)

// WithLatency задаёт задержку ответа.
func WithLatency(latency time.Duration) SimulatedOption {
	return func(g *SimulatedGateway) {
		if latency >= 0 {
			g.latency = latency
		}
	}
}

// WithSuccessRate задаёт долю одобренных платежей (0..1).
func WithSuccessRate(rate float64) SimulatedOption {
	return func(g *SimulatedGateway) {
		if rate >= 0 && rate <= 1 {
			g.successRate = rate
		}
	}
}

// WithRoll подменяет генератор случайных чисел (для детерминированных тестов).
func WithRoll(roll func() float64) SimulatedOption {
	return func(g *SimulatedGateway) {
		if roll != nil {
			g.roll = roll
		}
	}
}

// NewSimulatedGateway создаёт имитацию платёжного провайдера.
func NewSimulatedGateway(logger *log.Entry, opts ...SimulatedOption) *SimulatedGateway {
	if logger == nil {
		logger = log.New().WithField("component", "payment-gateway")
	}
	g := &SimulatedGateway{
		latency:     DefaultSimulatedLatency,
		successRate: DefaultSuccessRate,
		roll:        rand.Float64,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ProcessPayment ждёт latency (или отмены контекста) и бросает «монетку».
func (g *SimulatedGateway) ProcessPayment(ctx context.Context, orderID string, amount decimal.Decimal) (bool, error) {
	entry := g.logger.WithFields(log.Fields{
		"order_id": orderID,
		"amount":   amount.StringFixed(2),
	})
	entry.Info("processing payment")

	if g.latency > 0 {
		timer := time.NewTimer(g.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			entry.WithError(ctx.Err()).Warn("payment aborted")
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	approved := g.roll() < g.successRate
	entry.WithField("approved", approved).Info("payment processed")
	return approved, nil
}

var _ domain.PaymentGateway = (*SimulatedGateway)(nil)
