package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// ErrCircuitOpen возвращается, пока breaker не пропускает вызовы к провайдеру.
var ErrCircuitOpen = errors.New("payment circuit breaker is open")

// CircuitState — состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker размыкает цепь после maxFailures транспортных ошибок подряд и
// пропускает пробный вызов после resetTimeout.
type CircuitBreaker struct {
	mu sync.Mutex

	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	failures    int
	lastFailure time.Time
	state       CircuitState
	trialActive bool
	logger      *log.Entry
}

// NewCircuitBreaker создаёт новый circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.New().WithField("component", "payment-breaker")
	}
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        CircuitClosed,
		logger:       logger,
	}
}

// State возвращает текущее состояние.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		// В half-open одновременно идёт только один пробный вызов.
		if cb.trialActive {
			return false
		}
		cb.trialActive = true
		return true
	}
	if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
		cb.state = CircuitHalfOpen
		cb.trialActive = true
		cb.logger.Info("circuit breaker half-open")
		return true
	}
	return false
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.trialActive = false
	if err == nil {
		if cb.state == CircuitHalfOpen {
			cb.logger.Info("circuit breaker closed")
		}
		cb.state = CircuitClosed
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
		if cb.state != CircuitOpen {
			cb.logger.WithField("failures", cb.failures).Warn("circuit breaker opened")
		}
		cb.state = CircuitOpen
	}
}

// BreakerGateway защищает PaymentGateway circuit breaker'ом. Отказ провайдера
// (false без ошибки) не считается сбоем, сбоем считается только ошибка вызова.
type BreakerGateway struct {
	next    domain.PaymentGateway
	breaker *CircuitBreaker
}

// NewBreakerGateway оборачивает gateway.
func NewBreakerGateway(next domain.PaymentGateway, breaker *CircuitBreaker) *BreakerGateway {
	return &BreakerGateway{next: next, breaker: breaker}
}

// ProcessPayment проксирует вызов, пока цепь не разомкнута.
func (g *BreakerGateway) ProcessPayment(ctx context.Context, orderID string, amount decimal.Decimal) (bool, error) {
	if !g.breaker.allow() {
		return false, ErrCircuitOpen
	}

	approved, err := g.next.ProcessPayment(ctx, orderID, amount)
	g.breaker.record(err)
	return approved, err
}

var _ domain.PaymentGateway = (*BreakerGateway)(nil)
