package lottery

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// BreakerBalanceStore 带熔断器的余额存储
type BreakerBalanceStore struct {
	store BalanceStore

	mu      sync.RWMutex
	breaker *gobreaker.CircuitBreaker
	logger  Logger
	config  *CircuitBreakerConfig
}

// NewBreakerBalanceStore 创建带熔断器的余额存储
func NewBreakerBalanceStore(store BalanceStore, config *CircuitBreakerConfig, logger Logger) *BreakerBalanceStore {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if logger == nil {
		logger = &SilentLogger{}
	}

	s := &BreakerBalanceStore{
		store:  store,
		logger: logger,
		config: config,
	}
	if config.Enabled {
		s.breaker = s.newBreaker()
	}
	return s
}

func (s *BreakerBalanceStore) newBreaker() *gobreaker.CircuitBreaker {
	config := s.config
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// 当请求数达到最小要求且失败率超过阈值时触发熔断
			return counts.Requests >= config.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if config.OnStateChange {
				s.logger.Info("Circuit breaker '%s' state changed from %s to %s", name, from, to)
			}
		},
	})
}

// executeWithBreaker 使用熔断器执行操作
func (s *BreakerBalanceStore) executeWithBreaker(op func() (decimal.Decimal, error)) (decimal.Decimal, error) {
	s.mu.RLock()
	breaker := s.breaker
	s.mu.RUnlock()

	if breaker == nil {
		// 熔断器未启用，直接执行
		return op()
	}

	result, err := breaker.Execute(func() (any, error) {
		return op()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return decimal.Zero, ErrCircuitBreakerOpen.WithDetails("balance store calls are being rejected")
		}
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			return decimal.Zero, ErrCircuitBreakerOpen.WithDetails("too many requests, circuit breaker is half-open")
		}
		return decimal.Zero, err
	}

	return result.(decimal.Decimal), nil
}

func (s *BreakerBalanceStore) GetBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	return s.executeWithBreaker(func() (decimal.Decimal, error) {
		return s.store.GetBalance(ctx, id)
	})
}

func (s *BreakerBalanceStore) SetBalance(ctx context.Context, id string, value decimal.Decimal) (decimal.Decimal, error) {
	return s.executeWithBreaker(func() (decimal.Decimal, error) {
		return s.store.SetBalance(ctx, id, value)
	})
}

func (s *BreakerBalanceStore) IncrementBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	return s.executeWithBreaker(func() (decimal.Decimal, error) {
		return s.store.IncrementBalance(ctx, id, delta)
	})
}

// GetCircuitBreakerState 获取熔断器状态
func (s *BreakerBalanceStore) GetCircuitBreakerState() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.breaker == nil {
		return "disabled"
	}

	switch s.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// GetCircuitBreakerCounts 获取熔断器统计信息
func (s *BreakerBalanceStore) GetCircuitBreakerCounts() gobreaker.Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.breaker == nil {
		return gobreaker.Counts{}
	}
	return s.breaker.Counts()
}

// ResetCircuitBreaker 重置熔断器 (重新创建熔断器实例)
func (s *BreakerBalanceStore) ResetCircuitBreaker() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.breaker == nil {
		return
	}
	// gobreaker 没有 Reset 方法
	s.breaker = s.newBreaker()
	s.logger.Info("Circuit breaker '%s' has been reset (recreated)", s.config.Name)
}

// BreakerStateValue 将状态转换为数值: closed 0, half-open 1, open 2, 其他 -1
func BreakerStateValue(state string) float64 {
	switch state {
	case "closed", "disabled":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}

// CircuitBreakerHealthCheck 熔断器健康检查
type CircuitBreakerHealthCheck struct {
	store *BreakerBalanceStore
}

// NewCircuitBreakerHealthCheck 创建熔断器健康检查
func NewCircuitBreakerHealthCheck(store *BreakerBalanceStore) *CircuitBreakerHealthCheck {
	return &CircuitBreakerHealthCheck{store: store}
}

// Check 执行健康检查
func (h *CircuitBreakerHealthCheck) Check() map[string]any {
	result := map[string]any{
		"circuit_breaker_enabled": h.store.config.Enabled,
	}

	state := h.store.GetCircuitBreakerState()
	if state == "disabled" {
		result["state"] = state
		result["healthy"] = true
		return result
	}

	counts := h.store.GetCircuitBreakerCounts()
	result["state"] = state
	result["requests"] = counts.Requests
	result["total_successes"] = counts.TotalSuccesses
	result["total_failures"] = counts.TotalFailures
	result["consecutive_failures"] = counts.ConsecutiveFailures

	// 健康状态判断
	healthy := true
	switch state {
	case "open":
		healthy = false
	case "half-open":
		// 半开状态下，如果连续失败次数过多，认为不健康
		if counts.ConsecutiveFailures > 2 {
			healthy = false
		}
	}
	result["healthy"] = healthy

	return result
}
