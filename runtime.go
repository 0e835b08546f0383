package lottery

import (
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Runtime bundles a configured settler with the infrastructure behind it
type Runtime struct {
	Settler *Settler
	Store   BalanceStore
	Breaker *BreakerBalanceStore
	Monitor *SettlementMonitor
	Redis   *redis.Client

	closers []func() error
}

// NewRuntime wires the balance store, circuit breaker, locker and settler described by config
func NewRuntime(config *Config, logger Logger) (*Runtime, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &SilentLogger{}
	}

	rules, err := NewRules(config.Rules)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Monitor: NewSettlementMonitor()}

	var base BalanceStore
	switch config.Store.Backend {
	case StoreBackendRedis:
		rt.Redis = NewRedisClientFromConfig(config.Redis)
		rt.closers = append(rt.closers, rt.Redis.Close)
		base = NewRedisBalanceStoreWithLogger(rt.Redis, rules.StartingBalance, logger)
	case StoreBackendBadger:
		badgerStore, err := NewBadgerBalanceStoreWithLogger(config.Store.BadgerPath, rules.StartingBalance, logger)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, badgerStore.Close)
		base = badgerStore
	default:
		base = NewMemoryBalanceStore(rules.StartingBalance)
	}

	rt.Breaker = NewBreakerBalanceStore(base, config.CircuitBreaker, logger)
	rt.Store = rt.Breaker

	rt.Settler = NewSettlerWithConfigAndLogger(rt.Store, rules, config.Settlement, logger)
	rt.Settler.SetMonitor(rt.Monitor)
	if rt.Redis != nil {
		rt.Settler.SetLocker(NewRedisLockerWithConfig(rt.Redis, config.Settlement, rt.Monitor, logger))
	} else {
		rt.Settler.SetLocker(NewKeyedMutexLocker(config.Settlement.LockTimeout, rt.Monitor))
	}

	logger.Info("runtime ready: store=%s, table=%s, placementSeven=%s",
		config.Store.Backend, rules.TableName, rules.PlacementSeven)
	return rt, nil
}

// ApplyConfig pushes reloadable settings into the running settler
func (r *Runtime) ApplyConfig(config *Config) error {
	rules, err := NewRules(config.Rules)
	if err != nil {
		return err
	}
	return r.Settler.UpdateRules(rules)
}

// Close releases every underlying connection
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing runtime: %w", errors.Join(errs...))
	}
	return nil
}
