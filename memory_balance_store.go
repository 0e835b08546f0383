package lottery

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryBalanceStore implements BalanceStore in process memory
type MemoryBalanceStore struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	starting decimal.Decimal
}

// NewMemoryBalanceStore creates an in-memory store crediting starting to unseen identities
func NewMemoryBalanceStore(starting decimal.Decimal) *MemoryBalanceStore {
	return &MemoryBalanceStore{
		balances: make(map[string]decimal.Decimal),
		starting: starting,
	}
}

func (s *MemoryBalanceStore) GetBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, storeError("get", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id), nil
}

func (s *MemoryBalanceStore) SetBalance(ctx context.Context, id string, value decimal.Decimal) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, storeError("set", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v := clampNonNegative(value)
	s.balances[BalanceKey(id)] = v
	return v, nil
}

func (s *MemoryBalanceStore) IncrementBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, storeError("increment", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v := clampNonNegative(s.load(id).Add(delta))
	s.balances[BalanceKey(id)] = v
	return v, nil
}

// load must be called with mu held
func (s *MemoryBalanceStore) load(id string) decimal.Decimal {
	if v, ok := s.balances[BalanceKey(id)]; ok {
		return v
	}
	return s.starting
}
