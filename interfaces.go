package lottery

import (
	"context"

	"github.com/shopspring/decimal"
)

// BalanceStore defines the per-identity coin balance capability the settlement core consumes
type BalanceStore interface {
	// GetBalance returns the stored balance, or the starting balance if none exists yet
	GetBalance(ctx context.Context, id string) (decimal.Decimal, error)

	// SetBalance overwrites the balance, clamped to zero, and returns the stored value
	SetBalance(ctx context.Context, id string, value decimal.Decimal) (decimal.Decimal, error)

	// IncrementBalance applies delta in one read-modify-write, clamped to zero, and returns the new value
	IncrementBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
}

// SeedSource produces a fresh unpredictable seed and the current timestamp for every draw
type SeedSource interface {
	Next() (seed, timestamp string, err error)
}

// Locker serializes settlements per identity
type Locker interface {
	// Lock blocks until the key is held or ctx ends; the returned func releases it
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}
