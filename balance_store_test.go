package lottery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBalanceStoreContract exercises the behaviour every BalanceStore must share
func testBalanceStoreContract(t *testing.T, store BalanceStore) {
	ctx := context.Background()
	dec := decimal.RequireFromString

	t.Run("starting_balance_for_unseen_identity", func(t *testing.T) {
		balance, err := store.GetBalance(ctx, "new@example.com")
		require.NoError(t, err)
		assert.Equal(t, "1000.00", balance.StringFixed(2))
	})

	t.Run("increment_from_starting_balance", func(t *testing.T) {
		balance, err := store.IncrementBalance(ctx, "inc@example.com", dec("-12.34"))
		require.NoError(t, err)
		assert.Equal(t, "987.66", balance.StringFixed(2))

		balance, err = store.IncrementBalance(ctx, "inc@example.com", dec("2.34"))
		require.NoError(t, err)
		assert.Equal(t, "990.00", balance.StringFixed(2))
	})

	t.Run("identity_is_case_insensitive", func(t *testing.T) {
		_, err := store.SetBalance(ctx, "Mixed@Example.com", dec("42.00"))
		require.NoError(t, err)

		balance, err := store.GetBalance(ctx, "  mixed@example.com ")
		require.NoError(t, err)
		assert.Equal(t, "42.00", balance.StringFixed(2))
	})

	t.Run("clamped_at_zero", func(t *testing.T) {
		balance, err := store.IncrementBalance(ctx, "broke@example.com", dec("-5000"))
		require.NoError(t, err)
		assert.True(t, balance.IsZero())

		balance, err = store.SetBalance(ctx, "broke@example.com", dec("-1"))
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("concurrent_increments", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.IncrementBalance(ctx, "busy@example.com", dec("-1.00"))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		balance, err := store.GetBalance(ctx, "busy@example.com")
		require.NoError(t, err)
		assert.Equal(t, "975.00", balance.StringFixed(2))
	})

	t.Run("cancelled_context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := store.IncrementBalance(cancelled, "inc@example.com", dec("1"))
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestMemoryBalanceStore(t *testing.T) {
	testBalanceStoreContract(t, NewMemoryBalanceStore(decimal.NewFromInt(1000)))
}

func TestBadgerBalanceStore(t *testing.T) {
	store, err := NewBadgerBalanceStore(t.TempDir(), decimal.NewFromInt(1000))
	require.NoError(t, err)
	defer store.Close()

	testBalanceStoreContract(t, store)
}

func TestBadgerBalanceStore_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewBadgerBalanceStore(dir, decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, err = store.SetBalance(ctx, "durable", decimal.RequireFromString("12.50"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewBadgerBalanceStore(dir, decimal.NewFromInt(1000))
	require.NoError(t, err)
	defer reopened.Close()

	balance, err := reopened.GetBalance(ctx, "durable")
	require.NoError(t, err)
	assert.Equal(t, "12.50", balance.StringFixed(2))
}

func TestBreakerBalanceStore(t *testing.T) {
	ctx := context.Background()

	t.Run("passes_through", func(t *testing.T) {
		store := NewBreakerBalanceStore(NewMemoryBalanceStore(decimal.NewFromInt(1000)), nil, NewSilentLogger())

		balance, err := store.IncrementBalance(ctx, "someone", decimal.NewFromInt(-1))
		require.NoError(t, err)
		assert.Equal(t, "999.00", balance.StringFixed(2))
		assert.Equal(t, "closed", store.GetCircuitBreakerState())
		assert.Equal(t, uint32(1), store.GetCircuitBreakerCounts().TotalSuccesses)
	})

	t.Run("trips_open", func(t *testing.T) {
		failing := &stubBalanceStore{err: errors.New("connection refused")}
		config := DefaultCircuitBreakerConfig()
		config.MinRequests = 2
		config.FailureRatio = 0.5
		config.Timeout = time.Minute
		store := NewBreakerBalanceStore(failing, config, NewSilentLogger())

		for i := 0; i < 2; i++ {
			_, err := store.GetBalance(ctx, "someone")
			assert.Error(t, err)
			assert.NotErrorIs(t, err, ErrCircuitBreakerOpen)
		}

		assert.Equal(t, "open", store.GetCircuitBreakerState())
		assert.Equal(t, 2.0, BreakerStateValue(store.GetCircuitBreakerState()))

		_, err := store.GetBalance(ctx, "someone")
		assert.ErrorIs(t, err, ErrCircuitBreakerOpen)

		health := NewCircuitBreakerHealthCheck(store).Check()
		assert.Equal(t, false, health["healthy"])

		store.ResetCircuitBreaker()
		assert.Equal(t, "closed", store.GetCircuitBreakerState())
	})

	t.Run("disabled", func(t *testing.T) {
		config := DefaultCircuitBreakerConfig()
		config.Enabled = false
		store := NewBreakerBalanceStore(&stubBalanceStore{err: errors.New("boom")}, config, NewSilentLogger())

		for i := 0; i < 10; i++ {
			_, err := store.GetBalance(ctx, "someone")
			assert.NotErrorIs(t, err, ErrCircuitBreakerOpen)
		}
		assert.Equal(t, "disabled", store.GetCircuitBreakerState())
		assert.Equal(t, true, NewCircuitBreakerHealthCheck(store).Check()["healthy"])
	})
}

func TestBreakerStateValue(t *testing.T) {
	assert.Equal(t, 0.0, BreakerStateValue("closed"))
	assert.Equal(t, 0.0, BreakerStateValue("disabled"))
	assert.Equal(t, 1.0, BreakerStateValue("half-open"))
	assert.Equal(t, 2.0, BreakerStateValue("open"))
	assert.Equal(t, -1.0, BreakerStateValue("unknown"))
}

func TestBalanceKey(t *testing.T) {
	key := BalanceKey("Player@Example.com")

	assert.Equal(t, BalanceKey(" player@example.com "), key)
	assert.Len(t, key, len(BalanceKeyPrefix)+identityHashLength)
	assert.NotContains(t, key, "example")
	assert.NotEqual(t, BalanceKey("other@example.com"), key)
}
