package lottery

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBalanceStore(t *testing.T) {
	ctx := context.Background()
	id := "player@example.com"
	key := BalanceKey(id)

	t.Run("get_balance", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisBalanceStore(client, decimal.NewFromInt(1000))

		mock.ExpectEval(getBalanceScript, []string{key}, int64(100000)).SetVal(int64(98766))

		balance, err := store.GetBalance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "987.66", balance.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("set_balance", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisBalanceStore(client, decimal.NewFromInt(1000))

		mock.ExpectEval(setBalanceScript, []string{key}, int64(4200)).SetVal(int64(4200))

		balance, err := store.SetBalance(ctx, id, decimal.RequireFromString("42"))
		require.NoError(t, err)
		assert.Equal(t, "42.00", balance.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("increment_balance", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisBalanceStore(client, decimal.NewFromInt(1000))

		mock.ExpectEval(incrementBalanceScript, []string{key}, int64(100000), int64(165566)).SetVal(int64(265566))

		balance, err := store.IncrementBalance(ctx, id, decimal.RequireFromString("1655.66"))
		require.NoError(t, err)
		assert.Equal(t, "2655.66", balance.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("connection_error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisBalanceStore(client, decimal.NewFromInt(1000))

		mock.ExpectEval(getBalanceScript, []string{key}, int64(100000)).SetErr(errors.New("dial tcp: connection refused"))

		_, err := store.GetBalance(ctx, id)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisBalanceStore(client, decimal.NewFromInt(1000))

		mock.ExpectEval(incrementBalanceScript, []string{key}, int64(100000), int64(-100)).SetErr(context.DeadlineExceeded)

		_, err := store.IncrementBalance(ctx, id, decimal.NewFromInt(-1))
		assert.ErrorIs(t, err, ErrStoreTimeout)
	})

	t.Run("unexpected_result", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisBalanceStore(client, decimal.NewFromInt(1000))

		mock.ExpectEval(getBalanceScript, []string{key}, int64(100000)).SetVal("not a number")

		_, err := store.GetBalance(ctx, id)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})

	t.Run("large_balance_stored_as_integer", func(t *testing.T) {
		// %.14g 会把超过 14 位的数字写成指数形式
		for _, script := range []string{setBalanceScript, incrementBalanceScript} {
			assert.Contains(t, script, `redis.call("SET", KEYS[1], string.format("%d", n))`)
			assert.NotContains(t, script, `redis.call("SET", KEYS[1], n)`)
		}

		client, mock := redismock.NewClientMock()
		store := NewRedisBalanceStore(client, decimal.NewFromInt(1000))

		mock.ExpectEval(setBalanceScript, []string{key}, int64(123456789012345)).SetVal(int64(123456789012345))

		balance, err := store.SetBalance(ctx, id, decimal.RequireFromString("1234567890123.45"))
		require.NoError(t, err)
		assert.Equal(t, "1234567890123.45", balance.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettler_WithRedisStore(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisBalanceStore(client, decimal.NewFromInt(1000))

	settler := NewSettlerWithLogger(store, NewSilentLogger())
	settler.SetSeedSource(NewFixedSeedSource(fixtureSeed, fixtureTimestamp))

	key := BalanceKey("redis-player")
	mock.ExpectEval(getBalanceScript, []string{key}, int64(100000)).SetVal(int64(100000))
	mock.ExpectEval(incrementBalanceScript, []string{key}, int64(100000), int64(165666)).SetVal(int64(265666))

	result, err := settler.Settle(ctx, "redis-player", []Leg{testLeg(ModeThousand, "10", []int{1, 2, 3, 4, 5, 6}, "1518")})
	require.NoError(t, err)
	assert.Equal(t, "2656.66", result.Totals.Balance.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}
