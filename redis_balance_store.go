package lottery

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// Balances are stored as integer cents written with %d, never in exponent form.
// Every operation is one script so the read-modify-write runs atomically on the server.
const (
	// getBalanceScript returns the stored cents or the starting cents in ARGV[1]
	getBalanceScript = `
		local v = redis.call("GET", KEYS[1])
		if not v then
			return tonumber(ARGV[1])
		end
		return tonumber(v)
	`

	// setBalanceScript stores max(ARGV[1], 0)
	setBalanceScript = `
		local n = tonumber(ARGV[1])
		if n < 0 then
			n = 0
		end
		redis.call("SET", KEYS[1], string.format("%d", n))
		return n
	`

	// incrementBalanceScript adds ARGV[2] to the stored value (or ARGV[1] when absent) and clamps at 0
	incrementBalanceScript = `
		local v = redis.call("GET", KEYS[1])
		if not v then
			v = ARGV[1]
		end
		local n = tonumber(v) + tonumber(ARGV[2])
		if n < 0 then
			n = 0
		end
		redis.call("SET", KEYS[1], string.format("%d", n))
		return n
	`
)

// RedisBalanceStore implements BalanceStore on Redis
type RedisBalanceStore struct {
	redisClient   *redis.Client
	startingCents int64
	logger        Logger
}

// NewRedisBalanceStore creates a Redis backed balance store
func NewRedisBalanceStore(redisClient *redis.Client, starting decimal.Decimal) *RedisBalanceStore {
	return NewRedisBalanceStoreWithLogger(redisClient, starting, &SilentLogger{})
}

// NewRedisBalanceStoreWithLogger creates a Redis backed balance store with a custom logger
func NewRedisBalanceStoreWithLogger(redisClient *redis.Client, starting decimal.Decimal, logger Logger) *RedisBalanceStore {
	if logger == nil {
		logger = &SilentLogger{}
	}
	return &RedisBalanceStore{
		redisClient:   redisClient,
		startingCents: ToCents(starting),
		logger:        logger,
	}
}

func (s *RedisBalanceStore) GetBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	return s.eval(ctx, "get", getBalanceScript, id, s.startingCents)
}

func (s *RedisBalanceStore) SetBalance(ctx context.Context, id string, value decimal.Decimal) (decimal.Decimal, error) {
	return s.eval(ctx, "set", setBalanceScript, id, ToCents(value))
}

func (s *RedisBalanceStore) IncrementBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	return s.eval(ctx, "increment", incrementBalanceScript, id, s.startingCents, ToCents(delta))
}

func (s *RedisBalanceStore) eval(ctx context.Context, op, script, id string, args ...any) (decimal.Decimal, error) {
	key := BalanceKey(id)

	result, err := s.redisClient.Eval(ctx, script, []string{key}, args...).Result()
	if err != nil {
		s.logger.Error("balance %s failed: key=%s, error=%v", op, key, err)
		return decimal.Zero, storeError(op, err)
	}

	cents, ok := result.(int64)
	if !ok {
		return decimal.Zero, ErrStoreUnavailable.WithOperation(op).
			WithDetails(fmt.Sprintf("unexpected script result %T", result))
	}

	s.logger.Debug("balance %s: key=%s, cents=%d", op, key, cents)
	return FromCents(cents), nil
}
