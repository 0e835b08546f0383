package lottery

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Distributed Lock Implementation Strategy:
// - Lock Acquisition: Use Redis SET NX for optimal performance (single network call)
// - Lock Release: Use Lua script for safety (ensures only lock owner can release)

const (
	// releaseLockScript ensures only the lock owner can release the lock, so a holder whose
	// lock expired cannot delete the lock another settlement acquired afterwards
	releaseLockScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
)

// RedisLocker implements Locker with Redis so settlements for one identity are serialized
// across every process sharing the same Redis
type RedisLocker struct {
	redisClient   *redis.Client
	lockTimeout   time.Duration
	expiration    time.Duration
	retryAttempts int
	retryInterval time.Duration

	monitor *SettlementMonitor
	logger  Logger
}

// NewRedisLocker creates a Redis locker with default timing
func NewRedisLocker(redisClient *redis.Client) *RedisLocker {
	return NewRedisLockerWithConfig(redisClient, DefaultSettlementConfig(), nil, &SilentLogger{})
}

// NewRedisLockerWithConfig creates a Redis locker using the settlement lock settings
func NewRedisLockerWithConfig(
	redisClient *redis.Client, config *SettlementConfig, monitor *SettlementMonitor, logger Logger,
) *RedisLocker {
	if config == nil {
		config = DefaultSettlementConfig()
	}
	if logger == nil {
		logger = &SilentLogger{}
	}
	return &RedisLocker{
		redisClient:   redisClient,
		lockTimeout:   config.LockTimeout,
		expiration:    config.LockExpiration,
		retryAttempts: config.RetryAttempts,
		retryInterval: config.RetryInterval,
		monitor:       monitor,
		logger:        logger,
	}
}

// Lock keeps trying SET NX until the key is held, lockTimeout passes or ctx ends
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, ErrInvalidParameters.WithDetails("lock key is required")
	}

	fullLockKey := LockKeyPrefix + key
	lockValue := generateLockValue()
	start := time.Now()

	timeoutCtx, cancel := context.WithTimeout(ctx, l.lockTimeout)
	defer cancel()

	for {
		acquired, err := l.redisClient.SetNX(timeoutCtx, fullLockKey, lockValue, l.expiration).Result()
		if err == nil && acquired {
			l.record(true, time.Since(start))
			l.logger.Debug("lock acquired: key=%s", fullLockKey)
			return func() { l.release(fullLockKey, lockValue) }, nil
		}
		if err != nil && timeoutCtx.Err() == nil {
			l.logger.Error("lock acquisition error, retrying: key=%s, error=%v", fullLockKey, err)
		}

		select {
		case <-timeoutCtx.Done():
			l.record(false, time.Since(start))
			if err != nil {
				return nil, ErrLockAcquisitionFailed.WithCause(err)
			}
			return nil, ErrLockTimeout.WithDetails(fmt.Sprintf("waited %s for %s", l.lockTimeout, key))
		case <-time.After(l.retryInterval):
		}
	}
}

// release runs the owner-checked delete, retrying transient errors; it outlives the caller's ctx
func (l *RedisLocker) release(fullLockKey, lockValue string) {
	ctx, cancel := context.WithTimeout(context.Background(), l.lockTimeout)
	defer cancel()

	for attempt := 0; attempt <= l.retryAttempts; attempt++ {
		result, err := l.redisClient.Eval(ctx, releaseLockScript, []string{fullLockKey}, lockValue).Result()
		if err == nil {
			if n, _ := result.(int64); n != 1 {
				// 锁已过期或被他人持有
				l.logger.Info("lock already gone on release: key=%s", fullLockKey)
			}
			if l.monitor != nil {
				l.monitor.RecordLockRelease()
			}
			return
		}

		if attempt == l.retryAttempts {
			l.logger.Error("lock release failed, relying on expiration: key=%s, error=%v", fullLockKey, err)
			return
		}
		time.Sleep(l.retryInterval)
	}
}

func (l *RedisLocker) record(success bool, d time.Duration) {
	if l.monitor != nil {
		l.monitor.RecordLockAcquisition(success, d)
	}
}

// generateLockValue generates a unique lock value using crypto/rand
func generateLockValue() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based value if crypto/rand fails
		return fmt.Sprintf("lock_%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
