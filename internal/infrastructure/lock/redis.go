package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/garyjia/sales-reports/internal/application/port"
)

// RedisConfig holds the Redis connection settings
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// Connect opens a Redis client and verifies it with PING
func Connect(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect redis at %s: %w", cfg.Address, err)
	}
	return rdb, nil
}

// RedisLocker obtains locks shared by every service instance
type RedisLocker struct {
	client *redislock.Client
	wait   time.Duration
}

// NewRedisLocker creates a locker that retries a busy key for up to wait
func NewRedisLocker(rdb redislock.RedisClient, wait time.Duration) *RedisLocker {
	if wait <= 0 {
		wait = defaultWait
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		wait:   wait,
	}
}

// Obtain implements port.Locker
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (port.Lock, error) {
	const backoff = 50 * time.Millisecond
	retries := int(l.wait / backoff)

	lk, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(backoff), retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, port.ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain redis lock %s: %w", key, err)
	}
	return redisLock{lk}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

// Release implements port.Lock
func (l redisLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return ErrNotHeld
	}
	return err
}

// Verify interface compliance
var _ port.Locker = (*RedisLocker)(nil)
