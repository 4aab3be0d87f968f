package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Lllllllleong/bonafideflow/internal/config"
)

// ErrBusy is returned when another instance holds the lock on a request.
var ErrBusy = errors.New("request is being processed elsewhere")

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return rdb, nil
}

// Locker serialises work on a single request across function instances.
// A nil *Locker runs fn without locking; the store's version check still
// rejects a lost update.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
	logger *zap.Logger
}

func NewLocker(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Locker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locker{
		client: redislock.New(rdb),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
		logger: logger,
	}
}

// WithLock runs fn while holding lock:<requestID>.
func (l *Locker) WithLock(ctx context.Context, requestID string, fn func(ctx context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}

	key := fmt.Sprintf("lock:%s", requestID)
	lk, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("%w: %s", ErrBusy, requestID)
	}
	if err != nil {
		return fmt.Errorf("failed to obtain lock for %s: %w", requestID, err)
	}
	defer func() {
		if err := lk.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("Failed to release lock.", zap.String("requestId", requestID), zap.Error(err))
		}
	}()

	return fn(ctx)
}
