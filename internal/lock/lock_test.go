package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Lllllllleong/bonafideflow/internal/config"
)

func setupLocker(t *testing.T) (*miniredis.Miniredis, *Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	l := NewLocker(rdb, 10*time.Second, zaptest.NewLogger(t))
	l.retry = redislock.NoRetry()
	return mr, l
}

func TestWithLock_RunsAndReleases(t *testing.T) {
	mr, l := setupLocker(t)

	var held bool
	err := l.WithLock(context.Background(), "req-1", func(context.Context) error {
		held = mr.Exists("lock:req-1")
		return nil
	})

	require.NoError(t, err)
	assert.True(t, held)
	assert.False(t, mr.Exists("lock:req-1"))
}

func TestWithLock_Busy(t *testing.T) {
	_, l := setupLocker(t)

	err := l.WithLock(context.Background(), "req-1", func(ctx context.Context) error {
		return l.WithLock(ctx, "req-1", func(context.Context) error {
			t.Fatal("inner function must not run")
			return nil
		})
	})

	assert.ErrorIs(t, err, ErrBusy)
}

func TestWithLock_DifferentRequestsDoNotContend(t *testing.T) {
	_, l := setupLocker(t)

	err := l.WithLock(context.Background(), "req-1", func(ctx context.Context) error {
		return l.WithLock(ctx, "req-2", func(context.Context) error { return nil })
	})

	assert.NoError(t, err)
}

func TestWithLock_PropagatesError(t *testing.T) {
	mr, l := setupLocker(t)
	boom := errors.New("boom")

	err := l.WithLock(context.Background(), "req-1", func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:req-1"))
}

func TestWithLock_NilLocker(t *testing.T) {
	var l *Locker
	called := false

	err := l.WithLock(context.Background(), "req-1", func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), config.RedisConfig{Address: addr})
	assert.Error(t, err)
}
