package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
)

const cacheKeyPrefix = "directory:actor:"

// CachedDirectory is a read-through redis cache in front of another
// directory. Entries may be stale for up to ttl. Redis failures fall through
// to the underlying directory.
type CachedDirectory struct {
	next   Directory
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedDirectory(next Directory, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDirectory{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedDirectory) Lookup(ctx context.Context, id string) (approval.Actor, error) {
	key := cacheKeyPrefix + id

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var actor approval.Actor
		if err := json.Unmarshal(raw, &actor); err == nil {
			return actor, nil
		}
		c.logger.Warn("Discarding undecodable directory cache entry.", zap.String("userId", id))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Directory cache read failed.", zap.String("userId", id), zap.Error(err))
	}

	actor, err := c.next.Lookup(ctx, id)
	if err != nil {
		return approval.Actor{}, err
	}

	if data, err := json.Marshal(actor); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Directory cache write failed.", zap.String("userId", id), zap.Error(err))
		}
	}
	return actor, nil
}
