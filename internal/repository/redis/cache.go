package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache stores JSON read models of classes. It is a lookaside cache: every
// value can be rebuilt from PostgreSQL, so Redis errors degrade to misses.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

func getJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var out T

	b, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return out, false, nil
	case err != nil:
		return out, false, err
	}

	if err := json.Unmarshal(b, &out); err != nil {
		return out, false, err
	}
	return out, true, nil
}

func SetJSON(ctx context.Context, c *Cache, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// GetOrSetJSON returns the cached value under key, or loads, stores and
// returns it. Concurrent misses for one key share a single loader call,
// which runs detached from the cancellation of whichever caller started it.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	if v, ok, err := getJSON[T](ctx, c, key); err == nil && ok {
		return v, nil
	}

	ch := c.sf.DoChan(key, func() (any, error) {
		lctx := context.WithoutCancel(ctx)
		if v, ok, err := getJSON[T](lctx, c, key); err == nil && ok {
			return v, nil
		}
		v, err := loader(lctx)
		if err != nil {
			return nil, err
		}
		_ = SetJSON(lctx, c, key, v, ttl)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("cache %s: unexpected value type %T", key, res.Val)
		}
		return v, nil
	}
}

// InvalidateClass drops every cached view derived from a class's booking set.
func (c *Cache) InvalidateClass(ctx context.Context, classID int64) error {
	return c.rdb.Del(ctx, KeyClassAvailability(classID), KeyClassRoster(classID)).Err()
}
