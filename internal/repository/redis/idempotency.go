package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemNS = ns + ":idem"

	idemPending   = "PENDING"
	idemResultTag = "RES:"
)

// KeyIdemBooking scopes an Idempotency-Key to the caller and class so two
// users cannot collide on the same client-chosen key.
func KeyIdemBooking(userID, classID int64, idemKey string) string {
	return fmt.Sprintf("%s:bookings:%d:%d:%s", idemNS, userID, classID, idemKey)
}

// releasePending deletes the key only while it still holds the pending
// marker, so a stored result is never dropped by a late release.
var releasePending = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// IdempotencyStore remembers the response of a keyed request. A key is
// first claimed as pending, then either filled with the response or
// released so the client may retry.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// AcquireLock claims key for lockTTL. It reports false when another request
// holds the key or already stored a result under it.
func (s *IdempotencyStore) AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, idemPending, lockTTL).Result()
}

func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, jsonPayload string) error {
	return s.rdb.Set(ctx, key, idemResultTag+jsonPayload, s.ttl).Err()
}

func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	payload, ok := strings.CutPrefix(v, idemResultTag)
	return payload, ok, nil
}

// Pending reports whether a request is still working under key.
func (s *IdempotencyStore) Pending(ctx context.Context, key string) (bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == idemPending, nil
}

// Release gives up a pending claim after a failed request.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return releasePending.Run(ctx, s.rdb, []string{key}, idemPending).Err()
}
