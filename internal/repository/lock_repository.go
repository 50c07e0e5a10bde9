package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

const lockKeyPrefix = "scheduling:lock:"

// releaseScript deletes a lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var errLockHeld = errors.New("lock held by another writer")

// RedisLockRepository implements per-resource write serialisation across
// API instances using SET NX locks with a TTL.
type RedisLockRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLockRepository constructs a Redis backed locker.
func NewRedisLockRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLockRepository {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLockRepository{client: client, ttl: ttl, logger: logger}
}

// Acquire takes every key in sorted order, retrying busy keys with
// exponential backoff until ctx expires.
func (r *RedisLockRepository) Acquire(ctx context.Context, keys []string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	token := uuid.NewString()

	held := make([]string, 0, len(sorted))
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := releaseScript.Run(releaseCtx, r.client, []string{held[i]}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				r.logger.Warn("release scheduling lock failed", zap.String("key", held[i]), zap.Error(err))
			}
		}
	}

	for i, key := range sorted {
		if i > 0 && sorted[i-1] == key {
			continue
		}
		redisKey := lockKeyPrefix + key
		if err := r.acquireOne(ctx, redisKey, token); err != nil {
			release()
			if errors.Is(err, errLockHeld) || ctx.Err() != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrLockTimeout.Code, appErrors.ErrLockTimeout.Status, "timed out waiting for "+key)
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		held = append(held, redisKey)
	}
	return release, nil
}

func (r *RedisLockRepository) acquireOne(ctx context.Context, key, token string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 0

	var lastErr error
	op := func() error {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			lastErr = err
			return err
		}
		if !ok {
			lastErr = errLockHeld
			return errLockHeld
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		if ctx.Err() != nil && lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
