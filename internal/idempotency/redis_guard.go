package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/redis/go-redis/v9"
)

const (
	pendingValue = "pending"
	donePrefix   = "done:"
)

// releaseScript deletes the key only while it is still pending, so a late
// release can never wipe a completed result.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard remembers in-flight and finished checkouts per submission key.
// Every Redis failure is reported as domain.ErrGuardUnavailable; the caller
// must not charge when it cannot tell whether a charge is already running.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (*domain.CheckoutResult, error) {
	k := guardKey(key)

	ok, err := g.client.SetNX(ctx, k, pendingValue, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis setnx failed: %v", domain.ErrGuardUnavailable, err)
	}
	if ok {
		return nil, nil
	}

	val, err := g.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// released between the two calls; treat as still busy rather than race
		return nil, domain.ErrDuplicateSubmission
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get failed: %v", domain.ErrGuardUnavailable, err)
	}

	if !strings.HasPrefix(val, donePrefix) {
		return nil, domain.ErrDuplicateSubmission
	}

	var result domain.CheckoutResult
	if err := json.Unmarshal([]byte(strings.TrimPrefix(val, donePrefix)), &result); err != nil {
		return nil, fmt.Errorf("%w: unmarshal stored result failed: %v", domain.ErrGuardUnavailable, err)
	}
	return &result, nil
}

func (g *RedisGuard) Complete(ctx context.Context, key string, result *domain.CheckoutResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal checkout result failed: %w", err)
	}
	if err := g.client.Set(ctx, guardKey(key), donePrefix+string(data), g.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, g.client, []string{guardKey(key)}, pendingValue).Err(); err != nil {
		return fmt.Errorf("redis release failed: %w", err)
	}
	return nil
}

func guardKey(key string) string {
	return fmt.Sprintf("checkout:guard:%s", key)
}
