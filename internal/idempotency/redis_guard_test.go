package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a guard pointing at it
func setupTestRedis(t *testing.T) (*RedisGuard, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	guard := NewRedisGuard(client, 10*time.Minute)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return guard, mr, cleanup
}

func TestAcquire_FirstSubmissionOwnsKey(t *testing.T) {
	guard, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	prior, err := guard.Acquire(context.Background(), "buyer-1:key-1")
	require.NoError(t, err)
	assert.Nil(t, prior)

	stored, err := mr.Get(guardKey("buyer-1:key-1"))
	require.NoError(t, err)
	assert.Equal(t, pendingValue, stored)
	assert.Equal(t, 10*time.Minute, mr.TTL(guardKey("buyer-1:key-1")))
}

func TestAcquire_ConcurrentDuplicateIsRejected(t *testing.T) {
	guard, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	_, err := guard.Acquire(ctx, "buyer-1:key-1")
	require.NoError(t, err)

	_, err = guard.Acquire(ctx, "buyer-1:key-1")
	assert.ErrorIs(t, err, domain.ErrDuplicateSubmission)

	// other buyers are unaffected
	_, err = guard.Acquire(ctx, "buyer-2:key-1")
	assert.NoError(t, err)
}

func TestAcquire_CompletedDuplicateReplaysResult(t *testing.T) {
	guard, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	_, err := guard.Acquire(ctx, "buyer-1:key-1")
	require.NoError(t, err)

	done := &domain.CheckoutResult{
		AttemptID:     "attempt-1",
		TransactionID: "txn-1",
		OrderID:       "order-1",
		Amount:        1250,
		Recorded:      true,
	}
	require.NoError(t, guard.Complete(ctx, "buyer-1:key-1", done))

	prior, err := guard.Acquire(ctx, "buyer-1:key-1")
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, *done, *prior)
}

func TestRelease_FreesPendingKey(t *testing.T) {
	guard, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	_, err := guard.Acquire(ctx, "buyer-1:key-1")
	require.NoError(t, err)

	require.NoError(t, guard.Release(ctx, "buyer-1:key-1"))
	assert.False(t, mr.Exists(guardKey("buyer-1:key-1")))

	prior, err := guard.Acquire(ctx, "buyer-1:key-1")
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestRelease_KeepsCompletedResult(t *testing.T) {
	guard, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	_, err := guard.Acquire(ctx, "buyer-1:key-1")
	require.NoError(t, err)
	require.NoError(t, guard.Complete(ctx, "buyer-1:key-1", &domain.CheckoutResult{TransactionID: "txn-1"}))

	require.NoError(t, guard.Release(ctx, "buyer-1:key-1"))
	assert.True(t, mr.Exists(guardKey("buyer-1:key-1")))
}

func TestAcquire_PendingKeyExpires(t *testing.T) {
	guard, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	_, err := guard.Acquire(ctx, "buyer-1:key-1")
	require.NoError(t, err)

	mr.FastForward(11 * time.Minute)

	prior, err := guard.Acquire(ctx, "buyer-1:key-1")
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestAcquire_RedisDownFailsClosed(t *testing.T) {
	guard, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Close()

	_, err := guard.Acquire(context.Background(), "buyer-1:key-1")
	assert.ErrorIs(t, err, domain.ErrGuardUnavailable)
}

func TestAcquire_CorruptStoredResult(t *testing.T) {
	guard, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(guardKey("buyer-1:key-1"), donePrefix+"{not json"))

	_, err := guard.Acquire(context.Background(), "buyer-1:key-1")
	assert.ErrorIs(t, err, domain.ErrGuardUnavailable)
}

func TestGuardKey_Format(t *testing.T) {
	assert.Equal(t, "checkout:guard:buyer-1:abc", guardKey("buyer-1:abc"))
}
