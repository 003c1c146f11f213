package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// A closed port makes every Redis call fail with connection refused; the
// store must behave as an always-missing cache rather than surface errors.
func newUnreachableStore(t *testing.T) *RedisStore {
	t.Helper()
	store := NewRedisStore(context.Background(), RedisOptions{
		Addr: "127.0.0.1:1",
		TTL:  time.Minute,
	})
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func TestRedisStore_DegradesToMissWhenUnreachable(t *testing.T) {
	store := newUnreachableStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.Run("GetMisses", func(t *testing.T) {
		data, ok := store.Get(ctx, AllDocsKey)
		assert.False(t, ok)
		assert.Nil(t, data)
	})

	t.Run("SetSwallowsFailure", func(t *testing.T) {
		store.Set(ctx, AllDocsKey, []byte(`[]`), time.Minute)

		// The write was lost; the follow-up read still misses.
		_, ok := store.Get(ctx, AllDocsKey)
		assert.False(t, ok)
	})

	t.Run("DeleteReportsNothingRemoved", func(t *testing.T) {
		assert.False(t, store.Delete(ctx, AllDocsKey))
	})

	t.Run("InvalidateReportsZero", func(t *testing.T) {
		keys := InvalidationKeys([]int64{1, 2})
		assert.Equal(t, 0, store.Invalidate(ctx, keys))
	})
}

func TestRedisStore_SetUsesDefaultTTLForNonPositive(t *testing.T) {
	store := newUnreachableStore(t)

	// ttl <= 0 falls back to the configured default; with the store down the
	// call still must not panic or propagate.
	store.Set(context.Background(), DepartmentKey(1), []byte(`[]`), 0)
}
