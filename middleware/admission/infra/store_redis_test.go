package infra

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisFixture(t *testing.T) (*miniredis.Miniredis, *RedisWindowStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisWindowStore(rdb)
}

func TestRedisWindowStore_AddCountListRemove(t *testing.T) {
	ctx := context.Background()
	_, s := redisFixture(t)

	require.NoError(t, s.Add(ctx, "k", "m1", 100))
	require.NoError(t, s.Add(ctx, "k", "m2", 200))
	require.NoError(t, s.Add(ctx, "k", "m3", 300))

	n, err := s.CountInRange(ctx, "k", 100, 300)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = s.CountInRange(ctx, "k", 150, 250)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// poda com corte exclusivo: score < 200
	require.NoError(t, s.RemoveBelow(ctx, "k", 200))
	members, err := s.ListInRange(ctx, "k", 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3"}, members)
}

func TestRedisWindowStore_ExpiryAndReset(t *testing.T) {
	ctx := context.Background()
	mr, s := redisFixture(t)

	require.NoError(t, s.Add(ctx, "k", "m1", 100))
	require.NoError(t, s.SetExpiry(ctx, "k", time.Minute))

	mr.FastForward(2 * time.Minute)
	n, err := s.CountInRange(ctx, "k", 0, 1000)
	require.NoError(t, err)
	assert.Zero(t, n, "abandoned key self-cleans via TTL")

	require.NoError(t, s.Add(ctx, "k2", "m1", 100))
	require.NoError(t, s.Reset(ctx, "k2"))
	n, err = s.CountInRange(ctx, "k2", 0, 1000)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisWindowStore_Ping(t *testing.T) {
	ctx := context.Background()
	mr, s := redisFixture(t)

	require.NoError(t, s.Ping(ctx))

	mr.Close()
	assert.Error(t, s.Ping(ctx))
}

func TestRedisWindowStore_FailureWrapsStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, s := redisFixture(t)
	mr.Close()

	err := s.Add(ctx, "k", "m", 1)
	require.Error(t, err)
}

func TestRedisWindowStore_TryAdmitAtomic(t *testing.T) {
	ctx := context.Background()
	_, s := redisFixture(t)

	now := time.Unix(1_700_000_000, 0)
	window := time.Minute

	// admite até o limite...
	for i := int64(1); i <= 3; i++ {
		count, admitted, err := s.TryAdmit(ctx, "k", fmt.Sprintf("m%d", i), now.UnixMilli(), window, 3, window+time.Minute)
		require.NoError(t, err)
		assert.True(t, admitted, "admission %d", i)
		assert.Equal(t, i, count)
	}

	// ...e nega a partir daí, sem inserir
	count, admitted, err := s.TryAdmit(ctx, "k", "extra", now.UnixMilli(), window, 3, window+time.Minute)
	require.NoError(t, err)
	assert.False(t, admitted)
	assert.EqualValues(t, 3, count)

	// fora da janela, as entradas antigas são podadas pelo próprio script
	later := now.Add(2 * time.Minute)
	count, admitted, err = s.TryAdmit(ctx, "k", "fresh", later.UnixMilli(), window, 3, window+time.Minute)
	require.NoError(t, err)
	assert.True(t, admitted)
	assert.EqualValues(t, 1, count)
}
