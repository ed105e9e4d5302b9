package snapshot

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBackendRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	key := "giveaway-bot:test:" + t.Name()
	t.Cleanup(func() { client.Del(ctx, key) })
	b := NewRedisBackend(client, key, 64)

	doc, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Giveaways)

	gs, subs := sampleState()
	require.NoError(t, b.Save(ctx, Build(gs, subs, now)))

	n, err := client.LLen(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, n, int64(1), "document is stored in several chunks")

	doc, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, doc.Giveaways, 2)
	assert.Len(t, doc.Subscriptions, 2)
}
