package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedisStore_Contract(t *testing.T) {
	addr := os.Getenv("IG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("IG_TEST_REDIS_ADDR not set")
	}

	s := NewRedisStore(RedisStoreConfig{Addr: addr, Prefix: "igtest:" + t.Name() + ":"})
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, s.Delete(ctx, k))
	}

	exerciseStore(t, s)
}

func TestDedupe(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "b", "a"}))
}
