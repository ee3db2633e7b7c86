// Package storetest provides a Redis-backed store for tests, running on an
// in-process miniredis server.
package storetest

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sonenae10-blip/todo/internal/logger"
	"github.com/sonenae10-blip/todo/internal/store/redisstore"
)

// SetupRedis starts a miniredis server and a client connected to it. Both
// are closed when the test ends.
func SetupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	require.NoError(t, client.Ping(context.Background()).Err())

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

// New returns an empty store for the duration of the test.
func New(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	client, mr := SetupRedis(t)
	return redisstore.New(client, logger.Discard()), mr
}
