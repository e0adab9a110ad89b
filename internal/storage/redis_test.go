package storage

import (
	"context"
	"net"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/LiveChat/config"
)

func TestInitRedis(t *testing.T) {
	t.Run("connects to a live server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		host, port, err := net.SplitHostPort(mr.Addr())
		require.NoError(t, err)

		client, err := InitRedis(&config.RedisConfig{Host: host, Port: port, PoolSize: 2})
		require.NoError(t, err)
		defer client.Close()

		assert.NoError(t, client.Ping(context.Background()).Err())
	})

	t.Run("fails when unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		host, port, err := net.SplitHostPort(mr.Addr())
		require.NoError(t, err)
		mr.Close()

		client, err := InitRedis(&config.RedisConfig{Host: host, Port: port})
		assert.Error(t, err)
		assert.Nil(t, client)
	})
}
