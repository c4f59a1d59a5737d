package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	t.Run("host and port", func(t *testing.T) {
		client := NewClient(mr.Addr())
		require.NotNil(t, client)
		defer client.Close()
		assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
		got, err := mr.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})

	t.Run("url", func(t *testing.T) {
		client := NewClient("redis://" + mr.Addr() + "/0")
		require.NotNil(t, client)
		defer client.Close()
	})

	t.Run("empty address", func(t *testing.T) {
		assert.Nil(t, NewClient(""))
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		assert.Nil(t, NewClient("memcached://localhost:11211"))
	})
}
