package cache

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRedisUnreachable(t *testing.T) {
	// porta livre e fechada
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	rdb, err := ConnectRedis(context.Background(), addr)
	assert.Nil(t, rdb)
	assert.ErrorContains(t, err, addr)
}
