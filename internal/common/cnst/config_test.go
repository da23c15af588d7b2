package cnst

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreTypeConstants(t *testing.T) {
	assert.Equal(t, StoreType("db"), StoreTypeDB)
	assert.Equal(t, StoreType("redis"), StoreTypeRedis)
	assert.Equal(t, StoreType("noop"), StoreTypeNoop)
	assert.Equal(t, StoreType("memcached"), StoreTypeMemcached)
	assert.Equal(t, "sockets", DefaultSessionTable)
}

func TestEventConstants(t *testing.T) {
	assert.Equal(t, "connect", EventConnect)
	assert.Equal(t, "disconnect", EventDisconnect)
	assert.Equal(t, "disconnecting", EventDisconnecting)
	assert.Equal(t, "error", EventError)
}
