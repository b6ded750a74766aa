package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopStore(t *testing.T) {
	var s Store = NopStore{}

	require.NoError(t, s.Remember(context.Background(), "m1"))

	seen, err := s.Seen(context.Background(), "m1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "tracking:processed:abc", Key("abc"))
}

func TestNewRedisStoreFromClient_DefaultTTL(t *testing.T) {
	s := NewRedisStoreFromClient(nil, 0)
	assert.Equal(t, DefaultTTL, s.ttl)
}
