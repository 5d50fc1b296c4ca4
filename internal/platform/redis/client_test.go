package redis

import (
	"testing"

	"waste_portal_backend/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient_Disabled(t *testing.T) {
	client, cleanup, err := NewClient(&config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, client)
	cleanup()
}

func TestNewClient_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, cleanup, err := NewClient(&config.Config{RedisURL: "redis://" + mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)
	defer cleanup()
}

func TestNewClient_BadURL(t *testing.T) {
	_, _, err := NewClient(&config.Config{RedisURL: "://nope"}, zap.NewNop())
	assert.Error(t, err)
}
