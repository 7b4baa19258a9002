package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-bulletin-api/pkg/config"
)

func TestNewRedisDisabledReturnsNilClient(t *testing.T) {
	client, err := NewRedis(context.Background(), config.RedisConfig{Enabled: false, Host: "unreachable"})
	require.NoError(t, err)
	assert.Nil(t, client)
}
