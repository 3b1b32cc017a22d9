//go:build integration

package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisRoleCacheIntegration(t *testing.T) {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := InitializeRoleCache(ctx, host+":"+port.Port(), logger.NewWriterLogger(io.Discard))
	require.NoError(t, err)
	defer client.Close()

	cache := NewRedisRoleCache(client, time.Second)
	require.NoError(t, cache.Set(ctx, &models.Staff{UserID: "sub-1", Role: models.RoleAdmin, DisplayName: "Morgan"}))

	got, err := cache.Get(ctx, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.RoleAdmin, got.Role)

	ttl, err := client.TTL(ctx, roleKey("sub-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, cache.Invalidate(ctx, "sub-1"))
	got, err = cache.Get(ctx, "sub-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
