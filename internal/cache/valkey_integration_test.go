//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestValkeyProviderAgainstContainer(t *testing.T) {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "valkey/valkey:8-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	p, err := NewValkeyProvider(ctx, ValkeyConfig{Addr: endpoint, KeyPrefix: "test:"})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(got))

	require.NoError(t, p.Del(ctx, "k"))
	_, err = p.Get(ctx, "k")
	require.True(t, errors.Is(err, ErrCacheMiss))
}
