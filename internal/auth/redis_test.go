package auth_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mind-engage/masterclass/internal/auth"
)

func startRedis(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Terminate(context.Background())) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisTokenStore(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run container tests")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: startRedis(ctx, t)})
	t.Cleanup(func() { _ = rdb.Close() })

	s := auth.NewRedisTokenStore(rdb)
	require.NoError(t, s.Save(ctx, "tok", "profile-1", time.Second))

	got, err := s.Lookup(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "profile-1", got)

	_, err = s.Lookup(ctx, "missing")
	require.ErrorIs(t, err, auth.ErrTokenInvalid)

	require.Eventually(t, func() bool {
		_, err := s.Lookup(ctx, "tok")
		return err == auth.ErrTokenInvalid
	}, 5*time.Second, 100*time.Millisecond)
}
