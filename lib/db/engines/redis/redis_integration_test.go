//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"

	"github.com/ValentinKolb/dbBench/lib/db"
	dbtesting "github.com/ValentinKolb/dbBench/lib/db/testing"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis runs a password protected redis container and returns options
// pointing to it
func startRedis(t *testing.T) Options {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			Cmd:          []string{"redis-server", "--requirepass", "redis"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Addr = fmt.Sprintf("%s:%s", host, port.Port())
	return opts
}

func TestRedisConformance(t *testing.T) {
	opts := startRedis(t)

	factory := func(t testing.TB) db.PkgDB {
		d, err := New(context.Background(), opts)
		require.NoError(t, err)
		require.NoError(t, d.Flush(context.Background()))
		return d
	}

	dbtesting.RunPkgDBTests(t, "Redis", factory, dbtesting.CustomQueries{
		Valid:   "PING",
		Invalid: "NOT_A_COMMAND arg",
	})
}

func TestRedisWrongPassword(t *testing.T) {
	opts := startRedis(t)
	opts.Password = "wrong"

	_, err := New(context.Background(), opts)
	require.Error(t, err)
	// the server rejects AUTH, which is reported like any unreachable backend
	require.ErrorIs(t, err, db.ErrConnection)
}
