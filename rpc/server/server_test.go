package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/dbBench/lib/tablestore"
	"github.com/ValentinKolb/dbBench/rpc/client"
	"github.com/ValentinKolb/dbBench/rpc/common"
	"github.com/ValentinKolb/dbBench/rpc/skyhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer starts a server on a random local port and returns it with a connected client
func startServer(t *testing.T, tables map[string]string) (*Server, *client.Client) {
	t.Helper()

	config := common.DefaultServerConfig()
	config.Endpoint = "127.0.0.1:0"
	config.Tables = tables

	s := NewServer(config, tablestore.New())
	require.NoError(t, s.Listen())
	go s.Serve()
	t.Cleanup(func() { s.Close() })

	clientConfig := common.DefaultClientConfig()
	clientConfig.Endpoint = s.Addr().String()
	c, err := client.Dial(context.Background(), clientConfig)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return s, c
}

// run sends a textual query and fails the test on connection errors
func run(t *testing.T, c *client.Client, args ...string) skyhash.Element {
	t.Helper()
	el, err := c.Run(context.Background(), skyhash.NewQuery(args...))
	require.NoError(t, err)
	return el
}

func TestHeya(t *testing.T) {
	_, c := startServer(t, nil)
	assert.Equal(t, "HEY!", run(t, c, "HEYA").Text())
	assert.Equal(t, "ping", run(t, c, "heya", "ping").Text())
}

func TestConnectionsStartInDefaultTable(t *testing.T) {
	_, c := startServer(t, map[string]string{"pkgs:basic": "binstr"})

	assert.True(t, run(t, c, "SET", "a", "default").IsOkay())
	assert.True(t, skyhash.IsCode(run(t, c, "USE", "pkgs:missing").Err(), skyhash.CodeContainerNotFound))
	assert.True(t, run(t, c, "USE", "pkgs:basic").IsOkay())
	assert.True(t, skyhash.IsCode(run(t, c, "GET", "a").Err(), skyhash.CodeNil))

	assert.True(t, run(t, c, "USE", tablestore.DefaultTable).IsOkay())
	assert.Equal(t, "default", run(t, c, "GET", "a").Text())
}

func TestBinaryActions(t *testing.T) {
	_, c := startServer(t, map[string]string{"pkgs:basic": "binstr"})
	require.True(t, run(t, c, "USE", "pkgs:basic").IsOkay())

	assert.True(t, run(t, c, "SET", "a", "1").IsOkay())
	assert.True(t, skyhash.IsCode(run(t, c, "SET", "a", "2").Err(), skyhash.CodeOverwrite))
	assert.Equal(t, uint64(2), run(t, c, "USET", "a", "3", "b", "4").Uint)
	assert.True(t, run(t, c, "UPDATE", "b", "5").IsOkay())
	assert.True(t, skyhash.IsCode(run(t, c, "UPDATE", "zz", "5").Err(), skyhash.CodeNil))

	get := run(t, c, "GET", "a")
	assert.Equal(t, skyhash.KindBinary, get.Kind)
	assert.Equal(t, "3", get.Text())

	mget := run(t, c, "MGET", "a", "missing", "b")
	assert.Equal(t, [][]byte{[]byte("3"), nil, []byte("5")}, mget.Items)

	assert.Equal(t, uint64(2), run(t, c, "DBSIZE").Uint)
	assert.Equal(t, uint64(1), run(t, c, "EXISTS", "a", "x").Uint)
	assert.Equal(t, `["a","b"]`, run(t, c, "LSKEYS", "2").Text())
	assert.Equal(t, `[]`, run(t, c, "LSKEYS", "0").Text())
	assert.Equal(t, uint64(1), run(t, c, "DEL", "a").Uint)
	assert.True(t, run(t, c, "FLUSHDB").IsOkay())
	assert.Equal(t, uint64(0), run(t, c, "DBSIZE").Uint)

	assert.True(t, skyhash.IsCode(run(t, c, "LGET", "a").Err(), skyhash.CodeWrongType))
	assert.True(t, skyhash.IsCode(run(t, c, "GET").Err(), skyhash.CodeActionError))
	assert.True(t, skyhash.IsCode(run(t, c, "NOPE").Err(), skyhash.CodeUnknownAction))
}

func TestListActions(t *testing.T) {
	_, c := startServer(t, nil)

	require.True(t, run(t, c, "CREATE", "KEYSPACE", "pkgs").IsOkay())
	assert.True(t, run(t, c, "CREATE", "TABLE", "pkgs:comments", "keymap(str,list<binstr>)").IsOkay())
	assert.True(t, skyhash.IsCode(
		run(t, c, "CREATE", "TABLE", "pkgs:comments", "keymap(str,list<binstr>)").Err(),
		skyhash.CodeAlreadyExists))
	require.True(t, run(t, c, "USE", "pkgs:comments").IsOkay())

	assert.True(t, run(t, c, "LSET", "bash").IsOkay())
	assert.True(t, skyhash.IsCode(run(t, c, "LSET", "bash").Err(), skyhash.CodeOverwrite))
	assert.True(t, run(t, c, "LMOD", "bash", "PUSH", "x", "y").IsOkay())
	assert.Equal(t, `["x","y"]`, run(t, c, "LGET", "bash").Text())
	assert.Equal(t, uint64(2), run(t, c, "LGET", "bash", "LEN").Uint)
	assert.Equal(t, "y", run(t, c, "LMOD", "bash", "POP").Text())
	assert.True(t, run(t, c, "LMOD", "bash", "CLEAR").IsOkay())
	assert.Equal(t, `[]`, run(t, c, "LGET", "bash").Text())
	assert.True(t, skyhash.IsCode(run(t, c, "LMOD", "zsh", "PUSH", "x").Err(), skyhash.CodeNil))
}

func TestDropTableResetsActiveTable(t *testing.T) {
	_, c := startServer(t, map[string]string{"pkgs:basic": "binstr"})

	require.True(t, run(t, c, "USE", "pkgs:basic").IsOkay())
	assert.True(t, run(t, c, "SET", "a", "1").IsOkay())
	assert.True(t, run(t, c, "DROP", "TABLE", "pkgs:basic").IsOkay())

	// back in the empty default table
	dbsize := run(t, c, "DBSIZE")
	require.NoError(t, dbsize.Err())
	assert.Equal(t, uint64(0), dbsize.Uint)
	assert.True(t, skyhash.IsCode(run(t, c, "CREATE", "TABLE", "bad").Err(), skyhash.CodeBadContainerName))
	assert.True(t, skyhash.IsCode(run(t, c, "CREATE", "TABLE", "ks:t", "keymap(str,uint8)").Err(), skyhash.CodeUnknownDataType))
}

func TestActiveTableIsPerConnection(t *testing.T) {
	s, c1 := startServer(t, map[string]string{"pkgs:basic": "binstr"})

	clientConfig := common.DefaultClientConfig()
	clientConfig.Endpoint = s.Addr().String()
	c2, err := client.Dial(context.Background(), clientConfig)
	require.NoError(t, err)
	defer c2.Close()

	require.True(t, run(t, c1, "USE", "pkgs:basic").IsOkay())
	assert.True(t, run(t, c1, "SET", "a", "1").IsOkay())
	assert.True(t, skyhash.IsCode(run(t, c2, "GET", "a").Err(), skyhash.CodeNil))
}

func TestKeyspaces(t *testing.T) {
	_, c := startServer(t, nil)

	// a table needs its keyspace
	assert.True(t, skyhash.IsCode(
		run(t, c, "CREATE", "TABLE", "pkgs:basic", "keymap(str,binstr)").Err(),
		skyhash.CodeContainerNotFound))
	assert.True(t, run(t, c, "CREATE", "KEYSPACE", "pkgs").IsOkay())
	assert.True(t, skyhash.IsCode(run(t, c, "CREATE", "KEYSPACE", "pkgs").Err(), skyhash.CodeAlreadyExists))
	assert.True(t, run(t, c, "CREATE", "TABLE", "pkgs:basic", "keymap(str,binstr)").IsOkay())

	assert.True(t, skyhash.IsCode(run(t, c, "DROP", "KEYSPACE", "pkgs").Err(), skyhash.CodeStillInUse))
	assert.True(t, run(t, c, "DROP", "TABLE", "pkgs:basic").IsOkay())
	assert.True(t, run(t, c, "DROP", "KEYSPACE", "pkgs").IsOkay())

	assert.True(t, skyhash.IsCode(run(t, c, "DROP", "TABLE", tablestore.DefaultTable).Err(), skyhash.CodeProtected))
	assert.True(t, skyhash.IsCode(run(t, c, "DROP", "KEYSPACE", tablestore.DefaultKeyspace).Err(), skyhash.CodeProtected))
	assert.Equal(t, `["default:default"]`, run(t, c, "LSTABLES").Text())
}

func TestClientReconnectsAfterServerSideClose(t *testing.T) {
	s, c := startServer(t, map[string]string{"pkgs:basic": "binstr"})
	gen := c.Generation()

	// one round trip makes sure the server registered the connection
	assert.Equal(t, "HEY!", run(t, c, "HEYA").Text())

	// kill all server side connections
	s.conns.Range(func(_ uint64, conn net.Conn) bool {
		conn.Close()
		return true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// the first call fails on the dead connection, the next one reconnects
	_, err := c.Run(ctx, skyhash.NewQuery("HEYA"))
	require.Error(t, err)
	assert.True(t, client.IsNetError(err))

	el, err := c.Run(ctx, skyhash.NewQuery("HEYA"))
	require.NoError(t, err)
	assert.Equal(t, "HEY!", el.Text())
	assert.Equal(t, gen+1, c.Generation())
}

func TestClosedClient(t *testing.T) {
	_, c := startServer(t, nil)
	require.NoError(t, c.Close())
	_, err := c.Run(context.Background(), skyhash.NewQuery("HEYA"))
	assert.ErrorIs(t, err, client.ErrClosed)
	assert.True(t, client.IsNetError(err))
}
