package tablestore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndDropTable(t *testing.T) {
	s := New()

	// tables need their keyspace
	assert.ErrorIs(t, s.CreateTable("pkgs:basic", KindBinary), ErrUnknownTable)
	require.NoError(t, s.CreateKeyspace("pkgs"))
	assert.ErrorIs(t, s.CreateKeyspace("pkgs"), ErrAlreadyExists)

	require.NoError(t, s.CreateTable("pkgs:basic", KindBinary))
	assert.ErrorIs(t, s.CreateTable("pkgs:basic", KindBinary), ErrAlreadyExists)
	assert.ErrorIs(t, s.CreateTable("nokeyspace", KindBinary), ErrBadTableName)
	assert.ErrorIs(t, s.CreateTable("a:b:c", KindBinary), ErrBadTableName)
	assert.ErrorIs(t, s.CreateTable("pkgs:bad-name", KindBinary), ErrBadTableName)

	require.NoError(t, s.CreateTable("pkgs:comments", KindList))
	assert.Equal(t, []string{DefaultTable, "pkgs:basic", "pkgs:comments"}, s.Tables())

	require.NoError(t, s.DropTable("pkgs:basic"))
	assert.ErrorIs(t, s.DropTable("pkgs:basic"), ErrUnknownTable)
	_, err := s.Table("pkgs:basic")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestDefaultTable(t *testing.T) {
	s := New()

	tbl, err := s.Table(DefaultTable)
	require.NoError(t, err)
	require.NoError(t, tbl.Set("k", []byte("v")))

	assert.ErrorIs(t, s.DropTable(DefaultTable), ErrProtected)
	assert.ErrorIs(t, s.DropKeyspace(DefaultKeyspace), ErrProtected)
}

func TestDropKeyspace(t *testing.T) {
	s := New()

	assert.ErrorIs(t, s.DropKeyspace("pkgs"), ErrUnknownTable)
	assert.ErrorIs(t, s.CreateKeyspace("bad-name"), ErrBadTableName)

	require.NoError(t, s.CreateKeyspace("pkgs"))
	require.NoError(t, s.CreateTable("pkgs:basic", KindBinary))
	assert.ErrorIs(t, s.DropKeyspace("pkgs"), ErrStillInUse)

	require.NoError(t, s.DropTable("pkgs:basic"))
	require.NoError(t, s.DropKeyspace("pkgs"))
	assert.ErrorIs(t, s.CreateTable("pkgs:basic", KindBinary), ErrUnknownTable)
}

func TestParseValueKind(t *testing.T) {
	k, err := ParseValueKind(" binstr ")
	require.NoError(t, err)
	assert.Equal(t, KindBinary, k)

	k, err = ParseValueKind("list<binstr>")
	require.NoError(t, err)
	assert.Equal(t, KindList, k)

	_, err = ParseValueKind("uint8")
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestBinaryTable(t *testing.T) {
	tbl := newTable("pkgs:basic", KindBinary)

	require.NoError(t, tbl.Set("a", []byte("1")))
	assert.ErrorIs(t, tbl.Set("a", []byte("2")), ErrOverwrite)

	v, err := tbl.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	// returned values are copies
	v[0] = 'x'
	v, _ = tbl.Get("a")
	assert.Equal(t, []byte("1"), v)

	_, err = tbl.Get("missing")
	assert.ErrorIs(t, err, ErrNil)

	assert.ErrorIs(t, tbl.Update("missing", []byte("x")), ErrNil)
	require.NoError(t, tbl.Update("a", []byte("3")))
	require.NoError(t, tbl.Upsert("b", []byte("4")))

	values, err := tbl.MGet([]string{"a", "missing", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("3"), nil, []byte("4")}, values)

	assert.Equal(t, uint64(2), tbl.Exists("a", "b", "c"))
	assert.Equal(t, uint64(2), tbl.Len())
	assert.Equal(t, []string{"a", "b"}, tbl.Keys(0))
	assert.Equal(t, []string{"a"}, tbl.Keys(1))

	assert.Equal(t, uint64(1), tbl.Del("a", "c"))
	tbl.Flush()
	assert.Equal(t, uint64(0), tbl.Len())

	assert.ErrorIs(t, tbl.LSet("l"), ErrWrongType)
}

func TestListTable(t *testing.T) {
	tbl := newTable("pkgs:comments", KindList)

	require.NoError(t, tbl.LSet("bash", []byte("first")))
	assert.ErrorIs(t, tbl.LSet("bash"), ErrOverwrite)
	require.NoError(t, tbl.LPush("bash", []byte("second"), []byte("third")))

	list, err := tbl.LGet("bash")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("first"), []byte("second"), []byte("third")}, list)

	n, err := tbl.LLen("bash")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	last, err := tbl.LPop("bash")
	require.NoError(t, err)
	assert.Equal(t, []byte("third"), last)

	require.NoError(t, tbl.LClear("bash"))
	list, err = tbl.LGet("bash")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = tbl.LPop("bash")
	assert.ErrorIs(t, err, ErrNil)
	assert.ErrorIs(t, tbl.LPush("missing", []byte("x")), ErrNil)
	assert.ErrorIs(t, tbl.Set("k", nil), ErrWrongType)
}

func TestListTableConcurrentPush(t *testing.T) {
	tbl := newTable("pkgs:comments", KindList)
	require.NoError(t, tbl.LSet("k"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, tbl.LPush("k", []byte(fmt.Sprint(i))))
		}(i)
	}
	wg.Wait()

	n, err := tbl.LLen("k")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), n)
}
