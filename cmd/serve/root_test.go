package serve

import (
	"testing"

	"github.com/ValentinKolb/dbBench/lib/db/engines/skytable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTables(t *testing.T) {
	tables, err := parseTables(formatTables(skytable.Tables))
	require.NoError(t, err)
	assert.Equal(t, skytable.Tables, tables)

	tables, err = parseTables(" a=binstr ; b = keymap(str,list<binstr>);")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "binstr", "b": "keymap(str,list<binstr>)"}, tables)

	tables, err = parseTables("")
	require.NoError(t, err)
	assert.Empty(t, tables)

	for _, bad := range []string{"a", "=binstr", "a="} {
		_, err := parseTables(bad)
		assert.Error(t, err, bad)
	}
}
