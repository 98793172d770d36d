package query

import (
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dbBench/lib/db"
	dbutil "github.com/ValentinKolb/dbBench/lib/db/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadQuery(t *testing.T) {
	q, err := readQuery([]string{"HGETALL", "pkgs:yay"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "HGETALL pkgs:yay", q)

	q, err = readQuery([]string{"-"}, strings.NewReader("SELECT * FROM pkgs;\n"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM pkgs;", q)

	_, err = readQuery([]string{"-"}, strings.NewReader("  \n"))
	assert.Error(t, err)
}

func TestSummarizePercentiles(t *testing.T) {
	recorder := dbutil.NewRecorder()
	for _, ms := range []int{4, 1, 3, 2} {
		recorder.Add(time.Duration(ms) * time.Millisecond)
	}

	s := summarize(db.ImplRedis, "PING", recorder)
	assert.Equal(t, db.ImplRedis, s.Backend)
	assert.Equal(t, 4, s.Stats.Count)
	assert.Equal(t, map[string]time.Duration{
		"p50": 2500 * time.Microsecond,
		"p90": 4 * time.Millisecond,
		"p99": 4 * time.Millisecond,
	}, s.Percentiles)
}
