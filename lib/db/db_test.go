package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimedResultAccumulates(t *testing.T) {
	r := Timed([]string{"a"}, 2*time.Millisecond)
	r.Add(3 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, r.Elapsed())
}

func TestDurationJSON(t *testing.T) {
	r := Timed("ok", 1500*time.Millisecond)
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"ok","duration":{"secs":1,"nanos":500000000}}`, string(b))

	var back TimedResult[string]
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r, back)
}

func TestValidateRankingField(t *testing.T) {
	for _, f := range RankingFields {
		assert.NoError(t, ValidateRankingField(f))
	}
	err := ValidateRankingField("bogus_field")
	assert.True(t, errors.Is(err, ErrUnsupportedField))
	assert.Equal(t, ErrKUnsupportedField, KindOf(err))
}

func TestWindow(t *testing.T) {
	off, n := Window(2, 5)
	assert.Equal(t, 2, off)
	assert.Equal(t, 3, n)

	_, n = Window(5, 2)
	assert.Equal(t, 0, n)
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", NotFoundError(ImplRedis, "x"))
	assert.Equal(t, ErrKNotFound, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrQuery))

	_, err := model.DecodeBasic(map[string]string{})
	assert.Equal(t, ErrKMissingSourceData, KindOf(err))
	assert.Equal(t, ErrKMissingSourceData, KindOf(DecodeError(ImplRedis, err)))

	assert.Equal(t, ErrKUnknown, KindOf(errors.New("boom")))
}

func TestParseImplementation(t *testing.T) {
	impl, err := ParseImplementation("skytable")
	require.NoError(t, err)
	assert.Equal(t, ImplSkytable, impl)

	_, err = ParseImplementation("mongo")
	assert.Error(t, err)
}
