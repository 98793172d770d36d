package util

import (
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basics() []model.BasicPackageData {
	return []model.BasicPackageData{
		{Name: "b", Votes: 10, Popularity: 1.5, Version: "1.0"},
		{Name: "a", Votes: 30, Popularity: 0.5, Version: "2.0"},
		{Name: "d", Votes: 20, Popularity: 9.5, Version: "10.0"},
		{Name: "c", Votes: 20, Popularity: 3.0, Version: "0.1"},
	}
}

func TestSortBasicByField(t *testing.T) {
	cases := map[string][]string{
		"votes":      {"a", "d", "c", "b"}, // tie between c and d broken by name, descending
		"popularity": {"d", "c", "b", "a"},
		"version":    {"a", "d", "b", "c"}, // lexicographic: "2.0" > "10.0" > "1.0" > "0.1"
		"name":       {"d", "c", "b", "a"},
	}
	for field, want := range cases {
		t.Run(field, func(t *testing.T) {
			pkgs := basics()
			require.NoError(t, SortBasicByField(pkgs, field))
			assert.Equal(t, want, Names(pkgs))
		})
	}
}

func TestSortBasicByFieldUnsupported(t *testing.T) {
	pkgs := basics()
	err := SortBasicByField(pkgs, "bogus_field")
	assert.True(t, errors.Is(err, db.ErrUnsupportedField))
	assert.Equal(t, basics(), pkgs, "input must not be touched")
}

func TestPage(t *testing.T) {
	s := []int{0, 1, 2, 3, 4}
	assert.Equal(t, []int{1, 2}, Page(s, 1, 3))
	assert.Equal(t, []int{3, 4}, Page(s, 3, 100))
	assert.Empty(t, Page(s, 7, 9))
	assert.Empty(t, Page(s, 3, 1))
}

func TestTopN(t *testing.T) {
	top, err := TopN(basics(), "votes", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d"}, Names(top))
}

func TestOccurrenceCounter(t *testing.T) {
	c := NewOccurrenceCounter([]string{"rust", "go"})
	c.AddPackage([]string{"rust", "glibc", "rust"})
	c.AddPackage([]string{"sudo", "rust"})
	c.AddPackage(nil)
	assert.Equal(t, map[string]int{"rust": 2, "go": 0}, c.Result())
}

func TestStats(t *testing.T) {
	s := NewStats([]time.Duration{2 * time.Millisecond, 4 * time.Millisecond})
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 3*time.Millisecond, s.Mean)
	assert.Equal(t, 2*time.Millisecond, s.Min)
	assert.Equal(t, 4*time.Millisecond, s.Max)
	assert.Equal(t, time.Millisecond, s.StdDeviation)
	assert.Equal(t, Stats{}, NewStats(nil))
}
