package surreal

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/ValentinKolb/dbBench/lib/db"
	dbtesting "github.com/ValentinKolb/dbBench/lib/db/testing"
	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// call is one recorded query
type call struct {
	sql  string
	vars map[string]any
}

// fakeConn answers queries with canned statements and records them
type fakeConn struct {
	mu     sync.Mutex
	calls  []call
	closed bool
	// respond returns the statements (or a transport error) for a query
	respond func(sql string) ([]statement, error)
}

func (f *fakeConn) Query(_ context.Context, sql string, vars map[string]any) ([]statement, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{sql: sql, vars: vars})
	f.mu.Unlock()
	if f.respond == nil {
		return []statement{ok(nil)}, nil
	}
	return f.respond(sql)
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConn) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeConn) queries() []string {
	var out []string
	for _, c := range f.recorded() {
		out = append(out, c.sql)
	}
	return out
}

func encode(v any) cbor.RawMessage {
	b, err := cbor.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func ok(result any) statement {
	return statement{Status: "OK", Result: encode(result)}
}

func failed(msg string) statement {
	return statement{Status: "ERR", Result: encode(msg)}
}

func newFake(respond func(sql string) ([]statement, error)) (*DB, *fakeConn) {
	fake := &fakeConn{respond: respond}
	return newWithConn(fake), fake
}

func one(s statement) func(string) ([]statement, error) {
	return func(string) ([]statement, error) { return []statement{s}, nil }
}

func TestUnsupportedFieldSkipsBackend(t *testing.T) {
	d, fake := newFake(nil)

	_, err := d.SortPkgsByFieldWithLimit(context.Background(), "basic.name; REMOVE TABLE pkgs", 0, 10)
	assert.ErrorIs(t, err, db.ErrUnsupportedField)
	assert.Empty(t, fake.recorded())
}

func TestSortQuery(t *testing.T) {
	d, fake := newFake(one(ok([]map[string]any{
		{"name": "delta", "key": 40},
		{"name": "alpha", "key": 30},
	})))

	res, err := d.SortPkgsByFieldWithLimit(context.Background(), model.FieldVotes, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"delta", "alpha"}, res.Result)

	calls := fake.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t,
		"SELECT basic.name AS name, basic.votes AS key FROM pkgs ORDER BY key DESC, name DESC LIMIT $limit START $start;",
		calls[0].sql)
	assert.Equal(t, map[string]any{"limit": 2, "start": 1}, calls[0].vars)

	// an empty window never reaches the server
	res, err = d.SortPkgsByFieldWithLimit(context.Background(), model.FieldVotes, 3, 3)
	require.NoError(t, err)
	assert.Empty(t, res.Result)
	assert.Len(t, fake.recorded(), 1)
}

func TestMostVoted(t *testing.T) {
	want := dbtesting.FixtureByName("delta").Basic
	d, _ := newFake(one(ok([]ranked{{Name: "delta", Basic: want}})))

	res, err := d.GetMostVotedPkgs(context.Background(), 1)
	require.NoError(t, err)
	if diff := cmp.Diff([]model.BasicPackageData{want}, res.Result); diff != "" {
		t.Errorf("most voted mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertFallsBackToUpdate(t *testing.T) {
	d, fake := newFake(func(sql string) ([]statement, error) {
		if strings.HasPrefix(sql, "CREATE") {
			return []statement{failed("Database record `pkgs:alpha` already exists")}, nil
		}
		return []statement{ok([]any{map[string]any{}})}, nil
	})

	pkg := dbtesting.FixtureByName("alpha")
	_, err := d.InsertPkg(context.Background(), pkg)
	require.NoError(t, err)

	calls := fake.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "CREATE type::thing($tb, $name) CONTENT $doc;", calls[0].sql)
	assert.Equal(t, "UPDATE type::thing($tb, $name) CONTENT $doc;", calls[1].sql)

	pkg.Normalize()
	assert.Equal(t, "pkgs", calls[1].vars["tb"])
	assert.Equal(t, "alpha", calls[1].vars["name"])
	if diff := cmp.Diff(document(pkg), calls[1].vars["doc"]); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertPropagatesOtherErrors(t *testing.T) {
	d, fake := newFake(one(failed("Found NONE for field basic")))

	_, err := d.InsertPkg(context.Background(), dbtesting.FixtureByName("bravo"))
	require.ErrorIs(t, err, db.ErrQuery)
	assert.Contains(t, err.Error(), "Found NONE for field basic")
	assert.Len(t, fake.recorded(), 1)
}

func TestGetPkg(t *testing.T) {
	want := dbtesting.FixtureByName("bravo")
	d, fake := newFake(nil)
	fake.respond = func(string) ([]statement, error) {
		calls := fake.recorded()
		if calls[len(calls)-1].vars["name"] == "bravo" {
			return []statement{ok([]document{document(want)})}, nil
		}
		return []statement{ok([]any{})}, nil
	}

	res, err := d.GetPkg(context.Background(), "bravo")
	require.NoError(t, err)
	if diff := cmp.Diff(want, res.Result); diff != "" {
		t.Errorf("package mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, res.Result.Additional.Keywords)

	_, err = d.GetPkg(context.Background(), "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestOccurrences(t *testing.T) {
	d, fake := newFake(one(ok([]map[string]any{
		{"dependencies": []model.PackageDependency{
			{Group: "depends", Packages: []string{"rust", "glibc"}},
			{Group: "makedepends", Packages: []string{"rust"}},
		}},
		{"dependencies": []model.PackageDependency{{Group: "depends", Packages: []string{"rust"}}}},
		{"dependencies": []model.PackageDependency{}},
	})))

	res, err := d.GetPackagesOccurrencesInDeps(context.Background(), []string{"rust", "go"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"rust": 2, "go": 0}, res.Result)
	assert.Equal(t, []string{"SELECT dependencies FROM pkgs;"}, fake.queries())
}

func TestRemoveCommentsDoesNotCreate(t *testing.T) {
	d, fake := newFake(one(ok([]any{})))

	_, err := d.RemoveComments(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"UPDATE type::thing($tb, $name) SET comments = [] WHERE basic != NONE;",
	}, fake.queries())
	assert.Equal(t, "missing", fake.recorded()[0].vars["name"])
}

func TestCustomQuery(t *testing.T) {
	d, _ := newFake(func(sql string) ([]statement, error) {
		switch {
		case strings.HasPrefix(sql, "INFO"):
			return []statement{ok(map[string]any{"tables": map[string]any{}})}, nil
		case strings.HasPrefix(sql, "SELECT"):
			return []statement{ok([]int{1}), ok([]int{2})}, nil
		case strings.HasPrefix(sql, "BROKEN"):
			return nil, db.NewError(db.ErrKQuery, db.ImplSurreal, "", errors.New("Parse error: unexpected token"))
		default:
			return []statement{ok(1), failed("boom")}, nil
		}
	})
	ctx := context.Background()

	res, err := d.RunCustomQuery(ctx, "INFO FOR DB;")
	require.NoError(t, err)
	assert.Equal(t, `{"tables":{}}`, res.Result)

	res, err = d.RunCustomQuery(ctx, "SELECT 1; SELECT 2;")
	require.NoError(t, err)
	assert.Equal(t, `[[1],[2]]`, res.Result)

	_, err = d.RunCustomQuery(ctx, "BROKEN")
	require.ErrorIs(t, err, db.ErrQuery)
	assert.Contains(t, err.Error(), "Parse error")

	_, err = d.GetCustomQueryTime(ctx, "RETURN 1; THROW")
	require.ErrorIs(t, err, db.ErrQuery)
	assert.Contains(t, err.Error(), "boom")

	_, err = d.RunCustomQuery(ctx, "  ")
	assert.ErrorIs(t, err, db.ErrQuery)
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(io.EOF), db.ErrConnection)
	assert.ErrorIs(t, classify(context.DeadlineExceeded), db.ErrConnection)
	assert.ErrorIs(t, classify(errors.New("There was a problem with the database")), db.ErrQuery)
}

func TestConnectionErrorsPassThrough(t *testing.T) {
	d, fake := newFake(func(string) ([]statement, error) {
		return nil, classify(io.ErrUnexpectedEOF)
	})

	_, err := d.GetPkg(context.Background(), "alpha")
	assert.ErrorIs(t, err, db.ErrConnection)

	require.NoError(t, d.Close())
	assert.True(t, fake.closed)
}
