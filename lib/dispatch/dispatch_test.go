package dispatch

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Fake adapter
// --------------------------------------------------------------------------

// fakeDB answers every operation with err (if set) and tracks concurrent use
type fakeDB struct {
	impl     db.Implementation
	err      error
	hold     time.Duration
	inflight atomic.Int32
	overlap  atomic.Bool
	calls    atomic.Int32
	closed   atomic.Bool
	closeErr error
}

func (f *fakeDB) enter() func() {
	f.calls.Add(1)
	if f.inflight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	time.Sleep(f.hold)
	return func() { f.inflight.Add(-1) }
}

func (f *fakeDB) RunCustomQuery(_ context.Context, query string) (db.TimedResult[string], error) {
	defer f.enter()()
	return db.Timed(string(f.impl)+":"+query, time.Millisecond), f.err
}

func (f *fakeDB) GetCustomQueryTime(_ context.Context, _ string) (time.Duration, error) {
	defer f.enter()()
	return 2 * time.Millisecond, f.err
}

func (f *fakeDB) SortPkgsByFieldWithLimit(_ context.Context, _ string, _, _ uint32) (db.TimedResult[[]string], error) {
	defer f.enter()()
	return db.Timed([]string{"b", "a"}, time.Millisecond), f.err
}

func (f *fakeDB) GetMostVotedPkgs(_ context.Context, _ uint32) (db.TimedResult[[]model.BasicPackageData], error) {
	defer f.enter()()
	return db.Timed([]model.BasicPackageData{{Name: "a"}}, time.Millisecond), f.err
}

func (f *fakeDB) InsertPkg(_ context.Context, _ model.PackageData) (db.TimedResult[struct{}], error) {
	defer f.enter()()
	return db.Timed(struct{}{}, time.Millisecond), f.err
}

func (f *fakeDB) GetPkg(_ context.Context, name string) (db.TimedResult[model.PackageData], error) {
	defer f.enter()()
	return db.Timed(model.PackageData{Basic: model.BasicPackageData{Name: name}}, time.Millisecond), f.err
}

func (f *fakeDB) RemoveComments(_ context.Context, _ string) (db.TimedResult[struct{}], error) {
	defer f.enter()()
	return db.Timed(struct{}{}, time.Millisecond), f.err
}

func (f *fakeDB) GetPackagesOccurrencesInDeps(_ context.Context, names []string) (db.TimedResult[map[string]int], error) {
	defer f.enter()()
	res := make(map[string]int, len(names))
	for _, n := range names {
		res[n] = 1
	}
	return db.Timed(res, time.Millisecond), f.err
}

func (f *fakeDB) Close() error {
	f.closed.Store(true)
	return f.closeErr
}

// fakeFactory hands out fresh fakes and remembers them per backend
type fakeFactory struct {
	mu      sync.Mutex
	built   map[db.Implementation][]*fakeDB
	fail    error
	prepare func(*fakeDB)
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{built: make(map[db.Implementation][]*fakeDB)}
}

func (f *fakeFactory) build(_ context.Context, impl db.Implementation) (db.PkgDB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	fake := &fakeDB{impl: impl}
	if f.prepare != nil {
		f.prepare(fake)
	}
	f.built[impl] = append(f.built[impl], fake)
	return fake, nil
}

func (f *fakeFactory) count(impl db.Implementation) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built[impl])
}

func (f *fakeFactory) last(impl db.Implementation) *fakeDB {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.built[impl]
	return list[len(list)-1]
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestAdaptersAreBuiltLazilyOnce(t *testing.T) {
	factory := newFakeFactory()
	d := NewWithFactory(factory.build)
	defer d.Close()
	ctx := context.Background()

	assert.False(t, d.Connected(db.ImplRedis))
	assert.Equal(t, 0, factory.count(db.ImplRedis))

	res, err := d.RunCustomQuery(ctx, db.ImplRedis, "PING")
	require.NoError(t, err)
	assert.Equal(t, "redis:PING", res.Result)

	_, err = d.GetPkg(ctx, db.ImplRedis, "alpha")
	require.NoError(t, err)

	assert.Equal(t, 1, factory.count(db.ImplRedis))
	assert.Equal(t, int32(2), factory.last(db.ImplRedis).calls.Load())
	assert.True(t, d.Connected(db.ImplRedis))
	assert.Equal(t, 0, factory.count(db.ImplSkytable))
}

func TestRoutesToRequestedBackend(t *testing.T) {
	factory := newFakeFactory()
	d := NewWithFactory(factory.build)
	defer d.Close()

	for _, impl := range db.Implementations {
		res, err := d.RunCustomQuery(context.Background(), impl, "q")
		require.NoError(t, err)
		assert.Equal(t, string(impl)+":q", res.Result)
	}
	for _, impl := range db.Implementations {
		assert.Equal(t, 1, factory.count(impl), impl)
	}
}

func TestUnknownBackend(t *testing.T) {
	factory := newFakeFactory()
	d := NewWithFactory(factory.build)
	defer d.Close()

	_, err := d.GetPkg(context.Background(), db.Implementation("mongodb"), "alpha")
	require.Error(t, err)
	assert.False(t, d.Connected(db.Implementation("mongodb")))
	assert.Empty(t, factory.built)
}

func TestConstructionFailureIsConnectionError(t *testing.T) {
	factory := newFakeFactory()
	factory.fail = errors.New("dial tcp 127.0.0.1:6379: connection refused")
	d := NewWithFactory(factory.build)
	defer d.Close()
	ctx := context.Background()

	_, err := d.GetPkg(ctx, db.ImplRedis, "alpha")
	require.ErrorIs(t, err, db.ErrConnection)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, d.Connected(db.ImplRedis))

	// the next call tries again
	factory.fail = nil
	_, err = d.GetPkg(ctx, db.ImplRedis, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, factory.count(db.ImplRedis))
}

func TestConnectionErrorEvictsAdapter(t *testing.T) {
	factory := newFakeFactory()
	d := NewWithFactory(factory.build)
	defer d.Close()
	ctx := context.Background()

	_, err := d.GetPkg(ctx, db.ImplSkytable, "alpha")
	require.NoError(t, err)
	first := factory.last(db.ImplSkytable)
	first.err = db.ConnectionError(db.ImplSkytable, errors.New("broken pipe"))

	_, err = d.GetPkg(ctx, db.ImplSkytable, "alpha")
	require.ErrorIs(t, err, db.ErrConnection)
	assert.True(t, first.closed.Load())
	assert.False(t, d.Connected(db.ImplSkytable))

	_, err = d.GetPkg(ctx, db.ImplSkytable, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, factory.count(db.ImplSkytable))
}

func TestOtherErrorsKeepAdapter(t *testing.T) {
	factory := newFakeFactory()
	factory.prepare = func(f *fakeDB) {
		f.err = db.QueryError(f.impl, "ERR unknown command")
	}
	d := NewWithFactory(factory.build)
	defer d.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := d.RunCustomQuery(ctx, db.ImplRedis, "NOPE")
		require.ErrorIs(t, err, db.ErrQuery)
	}
	assert.Equal(t, 1, factory.count(db.ImplRedis))
	assert.False(t, factory.last(db.ImplRedis).closed.Load())
}

func TestUnsupportedFieldDoesNotConnect(t *testing.T) {
	factory := newFakeFactory()
	d := NewWithFactory(factory.build)
	defer d.Close()

	_, err := d.SortPkgsByFieldWithLimit(context.Background(), db.ImplSurreal, "bogus_field", 0, 10)
	require.ErrorIs(t, err, db.ErrUnsupportedField)
	assert.Equal(t, 0, factory.count(db.ImplSurreal))

	res, err := d.SortPkgsByFieldWithLimit(context.Background(), db.ImplSurreal, model.FieldVotes, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, res.Result)
}

func TestCallsOnOneBackendAreSerialized(t *testing.T) {
	factory := newFakeFactory()
	factory.prepare = func(f *fakeDB) { f.hold = 2 * time.Millisecond }
	d := NewWithFactory(factory.build)
	defer d.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.GetPackagesOccurrencesInDeps(context.Background(), db.ImplRedis, []string{"rust"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	fake := factory.last(db.ImplRedis)
	assert.Equal(t, 1, factory.count(db.ImplRedis))
	assert.Equal(t, int32(16), fake.calls.Load())
	assert.False(t, fake.overlap.Load(), "calls on one adapter overlapped")
}

func TestBackendsRunConcurrently(t *testing.T) {
	factory := newFakeFactory()
	factory.prepare = func(f *fakeDB) { f.hold = 200 * time.Millisecond }
	d := NewWithFactory(factory.build)
	defer d.Close()

	start := time.Now()
	var wg sync.WaitGroup
	for _, impl := range db.Implementations {
		wg.Add(1)
		go func(impl db.Implementation) {
			defer wg.Done()
			_, err := d.RemoveComments(context.Background(), impl, "alpha")
			assert.NoError(t, err)
		}(impl)
	}
	wg.Wait()

	// three sequential calls would need at least 600ms
	assert.Less(t, time.Since(start), 550*time.Millisecond)
}

func TestWaitingRespectsContext(t *testing.T) {
	factory := newFakeFactory()
	factory.prepare = func(f *fakeDB) { f.hold = 300 * time.Millisecond }
	d := NewWithFactory(factory.build)
	defer d.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.InsertPkg(context.Background(), db.ImplRedis, model.PackageData{})
	}()
	// let the first call take the slot
	require.Eventually(t, func() bool { return factory.count(db.ImplRedis) == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.GetMostVotedPkgs(ctx, db.ImplRedis, 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	<-done
}

func TestCloseClosesAdapters(t *testing.T) {
	factory := newFakeFactory()
	factory.prepare = func(f *fakeDB) {
		if f.impl == db.ImplSurreal {
			f.closeErr = errors.New("already gone")
		}
	}
	d := NewWithFactory(factory.build)
	ctx := context.Background()

	for _, impl := range db.Implementations {
		_, err := d.GetCustomQueryTime(ctx, impl, "q")
		require.NoError(t, err)
	}

	err := d.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already gone")
	for _, impl := range db.Implementations {
		assert.True(t, factory.last(impl).closed.Load(), impl)
	}
	assert.NoError(t, d.Close())

	_, err = d.GetPkg(ctx, db.ImplRedis, "alpha")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMetricsExport(t *testing.T) {
	factory := newFakeFactory()
	d := NewWithFactory(factory.build)
	defer d.Close()
	ctx := context.Background()

	_, err := d.GetPkg(ctx, db.ImplRedis, "alpha")
	require.NoError(t, err)
	_, err = d.GetPkg(ctx, db.ImplRedis, "bravo")
	require.NoError(t, err)
	_, err = d.SortPkgsByFieldWithLimit(ctx, db.ImplRedis, "nope", 0, 1)
	require.Error(t, err)

	var buf bytes.Buffer
	d.WriteMetrics(&buf)
	out := buf.String()
	assert.Contains(t, out, `dbbench_operation_duration_seconds_count{backend="redis",operation="get_pkg"} 2`)
	assert.Contains(t, out, `dbbench_operation_errors_total{backend="redis",operation="sort",kind="UnsupportedField"} 1`)
	assert.Contains(t, out, `dbbench_connects_total{backend="redis"} 1`)
}
