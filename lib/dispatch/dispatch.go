package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/multierr"
)

var Logger = logger.GetLogger("dispatch")

// ErrClosed is returned by all operations after Close.
var ErrClosed = errors.New("dispatcher is closed")

// --------------------------------------------------------------------------
// Slot
// --------------------------------------------------------------------------

// slot guards the adapter of one backend. The semaphore serializes all calls
// on the adapter, a nil adapter is (re)built by the next caller.
type slot struct {
	sem     chan struct{}
	adapter db.PkgDB
}

func newSlot() *slot {
	return &slot{sem: make(chan struct{}, 1)}
}

// lock waits for the slot or the end of ctx.
func (s *slot) lock(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *slot) unlock() {
	<-s.sem
}

// --------------------------------------------------------------------------
// Dispatcher
// --------------------------------------------------------------------------

// Dispatcher routes operations to the adapter of the requested backend.
// Adapters are built on first use and kept until they fail with a
// ConnectionError or the dispatcher is closed.
//
// Thread-safe: calls on the same backend are serialized, calls on different
// backends run concurrently.
type Dispatcher struct {
	factory Factory
	slots   *xsync.MapOf[db.Implementation, *slot]
	metrics *recorder
	closed  atomic.Bool
}

// New creates a dispatcher connecting the real adapters with cfg.
func New(cfg Config) *Dispatcher {
	return NewWithFactory(cfg.Factory())
}

// NewWithFactory creates a dispatcher that builds adapters with factory.
func NewWithFactory(factory Factory) *Dispatcher {
	return &Dispatcher{
		factory: factory,
		slots:   xsync.NewMapOf[db.Implementation, *slot](),
		metrics: newRecorder(),
	}
}

// Connected reports whether an adapter for impl is currently held.
func (d *Dispatcher) Connected(impl db.Implementation) bool {
	s, ok := d.slots.Load(impl)
	if !ok {
		return false
	}
	if err := s.lock(context.Background()); err != nil {
		return false
	}
	defer s.unlock()
	return s.adapter != nil
}

// Close closes all adapters. Further operations fail with ErrClosed.
func (d *Dispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	d.slots.Range(func(impl db.Implementation, s *slot) bool {
		_ = s.lock(context.Background())
		if s.adapter != nil {
			if cerr := s.adapter.Close(); cerr != nil {
				err = multierr.Append(err, db.NewError(db.ErrKConnection, impl, "close", cerr))
			}
			s.adapter = nil
		}
		s.unlock()
		return true
	})
	return err
}

// acquire returns the locked slot of impl with a live adapter.
// The caller must unlock the slot.
func (d *Dispatcher) acquire(ctx context.Context, impl db.Implementation) (*slot, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if _, err := db.ParseImplementation(string(impl)); err != nil {
		return nil, err
	}

	s, _ := d.slots.LoadOrCompute(impl, newSlot)
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	// Close may have run while we waited
	if d.closed.Load() {
		s.unlock()
		return nil, ErrClosed
	}
	if s.adapter != nil {
		return s, nil
	}

	adapter, err := d.factory(ctx, impl)
	if err != nil {
		s.unlock()
		if db.KindOf(err) != db.ErrKConnection {
			err = db.ConnectionError(impl, err)
		}
		Logger.Warningf("Connecting to %s failed: %v", impl, err)
		return nil, err
	}
	Logger.Infof("Connected to %s", impl)
	d.metrics.connected(impl)
	s.adapter = adapter
	return s, nil
}

// release unlocks the slot. A connection error evicts the adapter so the
// next call reconnects.
func (d *Dispatcher) release(impl db.Implementation, s *slot, err error) {
	defer s.unlock()
	if err == nil || db.KindOf(err) != db.ErrKConnection {
		return
	}
	Logger.Warningf("Evicting %s adapter after connection error: %v", impl, err)
	if cerr := s.adapter.Close(); cerr != nil {
		Logger.Debugf("Closing evicted %s adapter: %v", impl, cerr)
	}
	s.adapter = nil
	d.metrics.evicted(impl)
}

// call runs fn on the adapter of impl and records the reported duration.
func call[T any](ctx context.Context, d *Dispatcher, impl db.Implementation, op string, fn func(db.PkgDB) (T, time.Duration, error)) (T, error) {
	var zero T
	s, err := d.acquire(ctx, impl)
	if err != nil {
		d.metrics.failed(impl, op, err)
		return zero, err
	}

	res, elapsed, err := fn(s.adapter)
	d.release(impl, s, err)
	if err != nil {
		d.metrics.failed(impl, op, err)
		return zero, err
	}
	d.metrics.observe(impl, op, elapsed)
	return res, nil
}

// timed adapts a TimedResult operation for call
func timed[T any](r db.TimedResult[T], err error) (db.TimedResult[T], time.Duration, error) {
	return r, r.Elapsed(), err
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

func (d *Dispatcher) RunCustomQuery(ctx context.Context, impl db.Implementation, query string) (db.TimedResult[string], error) {
	return call(ctx, d, impl, OpCustomQuery, func(a db.PkgDB) (db.TimedResult[string], time.Duration, error) {
		return timed[string](a.RunCustomQuery(ctx, query))
	})
}

func (d *Dispatcher) GetCustomQueryTime(ctx context.Context, impl db.Implementation, query string) (time.Duration, error) {
	return call(ctx, d, impl, OpCustomQueryTime, func(a db.PkgDB) (time.Duration, time.Duration, error) {
		elapsed, err := a.GetCustomQueryTime(ctx, query)
		return elapsed, elapsed, err
	})
}

func (d *Dispatcher) SortPkgsByFieldWithLimit(ctx context.Context, impl db.Implementation, field string, start, end uint32) (db.TimedResult[[]string], error) {
	// rejected fields never reach (or connect) the backend
	if err := db.ValidateRankingField(field); err != nil {
		d.metrics.failed(impl, OpSort, err)
		return db.TimedResult[[]string]{}, err
	}
	return call(ctx, d, impl, OpSort, func(a db.PkgDB) (db.TimedResult[[]string], time.Duration, error) {
		return timed[[]string](a.SortPkgsByFieldWithLimit(ctx, field, start, end))
	})
}

func (d *Dispatcher) GetMostVotedPkgs(ctx context.Context, impl db.Implementation, n uint32) (db.TimedResult[[]model.BasicPackageData], error) {
	return call(ctx, d, impl, OpMostVoted, func(a db.PkgDB) (db.TimedResult[[]model.BasicPackageData], time.Duration, error) {
		return timed[[]model.BasicPackageData](a.GetMostVotedPkgs(ctx, n))
	})
}

func (d *Dispatcher) InsertPkg(ctx context.Context, impl db.Implementation, pkg model.PackageData) (db.TimedResult[struct{}], error) {
	return call(ctx, d, impl, OpInsert, func(a db.PkgDB) (db.TimedResult[struct{}], time.Duration, error) {
		return timed[struct{}](a.InsertPkg(ctx, pkg))
	})
}

func (d *Dispatcher) GetPkg(ctx context.Context, impl db.Implementation, name string) (db.TimedResult[model.PackageData], error) {
	return call(ctx, d, impl, OpGet, func(a db.PkgDB) (db.TimedResult[model.PackageData], time.Duration, error) {
		return timed[model.PackageData](a.GetPkg(ctx, name))
	})
}

func (d *Dispatcher) RemoveComments(ctx context.Context, impl db.Implementation, name string) (db.TimedResult[struct{}], error) {
	return call(ctx, d, impl, OpRemoveComments, func(a db.PkgDB) (db.TimedResult[struct{}], time.Duration, error) {
		return timed[struct{}](a.RemoveComments(ctx, name))
	})
}

func (d *Dispatcher) GetPackagesOccurrencesInDeps(ctx context.Context, impl db.Implementation, names []string) (db.TimedResult[map[string]int], error) {
	return call(ctx, d, impl, OpOccurrences, func(a db.PkgDB) (db.TimedResult[map[string]int], time.Duration, error) {
		return timed[map[string]int](a.GetPackagesOccurrencesInDeps(ctx, names))
	})
}
