package skytable

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/db/util"
	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/ValentinKolb/dbBench/rpc/client"
	"github.com/ValentinKolb/dbBench/rpc/common"
	"github.com/ValentinKolb/dbBench/rpc/skyhash"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("db/skytable")

// Keyspace and table names
const (
	// DefaultTable is the table every connection starts in
	DefaultTable = "default:default"

	Keyspace          = "pkgs"
	TableBasic        = "pkgs:basic"
	TableAdditional   = "pkgs:additional"
	TableComments     = "pkgs:comments"
	TableDependencies = "pkgs:dependencies"
)

// Tables maps every table to its keymap declaration.
var Tables = map[string]string{
	TableBasic:        "keymap(str,binstr)",
	TableAdditional:   "keymap(str,binstr)",
	TableComments:     "keymap(str,list<binstr>)",
	TableDependencies: "keymap(str,list<binstr>)",
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

type Options struct {
	// Addr is the host:port of the server
	Addr string
	// DialTimeout bounds connection establishment
	DialTimeout time.Duration
	// Timeout bounds a single round trip if the context carries no deadline
	Timeout time.Duration
	// CreateTables creates the package tables on connect
	CreateTables bool
}

// DefaultOptions returns options for a local server on the default port.
func DefaultOptions() Options {
	return Options{
		Addr:         "127.0.0.1:2003",
		DialTimeout:  5 * time.Second,
		Timeout:      30 * time.Second,
		CreateTables: true,
	}
}

func (o Options) String() string {
	return fmt.Sprintf("skytable{addr=%s dial_timeout=%s timeout=%s create_tables=%t}",
		o.Addr, o.DialTimeout, o.Timeout, o.CreateTables)
}

func (o Options) clientConfig() common.ClientConfig {
	return common.ClientConfig{
		Endpoint:          o.Addr,
		DialTimeoutSecond: int(o.DialTimeout / time.Second),
		TimeoutSecond:     int(o.Timeout / time.Second),
		TCPNoDelay:        true,
	}
}

// --------------------------------------------------------------------------
// Adapter
// --------------------------------------------------------------------------

// conn is the subset of *client.Client used by the adapter
type conn interface {
	Run(ctx context.Context, q *skyhash.Query) (skyhash.Element, error)
	Generation() uint64
	Close() error
}

// DB stores packages in four tables of a Skyhash server. Basic and additional
// data are binary blobs, comments and dependencies are lists of blobs.
//
// Every keyed action runs after a USE of its table. The adapter remembers the
// active table so repeated actions on the same table skip the USE. Custom
// queries always run in the user's table: DefaultTable until a custom "USE"
// selects another one.
type DB struct {
	conn conn

	// active table of the current connection generation
	active    string
	activeGen uint64

	// table custom queries run in
	userTable string
}

// New connects to the server and, if configured, creates the package tables.
func New(ctx context.Context, opts Options) (*DB, error) {
	c, err := client.Dial(ctx, opts.clientConfig())
	if err != nil {
		return nil, db.ConnectionError(db.ImplSkytable, err)
	}
	d := newWithConn(c)
	if opts.CreateTables {
		if err := d.EnsureTables(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}
	Logger.Infof("Connected: %s", opts)
	return d, nil
}

func newWithConn(c conn) *DB {
	return &DB{conn: c, userTable: DefaultTable}
}

// EnsureTables creates the package keyspace and tables, existing ones are kept.
func (d *DB) EnsureTables(ctx context.Context) error {
	var elapsed time.Duration
	_, err := d.exec(ctx, &elapsed, skyhash.NewQuery("CREATE", "KEYSPACE", Keyspace))
	if err != nil && !skyhash.IsCode(err, skyhash.CodeAlreadyExists) {
		return err
	}
	for _, name := range []string{TableBasic, TableAdditional, TableComments, TableDependencies} {
		_, err := d.exec(ctx, &elapsed, skyhash.NewQuery("CREATE", "TABLE", name, Tables[name]))
		if err != nil && !skyhash.IsCode(err, skyhash.CodeAlreadyExists) {
			return err
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// --------------------------------------------------------------------------
// Custom Queries
// --------------------------------------------------------------------------

func (d *DB) RunCustomQuery(ctx context.Context, query string) (db.TimedResult[string], error) {
	el, elapsed, err := d.customQuery(ctx, query)
	if err != nil {
		return db.TimedResult[string]{}, err
	}
	return db.Timed(el.Text(), elapsed), nil
}

func (d *DB) GetCustomQueryTime(ctx context.Context, query string) (time.Duration, error) {
	_, elapsed, err := d.customQuery(ctx, query)
	return elapsed, err
}

// customQuery runs a whitespace separated query in the user's table.
// Non-okay response codes are query errors.
func (d *DB) customQuery(ctx context.Context, query string) (skyhash.Element, time.Duration, error) {
	q := skyhash.ParseQuery(query)
	if q.Len() == 0 {
		return skyhash.Element{}, 0, db.QueryError(db.ImplSkytable, "empty query")
	}

	// restoring the user's table is setup, not part of the measurement
	var setup time.Duration
	if err := d.use(ctx, &setup, d.userTable); err != nil {
		// dropped by another client
		if skyhash.IsCode(err, skyhash.CodeContainerNotFound) {
			d.userTable = DefaultTable
		}
		return skyhash.Element{}, 0, err
	}

	var elapsed time.Duration
	el, err := d.exec(ctx, &elapsed, q)
	if err != nil {
		return skyhash.Element{}, elapsed, err
	}

	switch q.Action() {
	case "USE":
		if q.Len() == 2 {
			d.userTable = string(q.Args()[1])
			d.setActive(d.userTable)
		}
	case "DROP":
		// the server falls back to the default table if the active one is dropped
		d.active = ""
		if q.Len() == 3 && string(q.Args()[2]) == d.userTable {
			d.userTable = DefaultTable
		}
	}
	return el, elapsed, nil
}

// --------------------------------------------------------------------------
// Ranking
// --------------------------------------------------------------------------

func (d *DB) SortPkgsByFieldWithLimit(ctx context.Context, field string, start, end uint32) (db.TimedResult[[]string], error) {
	if err := db.ValidateRankingField(field); err != nil {
		return db.TimedResult[[]string]{}, err
	}

	pkgs, elapsed, err := d.allBasic(ctx)
	if err != nil {
		return db.TimedResult[[]string]{}, err
	}
	if err := util.SortBasicByField(pkgs, field); err != nil {
		return db.TimedResult[[]string]{}, err
	}
	return db.Timed(util.Names(util.Page(pkgs, start, end)), elapsed), nil
}

func (d *DB) GetMostVotedPkgs(ctx context.Context, n uint32) (db.TimedResult[[]model.BasicPackageData], error) {
	pkgs, elapsed, err := d.allBasic(ctx)
	if err != nil {
		return db.TimedResult[[]model.BasicPackageData]{}, err
	}
	top, err := util.TopN(pkgs, model.FieldVotes, n)
	if err != nil {
		return db.TimedResult[[]model.BasicPackageData]{}, err
	}
	return db.Timed(top, elapsed), nil
}

// allBasic fetches and decodes every basic record: DBSIZE, LSKEYS <size>, MGET.
func (d *DB) allBasic(ctx context.Context) ([]model.BasicPackageData, time.Duration, error) {
	var elapsed time.Duration

	keys, err := d.allKeys(ctx, &elapsed, TableBasic)
	if err != nil || len(keys) == 0 {
		return []model.BasicPackageData{}, elapsed, err
	}

	q := skyhash.NewQuery("MGET")
	for _, k := range keys {
		q.Arg(k)
	}
	el, err := d.exec(ctx, &elapsed, q)
	if err != nil {
		return nil, elapsed, err
	}

	pkgs := make([]model.BasicPackageData, 0, len(el.Items))
	for _, blob := range el.Items {
		// deleted between LSKEYS and MGET
		if blob == nil {
			continue
		}
		b, err := decodeBasic(blob)
		if err != nil {
			return nil, elapsed, db.DecodeError(db.ImplSkytable, err)
		}
		pkgs = append(pkgs, b)
	}
	return pkgs, elapsed, nil
}

// allKeys lists every key of table.
func (d *DB) allKeys(ctx context.Context, elapsed *time.Duration, table string) ([]string, error) {
	if err := d.use(ctx, elapsed, table); err != nil {
		return nil, err
	}
	size, err := d.exec(ctx, elapsed, skyhash.NewQuery("DBSIZE"))
	if err != nil {
		return nil, err
	}
	if size.Uint == 0 {
		return nil, nil
	}
	el, err := d.exec(ctx, elapsed, skyhash.NewQuery("LSKEYS", fmt.Sprint(size.Uint)))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(el.Items))
	for _, k := range el.Items {
		keys = append(keys, string(k))
	}
	return keys, nil
}

// --------------------------------------------------------------------------
// Packages
// --------------------------------------------------------------------------

func (d *DB) InsertPkg(ctx context.Context, pkg model.PackageData) (db.TimedResult[struct{}], error) {
	if err := pkg.Validate(); err != nil {
		return db.TimedResult[struct{}]{}, db.DecodeError(db.ImplSkytable, err)
	}
	name := pkg.Basic.Name

	comments := make([][]byte, len(pkg.Comments))
	for i, c := range pkg.Comments {
		comments[i] = encodeComment(c)
	}
	deps := make([][]byte, len(pkg.Dependencies))
	for i, dep := range pkg.Dependencies {
		deps[i] = encodeDependency(dep)
	}

	var elapsed time.Duration
	steps := []func() error{
		func() error { return d.upsert(ctx, &elapsed, TableBasic, name, encodeBasic(pkg.Basic)) },
		func() error { return d.upsert(ctx, &elapsed, TableAdditional, name, encodeAdditional(pkg.Additional)) },
		func() error { return d.replaceList(ctx, &elapsed, TableComments, name, comments) },
		func() error { return d.replaceList(ctx, &elapsed, TableDependencies, name, deps) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return db.TimedResult[struct{}]{}, err
		}
	}
	return db.Timed(struct{}{}, elapsed), nil
}

func (d *DB) GetPkg(ctx context.Context, name string) (db.TimedResult[model.PackageData], error) {
	var elapsed time.Duration

	basicBlob, err := d.get(ctx, &elapsed, TableBasic, name)
	if skyhash.IsCode(err, skyhash.CodeNil) {
		return db.TimedResult[model.PackageData]{}, db.NotFoundError(db.ImplSkytable, name)
	}
	if err != nil {
		return db.TimedResult[model.PackageData]{}, err
	}

	additionalBlob, err := d.get(ctx, &elapsed, TableAdditional, name)
	if skyhash.IsCode(err, skyhash.CodeNil) {
		return db.TimedResult[model.PackageData]{}, db.NewError(db.ErrKMissingSourceData, db.ImplSkytable,
			fmt.Sprintf("package %q has no additional data", name), nil)
	}
	if err != nil {
		return db.TimedResult[model.PackageData]{}, err
	}

	commentBlobs, err := d.getList(ctx, &elapsed, TableComments, name)
	if err != nil {
		return db.TimedResult[model.PackageData]{}, err
	}
	depBlobs, err := d.getList(ctx, &elapsed, TableDependencies, name)
	if err != nil {
		return db.TimedResult[model.PackageData]{}, err
	}

	// decoding is not part of the measurement
	pkg, err := decodePackage(basicBlob, additionalBlob, commentBlobs, depBlobs)
	if err != nil {
		return db.TimedResult[model.PackageData]{}, db.DecodeError(db.ImplSkytable, err)
	}
	return db.Timed(pkg, elapsed), nil
}

func (d *DB) RemoveComments(ctx context.Context, name string) (db.TimedResult[struct{}], error) {
	var elapsed time.Duration
	if err := d.use(ctx, &elapsed, TableComments); err != nil {
		return db.TimedResult[struct{}]{}, err
	}
	_, err := d.exec(ctx, &elapsed, skyhash.NewQuery("LMOD", name, "CLEAR"))
	// a package without comment list has nothing to remove
	if err != nil && !skyhash.IsCode(err, skyhash.CodeNil) {
		return db.TimedResult[struct{}]{}, err
	}
	return db.Timed(struct{}{}, elapsed), nil
}

func (d *DB) GetPackagesOccurrencesInDeps(ctx context.Context, names []string) (db.TimedResult[map[string]int], error) {
	var elapsed time.Duration

	keys, err := d.allKeys(ctx, &elapsed, TableDependencies)
	if err != nil {
		return db.TimedResult[map[string]int]{}, err
	}

	lists := make([][][]byte, 0, len(keys))
	for _, k := range keys {
		el, err := d.exec(ctx, &elapsed, skyhash.NewQuery("LGET", k))
		if skyhash.IsCode(err, skyhash.CodeNil) {
			continue
		}
		if err != nil {
			return db.TimedResult[map[string]int]{}, err
		}
		lists = append(lists, el.Items)
	}

	counter := util.NewOccurrenceCounter(names)
	for _, blobs := range lists {
		var depNames []string
		for _, blob := range blobs {
			dep, err := decodeDependency(blob)
			if err != nil {
				return db.TimedResult[map[string]int]{}, db.DecodeError(db.ImplSkytable, err)
			}
			depNames = append(depNames, dep.Packages...)
		}
		counter.AddPackage(depNames)
	}
	return db.Timed(counter.Result(), elapsed), nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// exec runs q, adds the round trip time to elapsed and converts failures:
// connection problems become ConnectionError, response codes QueryError
// (wrapping the *skyhash.RespError).
func (d *DB) exec(ctx context.Context, elapsed *time.Duration, q *skyhash.Query) (skyhash.Element, error) {
	start := time.Now()
	el, err := d.conn.Run(ctx, q)
	*elapsed += time.Since(start)

	if err != nil {
		d.active = ""
		if client.IsNetError(err) {
			return skyhash.Element{}, db.ConnectionError(db.ImplSkytable, err)
		}
		return skyhash.Element{}, db.NewError(db.ErrKQuery, db.ImplSkytable, "", err)
	}
	if respErr := el.Err(); respErr != nil {
		return el, db.NewError(db.ErrKQuery, db.ImplSkytable, "", respErr)
	}
	return el, nil
}

// use switches to table unless it is already active on the current connection.
func (d *DB) use(ctx context.Context, elapsed *time.Duration, table string) error {
	if d.active == table && d.activeGen == d.conn.Generation() {
		return nil
	}
	if _, err := d.exec(ctx, elapsed, skyhash.NewQuery("USE", table)); err != nil {
		return err
	}
	d.setActive(table)
	return nil
}

func (d *DB) setActive(table string) {
	d.active = table
	d.activeGen = d.conn.Generation()
}

func (d *DB) get(ctx context.Context, elapsed *time.Duration, table, key string) ([]byte, error) {
	if err := d.use(ctx, elapsed, table); err != nil {
		return nil, err
	}
	el, err := d.exec(ctx, elapsed, skyhash.NewQuery("GET", key))
	if err != nil {
		return nil, err
	}
	return el.Bytes, nil
}

// getList returns the list under key, a missing list is empty.
func (d *DB) getList(ctx context.Context, elapsed *time.Duration, table, key string) ([][]byte, error) {
	if err := d.use(ctx, elapsed, table); err != nil {
		return nil, err
	}
	el, err := d.exec(ctx, elapsed, skyhash.NewQuery("LGET", key))
	if skyhash.IsCode(err, skyhash.CodeNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return el.Items, nil
}

func (d *DB) upsert(ctx context.Context, elapsed *time.Duration, table, key string, blob []byte) error {
	if err := d.use(ctx, elapsed, table); err != nil {
		return err
	}
	_, err := d.exec(ctx, elapsed, skyhash.NewQuery("USET", key).BinArg(blob))
	return err
}

// replaceList creates the list with blobs. An existing list is cleared and
// refilled, never merged.
func (d *DB) replaceList(ctx context.Context, elapsed *time.Duration, table, key string, blobs [][]byte) error {
	if err := d.use(ctx, elapsed, table); err != nil {
		return err
	}

	lset := skyhash.NewQuery("LSET", key)
	for _, b := range blobs {
		lset.BinArg(b)
	}
	_, err := d.exec(ctx, elapsed, lset)
	if !skyhash.IsCode(err, skyhash.CodeOverwrite) {
		return err
	}

	if _, err := d.exec(ctx, elapsed, skyhash.NewQuery("LMOD", key, "CLEAR")); err != nil {
		return err
	}
	if len(blobs) == 0 {
		return nil
	}
	push := skyhash.NewQuery("LMOD", key, "PUSH")
	for _, b := range blobs {
		push.BinArg(b)
	}
	_, err = d.exec(ctx, elapsed, push)
	return err
}

func decodePackage(basicBlob, additionalBlob []byte, commentBlobs, depBlobs [][]byte) (model.PackageData, error) {
	basic, err := decodeBasic(basicBlob)
	if err != nil {
		return model.PackageData{}, err
	}
	additional, err := decodeAdditional(additionalBlob)
	if err != nil {
		return model.PackageData{}, err
	}
	pkg := model.PackageData{
		Basic:        basic,
		Additional:   additional,
		Comments:     make([]model.Comment, len(commentBlobs)),
		Dependencies: make([]model.PackageDependency, len(depBlobs)),
	}
	for i, b := range commentBlobs {
		if pkg.Comments[i], err = decodeComment(b); err != nil {
			return model.PackageData{}, err
		}
	}
	for i, b := range depBlobs {
		if pkg.Dependencies[i], err = decodeDependency(b); err != nil {
			return model.PackageData{}, err
		}
	}
	return pkg, nil
}
