package surreal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/db/util"
	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("db/surreal")

// Table holds one document per package, the record id is the package name
const Table = "pkgs"

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

type Options struct {
	// Endpoint is the ws:// (or http://) URL of the server
	Endpoint string
	// Username and Password of a root user, empty to skip signin
	Username string
	Password string
	// Namespace and Database select where the documents live
	Namespace string
	Database  string
	// Timeout bounds a single query if the context carries no deadline
	Timeout time.Duration
}

// DefaultOptions returns options for a local server with the credentials
// of the reference setup.
func DefaultOptions() Options {
	return Options{
		Endpoint:  "ws://127.0.0.1:8000",
		Username:  "root",
		Password:  "root",
		Namespace: "aur",
		Database:  "packages",
		Timeout:   30 * time.Second,
	}
}

func (o Options) String() string {
	return fmt.Sprintf("surrealdb{endpoint=%s user=%s ns=%s db=%s timeout=%s}",
		o.Endpoint, o.Username, o.Namespace, o.Database, o.Timeout)
}

// --------------------------------------------------------------------------
// Adapter
// --------------------------------------------------------------------------

// DB stores whole package documents in the pkgs table and lets the server
// rank them with ORDER BY.
type DB struct {
	conn conn
}

// New connects, signs in and selects namespace and database.
func New(ctx context.Context, opts Options) (*DB, error) {
	c, err := dial(ctx, opts)
	if err != nil {
		return nil, db.ConnectionError(db.ImplSurreal, err)
	}
	Logger.Infof("Connected: %s", opts)
	return newWithConn(c), nil
}

func newWithConn(c conn) *DB {
	return &DB{conn: c}
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// Flush deletes all package documents.
func (d *DB) Flush(ctx context.Context) error {
	_, _, err := d.single(ctx, "DELETE type::table($tb);", map[string]any{"tb": Table})
	return err
}

// --------------------------------------------------------------------------
// Custom Queries
// --------------------------------------------------------------------------

func (d *DB) RunCustomQuery(ctx context.Context, query string) (db.TimedResult[string], error) {
	statements, elapsed, err := d.customQuery(ctx, query)
	if err != nil {
		return db.TimedResult[string]{}, err
	}
	return db.Timed(renderStatements(statements), elapsed), nil
}

func (d *DB) GetCustomQueryTime(ctx context.Context, query string) (time.Duration, error) {
	_, elapsed, err := d.customQuery(ctx, query)
	return elapsed, err
}

// customQuery runs query as is. The first failed statement fails the query.
func (d *DB) customQuery(ctx context.Context, query string) ([]statement, time.Duration, error) {
	if strings.TrimSpace(query) == "" {
		return nil, 0, db.QueryError(db.ImplSurreal, "empty query")
	}
	statements, elapsed, err := d.run(ctx, query, nil)
	if err != nil {
		return nil, elapsed, err
	}
	for _, s := range statements {
		if err := s.Err(); err != nil {
			return nil, elapsed, err
		}
	}
	return statements, elapsed, nil
}

// renderStatements returns the result of a single statement as JSON and the
// results of several statements as JSON array.
func renderStatements(statements []statement) string {
	if len(statements) == 1 {
		return statements[0].JSON()
	}
	results := make([]string, len(statements))
	for i, s := range statements {
		results[i] = s.JSON()
	}
	return "[" + strings.Join(results, ",") + "]"
}

// --------------------------------------------------------------------------
// Ranking
// --------------------------------------------------------------------------

// ranked is one row of a ranking query
type ranked struct {
	Name  string                 `json:"name"`
	Basic model.BasicPackageData `json:"basic"`
}

func (d *DB) SortPkgsByFieldWithLimit(ctx context.Context, field string, start, end uint32) (db.TimedResult[[]string], error) {
	// the field is interpolated into the query, validation must come first
	if err := db.ValidateRankingField(field); err != nil {
		return db.TimedResult[[]string]{}, err
	}
	offset, count := db.Window(start, end)
	if count == 0 {
		return db.Timed([]string{}, 0), nil
	}

	query := fmt.Sprintf("SELECT basic.name AS name, basic.%s AS key FROM %s ORDER BY key DESC, name DESC LIMIT $limit START $start;",
		field, Table)
	rows, elapsed, err := d.rank(ctx, query, map[string]any{"limit": count, "start": offset})
	if err != nil {
		return db.TimedResult[[]string]{}, err
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return db.Timed(names, elapsed), nil
}

func (d *DB) GetMostVotedPkgs(ctx context.Context, n uint32) (db.TimedResult[[]model.BasicPackageData], error) {
	if n == 0 {
		return db.Timed([]model.BasicPackageData{}, 0), nil
	}

	query := fmt.Sprintf("SELECT basic, basic.name AS name, basic.votes AS key FROM %s ORDER BY key DESC, name DESC LIMIT $limit;",
		Table)
	rows, elapsed, err := d.rank(ctx, query, map[string]any{"limit": n})
	if err != nil {
		return db.TimedResult[[]model.BasicPackageData]{}, err
	}
	pkgs := make([]model.BasicPackageData, len(rows))
	for i, r := range rows {
		pkgs[i] = r.Basic
	}
	return db.Timed(pkgs, elapsed), nil
}

func (d *DB) rank(ctx context.Context, query string, vars map[string]any) ([]ranked, time.Duration, error) {
	s, elapsed, err := d.single(ctx, query, vars)
	if err != nil {
		return nil, elapsed, err
	}
	var rows []ranked
	if err := s.Decode(&rows); err != nil {
		return nil, elapsed, err
	}
	return rows, elapsed, nil
}

// --------------------------------------------------------------------------
// Packages
// --------------------------------------------------------------------------

// document is the stored form of a package
type document struct {
	Basic        model.BasicPackageData      `json:"basic"`
	Additional   model.AdditionalPackageData `json:"additional"`
	Dependencies []model.PackageDependency   `json:"dependencies"`
	Comments     []model.Comment             `json:"comments"`
}

func (d *DB) InsertPkg(ctx context.Context, pkg model.PackageData) (db.TimedResult[struct{}], error) {
	if err := pkg.Validate(); err != nil {
		return db.TimedResult[struct{}]{}, db.DecodeError(db.ImplSurreal, err)
	}
	pkg.Normalize()
	vars := recordVars(pkg.Basic.Name)
	vars["doc"] = document(pkg)

	_, elapsed, err := d.single(ctx, "CREATE type::thing($tb, $name) CONTENT $doc;", vars)
	if err != nil && isAlreadyExists(err) {
		// the package exists, replace the whole document
		var update time.Duration
		_, update, err = d.single(ctx, "UPDATE type::thing($tb, $name) CONTENT $doc;", vars)
		elapsed += update
	}
	if err != nil {
		return db.TimedResult[struct{}]{}, err
	}
	return db.Timed(struct{}{}, elapsed), nil
}

func (d *DB) GetPkg(ctx context.Context, name string) (db.TimedResult[model.PackageData], error) {
	s, elapsed, err := d.single(ctx,
		"SELECT basic, additional, dependencies, comments FROM type::thing($tb, $name);", recordVars(name))
	if err != nil {
		return db.TimedResult[model.PackageData]{}, err
	}

	var docs []document
	if err := s.Decode(&docs); err != nil {
		return db.TimedResult[model.PackageData]{}, err
	}
	if len(docs) == 0 {
		return db.TimedResult[model.PackageData]{}, db.NotFoundError(db.ImplSurreal, name)
	}
	pkg := model.PackageData(docs[0])
	if pkg.Basic.Name == "" {
		return db.TimedResult[model.PackageData]{}, db.NewError(db.ErrKMissingSourceData, db.ImplSurreal,
			fmt.Sprintf("document of package %q has no basic data", name), nil)
	}
	pkg.Normalize()
	return db.Timed(pkg, elapsed), nil
}

// RemoveComments empties the comment list. The WHERE clause keeps the
// statement from creating a document for an unknown package.
func (d *DB) RemoveComments(ctx context.Context, name string) (db.TimedResult[struct{}], error) {
	_, elapsed, err := d.single(ctx,
		"UPDATE type::thing($tb, $name) SET comments = [] WHERE basic != NONE;", recordVars(name))
	if err != nil {
		return db.TimedResult[struct{}]{}, err
	}
	return db.Timed(struct{}{}, elapsed), nil
}

func (d *DB) GetPackagesOccurrencesInDeps(ctx context.Context, names []string) (db.TimedResult[map[string]int], error) {
	s, elapsed, err := d.single(ctx, fmt.Sprintf("SELECT dependencies FROM %s;", Table), nil)
	if err != nil {
		return db.TimedResult[map[string]int]{}, err
	}

	var rows []struct {
		Dependencies []model.PackageDependency `json:"dependencies"`
	}
	if err := s.Decode(&rows); err != nil {
		return db.TimedResult[map[string]int]{}, err
	}

	counter := util.NewOccurrenceCounter(names)
	for _, r := range rows {
		var deps []string
		for _, dep := range r.Dependencies {
			deps = append(deps, dep.Packages...)
		}
		counter.AddPackage(deps)
	}
	return db.Timed(counter.Result(), elapsed), nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// run executes query and measures the round trip. Decoding happens outside
// the measurement.
func (d *DB) run(ctx context.Context, query string, vars map[string]any) ([]statement, time.Duration, error) {
	start := time.Now()
	statements, err := d.conn.Query(ctx, query, vars)
	return statements, time.Since(start), err
}

// single runs a query consisting of one statement and returns its result,
// statement errors included.
func (d *DB) single(ctx context.Context, query string, vars map[string]any) (statement, time.Duration, error) {
	statements, elapsed, err := d.run(ctx, query, vars)
	if err != nil {
		return statement{}, elapsed, err
	}
	if len(statements) != 1 {
		return statement{}, elapsed, db.NewError(db.ErrKParse, db.ImplSurreal,
			fmt.Sprintf("expected 1 statement result, got %d", len(statements)), nil)
	}
	return statements[0], elapsed, statements[0].Err()
}

// recordVars binds the record id of a package for type::thing($tb, $name).
func recordVars(name string) map[string]any {
	return map[string]any{"tb": Table, "name": name}
}

// isAlreadyExists reports whether err is the statement error of a CREATE
// for an existing record.
func isAlreadyExists(err error) bool {
	var e *db.Error
	if !errors.As(err, &e) || e.Kind != db.ErrKQuery {
		return false
	}
	return strings.Contains(strings.ToLower(e.Msg), "already exists")
}
