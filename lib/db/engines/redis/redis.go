package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/db/util"
	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/lni/dragonboat/v4/logger"
	goredis "github.com/redis/go-redis/v9"
)

var Logger = logger.GetLogger("db/redis")

// Key layout
const (
	// SetKey holds the names of all packages
	SetKey = "pkgs_set"
	// keyPrefix + <name> is the hash with basic and additional data
	keyPrefix = "pkgs:"
)

func pkgKey(name string) string { return keyPrefix + name }
func depsIndexKey(name string) string { return keyPrefix + name + ":deps" }
func depsKey(name, group string) string { return keyPrefix + name + ":deps:" + group }
func commentsIndexKey(name string) string { return keyPrefix + name + ":cmnts" }
func commentKey(name, id string) string { return keyPrefix + name + ":cmnts:" + id }

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

type Options struct {
	// Addr is the host:port of the server
	Addr string
	// Username and Password for AUTH, empty to skip
	Username string
	Password string
	// DB selects the logical database
	DB int
	// DialTimeout bounds connection establishment
	DialTimeout time.Duration
	// Timeout bounds reads and writes of a single command
	Timeout time.Duration
	// PoolSize is the maximum number of pooled connections
	PoolSize int
	// Trace logs every command at debug level
	Trace bool
}

// DefaultOptions returns options for a local server with the credentials
// of the reference setup.
func DefaultOptions() Options {
	return Options{
		Addr:        "127.0.0.1:6379",
		Username:    "default",
		Password:    "redis",
		DialTimeout: 5 * time.Second,
		Timeout:     30 * time.Second,
		PoolSize:    4,
	}
}

func (o Options) String() string {
	return fmt.Sprintf("redis{addr=%s user=%s db=%d dial_timeout=%s timeout=%s pool=%d}",
		o.Addr, o.Username, o.DB, o.DialTimeout, o.Timeout, o.PoolSize)
}

func (o Options) clientOptions() *goredis.Options {
	return &goredis.Options{
		Addr:         o.Addr,
		Username:     o.Username,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.Timeout,
		WriteTimeout: o.Timeout,
		PoolSize:     o.PoolSize,
	}
}

// --------------------------------------------------------------------------
// Adapter
// --------------------------------------------------------------------------

// DB stores every package as a hash plus one list per dependency group and
// one hash per comment. Group and comment order is kept in sorted sets
// scored by position.
type DB struct {
	client *goredis.Client
}

// New connects to the server and verifies the connection with PING.
func New(ctx context.Context, opts Options) (*DB, error) {
	client := goredis.NewClient(opts.clientOptions())
	if opts.Trace {
		client.AddHook(traceHook{})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, db.ConnectionError(db.ImplRedis, err)
	}
	Logger.Infof("Connected: %s", opts)
	return newWithClient(client), nil
}

func newWithClient(client *goredis.Client) *DB {
	return &DB{client: client}
}

func (d *DB) Close() error {
	return d.client.Close()
}

// Flush deletes all keys of the selected database.
func (d *DB) Flush(ctx context.Context) error {
	return wrapErr(d.client.FlushDB(ctx).Err())
}

// --------------------------------------------------------------------------
// Custom Queries
// --------------------------------------------------------------------------

func (d *DB) RunCustomQuery(ctx context.Context, query string) (db.TimedResult[string], error) {
	reply, elapsed, err := d.customQuery(ctx, query)
	if err != nil {
		return db.TimedResult[string]{}, err
	}
	return db.Timed(render(reply), elapsed), nil
}

func (d *DB) GetCustomQueryTime(ctx context.Context, query string) (time.Duration, error) {
	_, elapsed, err := d.customQuery(ctx, query)
	return elapsed, err
}

// customQuery forwards a whitespace separated command. A nil reply is not an
// error.
func (d *DB) customQuery(ctx context.Context, query string) (any, time.Duration, error) {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return nil, 0, db.QueryError(db.ImplRedis, "empty query")
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}

	start := time.Now()
	reply, err := d.client.Do(ctx, args...).Result()
	elapsed := time.Since(start)

	if errors.Is(err, goredis.Nil) {
		return nil, elapsed, nil
	}
	if err != nil {
		return nil, elapsed, wrapErr(err)
	}
	return reply, elapsed, nil
}

// --------------------------------------------------------------------------
// Ranking
// --------------------------------------------------------------------------

func (d *DB) SortPkgsByFieldWithLimit(ctx context.Context, field string, start, end uint32) (db.TimedResult[[]string], error) {
	if err := db.ValidateRankingField(field); err != nil {
		return db.TimedResult[[]string]{}, err
	}
	names, elapsed, err := d.sortNames(ctx, field, start, end)
	if err != nil {
		return db.TimedResult[[]string]{}, err
	}
	return db.Timed(names, elapsed), nil
}

func (d *DB) GetMostVotedPkgs(ctx context.Context, n uint32) (db.TimedResult[[]model.BasicPackageData], error) {
	names, elapsed, err := d.sortNames(ctx, model.FieldVotes, 0, n)
	if err != nil || len(names) == 0 {
		return db.Timed([]model.BasicPackageData{}, elapsed), err
	}

	// hydrate the ranked names
	cmds := make([]*goredis.MapStringStringCmd, len(names))
	start := time.Now()
	_, err = d.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, name := range names {
			cmds[i] = pipe.HGetAll(ctx, pkgKey(name))
		}
		return nil
	})
	elapsed += time.Since(start)
	if err != nil {
		return db.TimedResult[[]model.BasicPackageData]{}, wrapErr(err)
	}

	pkgs := make([]model.BasicPackageData, 0, len(names))
	for _, cmd := range cmds {
		hash := cmd.Val()
		// deleted between SORT and HGETALL
		if len(hash) == 0 {
			continue
		}
		basic, err := model.DecodeBasic(hash)
		if err != nil {
			return db.TimedResult[[]model.BasicPackageData]{}, db.DecodeError(db.ImplRedis, err)
		}
		pkgs = append(pkgs, basic)
	}
	return db.Timed(pkgs, elapsed), nil
}

// sortNames runs SORT pkgs_set BY pkgs:*-><field> LIMIT offset count DESC.
// Equal numeric values are ordered by name, descending. String fields other
// than the name go through sortNamesAlpha.
func (d *DB) sortNames(ctx context.Context, field string, start, end uint32) ([]string, time.Duration, error) {
	offset, count := db.Window(start, end)
	if count == 0 {
		return []string{}, 0, nil
	}
	if field != model.FieldName && !db.IsNumericField(field) {
		return d.sortNamesAlpha(ctx, field, start, end)
	}

	s := &goredis.Sort{
		Offset: int64(offset),
		Count:  int64(count),
		Order:  "DESC",
		Alpha:  field == model.FieldName,
	}
	if field != model.FieldName {
		s.By = keyPrefix + "*->" + field
	}

	begin := time.Now()
	names, err := d.client.Sort(ctx, SetKey, s).Result()
	elapsed := time.Since(begin)
	if err != nil {
		return nil, elapsed, wrapErr(err)
	}
	return names, elapsed, nil
}

// rankedName is a package name with the value it was ranked by
type rankedName struct {
	name  string
	value string
}

// sortNamesAlpha runs SORT pkgs_set BY pkgs:*-><field> ALPHA DESC GET # GET pkgs:*-><field>.
// Redis leaves the order of equal strings undefined, so the full ranking is
// fetched, runs of equal values are ordered by name (descending) and the
// window is cut afterwards.
func (d *DB) sortNamesAlpha(ctx context.Context, field string, start, end uint32) ([]string, time.Duration, error) {
	pattern := keyPrefix + "*->" + field
	s := &goredis.Sort{
		By:    pattern,
		Get:   []string{"#", pattern},
		Order: "DESC",
		Alpha: true,
	}

	begin := time.Now()
	reply, err := d.client.Sort(ctx, SetKey, s).Result()
	elapsed := time.Since(begin)
	if err != nil {
		return nil, elapsed, wrapErr(err)
	}

	ranked := make([]rankedName, 0, len(reply)/2)
	for i := 0; i+1 < len(reply); i += 2 {
		ranked = append(ranked, rankedName{name: reply[i], value: reply[i+1]})
	}
	breakTies(ranked)

	window := util.Page(ranked, start, end)
	names := make([]string, len(window))
	for i, r := range window {
		names[i] = r.name
	}
	return names, elapsed, nil
}

// breakTies orders every run of equal values by name, descending. The order
// between runs is kept.
func breakTies(ranked []rankedName) {
	for i := 0; i < len(ranked); {
		j := i + 1
		for j < len(ranked) && ranked[j].value == ranked[i].value {
			j++
		}
		slices.SortFunc(ranked[i:j], func(a, b rankedName) int {
			return strings.Compare(b.name, a.name)
		})
		i = j
	}
}

// --------------------------------------------------------------------------
// Packages
// --------------------------------------------------------------------------

func (d *DB) InsertPkg(ctx context.Context, pkg model.PackageData) (db.TimedResult[struct{}], error) {
	if err := pkg.Validate(); err != nil {
		return db.TimedResult[struct{}]{}, db.DecodeError(db.ImplRedis, err)
	}
	name := pkg.Basic.Name

	hash := make(map[string]any)
	for k, v := range model.EncodeFlat(pkg.Basic, pkg.Additional) {
		hash[k] = v
	}

	// the old sub-entities are replaced, so their keys are needed first
	start := time.Now()
	oldGroups, oldComments, err := d.indexes(ctx, name)
	elapsed := time.Since(start)
	if err != nil {
		return db.TimedResult[struct{}]{}, err
	}

	obsolete := []string{pkgKey(name), depsIndexKey(name), commentsIndexKey(name)}
	for _, g := range oldGroups {
		obsolete = append(obsolete, depsKey(name, g))
	}
	for _, id := range oldComments {
		obsolete = append(obsolete, commentKey(name, id))
	}

	start = time.Now()
	_, err = d.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, obsolete...)
		pipe.HSet(ctx, pkgKey(name), hash)
		pipe.SAdd(ctx, SetKey, name)

		for i, dep := range pkg.Dependencies {
			pipe.ZAdd(ctx, depsIndexKey(name), goredis.Z{Score: float64(i), Member: dep.Group})
			if len(dep.Packages) > 0 {
				pipe.RPush(ctx, depsKey(name, dep.Group), toAny(dep.Packages)...)
			}
		}
		for i, c := range pkg.Comments {
			id := strconv.Itoa(i + 1)
			pipe.ZAdd(ctx, commentsIndexKey(name), goredis.Z{Score: float64(i + 1), Member: id})
			pipe.HSet(ctx, commentKey(name, id), model.FieldHeader, c.Header, model.FieldContent, c.Content)
		}
		return nil
	})
	elapsed += time.Since(start)
	if err != nil {
		return db.TimedResult[struct{}]{}, wrapErr(err)
	}
	return db.Timed(struct{}{}, elapsed), nil
}

func (d *DB) GetPkg(ctx context.Context, name string) (db.TimedResult[model.PackageData], error) {
	var (
		hashCmd     *goredis.MapStringStringCmd
		groupsCmd   *goredis.StringSliceCmd
		commentsCmd *goredis.StringSliceCmd
	)

	start := time.Now()
	_, err := d.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		hashCmd = pipe.HGetAll(ctx, pkgKey(name))
		groupsCmd = pipe.ZRange(ctx, depsIndexKey(name), 0, -1)
		commentsCmd = pipe.ZRange(ctx, commentsIndexKey(name), 0, -1)
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		return db.TimedResult[model.PackageData]{}, wrapErr(err)
	}
	if len(hashCmd.Val()) == 0 {
		return db.TimedResult[model.PackageData]{}, db.NotFoundError(db.ImplRedis, name)
	}

	groups, commentIDs := groupsCmd.Val(), commentsCmd.Val()
	depCmds := make([]*goredis.StringSliceCmd, len(groups))
	commentCmds := make([]*goredis.MapStringStringCmd, len(commentIDs))
	if len(groups)+len(commentIDs) > 0 {
		start = time.Now()
		_, err = d.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
			for i, g := range groups {
				depCmds[i] = pipe.LRange(ctx, depsKey(name, g), 0, -1)
			}
			for i, id := range commentIDs {
				commentCmds[i] = pipe.HGetAll(ctx, commentKey(name, id))
			}
			return nil
		})
		elapsed += time.Since(start)
		if err != nil {
			return db.TimedResult[model.PackageData]{}, wrapErr(err)
		}
	}

	// decoding is not part of the measurement
	pkg, err := model.DecodePackage(hashCmd.Val())
	if err != nil {
		return db.TimedResult[model.PackageData]{}, db.DecodeError(db.ImplRedis, err)
	}
	for i, g := range groups {
		pkg.Dependencies = append(pkg.Dependencies, model.PackageDependency{Group: g, Packages: depCmds[i].Val()})
	}
	for _, cmd := range commentCmds {
		c, err := model.DecodeComment(cmd.Val())
		if err != nil {
			return db.TimedResult[model.PackageData]{}, db.DecodeError(db.ImplRedis, err)
		}
		pkg.Comments = append(pkg.Comments, c)
	}
	pkg.Normalize()
	return db.Timed(pkg, elapsed), nil
}

func (d *DB) RemoveComments(ctx context.Context, name string) (db.TimedResult[struct{}], error) {
	start := time.Now()
	ids, err := d.client.ZRange(ctx, commentsIndexKey(name), 0, -1).Result()
	elapsed := time.Since(start)
	if err != nil {
		return db.TimedResult[struct{}]{}, wrapErr(err)
	}
	if len(ids) == 0 {
		return db.Timed(struct{}{}, elapsed), nil
	}

	keys := []string{commentsIndexKey(name)}
	for _, id := range ids {
		keys = append(keys, commentKey(name, id))
	}
	start = time.Now()
	err = d.client.Del(ctx, keys...).Err()
	elapsed += time.Since(start)
	if err != nil {
		return db.TimedResult[struct{}]{}, wrapErr(err)
	}
	return db.Timed(struct{}{}, elapsed), nil
}

// GetPackagesOccurrencesInDeps scans all packages: SMEMBERS, one pipeline for
// the group indexes and one for the dependency lists.
func (d *DB) GetPackagesOccurrencesInDeps(ctx context.Context, names []string) (db.TimedResult[map[string]int], error) {
	counter := util.NewOccurrenceCounter(names)

	start := time.Now()
	pkgs, err := d.client.SMembers(ctx, SetKey).Result()
	elapsed := time.Since(start)
	if err != nil {
		return db.TimedResult[map[string]int]{}, wrapErr(err)
	}
	if len(pkgs) == 0 {
		return db.Timed(counter.Result(), elapsed), nil
	}

	groupCmds := make([]*goredis.StringSliceCmd, len(pkgs))
	start = time.Now()
	_, err = d.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, p := range pkgs {
			groupCmds[i] = pipe.ZRange(ctx, depsIndexKey(p), 0, -1)
		}
		return nil
	})
	elapsed += time.Since(start)
	if err != nil {
		return db.TimedResult[map[string]int]{}, wrapErr(err)
	}

	depCmds := make([][]*goredis.StringSliceCmd, len(pkgs))
	start = time.Now()
	_, err = d.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, p := range pkgs {
			for _, g := range groupCmds[i].Val() {
				depCmds[i] = append(depCmds[i], pipe.LRange(ctx, depsKey(p, g), 0, -1))
			}
		}
		return nil
	})
	elapsed += time.Since(start)
	if err != nil {
		return db.TimedResult[map[string]int]{}, wrapErr(err)
	}

	for _, cmds := range depCmds {
		var deps []string
		for _, cmd := range cmds {
			deps = append(deps, cmd.Val()...)
		}
		counter.AddPackage(deps)
	}
	return db.Timed(counter.Result(), elapsed), nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// indexes returns the dependency groups and comment ids of a package.
func (d *DB) indexes(ctx context.Context, name string) (groups, comments []string, err error) {
	var groupsCmd, commentsCmd *goredis.StringSliceCmd
	_, err = d.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		groupsCmd = pipe.ZRange(ctx, depsIndexKey(name), 0, -1)
		commentsCmd = pipe.ZRange(ctx, commentsIndexKey(name), 0, -1)
		return nil
	})
	if err != nil {
		return nil, nil, wrapErr(err)
	}
	return groupsCmd.Val(), commentsCmd.Val(), nil
}

// wrapErr maps server replies to QueryError and everything else to
// ConnectionError.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var redisErr goredis.Error
	if errors.As(err, &redisErr) {
		return db.QueryError(db.ImplRedis, redisErr.Error())
	}
	return db.ConnectionError(db.ImplRedis, err)
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// render converts a reply into text. Aggregates become JSON.
func render(reply any) string {
	switch v := reply.(type) {
	case nil:
		return "(nil)"
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	b, err := json.Marshal(jsonable(reply))
	if err != nil {
		return fmt.Sprint(reply)
	}
	return string(b)
}

// jsonable converts RESP3 maps (map[any]any) and sets into types encoding/json
// understands.
func jsonable(v any) any {
	switch v := v.(type) {
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = jsonable(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[fmt.Sprint(k)] = jsonable(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = jsonable(e)
		}
		return out
	case map[any]bool:
		out := make([]string, 0, len(v))
		for k := range v {
			out = append(out, fmt.Sprint(k))
		}
		sort.Strings(out)
		return out
	default:
		return v
	}
}

// traceHook logs every command before it is sent.
type traceHook struct{}

func (traceHook) DialHook(next goredis.DialHook) goredis.DialHook { return next }

func (traceHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		Logger.Debugf("> %s", cmd.String())
		return next(ctx, cmd)
	}
}

func (traceHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		Logger.Debugf("> pipeline (%d commands)", len(cmds))
		return next(ctx, cmds)
	}
}
