package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dbBench/lib/model"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// Implementation is the tag of a backend. It selects the adapter at the
// dispatch boundary.
type Implementation string

const (
	ImplRedis    Implementation = "redis"
	ImplSkytable Implementation = "skytable"
	ImplSurreal  Implementation = "surrealdb"
)

// Implementations lists all known backends in a stable order.
var Implementations = []Implementation{ImplRedis, ImplSkytable, ImplSurreal}

// ParseImplementation converts a backend tag (case-sensitive, as printed by
// String) to an Implementation.
func ParseImplementation(s string) (Implementation, error) {
	for _, impl := range Implementations {
		if string(impl) == s {
			return impl, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q (expected one of redis, skytable, surrealdb)", s)
}

func (i Implementation) String() string {
	return string(i)
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// PkgDB is the capability contract every backend adapter implements.
// All operations are timed individually, the duration covers only the
// interaction with the backend.
//
// Implementations hold a live connection and are not safe for concurrent use.
// Callers must serialize calls on one instance (the dispatch package does this).
type PkgDB interface {

	// --------------------------------------------------------------------------
	// Custom Queries
	// --------------------------------------------------------------------------

	// RunCustomQuery executes a backend-native command or query and returns its
	// reply rendered as text. Backend errors are returned as QueryError with
	// the backend's own message.
	RunCustomQuery(ctx context.Context, query string) (TimedResult[string], error)

	// GetCustomQueryTime executes the query exactly like RunCustomQuery but only
	// reports how long it took.
	GetCustomQueryTime(ctx context.Context, query string) (time.Duration, error)

	// --------------------------------------------------------------------------
	// Ranking
	// --------------------------------------------------------------------------

	// SortPkgsByFieldWithLimit returns package names ranked descending by field,
	// limited to the window [start, end) of the ranking.
	// Fields outside the ranking whitelist fail with UnsupportedField before any
	// backend I/O happens.
	SortPkgsByFieldWithLimit(ctx context.Context, field string, start, end uint32) (TimedResult[[]string], error)

	// GetMostVotedPkgs returns the basic data of the n packages with the most votes.
	GetMostVotedPkgs(ctx context.Context, n uint32) (TimedResult[[]model.BasicPackageData], error)

	// --------------------------------------------------------------------------
	// Packages
	// --------------------------------------------------------------------------

	// InsertPkg stores pkg under its name. An existing package with the same
	// name is overwritten, dependencies and comments are replaced, not merged.
	InsertPkg(ctx context.Context, pkg model.PackageData) (TimedResult[struct{}], error)

	// GetPkg loads a package with all its sub-entities.
	// Returns NotFound when the package does not exist.
	GetPkg(ctx context.Context, name string) (TimedResult[model.PackageData], error)

	// RemoveComments deletes all comments of a package, nothing else.
	RemoveComments(ctx context.Context, name string) (TimedResult[struct{}], error)

	// GetPackagesOccurrencesInDeps counts for each requested name in how many
	// packages it appears as a dependency. Every requested name is present in
	// the result, names without any occurrence map to 0.
	GetPackagesOccurrencesInDeps(ctx context.Context, names []string) (TimedResult[map[string]int], error)

	// Close releases the connection.
	Close() error
}
