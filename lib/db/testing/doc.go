// Package testing provides standardised tests and benchmarks for
// database adapters that satisfy the db.PkgDB interface.
//
// The package contains:
//   - testing: A conformance suite for the PkgDB contract (round trips,
//     optional field absence, ranking windows and ties, occurrence counts,
//     comment removal, error kinds)
//   - benchmark: Performance tests for the benchmarked operations against a
//     generated data set
//   - fixtures: The small hand-written package set the suite runs against
//
// Every test gets a fresh database from the factory, so factories must
// return an adapter on an empty database (flush or create a new namespace).
//
// Example usage:
//
//	factory := func(t testing.TB) db.PkgDB {
//		database, err := mydb.New(context.Background(), opts)
//		if err != nil {
//			t.Skipf("backend not reachable: %v", err)
//		}
//		return database
//	}
//
//	// Running the standard test suite
//	dbtesting.RunPkgDBTests(t, "MyDatabase", factory, dbtesting.CustomQueries{
//		Valid:   "PING",
//		Invalid: "NOT A COMMAND",
//	})
//
//	// Running performance benchmarks
//	dbtesting.RunPkgDBBenchmarks(b, "MyDatabase", factory)
package testing
