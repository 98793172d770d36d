// Package db defines the capability contract shared by all package database
// backends of dbBench.
//
// The package focuses on:
//   - A unified interface (PkgDB) for the benchmarked operations
//   - A timed envelope (TimedResult) wrapping every result
//   - Error kinds that are identical across backends
//   - Backend tags (Implementation) used at the dispatch boundary
//
// Key Components:
//
//   - PkgDB Interface: custom query execution and timing, ranked retrieval,
//     package insert/read, comment removal and dependency-occurrence counting.
//     The backends disagree on almost every aspect of their data model, the
//     interface hides that.
//
//   - TimedResult: a result together with the wall-clock duration of the
//     backend interaction that produced it. Composite operations (e.g. ranking
//     followed by hydration) add up the durations of their parts with Add.
//
//   - Error: every adapter error is an *Error with a Kind (ConnectionError,
//     QueryError, UnsupportedField, NotFound, ParseError, MissingSourceData).
//     KindOf classifies arbitrary errors.
//
//   - Ranking fields: ValidateRankingField guards the ranking operations.
//     It must be called before any backend I/O and before a field name is
//     interpolated into a query.
//
// Note on Timing:
//   - The measurement starts right before the first backend round trip and stops
//     right after the last one. Decoding of results happens outside the window
//     where the backend client allows it.
//   - GetCustomQueryTime must do the same work as RunCustomQuery, it only
//     discards the result.
//
// Note on Ties:
//   - Ranking ties are broken by package name, in the same (descending)
//     direction as the ranking itself. Redis sorts ties this way natively for
//     numeric fields, the other adapters emulate it.
//
// Related Packages:
//
// The engines/redis, engines/skytable and engines/surreal packages implement
// PkgDB for the three backends. The testing package provides a conformance
// suite (RunPkgDBTests) and benchmarks (RunPkgDBBenchmarks) that every
// implementation runs.
package db
