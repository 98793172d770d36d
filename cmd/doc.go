// Package cmd implements the command-line interface of dbBench. It provides a
// hierarchical command structure to run the package workload against the
// supported backends and to host a local Skyhash server.
//
// The package is organized into several subpackages:
//
//   - pkg: Package operations (get, insert, sort, most-voted, occurrences, ...),
//     data set seeding and the perf benchmark
//   - query: Custom backend queries, optionally repeated with timing statistics
//   - serve: Starts the in-memory Skyhash table server for the skytable backend
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dbbench -help for a list of all commands.
package cmd
