// Package rpc contains the Skyhash protocol stack used by the skytable
// backend. It is both the client the adapter talks through and a small table
// server, so the backend can be benchmarked (and tested) without an external
// Skytable installation.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures for client and server, and the logger
//     setup shared by the whole application.
//
//   - skyhash: The Skyhash 1.0 wire codec (queries, response elements and
//     response codes).
//
//   - client: A single-connection Skyhash client with explicit reconnect.
//
//   - server: A TCP Skyhash server on top of lib/tablestore.
package rpc
