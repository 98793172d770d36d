// Package surreal implements db.PkgDB for SurrealDB on top of the official
// client (github.com/surrealdb/surrealdb.go), which speaks the CBOR RPC
// protocol over WebSocket.
//
// Every package is one document in the pkgs table with the package name as
// record id:
//
//	{basic: {...}, additional: {...}, dependencies: [...], comments: [...]}
//
// Record ids and documents are bound as query parameters. Only the ranking
// field is part of the query text, and it is checked against the ranking
// fields first. Absent optional fields are stored as null. Ranking and most
// voted are single SELECT statements with ORDER BY, LIMIT and START, so the
// server does the sorting. Ties are ordered by name, descending.
//
// InsertPkg tries CREATE first. When the record exists the server answers
// with an "already exists" statement error, which is the only error the
// adapter swallows: the document is then replaced with UPDATE ... CONTENT.
package surreal
