// Package redis implements db.PkgDB on top of a Redis server using go-redis.
//
// Key layout:
//
//	pkgs_set                      set of all package names
//	pkgs:<name>                   hash with basic and additional fields
//	pkgs:<name>:deps              sorted set of dependency groups (score = position)
//	pkgs:<name>:deps:<group>      list of package names of one group
//	pkgs:<name>:cmnts             sorted set of comment ids (score = position)
//	pkgs:<name>:cmnts:<id>        hash with header and content of one comment
//
// Absent optional fields are not written to the package hash, so they read
// back as nil.
//
// Ranking uses the native SORT command with a BY pattern into the package
// hashes (ALPHA for string fields). Equal numeric values are ordered by the
// element itself, which gives the name tie-break for free.
//
// Inserts read the old group and comment indexes first and then replace the
// package in one MULTI/EXEC pipeline.
package redis
