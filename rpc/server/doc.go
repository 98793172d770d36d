// Package server implements a Skyhash 1.0 table server on top of
// lib/tablestore. It is used by `dbbench serve` and by the Skytable adapter
// tests, which run the full conformance suite against an in-process server.
//
// Supported actions:
//
//   - DDL: USE <table>, CREATE KEYSPACE <keyspace>,
//     CREATE TABLE <table> keymap(str,<binstr|list<binstr>>),
//     DROP KEYSPACE <keyspace>, DROP TABLE <table>, LSTABLES
//   - keys: SET, UPDATE, USET, GET, MGET, DEL, EXISTS, DBSIZE, LSKEYS [count], FLUSHDB
//   - lists: LSET <key> [values...], LGET <key> [LEN], LMOD <key> CLEAR|PUSH|POP
//   - HEYA [message]
//
// Every connection starts in the table "default:default". Configured tables
// get their keyspace created on Listen; over the wire a table can only be
// created in an existing keyspace. Store errors are mapped to the matching
// response codes (nil, overwrite, wrongtype, container-not-found, ...).
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Tables = map[string]string{"pkgs:basic": "binstr"}
//
//	s := server.NewServer(config, tablestore.New())
//	if err := s.Listen(); err != nil {
//		panic(err)
//	}
//	go s.Serve()
//	defer s.Close()
package server
