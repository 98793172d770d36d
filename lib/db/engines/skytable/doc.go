// Package skytable implements db.PkgDB for a Skyhash table server
// (Skytable, or the in-process server of the rpc/server package).
//
// Packages are spread over four tables:
//
//	pkgs:basic         keymap(str,binstr)        basic data blob
//	pkgs:additional    keymap(str,binstr)        additional data blob
//	pkgs:comments      keymap(str,list<binstr>)  one blob per comment
//	pkgs:dependencies  keymap(str,list<binstr>)  one blob per dependency group
//
// Every keyed action runs in the table selected with USE. The adapter keeps
// track of the active table per connection and only sends USE when it
// changes or after a reconnect. The tables live in the keyspace "pkgs",
// which is created together with the tables on connect.
//
// Custom queries never see the package tables by accident: they run in
// default:default until a custom USE selects another table, and that table is
// selected again before each custom query.
//
// The server has no ranking support, so ranking and most voted fetch all
// basic blobs (DBSIZE, LSKEYS, MGET) and sort them with lib/db/util.
package skytable
