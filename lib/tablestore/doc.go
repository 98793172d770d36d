/*
Package tablestore implements the in-memory keymap tables served by the
Skyhash server (see rpc/server).

A Store holds keyspaces and named tables of the form "keyspace:table". A
table can only be created in an existing keyspace, and every store starts
with the protected table "default:default". Each table maps
string keys to either binary values (KindBinary) or lists of binary values
(KindList). Operations on a table of the wrong kind fail with ErrWrongType,
reads of missing keys fail with ErrNil, and SET on an existing key fails
with ErrOverwrite. The error texts match the response codes of the wire
protocol so the server can forward them unchanged.

Usage:

	s := tablestore.New()
	_ = s.CreateKeyspace("pkgs")
	_ = s.CreateTable("pkgs:basic", tablestore.KindBinary)
	t, _ := s.Table("pkgs:basic")
	_ = t.Set("bash", blob)
*/
package tablestore
