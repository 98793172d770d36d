/*
Package skyhash implements the Skyhash 1.0 wire format used by table
oriented key/value servers.

A client sends simple queries, an action followed by its arguments, each
argument length prefixed:

	*1\n~3\n3\nSET\n3\nkey\n5\nvalue\n

The server answers with exactly one element:

	*1\n!1\n0\n          okay response code
	*1\n?5\nvalue\n      binary string
	*1\n:1\n3\n          unsigned integer
	*1\n@?2\n1\na\n\0\n  typed binary array with a null entry

Besides the numeric response codes (0 okay, 1 nil, 2 overwrite, ...) the
server may answer with string codes such as "container-not-found". Element.Err
turns every non-okay code into a *RespError.

Both directions share a bufio based reader and writer. The codec never
allocates more than MaxElementSize bytes for a single element.
*/
package skyhash
