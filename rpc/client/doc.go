// Package client provides a Skyhash client over a single TCP connection.
//
// The client sends one query at a time and returns the response element
// unchanged; response codes are turned into errors by the caller via
// skyhash.Element.Err. Connection failures drop the connection and surface as
// *NetError, the next call dials again (explicit reconnect, no retry).
//
// Usage Example:
//
//	c, err := client.Dial(ctx, common.DefaultClientConfig())
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	el, err := c.Run(ctx, skyhash.NewQuery("USE", "pkgs:basic"))
//	if err == nil {
//		err = el.Err()
//	}
package client
