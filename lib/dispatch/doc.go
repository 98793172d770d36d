// Package dispatch routes PkgDB operations to the adapter selected by a
// backend tag (redis, skytable, surrealdb).
//
// Adapters are created lazily from a static Config on the first operation for
// their backend and reused afterwards. Calls on one adapter are serialized,
// different backends are served concurrently.
//
// Failure handling:
//   - A failing construction is reported as ConnectionError and retried on the
//     next call.
//   - An operation failing with ConnectionError closes and evicts the adapter,
//     the next call reconnects. No call is retried automatically.
//   - Ranking requests with an unsupported field are rejected before an
//     adapter is even created.
//
// Every dispatcher records per backend and per operation duration histograms
// (the backend reported time, not including lock waits) together with error,
// connect and eviction counters. WriteMetrics exports them in Prometheus text
// format.
//
// Example:
//
//	d := dispatch.New(dispatch.DefaultConfig())
//	defer d.Close()
//
//	res, err := d.GetMostVotedPkgs(ctx, db.ImplRedis, 10)
//	if err != nil {
//		return err
//	}
//	fmt.Println(res)
package dispatch
