package dispatch

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/VictoriaMetrics/metrics"
)

// Operation names used as metric labels
const (
	OpCustomQuery     = "custom_query"
	OpCustomQueryTime = "custom_query_time"
	OpSort            = "sort"
	OpMostVoted       = "most_voted"
	OpInsert          = "insert_pkg"
	OpGet             = "get_pkg"
	OpRemoveComments  = "remove_comments"
	OpOccurrences     = "occurrences"
)

const (
	metricDuration = "dbbench_operation_duration_seconds"
	metricErrors   = "dbbench_operation_errors_total"
	metricConnects = "dbbench_connects_total"
	metricEvicts   = "dbbench_evictions_total"
)

// recorder keeps the per backend and per operation metrics of a dispatcher.
// Every dispatcher owns its own set so tests do not see each other.
type recorder struct {
	set *metrics.Set
}

func newRecorder() *recorder {
	return &recorder{set: metrics.NewSet()}
}

// observe records the backend reported duration of a successful operation
func (r *recorder) observe(impl db.Implementation, op string, d time.Duration) {
	name := fmt.Sprintf(`%s{backend=%q,operation=%q}`, metricDuration, impl, op)
	r.set.GetOrCreateHistogram(name).Update(d.Seconds())
}

func (r *recorder) failed(impl db.Implementation, op string, err error) {
	name := fmt.Sprintf(`%s{backend=%q,operation=%q,kind=%q}`, metricErrors, impl, op, db.KindOf(err))
	r.set.GetOrCreateCounter(name).Inc()
}

func (r *recorder) connected(impl db.Implementation) {
	r.set.GetOrCreateCounter(fmt.Sprintf(`%s{backend=%q}`, metricConnects, impl)).Inc()
}

func (r *recorder) evicted(impl db.Implementation) {
	r.set.GetOrCreateCounter(fmt.Sprintf(`%s{backend=%q}`, metricEvicts, impl)).Inc()
}

// WriteMetrics writes all metrics of the dispatcher in Prometheus text format.
func (d *Dispatcher) WriteMetrics(w io.Writer) {
	d.metrics.set.WritePrometheus(w)
}
