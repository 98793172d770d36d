package query

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dbBench/cmd/util"
	"github.com/ValentinKolb/dbBench/lib/db"
	dbutil "github.com/ValentinKolb/dbBench/lib/db/util"
	"github.com/ValentinKolb/dbBench/lib/dispatch"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os"
	"strings"
	"time"
)

var (
	// QueryCmd runs a backend native query
	QueryCmd = &cobra.Command{
		Use:   "query [query...]",
		Short: "Run a custom backend query",
		Long: `Run a backend native query (a Redis command, a Skyhash action or SurrealQL)
and print the reply together with the time the backend needed.

Use "-" as the only argument to read the query from stdin.
With --repeat the query is executed several times and only the timing
statistics are printed.`,
		Example: `  dbbench query --db redis DBSIZE
  dbbench query --db skytable --time-only "USE pkgs:basic"
  echo 'SELECT count() FROM pkgs GROUP ALL;' | dbbench query --db surrealdb --repeat 100 -`,
		Args:              cobra.MinimumNArgs(1),
		PersistentPreRunE: setup,
		RunE:              run,
	}
	dispatcher *dispatch.Dispatcher
)

var (
	percentiles     = []float64{0.5, 0.9, 0.99}
	percentileNames = []string{"p50", "p90", "p99"}
)

func init() {
	util.SetupBackendFlags(QueryCmd)

	key := "time-only"
	QueryCmd.Flags().Bool(key, false, util.WrapString("Only print how long the query took"))
	key = "repeat"
	QueryCmd.Flags().Int(key, 1, util.WrapString("Run the query this many times and print timing statistics"))
	key = "metrics-file"
	QueryCmd.Flags().String(key, "", util.WrapString("Optional path to write the collected metrics to (Prometheus text format)"))
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := util.Setup(cmd); err != nil {
		return err
	}
	dispatcher = dispatch.New(util.GetDispatchConfig())
	return nil
}

func run(_ *cobra.Command, args []string) (err error) {
	defer func() {
		if cerr := dispatcher.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	impl, err := util.GetBackend()
	if err != nil {
		return err
	}
	query, err := readQuery(args, os.Stdin)
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch repeat := viper.GetInt("repeat"); {
	case repeat > 1:
		err = runRepeated(ctx, impl, query, repeat)
	case viper.GetBool("time-only"):
		var elapsed time.Duration
		if elapsed, err = dispatcher.GetCustomQueryTime(ctx, impl, query); err == nil {
			err = util.PrintResult(db.Timed(struct{}{}, elapsed))
		}
	default:
		var res db.TimedResult[string]
		if res, err = dispatcher.RunCustomQuery(ctx, impl, query); err == nil {
			err = util.PrintResult(res)
		}
	}
	if err != nil {
		return err
	}
	return writeMetrics(viper.GetString("metrics-file"))
}

// summary is the output of a repeated query
type summary struct {
	Backend     db.Implementation        `json:"backend"`
	Query       string                   `json:"query"`
	Stats       dbutil.Stats             `json:"stats"`
	Percentiles map[string]time.Duration `json:"percentiles"`
}

func runRepeated(ctx context.Context, impl db.Implementation, query string, repeat int) error {
	recorder := dbutil.NewRecorder()
	for i := 0; i < repeat; i++ {
		elapsed, err := dispatcher.GetCustomQueryTime(ctx, impl, query)
		if err != nil {
			return fmt.Errorf("run %d/%d: %w", i+1, repeat, err)
		}
		recorder.Add(elapsed)
	}

	s := summarize(impl, query, recorder)
	if viper.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Printf("%s: %s\n", impl, s.Stats)
	for _, name := range percentileNames {
		fmt.Printf("  %-4s %s\n", name, s.Percentiles[name])
	}
	return nil
}

// summarize computes the statistics of the recorded samples. Percentiles come
// from a go-metrics histogram holding every sample.
func summarize(impl db.Implementation, query string, recorder *dbutil.Recorder) summary {
	samples := recorder.Samples()
	histogram := gometrics.NewHistogram(gometrics.NewUniformSample(max(len(samples), 1)))
	for _, d := range samples {
		histogram.Update(d.Nanoseconds())
	}

	s := summary{
		Backend:     impl,
		Query:       query,
		Stats:       recorder.Stats(),
		Percentiles: make(map[string]time.Duration, len(percentiles)),
	}
	for i, v := range histogram.Percentiles(percentiles) {
		s.Percentiles[percentileNames[i]] = time.Duration(v)
	}
	return s
}

// readQuery joins the arguments or reads stdin for "-"
func readQuery(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		args = []string{string(b)}
	}
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return "", fmt.Errorf("empty query")
	}
	return query, nil
}

func writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	dispatcher.WriteMetrics(f)
	return f.Close()
}
