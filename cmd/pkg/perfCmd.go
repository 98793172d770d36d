package pkg

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dbBench/cmd/util"
	"github.com/ValentinKolb/dbBench/lib/dataset"
	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for the package operations",
		Long: `Seeds the backend with a synthetic data set and benchmarks every package
operation. For each test the wall-clock time per operation and the time the
backend reported (the number the query front end shows) are printed.`,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfPackages = 1000
	perfSeed     = int64(1)
	perfNoSeed   = false
	perfSkip     = make([]string, 0)
)

// perfResult is the outcome of one benchmark
type perfResult struct {
	bench    testing.BenchmarkResult
	reported time.Duration // summed backend durations
	ops      int           // number of timed operations
}

func (r perfResult) skipped() bool {
	return r.bench.N == 0
}

// reportedPerOp is the mean backend reported duration
func (r perfResult) reportedPerOp() time.Duration {
	if r.ops == 0 {
		return 0
	}
	return r.reported / time.Duration(r.ops)
}

// perfTest is one benchmarked operation. run executes the i-th operation and
// returns the backend reported duration.
type perfTest struct {
	name string
	run  func(ctx context.Context, i int) (time.Duration, error)
}

func init() {
	key := "packages"
	perfTestCmd.Flags().Int(key, perfPackages, util.WrapString("How many synthetic packages to seed before the tests"))
	key = "seed"
	perfTestCmd.Flags().Int64(key, perfSeed, util.WrapString("Seed of the data set generator"))
	key = "no-seed"
	perfTestCmd.Flags().Bool(key, false, util.WrapString("Do not insert the data set (it was seeded before with the same --packages and --seed)"))
	key = "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,occurrences)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfPackages = viper.GetInt("packages")
	perfSeed = viper.GetInt64("seed")
	perfNoSeed = viper.GetBool("no-seed")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfPackages < 1 {
		return fmt.Errorf("--packages must be at least 1")
	}
	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	testing.Init()
	ctx := cmd.Context()

	fmt.Println("Performance testing tool for package databases")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Backend:  %s\n", backend)
	fmt.Print(util.GetDispatchConfig().String())
	fmt.Printf("Packages: %s (seed %d)\n", humanize.Comma(int64(perfPackages)), perfSeed)
	fmt.Println()

	pkgs := dataset.Generate(perfPackages, perfSeed)
	if !perfNoSeed {
		fmt.Println("seeding...")
		total, err := insertAll(ctx, pkgs)
		if err != nil {
			return err
		}
		fmt.Printf("seeded %s packages in %s (backend time)\n\n", humanize.Comma(int64(total.Result)), total.Elapsed())
	}

	fmt.Println("starting tests...")

	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Basic.Name
	}
	deps := []string{"glibc", "rust", "python", "go", names[0]}
	window := uint32(min(50, len(pkgs)))

	tests := []perfTest{
		{"insert", func(ctx context.Context, i int) (time.Duration, error) {
			res, err := dispatcher.InsertPkg(ctx, backend, pkgs[i%len(pkgs)])
			return res.Elapsed(), err
		}},
		{"get", func(ctx context.Context, i int) (time.Duration, error) {
			res, err := dispatcher.GetPkg(ctx, backend, names[i%len(names)])
			return res.Elapsed(), err
		}},
		{"sort-votes", func(ctx context.Context, _ int) (time.Duration, error) {
			res, err := dispatcher.SortPkgsByFieldWithLimit(ctx, backend, model.FieldVotes, 0, window)
			return res.Elapsed(), err
		}},
		{"sort-name", func(ctx context.Context, _ int) (time.Duration, error) {
			res, err := dispatcher.SortPkgsByFieldWithLimit(ctx, backend, model.FieldName, 0, window)
			return res.Elapsed(), err
		}},
		{"most-voted", func(ctx context.Context, _ int) (time.Duration, error) {
			res, err := dispatcher.GetMostVotedPkgs(ctx, backend, window)
			return res.Elapsed(), err
		}},
		{"occurrences", func(ctx context.Context, _ int) (time.Duration, error) {
			res, err := dispatcher.GetPackagesOccurrencesInDeps(ctx, backend, deps)
			return res.Elapsed(), err
		}},
		// last, it destroys the comments of the data set
		{"remove-comments", func(ctx context.Context, i int) (time.Duration, error) {
			res, err := dispatcher.RemoveComments(ctx, backend, names[i%len(names)])
			return res.Elapsed(), err
		}},
	}

	// Create results map
	results := make(map[string]perfResult)
	for _, test := range tests {
		res := benchmark(ctx, test)
		results[test.name] = res
		printResult(test.name, res)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, tests, results); err != nil {
			return err
		}
		fmt.Printf("\nresults written to %s\n", csvPath)
	}
	return nil
}

// benchmark runs a test with testing.Benchmark and sums up the reported
// backend durations of the final run
func benchmark(ctx context.Context, test perfTest) perfResult {
	var res perfResult
	res.bench = testing.Benchmark(func(b *testing.B) {
		if shouldSkip(test.name) {
			return
		}
		// testing.Benchmark calls this function with growing b.N, only the last run counts
		res.reported, res.ops = 0, 0

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			d, err := test.run(ctx, i)
			if err != nil {
				util.Logger.Errorf("(%s) - %v", test.name, err)
				b.FailNow()
			}
			res.reported += d
			res.ops++
		}
	})
	return res
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.skipped() {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%12s/op  backend %12s/op  %10s ops/sec  (%s ops)\n",
		test,
		time.Duration(nsPerOp),
		result.reportedPerOp(),
		humanize.Comma(int64(opsPerSec)),
		humanize.Comma(int64(result.bench.N)),
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, tests []perfTest, results map[string]perfResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	// Write header
	header := []string{
		"Test", "Backend", "N", "NsPerOp", "DurationPerOp", "BackendNsPerOp", "OpsPerSec", "Skipped",
		"Packages", "Seed",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results in execution order
	for _, test := range tests {
		result := results[test.name]
		var nsPerOp, opsPerSec float64
		if !result.skipped() {
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test.name,
			string(backend),
			strconv.Itoa(result.bench.N),
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			strconv.FormatInt(result.reportedPerOp().Nanoseconds(), 10),
			fmt.Sprintf("%.0f", opsPerSec),
			strconv.FormatBool(result.skipped()),
			strconv.Itoa(perfPackages),
			strconv.FormatInt(perfSeed, 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test.name, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
