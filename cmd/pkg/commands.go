package pkg

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dbBench/cmd/util"
	"github.com/ValentinKolb/dbBench/lib/dataset"
	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"strings"
	"time"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [name]",
		Short: "Loads a package with dependencies and comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := dispatcher.GetPkg(cmd.Context(), backend, args[0])
			if err != nil {
				return err
			}
			return util.PrintResult(res)
		},
	}
	insertCmd = &cobra.Command{
		Use:   "insert [file...]",
		Short: "Inserts (or overwrites) all packages of data set files (.json, .yaml, .csv)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pkgs []model.PackageData
			for _, path := range args {
				loaded, err := dataset.Load(path)
				if err != nil {
					return err
				}
				pkgs = append(pkgs, loaded...)
			}
			total, err := insertAll(cmd.Context(), pkgs)
			if err != nil {
				return err
			}
			return util.PrintResult(total)
		},
	}
	removeCommentsCmd = &cobra.Command{
		Use:   "remove-comments [name]",
		Short: "Deletes all comments of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := dispatcher.RemoveComments(cmd.Context(), backend, args[0])
			if err != nil {
				return err
			}
			return util.PrintResult(res)
		},
	}
	sortCmd = &cobra.Command{
		Use:   "sort [field] [start] [end]",
		Short: "Ranks package names descending by a field, limited to the window [start, end)",
		Long: fmt.Sprintf(`Ranks package names descending by a field, limited to the window [start, end).
Ties are broken by name in the same direction.

Supported fields: %s`, strings.Join(db.RankingFields, ", ")),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := cast.ToUint32E(args[1])
			if err != nil {
				return fmt.Errorf("start must be a number: %w", err)
			}
			end, err := cast.ToUint32E(args[2])
			if err != nil {
				return fmt.Errorf("end must be a number: %w", err)
			}
			res, err := dispatcher.SortPkgsByFieldWithLimit(cmd.Context(), backend, args[0], start, end)
			if err != nil {
				return err
			}
			return util.PrintResult(res)
		},
	}
	mostVotedCmd = &cobra.Command{
		Use:   "most-voted [n]",
		Short: "Returns the basic data of the n packages with the most votes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cast.ToUint32E(args[0])
			if err != nil {
				return fmt.Errorf("n must be a number: %w", err)
			}
			res, err := dispatcher.GetMostVotedPkgs(cmd.Context(), backend, n)
			if err != nil {
				return err
			}
			return util.PrintResult(res)
		},
	}
	occurrencesCmd = &cobra.Command{
		Use:   "occurrences [name...]",
		Short: "Counts in how many packages each name appears as a dependency",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := dispatcher.GetPackagesOccurrencesInDeps(cmd.Context(), backend, args)
			if err != nil {
				return err
			}
			return util.PrintResult(res)
		},
	}
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Inserts a synthetic data set",
		Long: `Generates a deterministic synthetic data set and inserts it.
With --out the generated packages are also written to a data set file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			seed, _ := cmd.Flags().GetInt64("seed")
			out, _ := cmd.Flags().GetString("out")

			pkgs := dataset.Generate(count, seed)
			if out != "" {
				if err := dataset.Save(out, pkgs); err != nil {
					return err
				}
			}
			total, err := insertAll(cmd.Context(), pkgs)
			if err != nil {
				return err
			}
			fmt.Printf("inserted %s packages into %s\n", humanize.Comma(int64(len(pkgs))), backend)
			return util.PrintResult(total)
		},
	}
)

func init() {
	seedCmd.Flags().Int("count", 1000, util.WrapString("Number of packages to generate"))
	seedCmd.Flags().Int64("seed", 1, util.WrapString("Seed of the generator, the same seed yields the same packages"))
	seedCmd.Flags().String("out", "", util.WrapString("Optional data set file to write the generated packages to"))
}

// insertAll inserts pkgs one by one and sums up the backend durations
func insertAll(ctx context.Context, pkgs []model.PackageData) (db.TimedResult[int], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	total := db.Timed(0, 0)
	started := time.Now()
	for i, p := range pkgs {
		res, err := dispatcher.InsertPkg(ctx, backend, p)
		if err != nil {
			return total, fmt.Errorf("insert %s: %w", p.Basic.Name, err)
		}
		total.Add(res.Elapsed())
		total.Result++
		if (i+1)%1000 == 0 {
			util.Logger.Infof("Inserted %s of %s packages (%s)", humanize.Comma(int64(i+1)), humanize.Comma(int64(len(pkgs))), time.Since(started).Round(time.Millisecond))
		}
	}
	return total, nil
}
