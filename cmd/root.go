package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dbBench/cmd/pkg"
	"github.com/ValentinKolb/dbBench/cmd/query"
	"github.com/ValentinKolb/dbBench/cmd/serve"
	"github.com/ValentinKolb/dbBench/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dbbench",
		Short: "benchmark package queries on Redis, Skytable and SurrealDB",
		Long: fmt.Sprintf(`dbBench (v%s)

Runs the same package database workload (AUR package metadata) against
Redis, a Skyhash server (Skytable) and SurrealDB and reports how long each
backend needed for every operation.

Configuration is read from flags, from DBBENCH_<FLAG> environment variables
and from .env / .env.local files.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dbBench",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dbBench v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(query.QueryCmd)
	RootCmd.AddCommand(pkg.PkgCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("Level at which logs are written to stderr (debug, info, warn, error)"))
	key = "json"
	RootCmd.PersistentFlags().Bool(key, false, util.WrapString("Print results as JSON envelope {result, duration}"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
