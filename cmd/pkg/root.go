package pkg

import (
	"github.com/ValentinKolb/dbBench/cmd/util"
	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/dispatch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
)

var (
	dispatcher *dispatch.Dispatcher
	backend    db.Implementation

	// PkgCommands represents the package command group
	PkgCommands = &cobra.Command{
		Use:                "pkg",
		Short:              "Run package operations against a backend",
		PersistentPreRunE:  setupDispatcher,
		PersistentPostRunE: closeDispatcher,
	}
)

func init() {
	// Add backend flags to the pkg command
	util.SetupBackendFlags(PkgCommands)

	key := "metrics-file"
	PkgCommands.PersistentFlags().String(key, "", util.WrapString("Optional path to write the collected metrics to (Prometheus text format)"))

	// Add subcommands
	PkgCommands.AddCommand(getCmd)
	PkgCommands.AddCommand(insertCmd)
	PkgCommands.AddCommand(removeCommentsCmd)
	PkgCommands.AddCommand(sortCmd)
	PkgCommands.AddCommand(mostVotedCmd)
	PkgCommands.AddCommand(occurrencesCmd)
	PkgCommands.AddCommand(seedCmd)
	PkgCommands.AddCommand(perfTestCmd)
}

// setupDispatcher binds flags and creates the dispatcher for the selected backend
func setupDispatcher(cmd *cobra.Command, _ []string) error {
	if err := util.Setup(cmd); err != nil {
		return err
	}

	impl, err := util.GetBackend()
	if err != nil {
		return err
	}
	backend = impl
	dispatcher = dispatch.New(util.GetDispatchConfig())
	return nil
}

// closeDispatcher writes the metrics file (if requested) and closes all connections
func closeDispatcher(_ *cobra.Command, _ []string) error {
	if path := viper.GetString("metrics-file"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		dispatcher.WriteMetrics(f)
		if err := f.Close(); err != nil {
			return err
		}
	}
	return dispatcher.Close()
}
