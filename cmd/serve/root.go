package serve

import (
	"fmt"
	"github.com/ValentinKolb/dbBench/cmd/util"
	"github.com/ValentinKolb/dbBench/lib/db/engines/skytable"
	"github.com/ValentinKolb/dbBench/lib/tablestore"
	"github.com/ValentinKolb/dbBench/rpc/common"
	"github.com/ValentinKolb/dbBench/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
)

var (
	serveCmdConfig = common.DefaultServerConfig()
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the Skyhash table server",
		Long:    `Start an in-memory Skyhash table server that the skytable backend can run against. The configuration can be set via command line flags or environment variables. The format of the environment variables is DBBENCH_<flag> (e.g. DBBENCH_ENDPOINT=0.0.0.0:2003)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	defaults := common.DefaultServerConfig()

	// add flags
	key := "endpoint"
	ServeCmd.Flags().String(key, defaults.Endpoint, util.WrapString("The TCP address on which the server will listen (host:port)"))

	key = "idle-timeout"
	ServeCmd.Flags().Int64(key, defaults.TimeoutSecond, util.WrapString("Close connections that were idle for this many seconds (0 = never)"))

	key = "max-connections"
	ServeCmd.Flags().Int(key, defaults.MaxConnections, util.WrapString("Maximum number of concurrently served connections (0 = unlimited)"))

	key = "tcp-nodelay"
	ServeCmd.Flags().Bool(key, defaults.TCPNoDelay, util.WrapString("Whether to enable TCP_NODELAY"))

	key = "tcp-keepalive"
	ServeCmd.Flags().Int(key, defaults.TCPKeepAliveSec, util.WrapString("The keepalive interval (in seconds, 0 = OS default)"))

	key = "read-buffer"
	ServeCmd.Flags().Int(key, 0, util.WrapString("The size of the socket read buffer (in KB, 0 = OS default)"))

	key = "write-buffer"
	ServeCmd.Flags().Int(key, 0, util.WrapString("The size of the socket write buffer (in KB, 0 = OS default)"))

	key = "tables"
	ServeCmd.Flags().String(key, formatTables(skytable.Tables), util.WrapString("Semicolon separated list of tables created on startup. Format: NAME=TYPE where TYPE is a value type (binstr, list<binstr>) or a keymap declaration (e.g. keymap(str,binstr))"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.Setup(cmd); err != nil {
		return err
	}

	tables, err := parseTables(viper.GetString("tables"))
	if err != nil {
		return err
	}

	serveCmdConfig.Tables = tables
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("idle-timeout")
	serveCmdConfig.MaxConnections = viper.GetInt("max-connections")
	serveCmdConfig.TCPNoDelay = viper.GetBool("tcp-nodelay")
	serveCmdConfig.TCPKeepAliveSec = viper.GetInt("tcp-keepalive")
	serveCmdConfig.ReadBufferSize = viper.GetInt("read-buffer") * 1024
	serveCmdConfig.WriteBufferSize = viper.GetInt("write-buffer") * 1024
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return nil
}

// run starts the server and stops it on SIGINT / SIGTERM
func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Configuration:")
	fmt.Println(serveCmdConfig.String())

	srv := server.NewServer(serveCmdConfig, tablestore.New())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		sig, ok := <-sigs
		if !ok {
			return
		}
		util.Logger.Infof("Received %s, shutting down", sig)
		if err := srv.Close(); err != nil {
			util.Logger.Warningf("Closing server: %v", err)
		}
	}()

	if err := srv.Listen(); err != nil {
		return err
	}
	fmt.Printf("Serving Skyhash on %s\n", srv.Addr())
	return srv.Serve()
}

// parseTables parses "name=type;name=type"
func parseTables(s string) (map[string]string, error) {
	tables := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, decl, ok := strings.Cut(part, "=")
		name, decl = strings.TrimSpace(name), strings.TrimSpace(decl)
		if !ok || name == "" || decl == "" {
			return nil, fmt.Errorf("invalid table format: %s (expected NAME=TYPE)", part)
		}
		tables[name] = decl
	}
	return tables, nil
}

func formatTables(tables map[string]string) string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	slices.Sort(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + tables[name]
	}
	return strings.Join(parts, ";")
}
