package util

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/dispatch"
	"github.com/ValentinKolb/dbBench/rpc/common"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"strings"
	"time"
)

var Logger = logger.GetLogger("cmd")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var lines []string
	var line strings.Builder

	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > Wrap {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// SetupBackendFlags adds the connection flags of all backends to a command
func SetupBackendFlags(cmd *cobra.Command) {
	defaults := dispatch.DefaultConfig()

	key := "db"
	cmd.PersistentFlags().String(key, string(db.ImplRedis), WrapString("Backend to run against (redis, skytable, surrealdb)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 30, WrapString("Timeout in seconds of a single backend request"))

	key = "redis-addr"
	cmd.PersistentFlags().String(key, defaults.Redis.Addr, WrapString("Address (host:port) of the Redis server"))
	key = "redis-user"
	cmd.PersistentFlags().String(key, defaults.Redis.Username, WrapString("Redis ACL user, empty to skip AUTH"))
	key = "redis-password"
	cmd.PersistentFlags().String(key, defaults.Redis.Password, WrapString("Redis password"))
	key = "redis-db"
	cmd.PersistentFlags().Int(key, defaults.Redis.DB, WrapString("Logical Redis database"))
	key = "redis-pool-size"
	cmd.PersistentFlags().Int(key, defaults.Redis.PoolSize, WrapString("Maximum number of pooled Redis connections"))
	key = "redis-trace"
	cmd.PersistentFlags().Bool(key, false, WrapString("Log every Redis command (needs log level debug)"))

	key = "skytable-addr"
	cmd.PersistentFlags().String(key, defaults.Skytable.Addr, WrapString("Address (host:port) of the Skyhash server (e.g. started with dbbench serve)"))
	key = "skytable-create-tables"
	cmd.PersistentFlags().Bool(key, defaults.Skytable.CreateTables, WrapString("Create the package tables on connect"))

	key = "surreal-endpoint"
	cmd.PersistentFlags().String(key, defaults.Surreal.Endpoint, WrapString("URL of the SurrealDB server (ws:// or http://)"))
	key = "surreal-user"
	cmd.PersistentFlags().String(key, defaults.Surreal.Username, WrapString("SurrealDB user"))
	key = "surreal-password"
	cmd.PersistentFlags().String(key, defaults.Surreal.Password, WrapString("SurrealDB password"))
	key = "surreal-ns"
	cmd.PersistentFlags().String(key, defaults.Surreal.Namespace, WrapString("SurrealDB namespace"))
	key = "surreal-db"
	cmd.PersistentFlags().String(key, defaults.Surreal.Database, WrapString("SurrealDB database"))
}

// InitConfig loads .env files and environment variables (DBBENCH_<FLAG>)
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dbbench")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// Setup binds the flags of cmd to viper and configures the loggers.
// Every command group calls it from its PersistentPreRunE.
func Setup(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return common.InitLoggers(viper.GetString("log-level"))
}

// GetDispatchConfig reads the backend configuration from viper
func GetDispatchConfig() dispatch.Config {
	conf := dispatch.DefaultConfig()
	timeout := time.Duration(viper.GetInt("timeout")) * time.Second

	conf.Redis.Addr = viper.GetString("redis-addr")
	conf.Redis.Username = viper.GetString("redis-user")
	conf.Redis.Password = viper.GetString("redis-password")
	conf.Redis.DB = viper.GetInt("redis-db")
	conf.Redis.PoolSize = viper.GetInt("redis-pool-size")
	conf.Redis.Trace = viper.GetBool("redis-trace")
	conf.Redis.Timeout = timeout

	conf.Skytable.Addr = viper.GetString("skytable-addr")
	conf.Skytable.CreateTables = viper.GetBool("skytable-create-tables")
	conf.Skytable.Timeout = timeout

	conf.Surreal.Endpoint = viper.GetString("surreal-endpoint")
	conf.Surreal.Username = viper.GetString("surreal-user")
	conf.Surreal.Password = viper.GetString("surreal-password")
	conf.Surreal.Namespace = viper.GetString("surreal-ns")
	conf.Surreal.Database = viper.GetString("surreal-db")
	conf.Surreal.Timeout = timeout

	return conf
}

// GetBackend returns the backend selected with --db
func GetBackend() (db.Implementation, error) {
	return db.ParseImplementation(viper.GetString("db"))
}

// PrintResult prints a timed result, as JSON envelope if --json is set
func PrintResult[T any](r db.TimedResult[T]) error {
	if !viper.GetBool("json") {
		fmt.Println(r.String())
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
