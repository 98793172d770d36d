package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/db/engines/redis"
	"github.com/ValentinKolb/dbBench/lib/db/engines/skytable"
	"github.com/ValentinKolb/dbBench/lib/db/engines/surreal"
)

// Factory builds the adapter for a backend. It is called lazily on the first
// operation for that backend and again after the adapter was evicted.
type Factory func(ctx context.Context, impl db.Implementation) (db.PkgDB, error)

// Config holds the static connection settings of all backends.
type Config struct {
	Redis    redis.Options
	Skytable skytable.Options
	Surreal  surreal.Options
}

// DefaultConfig returns the settings of the local reference setup.
func DefaultConfig() Config {
	return Config{
		Redis:    redis.DefaultOptions(),
		Skytable: skytable.DefaultOptions(),
		Surreal:  surreal.DefaultOptions(),
	}
}

// Factory returns a Factory connecting the real adapters with c.
func (c Config) Factory() Factory {
	return func(ctx context.Context, impl db.Implementation) (db.PkgDB, error) {
		var (
			adapter db.PkgDB
			err     error
		)
		switch impl {
		case db.ImplRedis:
			var d *redis.DB
			if d, err = redis.New(ctx, c.Redis); err == nil {
				adapter = d
			}
		case db.ImplSkytable:
			var d *skytable.DB
			if d, err = skytable.New(ctx, c.Skytable); err == nil {
				adapter = d
			}
		case db.ImplSurreal:
			var d *surreal.DB
			if d, err = surreal.New(ctx, c.Surreal); err == nil {
				adapter = d
			}
		default:
			err = fmt.Errorf("unknown backend %q", impl)
		}
		return adapter, err
	}
}

// String returns a formatted string representation of the configuration
func (c Config) String() string {
	var sb strings.Builder
	for _, line := range []string{c.Redis.String(), c.Skytable.String(), c.Surreal.String()} {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}
