// Command engine runs the financial-crime detection engine and its
// maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fincrime_engine/internal/config"
)

const appName = "fincrime_engine"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "engine",
	Short:         "Graph based financial-crime detection engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("http-addr", config.DefaultHTTPAddr, "HTTP listen address")
	flags.String("metrics-addr", config.DefaultMetricsAddr, "Prometheus metrics listen address")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-format", config.DefaultLogFormat, "log format (json or text)")
	flags.String("graph-backend", config.BackendMemory, "graph store backend (memory, postgres, neo4j)")
	flags.String("cache-backend", config.BackendMemory, "cache store backend (memory, redis)")
	flags.String("database-url", "", "Postgres connection URL")
	flags.String("redis-url", "", "Redis connection URL")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, patternsCmd, scoreCmd, rollupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
