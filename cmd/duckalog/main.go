package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/duckalog/duckalog/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "dev"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "duckalog",
		Short:         "Build and explore DuckDB catalogs from a YAML file",
		Long:          "duckalog turns a declarative catalog file into a DuckDB database of views, then serves it read-only over a dashboard, MCP or the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	registerGlobalFlags(root.PersistentFlags())

	root.AddCommand(
		newValidateCmd(),
		newGenerateSQLCmd(),
		newBuildCmd(),
		newCheckSQLCmd(),
		newQueryCmd(),
		newUICmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return root
}

func registerGlobalFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Path to the catalog YAML (default catalog.yaml)")
	fs.String("database", "", "DuckDB database file, overrides duckdb.database from the catalog")
	fs.Bool("read-only", true, "Open the built database read-only when serving queries")
	fs.Int("max-rows", 0, "Maximum rows returned per query")
	fs.Duration("query-timeout", 0, "Query execution timeout (e.g. 30s)")
	fs.Bool("strict-parse", false, "Also require queries to parse as a single SELECT")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.String("audit-log", "", "Path to NDJSON audit log file")
	fs.Bool("otel", false, "Enable OpenTelemetry tracing and metrics")
}

// overridesFromFlags returns only the flags the user actually set, so env
// vars keep their precedence over flag defaults.
func overridesFromFlags(fs *pflag.FlagSet) (config.Overrides, error) {
	var o config.Overrides
	var err error

	str := func(name string) *string {
		if err != nil || !fs.Changed(name) {
			return nil
		}
		var v string
		v, err = fs.GetString(name)
		return &v
	}
	boolean := func(name string) *bool {
		if err != nil || !fs.Changed(name) {
			return nil
		}
		var v bool
		v, err = fs.GetBool(name)
		return &v
	}

	o.CatalogPath = str("config")
	o.Database = str("database")
	o.LogLevel = str("log-level")
	o.AuditLog = str("audit-log")
	o.ReadOnly = boolean("read-only")
	o.StrictParse = boolean("strict-parse")
	if fs.Lookup("http-addr") != nil {
		o.HTTPAddr = str("http-addr")
		o.HTTPBearerToken = str("http-bearer-token")
	}

	if err == nil && fs.Changed("max-rows") {
		var n int
		n, err = fs.GetInt("max-rows")
		o.MaxRows = &n
	}
	if err == nil && fs.Changed("query-timeout") {
		var d time.Duration
		d, err = fs.GetDuration("query-timeout")
		o.QueryTimeout = &d
	}
	if err == nil {
		o.OTelEnabled, err = fs.GetBool("otel")
	}
	if err != nil {
		return config.Overrides{}, fmt.Errorf("reading flags: %w", err)
	}
	return o, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	o, err := overridesFromFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(o)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
