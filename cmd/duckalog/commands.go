package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/duckalog/duckalog/internal/adapter/duckdb"
	"github.com/duckalog/duckalog/internal/adapter/mcp"
	"github.com/duckalog/duckalog/internal/adapter/postgres"
	"github.com/duckalog/duckalog/internal/adapter/web"
	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/duckalog/duckalog/internal/core/port"
	"github.com/duckalog/duckalog/internal/core/service"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	probeTimeout    = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
}

// withApp runs fn with a loaded app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if err := a.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the catalog file without touching the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				atts := len(a.cat.Attachments.DuckDB) + len(a.cat.Attachments.SQLite) + len(a.cat.Attachments.Postgres)
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "catalog %s is valid: %d view(s), %d attachment(s), %d secret(s)\n",
					a.cfg.CatalogPath, len(a.cat.Views), atts, len(a.cat.Secrets))
				return err
			})
		},
	}
}

func newGenerateSQLCmd() *cobra.Command {
	var (
		reveal bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "generate-sql",
		Short: "Print the SQL script that builds the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				svc := service.NewCatalogService(nil, nil, a.logger, a.tracer, a.inst)
				script, err := svc.GenerateSQL(a.cat, reveal)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = io.WriteString(cmd.OutOrStdout(), script)
					return err
				}
				if err := os.WriteFile(output, []byte(script), 0o600); err != nil {
					return fmt.Errorf("writing %s: %w", output, err)
				}
				a.logger.Info("wrote build script", slog.String("file", output))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal-secrets", false, "Include secret values and passwords instead of ***")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the script to a file instead of stdout")
	return cmd
}

func newBuildCmd() *cobra.Command {
	var (
		dryRun bool
		probe  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Create or refresh the DuckDB catalog database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var svc *service.CatalogService
				prober := postgres.NewProber(probeTimeout)
				if dryRun {
					svc = service.NewCatalogService(nil, prober, a.logger, a.tracer, a.inst)
				} else {
					db, err := duckdb.Open(ctx, a.cat.DatabasePath(), false)
					if err != nil {
						return err
					}
					a.onClose(db.Close)
					svc = service.NewCatalogService(duckdb.NewBuilder(db), prober, a.logger, a.tracer, a.inst)
				}

				report, err := svc.Build(ctx, a.cat, service.BuildOptions{DryRun: dryRun, ProbeAttachments: probe})
				if err != nil {
					return err
				}
				return printBuildReport(cmd.OutOrStdout(), report, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Render statements without touching the database")
	cmd.Flags().BoolVar(&probe, "probe", false, "Check Postgres attachments are reachable before building")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the build report as JSON")
	return cmd
}

func printBuildReport(w io.Writer, r *service.BuildReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	if r.DryRun {
		_, err := io.WriteString(w, domain.Script(r.Statements))
		return err
	}
	_, err := fmt.Fprintf(w, "built %s: %d statement(s), %d view(s) in %dms\n",
		r.Database, len(r.Statements), r.Views, r.DurationMS)
	return err
}

func newCheckSQLCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check-sql <sql>",
		Short: "Report whether a query would pass the read-only gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readSQLArg(cmd, args[0])
			if err != nil {
				return err
			}
			var v port.QueryValidator = domain.NewSQLValidator()
			if strict {
				v = domain.NewChainValidator(domain.NewSQLValidator(), domain.NewParseValidator())
			}
			if err := v.Validate(sql); err != nil {
				return fmt.Errorf("query rejected: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", domain.Sanitize(sql))
			return err
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Also require the query to parse as a single SELECT")
	return cmd
}

// readSQLArg returns arg, or stdin when arg is "-".
func readSQLArg(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading query from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func newQueryCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a read-only query against the built catalog (use - to read stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			sql, err := readSQLArg(cmd, args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				db, err := a.openCatalog(ctx)
				if err != nil {
					return err
				}
				_, query, err := a.services(db)
				if err != nil {
					return err
				}
				result, err := query.Execute(service.WithSource(ctx, "cli"), sql)
				if err != nil {
					if service.IsRejected(err) {
						return fmt.Errorf("query rejected: %w", err)
					}
					return err
				}
				return printResult(cmd.OutOrStdout(), result, format)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, csv")
	return cmd
}

func newUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Serve the read-only dashboard and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				db, err := a.openCatalog(ctx)
				if err != nil {
					return err
				}
				explorer, query, err := a.services(db)
				if err != nil {
					return err
				}

				handler := web.NewRouter(
					web.NewHandler(explorer, query, a.logger, version),
					web.Options{BearerToken: a.cfg.HTTPBearerToken, CORSOrigins: a.cfg.CORSOrigins},
				)
				return serveHTTP(ctx, a.logger, a.cfg.HTTPAddr, handler, a.cfg.HTTPBearerToken != "")
			})
		},
	}
	cmd.Flags().String("http-addr", "", "Listen address for the dashboard (default 127.0.0.1:8787)")
	cmd.Flags().String("http-bearer-token", "", "Require this bearer token on every route but /health")
	return cmd
}

// serveHTTP runs the server until ctx is cancelled, then drains it.
func serveHTTP(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler, auth bool) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving dashboard", slog.String("addr", addr), slog.Bool("auth", auth))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down dashboard")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the catalog to AI assistants over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				db, err := a.openCatalog(ctx)
				if err != nil {
					return err
				}
				explorer, query, err := a.services(db)
				if err != nil {
					return err
				}

				s := mcp.NewServer(version, explorer, query, a.logger, a.tracer, a.inst)
				stdio := mcpserver.NewStdioServer(s)

				a.logger.Info("serving MCP over stdio")
				if err := stdio.Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("stdio server: %w", err)
				}
				a.logger.Info("shutdown complete")
				return nil
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the duckalog version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "duckalog %s\n", version)
			return err
		},
	}
}
