package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/duckalog/duckalog/internal/adapter/annotate"
	"github.com/duckalog/duckalog/internal/adapter/catalogfile"
	"github.com/duckalog/duckalog/internal/adapter/duckdb"
	"github.com/duckalog/duckalog/internal/audit"
	"github.com/duckalog/duckalog/internal/config"
	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/duckalog/duckalog/internal/core/port"
	"github.com/duckalog/duckalog/internal/core/service"
	"github.com/duckalog/duckalog/internal/telemetry"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const telemetryShutdownTimeout = 5 * time.Second

// app carries everything a command needs after config, catalog and
// telemetry are loaded. Close releases it in reverse order.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	cat    *domain.Catalog
	tracer trace.Tracer
	inst   port.Instrumentation

	closers []func() error
}

func (a *app) onClose(fn func() error) { a.closers = append(a.closers, fn) }

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// setup loads config and the catalog file and starts telemetry.
func setup(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	// Logs go to stderr; stdout carries command output and the MCP stdio transport.
	a := &app{cfg: cfg, logger: newLogger(cmd.ErrOrStderr(), cfg.LogLevel)}

	cat, err := catalogfile.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	if cfg.Database != "" {
		cat.DuckDB.Database = cfg.Database
	}
	a.cat = cat

	a.tracer = telemetry.NoopTracer()
	a.inst = telemetry.NoopInstruments()
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, version,
			telemetry.WithAttributes(
				attribute.String("duckalog.catalog", cfg.CatalogPath),
				attribute.String("duckalog.database", cat.DatabasePath()),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		a.onClose(func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
			defer cancel()
			return provider.Shutdown(shutdownCtx)
		})
		a.tracer = provider.Tracer()
		a.inst = telemetry.NewInstruments()
		a.logger.Info("opentelemetry enabled")
	}

	a.logger.Debug("catalog loaded",
		slog.String("config", cfg.CatalogPath),
		slog.String("database", cat.DatabasePath()),
		slog.Int("views", len(cat.Views)),
	)
	return a, nil
}

func (a *app) validator() port.QueryValidator {
	gate := domain.NewSQLValidator()
	if a.cfg.StrictParse {
		return domain.NewChainValidator(gate, domain.NewParseValidator())
	}
	return gate
}

// openCatalog opens the built database for serving. A file database is
// opened read-only when configured and its session statements are
// replayed; an in-memory catalog is built from scratch.
func (a *app) openCatalog(ctx context.Context) (*sql.DB, error) {
	path := a.cat.DatabasePath()
	memory := path == domain.MemoryDatabase

	db, err := duckdb.Open(ctx, path, a.cfg.ReadOnly && !memory)
	if err != nil {
		return nil, err
	}
	a.onClose(db.Close)

	stmts := domain.Render(a.cat, domain.RenderOptions{})
	builder := duckdb.NewBuilder(db)
	if memory {
		err = builder.Apply(ctx, stmts)
	} else {
		err = builder.Prepare(ctx, stmts)
	}
	if err != nil {
		return nil, fmt.Errorf("preparing catalog: %w", err)
	}

	a.logger.Info("catalog opened",
		slog.String("db.system", "duckdb"),
		slog.String("database", path),
		slog.Bool("read_only", a.cfg.ReadOnly && !memory),
	)
	return db, nil
}

// services wires the explorer and query services over an open catalog.
func (a *app) services(db *sql.DB) (*service.ExplorerService, *service.QueryService, error) {
	explorer := service.NewExplorerService(annotate.NewExplorer(duckdb.NewExplorer(db), a.cat))

	var auditor port.QueryAuditor = audit.NoopAuditor{}
	if a.cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(a.cfg.AuditLog)
		if err != nil {
			return nil, nil, err
		}
		a.onClose(fa.Close)
		auditor = fa
		a.logger.Info("audit logging enabled", slog.String("file", a.cfg.AuditLog))
	}

	query := service.NewQueryService(
		a.validator(),
		duckdb.NewExecutor(db, a.cfg.MaxRows, a.cfg.QueryTimeout),
		auditor,
		a.logger,
		a.cat.Masks(),
		a.tracer,
		a.inst,
	)
	return explorer, query, nil
}
