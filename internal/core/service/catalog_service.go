package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/duckalog/duckalog/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

// maxParallelProbes bounds concurrent Postgres connections during preflight.
const maxParallelProbes = 4

// BuildOptions controls a catalog build.
type BuildOptions struct {
	// DryRun renders the statements without touching the database.
	DryRun bool
	// ProbeAttachments checks Postgres attachments are reachable first.
	ProbeAttachments bool
}

// BuildReport summarises a build.
type BuildReport struct {
	Database   string             `json:"database"`
	Statements []domain.Statement `json:"statements"`
	Views      int                `json:"views"`
	DryRun     bool               `json:"dry_run"`
	DurationMS int64              `json:"duration_ms"`
}

// CatalogService turns a loaded catalog into a built DuckDB database.
type CatalogService struct {
	applier port.CatalogApplier
	prober  port.AttachmentProber
	logger  *slog.Logger
	tracer  trace.Tracer
	inst    port.Instrumentation
}

// NewCatalogService wires the build pipeline. applier may be nil when only
// dry runs are performed; prober may be nil to disable probing.
func NewCatalogService(applier port.CatalogApplier, prober port.AttachmentProber, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *CatalogService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &CatalogService{
		applier: applier,
		prober:  prober,
		logger:  logger,
		tracer:  tracer,
		inst:    inst,
	}
}

// GenerateSQL renders the build script. Credentials are redacted unless
// reveal is set.
func (s *CatalogService) GenerateSQL(cat *domain.Catalog, reveal bool) (string, error) {
	if err := cat.Validate(); err != nil {
		return "", err
	}
	return domain.Script(domain.Render(cat, domain.RenderOptions{RedactSecrets: !reveal})), nil
}

// Build validates, renders and applies the catalog.
func (s *CatalogService) Build(ctx context.Context, cat *domain.Catalog, opts BuildOptions) (*BuildReport, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.Build",
		trace.WithAttributes(
			attribute.String("db.system", "duckdb"),
			attribute.String("db.namespace", cat.DatabasePath()),
			attribute.Bool("duckalog.dry_run", opts.DryRun),
		),
	)
	defer span.End()

	fail := func(err error) (*BuildReport, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := cat.Validate(); err != nil {
		return fail(err)
	}

	start := time.Now()
	stmts := domain.Render(cat, domain.RenderOptions{})
	report := &BuildReport{
		Database: cat.DatabasePath(),
		DryRun:   opts.DryRun,
	}
	for _, st := range stmts {
		if st.Kind == domain.StmtView {
			report.Views++
		}
	}

	if opts.DryRun {
		report.Statements = domain.Render(cat, domain.RenderOptions{RedactSecrets: true})
		s.logger.InfoContext(ctx, "dry run rendered catalog",
			slog.Int("statements", len(stmts)),
			slog.Int("views", report.Views),
		)
		return report, nil
	}

	if opts.ProbeAttachments && s.prober != nil {
		if err := s.probeAll(ctx, cat.Attachments.Postgres); err != nil {
			return fail(err)
		}
	}

	if s.applier == nil {
		return fail(fmt.Errorf("no database configured for build"))
	}
	if err := s.applier.Apply(ctx, stmts); err != nil {
		return fail(fmt.Errorf("building catalog: %w", err))
	}

	report.Statements = domain.Render(cat, domain.RenderOptions{RedactSecrets: true})
	report.DurationMS = time.Since(start).Milliseconds()
	s.inst.RecordBuildDuration(ctx, float64(report.DurationMS))
	span.SetAttributes(attribute.Int("duckalog.views", report.Views))

	s.logger.InfoContext(ctx, "catalog built",
		slog.String("database", report.Database),
		slog.Int("statements", len(stmts)),
		slog.Int("views", report.Views),
		slog.Int64("duration_ms", report.DurationMS),
	)
	return report, nil
}

func (s *CatalogService) probeAll(ctx context.Context, atts []domain.PostgresAttachment) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelProbes)

	for i := range atts {
		att := atts[i]
		g.Go(func() error {
			if err := s.prober.Probe(gctx, att); err != nil {
				return fmt.Errorf("probing postgres attachment %q: %w", att.Alias, err)
			}
			s.logger.DebugContext(gctx, "attachment reachable", slog.String("alias", att.Alias))
			return nil
		})
	}
	return g.Wait()
}
