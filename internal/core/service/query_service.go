package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/duckalog/duckalog/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type sourceKey struct{}

// WithSource returns a context naming the surface a query came from
// ("ui", "api", "mcp", "cli") for audit logging.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(sourceKey{}).(string); ok {
		return v
	}
	return ""
}

// RejectedError is returned when the validator refuses a query. Its message
// is the validator's reason, suitable for showing to the user as is.
type RejectedError struct {
	Err error
}

func (e *RejectedError) Error() string { return e.Err.Error() }

func (e *RejectedError) Unwrap() error { return e.Err }

// IsRejected reports whether err came from the validator rather than from
// executing the query.
func IsRejected(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej)
}

// QueryService orchestrates SQL validation (domain) and execution (infrastructure).
// A query the validator refuses never reaches the executor.
type QueryService struct {
	validator port.QueryValidator
	executor  port.QueryExecutor
	auditor   port.QueryAuditor
	logger    *slog.Logger
	masks     domain.ColumnMasks
	tracer    trace.Tracer
	inst      port.Instrumentation
}

func NewQueryService(validator port.QueryValidator, executor port.QueryExecutor, auditor port.QueryAuditor, logger *slog.Logger, masks domain.ColumnMasks, tracer trace.Tracer, inst port.Instrumentation) *QueryService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &QueryService{
		validator: validator,
		executor:  executor,
		auditor:   auditor,
		logger:    logger,
		masks:     masks,
		tracer:    tracer,
		inst:      inst,
	}
}

// Validate runs only the validator. It backs "check" endpoints that report
// whether a query would be accepted without running it.
func (s *QueryService) Validate(sql string) error {
	if err := s.validator.Validate(sql); err != nil {
		return &RejectedError{Err: err}
	}
	return nil
}

// Execute validates the SQL statement and, if allowed, delegates to the executor.
func (s *QueryService) Execute(ctx context.Context, sql string) (*port.QueryResult, error) {
	display := domain.Sanitize(sql)
	ctx, span := s.tracer.Start(ctx, "QueryService.Execute",
		trace.WithAttributes(
			attribute.String("db.system", "duckdb"),
			attribute.String("db.operation.name", "query"),
			attribute.String("db.statement", display),
		),
	)
	defer span.End()

	if err := s.validator.Validate(sql); err != nil {
		s.logger.WarnContext(ctx, "query validation rejected",
			slog.String("db.operation.name", "query"),
			slog.String("db.statement", display),
			slog.String("error.type", "validation_error"),
			slog.String("reason", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryRejections(ctx, rejectionKind(err))
		s.auditor.Record(ctx, port.AuditEntry{
			Source:   sourceFromCtx(ctx),
			SQL:      sql,
			Rejected: true,
			Err:      err,
		})
		return nil, &RejectedError{Err: err}
	}

	start := time.Now()
	result, err := s.executor.Execute(ctx, sql)
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordQueryDuration(ctx, float64(durationMS))

	rows := 0
	if result != nil {
		rows = len(result.Rows)
	}
	s.auditor.Record(ctx, port.AuditEntry{
		Source:       sourceFromCtx(ctx),
		SQL:          sql,
		RowsReturned: rows,
		DurationMS:   durationMS,
		Err:          err,
	})

	if err != nil {
		s.logger.ErrorContext(ctx, "query failed",
			slog.String("db.statement", display),
			slog.String("error.type", "execution_error"),
			slog.String("error.message", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryErrors(ctx)
		return nil, fmt.Errorf("executing query: %w", err)
	}

	if result == nil {
		result = &port.QueryResult{}
	}
	s.inst.IncrementQueryCount(ctx)
	span.SetAttributes(attribute.Int("db.response.rows", rows))
	s.masks.ForQuery(sql).Apply(result.Rows)

	s.logger.DebugContext(ctx, "query executed",
		slog.String("db.statement", display),
		slog.Int("db.response.rows", rows),
		slog.Int64("duration_ms", durationMS),
	)
	return result, nil
}

// rejectionKind labels the rejection metric without leaking query text.
func rejectionKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		return "empty"
	case errors.Is(err, domain.ErrForbiddenKeyword):
		return "forbidden_keyword"
	case errors.Is(err, domain.ErrNotReadOnly):
		return "not_read_only"
	case errors.Is(err, domain.ErrDangerousSyntax):
		return "dangerous_syntax"
	case errors.Is(err, domain.ErrDangerousFunction):
		return "dangerous_function"
	default:
		return "strict_parse"
	}
}
