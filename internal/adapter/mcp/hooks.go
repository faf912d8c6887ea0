package mcp

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/duckalog/duckalog/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Outcomes of a tool call, as logged under "outcome".
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// pendingCall is the state kept between the before and after hooks.
type pendingCall struct {
	tool  string
	view  string
	start time.Time
	span  trace.Span
}

// toolOutcome classifies a tool result. A query the gate refused is
// reported as rejected, not failed, and carries the gate's reason.
func toolOutcome(result *mcp.CallToolResult) (outcome, reason string) {
	if result == nil || !result.IsError {
		return outcomeOK, ""
	}
	for _, c := range result.Content {
		if text, ok := mcp.AsTextContent(c); ok && strings.HasPrefix(text.Text, rejectedPrefix) {
			return outcomeRejected, strings.TrimPrefix(text.Text, rejectedPrefix)
		}
	}
	return outcomeFailed, ""
}

// callRecorder tracks in-flight tool calls by request id.
type callRecorder struct {
	logger *slog.Logger
	tracer trace.Tracer
	inst   port.Instrumentation
	calls  sync.Map // request id -> *pendingCall
}

func (r *callRecorder) begin(ctx context.Context, id any, req *mcp.CallToolRequest) {
	call := &pendingCall{
		tool:  req.Params.Name,
		view:  req.GetString("view", ""),
		start: time.Now(),
	}
	if r.tracer != nil {
		attrs := []attribute.KeyValue{attribute.String("mcp.tool", call.tool)}
		if call.view != "" {
			attrs = append(attrs, attribute.String("duckalog.view", call.view))
		}
		_, call.span = r.tracer.Start(ctx, "mcp.tool.call", trace.WithAttributes(attrs...))
	}
	r.calls.Store(id, call)
}

func (r *callRecorder) take(id any) *pendingCall {
	v, ok := r.calls.LoadAndDelete(id)
	if !ok {
		return nil
	}
	return v.(*pendingCall)
}

func (r *callRecorder) finish(ctx context.Context, id any, req *mcp.CallToolRequest, result *mcp.CallToolResult) {
	outcome, reason := toolOutcome(result)
	call := r.take(id)

	var duration time.Duration
	if call != nil {
		duration = time.Since(call.start)
	}

	attrs := []slog.Attr{
		slog.String("rpc.method", "tools/call"),
		slog.String("mcp.tool", req.Params.Name),
		slog.Duration("duration", duration),
		slog.String("outcome", outcome),
		slog.Bool("duckalog.rejected", outcome == outcomeRejected),
	}
	if call != nil && call.view != "" {
		attrs = append(attrs, slog.String("duckalog.view", call.view))
	}
	level := slog.LevelInfo
	switch outcome {
	case outcomeRejected:
		// Rejections stay at info with the reason attached.
		attrs = append(attrs, slog.String("reason", reason))
	case outcomeFailed:
		level = slog.LevelWarn
	}
	r.logger.LogAttrs(ctx, level, "tool call", attrs...)

	if r.inst != nil {
		r.inst.RecordToolDuration(ctx, float64(duration.Milliseconds()))
	}

	if call == nil || call.span == nil {
		return
	}
	call.span.SetAttributes(
		attribute.String("duckalog.outcome", outcome),
		attribute.Bool("duckalog.rejected", outcome == outcomeRejected),
	)
	switch outcome {
	case outcomeRejected:
		call.span.AddEvent("query rejected", trace.WithAttributes(attribute.String("reason", reason)))
	case outcomeFailed:
		call.span.SetStatus(codes.Error, "tool returned error")
	}
	call.span.End()
}

func (r *callRecorder) fail(ctx context.Context, id any, message any, err error) {
	call := r.take(id)

	var tool string
	var duration time.Duration
	if call != nil {
		tool = call.tool
		duration = time.Since(call.start)
	}
	if req, ok := message.(*mcp.CallToolRequest); ok {
		tool = req.Params.Name
	}
	if tool != "" {
		r.logger.LogAttrs(ctx, slog.LevelError, "tool call",
			slog.String("rpc.method", "tools/call"),
			slog.String("mcp.tool", tool),
			slog.Duration("duration", duration),
			slog.String("outcome", outcomeFailed),
			slog.String("error.message", err.Error()),
		)
	}

	if call != nil && call.span != nil {
		call.span.RecordError(err)
		call.span.SetStatus(codes.Error, err.Error())
		call.span.End()
	}
}

// ToolCallHooks logs every tool call with its duration and outcome, and
// wraps it in a span. tracer and inst may be nil.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	rec := &callRecorder{logger: logger, tracer: tracer, inst: inst}

	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(rec.begin)
	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		res, _ := result.(*mcp.CallToolResult)
		rec.finish(ctx, id, req, res)
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		if method != mcp.MethodToolsCall {
			return
		}
		rec.fail(ctx, id, message, err)
	})
	return hooks
}
