package mcp

import (
	"log/slog"

	"github.com/duckalog/duckalog/internal/core/port"
	"github.com/duckalog/duckalog/internal/core/service"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer with the catalog tools and logging hooks.
func NewServer(version string, explorer *service.ExplorerService, query *service.QueryService, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, explorer, query)

	return s
}
