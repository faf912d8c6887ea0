package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/duckalog/duckalog/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const serverName = "duckalog"

// rejectedPrefix starts the text of a query tool error that the SQL gate
// refused, as opposed to one that failed while running.
const rejectedPrefix = "query rejected: "

const (
	descListSchemas = "List the schemas of the built catalog with the number of views in each."

	descListViews = "List every view and table in the catalog with its schema, type, column count, " +
		"description and tags. Call this first to see what data is available."

	descDescribeView = "Describe one view: its columns with DuckDB types, nullability and descriptions, " +
		"which columns are masked in query results, and the SQL that defines it."

	descProfileView = "Profile the rows behind a view with DuckDB SUMMARIZE: exact row count and, per column, " +
		"min, max, approximate distinct count, null percentage and a cardinality class " +
		"(unique, near_unique, enum_like, low_cardinality, high_cardinality). " +
		"Use it to decide what to GROUP BY or filter on. Scans the whole view, so it can be slow on large data."

	descQuery = "Run a read-only SQL query (SELECT or WITH only, one statement, no comments) against the catalog " +
		"and return {columns, rows, truncated}. A row cap and timeout are enforced server-side; " +
		"truncated is true when the cap cut the result. Masked columns come back masked."

	descSanitizeSQL = "Strip comments and collapse whitespace in a SQL string and report whether the original " +
		"would be accepted by the query tool. Useful for explaining why a query was refused."

	descViewParam   = "Name of the view"
	descSchemaParam = "Schema name (optional, resolved automatically when the view name is unique)"
)

func RegisterTools(s *server.MCPServer, explorer *service.ExplorerService, query *service.QueryService) {
	if explorer != nil {
		s.AddTool(
			mcp.NewTool("list_schemas",
				mcp.WithDescription(descListSchemas),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			listSchemasHandler(explorer),
		)

		s.AddTool(
			mcp.NewTool("list_views",
				mcp.WithDescription(descListViews),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			listViewsHandler(explorer),
		)

		s.AddTool(
			mcp.NewTool("describe_view",
				mcp.WithDescription(descDescribeView),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("view", mcp.Required(), mcp.Description(descViewParam)),
				mcp.WithString("schema", mcp.Description(descSchemaParam)),
			),
			describeViewHandler(explorer),
		)

		s.AddTool(
			mcp.NewTool("profile_view",
				mcp.WithDescription(descProfileView),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("view", mcp.Required(), mcp.Description(descViewParam)),
				mcp.WithString("schema", mcp.Description(descSchemaParam)),
			),
			profileViewHandler(explorer),
		)
	}

	if query != nil {
		s.AddTool(
			mcp.NewTool("query",
				mcp.WithDescription(descQuery),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("sql", mcp.Required(), mcp.Description("SQL query to run")),
			),
			queryHandler(query),
		)

		s.AddTool(
			mcp.NewTool("sanitize_sql",
				mcp.WithDescription(descSanitizeSQL),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("sql", mcp.Required(), mcp.Description("SQL text to sanitize")),
			),
			sanitizeHandler(query),
		)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func viewArgs(request mcp.CallToolRequest) (schema, view string, ok bool) {
	view = request.GetString("view", "")
	schema = request.GetString("schema", "")
	return schema, view, view != ""
}

func listSchemasHandler(explorer *service.ExplorerService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schemas, err := explorer.ListSchemas(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list schemas: %v", err)), nil
		}
		return jsonResult(schemas)
	}
}

func listViewsHandler(explorer *service.ExplorerService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		views, err := explorer.ListViews(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list views: %v", err)), nil
		}
		return jsonResult(views)
	}
}

func describeViewHandler(explorer *service.ExplorerService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schema, view, ok := viewArgs(request)
		if !ok {
			return mcp.NewToolResultError("view is required"), nil
		}
		detail, err := explorer.DescribeView(ctx, schema, view)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to describe view: %v", err)), nil
		}
		return jsonResult(detail)
	}
}

func profileViewHandler(explorer *service.ExplorerService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schema, view, ok := viewArgs(request)
		if !ok {
			return mcp.NewToolResultError("view is required"), nil
		}
		profile, err := explorer.ProfileView(ctx, schema, view)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to profile view: %v", err)), nil
		}
		return jsonResult(profile)
	}
}

func queryHandler(query *service.QueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := request.RequireString("sql")
		if err != nil || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		ctx = service.WithSource(ctx, "mcp")
		result, err := query.Execute(ctx, sql)
		if err != nil {
			var rej *service.RejectedError
			if errors.As(err, &rej) {
				return mcp.NewToolResultError(rejectedPrefix + rej.Error()), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		return jsonResult(result)
	}
}

type sanitizeResult struct {
	Sanitized string `json:"sanitized"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
}

func sanitizeHandler(query *service.QueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := request.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql is required"), nil
		}
		res := sanitizeResult{Sanitized: domain.Sanitize(sql), Valid: true}
		if err := query.Validate(sql); err != nil {
			res.Valid = false
			res.Reason = err.Error()
		}
		return jsonResult(res)
	}
}
