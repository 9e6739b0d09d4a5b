// Package tools registers the MCP tool surface. Each tool is a thin
// protocol shim: it decodes the request arguments and hands them to the
// dispatcher, which owns validation, execution, and the response envelope.
package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/duckpond/duckpond/pkg/dispatch"
)

// Deps contains dependencies for the database tools.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Logger     *zap.Logger
}

// RegisterAll registers the six database tools.
func RegisterAll(s *server.MCPServer, deps *Deps) {
	registerListTablesTool(s, deps)
	registerGetTableSchemaTool(s, deps)
	registerGetTableMetadataTool(s, deps)
	registerGetTableDataTool(s, deps)
	registerExecuteQueryTool(s, deps)
	registerSearchTablesTool(s, deps)
}

// handlerFor adapts one dispatcher tool into an mcp-go handler. The
// envelope is serialized as the tool's JSON text result; error envelopes
// are flagged IsError so the agent sees the actionable message instead of a
// swallowed protocol failure.
func handlerFor(name dispatch.ToolName, deps *Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		if args == nil {
			args = map[string]any{}
		}

		envelope := deps.Dispatcher.Dispatch(ctx, name, args)

		jsonBytes, err := json.Marshal(envelope)
		if err != nil {
			deps.Logger.Error("Failed to encode tool result",
				zap.String("tool", string(name)),
				zap.Error(err))
			return nil, err
		}

		result := mcp.NewToolResultText(string(jsonBytes))
		result.IsError = !envelope.OK
		return result, nil
	}
}

func registerListTablesTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		string(dispatch.ToolListTables),
		mcp.WithDescription(
			"List all tables in the local database with their human-readable "+
				"display names and row counts. Use this first to discover what data is available.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
	s.AddTool(tool, handlerFor(dispatch.ToolListTables, deps))
}

func registerGetTableSchemaTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		string(dispatch.ToolGetTableSchema),
		mcp.WithDescription(
			"Get the column list of a table with declared types. "+
				"Returns a not_found error if the table does not exist.",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Name of the table to describe"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
	s.AddTool(tool, handlerFor(dispatch.ToolGetTableSchema, deps))
}

func registerGetTableMetadataTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		string(dispatch.ToolGetTableMetadata),
		mcp.WithDescription(
			"Get the full metadata of a table: schema merged with the human-curated "+
				"display name, table comment, per-column comments, and import origin. "+
				"Prefer this over get_table_schema when the comments matter for interpreting the data.",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Name of the table"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
	s.AddTool(tool, handlerFor(dispatch.ToolGetTableMetadata, deps))
}

func registerGetTableDataTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		string(dispatch.ToolGetTableData),
		mcp.WithDescription(
			"Fetch a page of rows from a table. The default limit is 100; "+
				"use limit and offset to page through larger tables.",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Name of the table to read"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Maximum rows to return (default 100, capped by server config)"),
		),
		mcp.WithNumber(
			"offset",
			mcp.Description("Rows to skip before the first returned row (default 0)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
	s.AddTool(tool, handlerFor(dispatch.ToolGetTableData, deps))
}

func registerExecuteQueryTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		string(dispatch.ToolExecuteQuery),
		mcp.WithDescription(
			"Execute a single SQL statement against the local DuckDB database. "+
				"SELECT statements without a LIMIT get one appended (default 100, override with limit). "+
				"Multiple statements per call are rejected. Invalid SQL comes back as a "+
				"validation_error envelope with the engine's message.",
		),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("The SQL statement to execute"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Row cap appended to SELECT statements lacking a LIMIT (default 100)"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
	s.AddTool(tool, handlerFor(dispatch.ToolExecuteQuery, deps))
}

func registerSearchTablesTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		string(dispatch.ToolSearchTables),
		mcp.WithDescription(
			"Search tables by case-insensitive substring match over table name, "+
				"display name, and table comment. Useful for finding data by topic "+
				"when the exact table name is unknown.",
		),
		mcp.WithString(
			"term",
			mcp.Required(),
			mcp.Description("Search term, matched case-insensitively"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
	s.AddTool(tool, handlerFor(dispatch.ToolSearchTables, deps))
}
