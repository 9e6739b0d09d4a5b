// Package dispatch maps the fixed set of tool names onto store and metadata
// calls. It is the single entry point the protocol layer invokes: every call
// validates its arguments, runs one logical operation, and returns a uniform
// envelope. No error escapes uncaught.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/duckpond/duckpond/pkg/apperrors"
	"github.com/duckpond/duckpond/pkg/metadata"
	"github.com/duckpond/duckpond/pkg/sqlcheck"
	"github.com/duckpond/duckpond/pkg/store"
)

// ToolName identifies one of the six exposed operations.
type ToolName string

// The fixed tool surface. Adding a tool means adding a constant, an argument
// type, and a case in Dispatch, so omissions fail review rather than runtime.
const (
	ToolListTables       ToolName = "list_tables"
	ToolGetTableSchema   ToolName = "get_table_schema"
	ToolGetTableMetadata ToolName = "get_table_metadata"
	ToolGetTableData     ToolName = "get_table_data"
	ToolExecuteQuery     ToolName = "execute_query"
	ToolSearchTables     ToolName = "search_tables"
)

// AllTools lists every tool name, for registration and validation.
func AllTools() []ToolName {
	return []ToolName{
		ToolListTables,
		ToolGetTableSchema,
		ToolGetTableMetadata,
		ToolGetTableData,
		ToolExecuteQuery,
		ToolSearchTables,
	}
}

// Error is the machine-readable error half of the envelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the uniform response envelope for every tool call.
type Result struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Dispatcher resolves tool calls against the store and metadata service.
type Dispatcher struct {
	store        *store.Store
	meta         *metadata.Service
	defaultLimit int
	maxLimit     int
	logger       *zap.Logger
}

// New creates a Dispatcher. defaultLimit bounds get_table_data and
// execute_query result sizes when the caller does not specify one; maxLimit
// caps what a caller may request.
func New(st *store.Store, meta *metadata.Service, defaultLimit, maxLimit int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:        st,
		meta:         meta,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger,
	}
}

// Dispatch routes a tool call to its handler and wraps the outcome in the
// response envelope. Unknown tool names and argument failures come back as
// validation errors; panics in the storage layer are converted to
// store_error rather than crossing the protocol boundary.
func (d *Dispatcher) Dispatch(ctx context.Context, name ToolName, args map[string]any) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Tool handler panicked",
				zap.String("tool", string(name)),
				zap.Any("panic", r))
			result = errorResult(fmt.Errorf("%w: internal failure in %s", apperrors.ErrStore, name))
		}
	}()

	var (
		data any
		err  error
	)
	switch name {
	case ToolListTables:
		data, err = d.listTables(ctx)
	case ToolGetTableSchema:
		data, err = d.getTableSchema(ctx, args)
	case ToolGetTableMetadata:
		data, err = d.getTableMetadata(ctx, args)
	case ToolGetTableData:
		data, err = d.getTableData(ctx, args)
	case ToolExecuteQuery:
		data, err = d.executeQuery(ctx, args)
	case ToolSearchTables:
		data, err = d.searchTables(ctx, args)
	default:
		err = fmt.Errorf("%w: unknown tool %q", apperrors.ErrValidation, name)
	}

	if err != nil {
		if apperrors.IsInputError(err) {
			d.logger.Debug("Tool call rejected",
				zap.String("tool", string(name)),
				zap.Error(err))
		} else {
			d.logger.Error("Tool call failed",
				zap.String("tool", string(name)),
				zap.Error(err))
		}
		return errorResult(err)
	}
	return Result{OK: true, Data: data}
}

func errorResult(err error) Result {
	return Result{
		OK: false,
		Error: &Error{
			Code:    apperrors.Code(err),
			Message: apperrors.Message(err),
		},
	}
}

// tableListEntry is one row of the list_tables result.
type tableListEntry struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	RowCount    int64  `json:"row_count"`
}

type listTablesResult struct {
	Tables []tableListEntry `json:"tables"`
}

func (d *Dispatcher) listTables(ctx context.Context) (any, error) {
	all, err := d.meta.List(ctx)
	if err != nil {
		return nil, err
	}
	out := listTablesResult{Tables: make([]tableListEntry, 0, len(all))}
	for _, meta := range all {
		out.Tables = append(out.Tables, tableListEntry{
			Name:        meta.Table,
			DisplayName: meta.DisplayName,
			RowCount:    meta.RowCount,
		})
	}
	return out, nil
}

type schemaResult struct {
	Table   string         `json:"table"`
	Columns []store.Column `json:"columns"`
}

func (d *Dispatcher) getTableSchema(ctx context.Context, args map[string]any) (any, error) {
	table, err := requireTableArg(args)
	if err != nil {
		return nil, err
	}
	columns, err := d.store.Schema(ctx, table)
	if err != nil {
		return nil, err
	}
	return schemaResult{Table: table, Columns: columns}, nil
}

func (d *Dispatcher) getTableMetadata(ctx context.Context, args map[string]any) (any, error) {
	table, err := requireTableArg(args)
	if err != nil {
		return nil, err
	}
	return d.meta.Get(ctx, table)
}

type tableDataResult struct {
	Table   string           `json:"table"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

func (d *Dispatcher) getTableData(ctx context.Context, args map[string]any) (any, error) {
	table, err := requireTableArg(args)
	if err != nil {
		return nil, err
	}
	limit, err := d.boundedLimit(args)
	if err != nil {
		return nil, err
	}
	offset, err := optionalIntArg(args, "offset", 0)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", apperrors.ErrValidation)
	}

	rs, err := d.store.Page(ctx, table, limit, offset)
	if err != nil {
		return nil, err
	}
	return tableDataResult{
		Table:   table,
		Columns: rs.Columns,
		Rows:    rs.Rows,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

type queryResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

func (d *Dispatcher) executeQuery(ctx context.Context, args map[string]any) (any, error) {
	raw, err := requireStringArg(args, "query")
	if err != nil {
		return nil, err
	}
	limit, err := d.boundedLimit(args)
	if err != nil {
		return nil, err
	}

	query, err := sqlcheck.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	query = sqlcheck.EnsureSelectLimit(query, limit)

	rs, err := d.store.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return queryResult{Columns: rs.Columns, Rows: rs.Rows, RowCount: len(rs.Rows)}, nil
}

type searchResult struct {
	Term    string                   `json:"term"`
	Tables  []metadata.TableMetadata `json:"tables"`
	Matches int                      `json:"matches"`
}

func (d *Dispatcher) searchTables(ctx context.Context, args map[string]any) (any, error) {
	term, err := requireStringArg(args, "term")
	if err != nil {
		return nil, err
	}
	matches, err := d.meta.Search(ctx, term)
	if err != nil {
		return nil, err
	}
	return searchResult{Term: term, Tables: matches, Matches: len(matches)}, nil
}

// boundedLimit resolves the optional limit argument against the configured
// default and cap.
func (d *Dispatcher) boundedLimit(args map[string]any) (int, error) {
	limit, err := optionalIntArg(args, "limit", d.defaultLimit)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, fmt.Errorf("%w: limit must be positive", apperrors.ErrValidation)
	}
	if limit > d.maxLimit {
		limit = d.maxLimit
	}
	return limit, nil
}
