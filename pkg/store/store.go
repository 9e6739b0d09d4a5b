// Package store wraps the embedded DuckDB database behind a small adapter:
// listing tables, describing schema, paging rows, running queries, and
// importing uploaded files. All SQL execution, CSV parsing, and type
// inference are delegated to the engine itself.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
	"go.uber.org/zap"

	"github.com/duckpond/duckpond/pkg/apperrors"
)

// MetadataTableName is the side table holding human-curated annotations.
// It is filtered out of every user-facing listing.
const MetadataTableName = "_duckpond_table_metadata"

// maxIdentifierLength bounds table names; DuckDB itself accepts longer, but
// names come from uploaded file stems and anything longer is garbage.
const maxIdentifierLength = 200

// identPattern matches table names after URL-escaping of the original file
// stem: word characters plus %, and the characters QueryEscape leaves
// verbatim (-, ., ~).
var identPattern = regexp.MustCompile(`^[\w%.\-~]+$`)

// TableInfo describes one user table.
type TableInfo struct {
	Name     string `json:"name"`
	RowCount int64  `json:"row_count"`
}

// Column describes one column of a table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ResultSet contains the results of a query execution.
type ResultSet struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Store owns the embedded database connection pool. The engine serializes
// concurrent writers internally; this layer adds no locking.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens (creating if needed) the DuckDB database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database at %s: %w", path, err)
	}

	return &Store{db: db, path: path, logger: logger}, nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the location of the database file, used by the download
// endpoint to stream the raw file.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying pool for the metadata side table.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ValidateColumnName enforces length and non-emptiness only: column names
// come from CSV headers, which the engine accepts verbatim (spaces and all),
// so the charset is not restricted. QuoteIdent keeps interpolation safe.
func ValidateColumnName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: column name must not be empty", apperrors.ErrValidation)
	}
	if len(name) > maxIdentifierLength {
		return fmt.Errorf("%w: column name exceeds %d characters", apperrors.ErrValidation, maxIdentifierLength)
	}
	return nil
}

// ValidateTableName enforces the store's identifier constraints.
func ValidateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: table name must not be empty", apperrors.ErrValidation)
	}
	if len(name) > maxIdentifierLength {
		return fmt.Errorf("%w: table name exceeds %d characters", apperrors.ErrValidation, maxIdentifierLength)
	}
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: table name %q contains unsupported characters", apperrors.ErrValidation, name)
	}
	if strings.HasPrefix(name, "_duckpond") {
		return fmt.Errorf("%w: the _duckpond prefix is reserved", apperrors.ErrValidation)
	}
	return nil
}

// QuoteIdent quotes an identifier for interpolation into DDL, doubling any
// embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a string literal, doubling embedded single quotes.
func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// ListTables returns every user table with its row count, alphabetically.
// The metadata side table is excluded.
func (s *Store) ListTables(ctx context.Context) ([]TableInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_catalog = current_database()
		  AND table_schema = 'main' AND table_name <> ?
		ORDER BY table_name`, MetadataTableName)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", apperrors.ClassifyEngine(err))
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table list: %w", err)
	}

	tables := make([]TableInfo, 0, len(names))
	for _, name := range names {
		count, err := s.RowCount(ctx, name)
		if err != nil {
			// A table dropped between the listing and the count is not
			// worth failing the whole listing for.
			s.logger.Warn("Failed to count rows", zap.String("table", name), zap.Error(err))
			continue
		}
		tables = append(tables, TableInfo{Name: name, RowCount: count})
	}
	return tables, nil
}

// TableExists reports whether a user table with the given name exists.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM information_schema.tables
		WHERE table_catalog = current_database()
		  AND table_schema = 'main' AND table_name = ?`, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", apperrors.ClassifyEngine(err))
	}
	return count > 0, nil
}

// requireTable validates the name and returns ErrNotFound if absent.
func (s *Store) requireTable(ctx context.Context, table string) error {
	if err := ValidateTableName(table); err != nil {
		return err
	}
	exists, err := s.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: table %q does not exist", apperrors.ErrNotFound, table)
	}
	return nil
}

// Schema returns the column list of a table in declaration order.
func (s *Store) Schema(ctx context.Context, table string) ([]Column, error) {
	if err := s.requireTable(ctx, table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type FROM information_schema.columns
		WHERE table_catalog = current_database()
		  AND table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %q: %w", table, apperrors.ClassifyEngine(err))
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	return columns, nil
}

// RowCount returns the number of rows in a table.
func (s *Store) RowCount(ctx context.Context, table string) (int64, error) {
	if err := ValidateTableName(table); err != nil {
		return 0, err
	}
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+QuoteIdent(table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows of %q: %w", table, apperrors.ClassifyEngine(err))
	}
	return count, nil
}

// Page returns limit rows of a table starting at offset.
func (s *Store) Page(ctx context.Context, table string, limit, offset int) (*ResultSet, error) {
	if err := s.requireTable(ctx, table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d OFFSET %d", QuoteIdent(table), limit, offset)
	return s.Query(ctx, query)
}

// Query executes a single SQL statement verbatim and collects the full
// result set. Engine errors are classified before returning.
func (s *Store) Query(ctx context.Context, query string) (*ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", apperrors.ClassifyEngine(err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &ResultSet{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", apperrors.ClassifyEngine(err))
	}
	return result, nil
}

// DropTable removes a table. Returns ErrNotFound if it does not exist;
// cascading removal of metadata happens at the service layer.
// RenameColumn renames a column in place. Fails with ErrNotFound when the
// table or the old column is absent and ErrConflict when the new name is
// already taken.
func (s *Store) RenameColumn(ctx context.Context, table, oldName, newName string) error {
	if err := ValidateColumnName(newName); err != nil {
		return err
	}
	columns, err := s.Schema(ctx, table)
	if err != nil {
		return err
	}
	found := false
	for _, col := range columns {
		if col.Name == oldName {
			found = true
		}
		if col.Name == newName {
			return fmt.Errorf("%w: column %q already exists in table %q", apperrors.ErrConflict, newName, table)
		}
	}
	if !found {
		return fmt.Errorf("%w: column %q does not exist in table %q", apperrors.ErrNotFound, oldName, table)
	}

	stmt := "ALTER TABLE " + QuoteIdent(table) + " RENAME COLUMN " + QuoteIdent(oldName) + " TO " + QuoteIdent(newName)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to rename column %q on %q: %w", oldName, table, apperrors.ClassifyEngine(err))
	}
	s.logger.Info("Renamed column",
		zap.String("table", table),
		zap.String("from", oldName),
		zap.String("to", newName))
	return nil
}

func (s *Store) DropTable(ctx context.Context, table string) error {
	if err := s.requireTable(ctx, table); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE "+QuoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop table %q: %w", table, apperrors.ClassifyEngine(err))
	}
	s.logger.Info("Dropped table", zap.String("table", table))
	return nil
}

// normalizeValue converts driver-specific values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}
