// Package metadata persists the human-curated annotations layered on top of
// raw tables: display names, free-text comments, and per-column comments.
//
// Annotations live in an explicit side table keyed by table name rather than
// behind engine COMMENT ON support, so the cascading-delete invariant (a
// metadata record never outlives its table) is enforced in one place.
package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/duckpond/duckpond/pkg/apperrors"
	"github.com/duckpond/duckpond/pkg/sqlcheck"
	"github.com/duckpond/duckpond/pkg/store"
)

// ColumnMetadata is one column of a table, with its curated comment.
type ColumnMetadata struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Comment string `json:"comment"`
}

// TableMetadata merges a table's schema with its annotation record. When no
// record exists, defaults apply: display name = table name, empty comments.
type TableMetadata struct {
	Table       string           `json:"table"`
	DisplayName string           `json:"display_name"`
	Comment     string           `json:"comment"`
	RowCount    int64            `json:"row_count"`
	Columns     []ColumnMetadata `json:"columns"`
	SourceFile  string           `json:"source_file,omitempty"`
	ImportedAt  *time.Time       `json:"imported_at,omitempty"`
}

// Update carries a partial metadata edit. Nil fields are left unchanged;
// ColumnComments entries are merged per column.
type Update struct {
	DisplayName    *string           `json:"display_name,omitempty"`
	Comment        *string           `json:"comment,omitempty"`
	ColumnComments map[string]string `json:"column_comments,omitempty"`
}

// record is the raw side-table row.
type record struct {
	displayName    string
	comment        string
	columnComments map[string]string
	sourceFile     string
	importedAt     *time.Time
}

// Service provides metadata persistence over the embedded store.
type Service struct {
	store  *store.Store
	logger *zap.Logger
}

// NewService creates a metadata Service.
func NewService(st *store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger}
}

// EnsureSchema creates the metadata side table if it does not exist.
// Idempotent; called once at startup.
func (s *Service) EnsureSchema(ctx context.Context) error {
	_, err := s.store.DB().ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+store.MetadataTableName+` (
			table_name      VARCHAR PRIMARY KEY,
			display_name    VARCHAR,
			comment         VARCHAR,
			column_comments VARCHAR,
			source_file     VARCHAR,
			imported_at     TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}
	return nil
}

// Get returns the merged metadata for a table. Absence of an annotation
// record is not an error; only a missing table is.
func (s *Service) Get(ctx context.Context, table string) (*TableMetadata, error) {
	schema, err := s.store.Schema(ctx, table)
	if err != nil {
		return nil, err
	}
	rowCount, err := s.store.RowCount(ctx, table)
	if err != nil {
		return nil, err
	}

	meta := &TableMetadata{
		Table:       table,
		DisplayName: table,
		RowCount:    rowCount,
		Columns:     make([]ColumnMetadata, 0, len(schema)),
	}
	for _, col := range schema {
		meta.Columns = append(meta.Columns, ColumnMetadata{Name: col.Name, Type: col.Type})
	}

	rec, err := s.getRecord(ctx, table)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return meta, nil
	}

	if rec.displayName != "" {
		meta.DisplayName = rec.displayName
	}
	meta.Comment = rec.comment
	meta.SourceFile = rec.sourceFile
	meta.ImportedAt = rec.importedAt
	for i := range meta.Columns {
		meta.Columns[i].Comment = rec.columnComments[meta.Columns[i].Name]
	}
	return meta, nil
}

// Set upserts annotations for a table. Unset fields keep their previous
// values; column comments are merged per column. Fails with ErrNotFound if
// the table itself is absent and ErrValidation on bad input.
func (s *Service) Set(ctx context.Context, table string, upd Update) error {
	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: table %q does not exist", apperrors.ErrNotFound, table)
	}

	if err := screenUpdate(upd); err != nil {
		return err
	}

	rec, err := s.getRecord(ctx, table)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &record{columnComments: map[string]string{}}
	}
	if rec.columnComments == nil {
		rec.columnComments = map[string]string{}
	}

	if upd.DisplayName != nil {
		rec.displayName = strings.TrimSpace(*upd.DisplayName)
	}
	if upd.Comment != nil {
		rec.comment = strings.TrimSpace(*upd.Comment)
	}
	for col, comment := range upd.ColumnComments {
		rec.columnComments[col] = strings.TrimSpace(comment)
	}

	return s.putRecord(ctx, table, rec)
}

// RecordImport stores the origin of a freshly imported table: the uploaded
// file name and the import timestamp.
func (s *Service) RecordImport(ctx context.Context, table, sourceFile string, importedAt time.Time) error {
	rec, err := s.getRecord(ctx, table)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &record{columnComments: map[string]string{}}
	}
	rec.sourceFile = sourceFile
	rec.importedAt = &importedAt
	return s.putRecord(ctx, table, rec)
}

// RenameColumn renames a column in the store and moves any annotation under
// the old name along with it, so comments follow the column.
func (s *Service) RenameColumn(ctx context.Context, table, oldName, newName string) error {
	if err := s.store.RenameColumn(ctx, table, oldName, newName); err != nil {
		return err
	}

	rec, err := s.getRecord(ctx, table)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	comment, ok := rec.columnComments[oldName]
	if !ok {
		return nil
	}
	delete(rec.columnComments, oldName)
	rec.columnComments[newName] = comment
	return s.putRecord(ctx, table, rec)
}

// Delete removes a table's annotation record. Idempotent: absence is not an
// error.
func (s *Service) Delete(ctx context.Context, table string) error {
	if err := store.ValidateTableName(table); err != nil {
		return err
	}
	_, err := s.store.DB().ExecContext(ctx,
		"DELETE FROM "+store.MetadataTableName+" WHERE table_name = ?", table)
	if err != nil {
		return fmt.Errorf("failed to delete metadata for %q: %w", table, err)
	}
	return nil
}

// DropTable removes a table and, in the same request, its metadata record.
// The cascade keeps the invariant that metadata never outlives its table.
func (s *Service) DropTable(ctx context.Context, table string) error {
	if err := s.store.DropTable(ctx, table); err != nil {
		return err
	}
	return s.Delete(ctx, table)
}

// List returns every user table with its display name, comment, and row
// count. Tables without an annotation record get defaults.
func (s *Service) List(ctx context.Context) ([]TableMetadata, error) {
	tables, err := s.store.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]TableMetadata, 0, len(tables))
	for _, tbl := range tables {
		rec, err := s.getRecord(ctx, tbl.Name)
		if err != nil {
			return nil, err
		}
		meta := TableMetadata{Table: tbl.Name, DisplayName: tbl.Name, RowCount: tbl.RowCount}
		if rec != nil {
			if rec.displayName != "" {
				meta.DisplayName = rec.displayName
			}
			meta.Comment = rec.comment
			meta.SourceFile = rec.sourceFile
			meta.ImportedAt = rec.importedAt
		}
		out = append(out, meta)
	}
	return out, nil
}

// Search returns tables whose name, display name, or comment contains the
// term, case-insensitively.
func (s *Service) Search(ctx context.Context, term string) ([]TableMetadata, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term must not be empty", apperrors.ErrValidation)
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)
	matches := []TableMetadata{}
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Table), needle) ||
			strings.Contains(strings.ToLower(meta.DisplayName), needle) ||
			strings.Contains(strings.ToLower(meta.Comment), needle) {
			matches = append(matches, meta)
		}
	}
	return matches, nil
}

// tableExists validates the name and checks the store.
func (s *Service) tableExists(ctx context.Context, table string) (bool, error) {
	if err := store.ValidateTableName(table); err != nil {
		return false, err
	}
	return s.store.TableExists(ctx, table)
}

// getRecord loads the raw annotation row, or nil when none exists.
func (s *Service) getRecord(ctx context.Context, table string) (*record, error) {
	var (
		displayName sql.NullString
		comment     sql.NullString
		colComments sql.NullString
		sourceFile  sql.NullString
		importedAt  sql.NullTime
	)
	err := s.store.DB().QueryRowContext(ctx, `
		SELECT display_name, comment, column_comments, source_file, imported_at
		FROM `+store.MetadataTableName+` WHERE table_name = ?`, table).
		Scan(&displayName, &comment, &colComments, &sourceFile, &importedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata for %q: %w", table, err)
	}

	rec := &record{
		displayName:    displayName.String,
		comment:        comment.String,
		sourceFile:     sourceFile.String,
		columnComments: map[string]string{},
	}
	if importedAt.Valid {
		t := importedAt.Time
		rec.importedAt = &t
	}
	if colComments.Valid && colComments.String != "" {
		if err := json.Unmarshal([]byte(colComments.String), &rec.columnComments); err != nil {
			return nil, fmt.Errorf("corrupt column comments for %q: %w", table, err)
		}
	}
	return rec, nil
}

// putRecord upserts the raw annotation row.
func (s *Service) putRecord(ctx context.Context, table string, rec *record) error {
	colComments, err := json.Marshal(rec.columnComments)
	if err != nil {
		return fmt.Errorf("failed to encode column comments: %w", err)
	}

	var importedAt any
	if rec.importedAt != nil {
		importedAt = *rec.importedAt
	}

	_, err = s.store.DB().ExecContext(ctx, `
		INSERT INTO `+store.MetadataTableName+`
			(table_name, display_name, comment, column_comments, source_file, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (table_name) DO UPDATE SET
			display_name = excluded.display_name,
			comment = excluded.comment,
			column_comments = excluded.column_comments,
			source_file = excluded.source_file,
			imported_at = excluded.imported_at`,
		table, rec.displayName, rec.comment, string(colComments), rec.sourceFile, importedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert metadata for %q: %w", table, err)
	}
	s.logger.Debug("Upserted table metadata", zap.String("table", table))
	return nil
}

// screenUpdate runs the libinjection screen over every free-text field.
func screenUpdate(upd Update) error {
	fields := map[string]string{}
	if upd.DisplayName != nil {
		fields["display_name"] = *upd.DisplayName
	}
	if upd.Comment != nil {
		fields["comment"] = *upd.Comment
	}
	for col, comment := range upd.ColumnComments {
		fields["column_comments."+col] = comment
	}
	if results := sqlcheck.CheckFields(fields); len(results) > 0 {
		names := make([]string, 0, len(results))
		for _, r := range results {
			names = append(names, r.FieldName)
		}
		return fmt.Errorf("%w: field(s) %s rejected by injection screen",
			apperrors.ErrValidation, strings.Join(names, ", "))
	}
	return nil
}
