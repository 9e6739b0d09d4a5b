package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/duckpond/duckpond/pkg/apperrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.duckdb"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func seedTable(t *testing.T, st *Store, table, csv string) {
	t.Helper()
	path := writeTempFile(t, table+".csv", csv)
	_, err := st.ImportCSV(context.Background(), path, table, ',', false)
	require.NoError(t, err)
}

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		wantErr bool
	}{
		{"simple", "events", false},
		{"escaped", "sales%20report", false},
		{"dotted", "report.2024", false},
		{"tilde", "backup~2024", false},
		{"empty", "", true},
		{"quote", `ev"il`, true},
		{"semicolon", "a;drop", true},
		{"space", "my table", true},
		{"reserved prefix", "_duckpond_table_metadata", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTableName(tt.table)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestListTables(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tables, err := st.ListTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)

	seedTable(t, st, "animals", "id,name\n1,duck\n2,goose\n")
	seedTable(t, st, "plants", "id,name\n1,reed\n")

	tables, err = st.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, TableInfo{Name: "animals", RowCount: 2}, tables[0])
	assert.Equal(t, TableInfo{Name: "plants", RowCount: 1}, tables[1])
}

func TestListTablesExcludesMetadataTable(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.DB().ExecContext(ctx,
		"CREATE TABLE "+MetadataTableName+" (table_name VARCHAR PRIMARY KEY)")
	require.NoError(t, err)
	seedTable(t, st, "visible", "id\n1\n")

	tables, err := st.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "visible", tables[0].Name)
}

func TestSchema(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedTable(t, st, "events", "id,label,when\n1,start,2024-01-01\n")

	columns, err := st.Schema(ctx, "events")
	require.NoError(t, err)
	require.Len(t, columns, 3)
	assert.Equal(t, "id", columns[0].Name)
	assert.Equal(t, "label", columns[1].Name)
	assert.Equal(t, "when", columns[2].Name)
	assert.NotEmpty(t, columns[0].Type)
}

func TestSchemaNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Schema(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPage(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedTable(t, st, "numbers", "n\n1\n2\n3\n4\n5\n")

	rs, err := st.Page(ctx, "numbers", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, rs.Columns)
	assert.Len(t, rs.Rows, 2)

	rs, err = st.Page(ctx, "numbers", 10, 4)
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 1)
}

func TestQuery(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedTable(t, st, "pets", "id,name\n1,rex\n2,ada\n")

	rs, err := st.Query(ctx, `SELECT name FROM pets WHERE id = 2`)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "ada", rs.Rows[0]["name"])
}

func TestQueryInvalidSQL(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Query(context.Background(), "SELEC broken FRM nowhere")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestQueryMissingTableIsNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Query(context.Background(), "SELECT * FROM no_such_table")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDropTable(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedTable(t, st, "doomed", "id\n1\n")

	require.NoError(t, st.DropTable(ctx, "doomed"))

	exists, err := st.TableExists(ctx, "doomed")
	require.NoError(t, err)
	assert.False(t, exists)

	err = st.DropTable(ctx, "doomed")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRenameColumn(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedTable(t, st, "events", "id,ts\n1,2024-01-01\n")

	require.NoError(t, st.RenameColumn(ctx, "events", "ts", "occurred_at"))

	columns, err := st.Schema(ctx, "events")
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, "occurred_at", columns[1].Name)
}

func TestRenameColumnErrors(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedTable(t, st, "events", "id,ts\n1,2024-01-01\n")

	err := st.RenameColumn(ctx, "events", "missing", "other")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = st.RenameColumn(ctx, "events", "ts", "id")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	err = st.RenameColumn(ctx, "events", "ts", "  ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = st.RenameColumn(ctx, "ghost", "a", "b")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"simple"`, QuoteIdent("simple"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}
