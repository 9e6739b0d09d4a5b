package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/duckpond/duckpond/pkg/apperrors"
)

func TestImportCSVRowCountMatchesFile(t *testing.T) {
	st := newTestStore(t)
	path := writeTempFile(t, "cities.csv", "name,population\nosaka,2750000\nnagoya,2330000\nsendai,1090000\n")

	count, err := st.ImportCSV(context.Background(), path, "cities", ',', false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "row count excludes the header line")
}

func TestImportTSV(t *testing.T) {
	st := newTestStore(t)
	path := writeTempFile(t, "pairs.tsv", "a\tb\n1\tx\n2\ty\n")

	count, err := st.ImportCSV(context.Background(), path, "pairs", '\t', false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	columns, err := st.Schema(context.Background(), "pairs")
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, "a", columns[0].Name)
}

func TestImportCSVConflict(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	path := writeTempFile(t, "dup.csv", "id\n1\n")

	_, err := st.ImportCSV(ctx, path, "dup", ',', false)
	require.NoError(t, err)

	_, err = st.ImportCSV(ctx, path, "dup", ',', false)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	// Explicit replace overwrites.
	path2 := writeTempFile(t, "dup2.csv", "id\n1\n2\n")
	count, err := st.ImportCSV(ctx, path2, "dup", ',', true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestImportCSVInvalidName(t *testing.T) {
	st := newTestStore(t)
	path := writeTempFile(t, "x.csv", "id\n1\n")

	_, err := st.ImportCSV(context.Background(), path, "bad name", ',', false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// buildSourceDatabase creates a standalone DuckDB file with the given tables.
func buildSourceDatabase(t *testing.T, tables map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.duckdb")
	src, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	for table, csv := range tables {
		csvPath := writeTempFile(t, table+".csv", csv)
		_, err := src.ImportCSV(context.Background(), csvPath, table, ',', false)
		require.NoError(t, err)
	}
	require.NoError(t, src.Close())
	return path
}

func TestImportDatabase(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	source := buildSourceDatabase(t, map[string]string{
		"orders":    "id,total\n1,9.50\n2,12.00\n",
		"customers": "id,name\n1,kame\n",
	})

	names, err := st.ImportDatabase(ctx, source, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"orders", "customers"}, names)

	count, err := st.RowCount(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestImportDatabaseConflictRejectsWholeFile(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedTable(t, st, "orders", "id\n1\n")

	source := buildSourceDatabase(t, map[string]string{
		"orders": "id,total\n1,9.50\n",
		"fresh":  "id\n1\n",
	})

	_, err := st.ImportDatabase(ctx, source, false)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	// Nothing was copied: the non-colliding table must not exist either.
	exists, err := st.TableExists(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, exists)

	// The colliding table kept its original contents.
	count, err := st.RowCount(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestImportDatabaseMidFileFailureLeavesNothing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Source whose last relation cannot be copied: a view over a table
	// dropped after the view was created. The copy of "aardvark" succeeds
	// first, then the view fails, and the whole import must roll back.
	path := filepath.Join(t.TempDir(), "source.duckdb")
	src, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	for _, stmt := range []string{
		"CREATE TABLE aardvark (id INTEGER)",
		"INSERT INTO aardvark VALUES (1)",
		"CREATE TABLE doomed (id INTEGER)",
		"CREATE VIEW zz_broken AS SELECT * FROM doomed",
		"DROP TABLE doomed",
	} {
		_, err := src.DB().ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	require.NoError(t, src.Close())

	_, err = st.ImportDatabase(ctx, path, false)
	require.Error(t, err)

	exists, err := st.TableExists(ctx, "aardvark")
	require.NoError(t, err)
	assert.False(t, exists, "tables copied before the failure must not survive it")
}

func TestImportDatabaseReplace(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedTable(t, st, "orders", "id\n1\n")

	source := buildSourceDatabase(t, map[string]string{
		"orders": "id,total\n1,9.50\n2,3.25\n",
	})

	names, err := st.ImportDatabase(ctx, source, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, names)

	count, err := st.RowCount(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestImportDatabaseNotADatabase(t *testing.T) {
	st := newTestStore(t)
	path := writeTempFile(t, "junk.duckdb", "this is not a duckdb file")

	_, err := st.ImportDatabase(context.Background(), path, false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
