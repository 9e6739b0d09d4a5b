package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/duckpond/duckpond/pkg/apperrors"
)

// ImportCSV creates a table from a CSV or TSV file on disk, delegating
// parsing and type inference to the engine's read_csv_auto. The import is
// atomic from the caller's perspective: either the whole file lands or the
// table is untouched.
//
// When the table already exists the import is rejected with ErrConflict
// unless replace is set.
func (s *Store) ImportCSV(ctx context.Context, path, table string, delimiter rune, replace bool) (int64, error) {
	if err := ValidateTableName(table); err != nil {
		return 0, err
	}

	exists, err := s.TableExists(ctx, table)
	if err != nil {
		return 0, err
	}
	if exists && !replace {
		return 0, fmt.Errorf("%w: table %q already exists; re-upload with replace to overwrite", apperrors.ErrConflict, table)
	}

	create := "CREATE TABLE "
	if replace {
		create = "CREATE OR REPLACE TABLE "
	}
	source := "read_csv_auto(" + quoteLiteral(path) + ")"
	if delimiter != 0 && delimiter != ',' {
		source = fmt.Sprintf("read_csv_auto(%s, delim=%s)", quoteLiteral(path), quoteLiteral(string(delimiter)))
	}

	stmt := create + QuoteIdent(table) + " AS SELECT * FROM " + source
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return 0, fmt.Errorf("failed to import CSV into %q: %w", table, apperrors.ClassifyEngine(err))
	}

	count, err := s.RowCount(ctx, table)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Imported CSV file",
		zap.String("table", table),
		zap.Int64("rows", count),
		zap.Bool("replace", replace))
	return count, nil
}

// ImportDatabase copies every table out of an uploaded DuckDB file into the
// main database via ATTACH. Conflicts are checked for all tables up front so
// a collision rejects the whole file rather than importing half of it.
//
// Returns the names of the imported tables.
func (s *Store) ImportDatabase(ctx context.Context, path string, replace bool) ([]string, error) {
	const alias = "source_db"

	if _, err := s.db.ExecContext(ctx, "ATTACH "+quoteLiteral(path)+" AS "+alias+" (READ_ONLY)"); err != nil {
		return nil, fmt.Errorf("%w: uploaded file is not a readable DuckDB database: %v", apperrors.ErrValidation, err)
	}
	defer func() {
		if _, err := s.db.ExecContext(ctx, "DETACH "+alias); err != nil {
			s.logger.Warn("Failed to detach import source", zap.Error(err))
		}
	}()

	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_catalog = ? ORDER BY table_name`, alias)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables in uploaded database: %w", apperrors.ClassifyEngine(err))
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table list: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: uploaded database contains no tables", apperrors.ErrValidation)
	}

	// Reject the whole file on any collision before copying anything.
	for _, name := range names {
		if err := ValidateTableName(name); err != nil {
			return nil, err
		}
		if replace {
			continue
		}
		exists, err := s.TableExists(ctx, name)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: table %q already exists; re-upload with replace to overwrite", apperrors.ErrConflict, name)
		}
	}

	create := "CREATE TABLE "
	if replace {
		create = "CREATE OR REPLACE TABLE "
	}

	// One transaction for all copies so a failure on any table leaves none
	// of the file imported.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start import transaction: %w", err)
	}
	for _, name := range names {
		stmt := create + QuoteIdent(name) + " AS SELECT * FROM " + alias + "." + QuoteIdent(name)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to copy table %q: %w", name, apperrors.ClassifyEngine(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}

	s.logger.Info("Imported database file",
		zap.Int("tables", len(names)),
		zap.Bool("replace", replace))
	return names, nil
}
