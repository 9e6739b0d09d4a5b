package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duckpond/duckpond/pkg/apperrors"
	"github.com/duckpond/duckpond/pkg/config"
	"github.com/duckpond/duckpond/pkg/metadata"
	"github.com/duckpond/duckpond/pkg/store"
)

// UploadHandler imports uploaded CSV/TSV/DuckDB files into the store.
type UploadHandler struct {
	store  *store.Store
	meta   *metadata.Service
	cfg    *config.Config
	logger *zap.Logger
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(st *store.Store, meta *metadata.Service, cfg *config.Config, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{store: st, meta: meta, cfg: cfg, logger: logger}
}

// RegisterRoutes registers the upload route on the given mux.
func (h *UploadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /upload", h.Upload)
}

// Upload handles POST /upload. The multipart field is "file"; pass
// replace=true (query or form) to overwrite colliding tables instead of
// rejecting the import.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes())

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: multipart field 'file' is required: %v", apperrors.ErrValidation, err))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".csv", ".tsv", ".duckdb":
	default:
		h.writeError(w, fmt.Errorf("%w: only CSV, TSV, and DuckDB files are supported, got %q", apperrors.ErrValidation, ext))
		return
	}

	tempPath, err := h.spool(file, ext)
	if err != nil {
		h.writeError(w, fmt.Errorf("failed to buffer upload: %w", err))
		return
	}
	defer os.Remove(tempPath)

	replace := r.URL.Query().Get("replace") == "true" || r.FormValue("replace") == "true"
	now := time.Now().UTC()

	if ext == ".duckdb" {
		h.importDatabase(w, r, tempPath, header.Filename, replace, now)
		return
	}

	table := TableNameFromFilename(header.Filename)
	delimiter := ','
	if ext == ".tsv" {
		delimiter = '\t'
	}

	rowCount, err := h.store.ImportCSV(r.Context(), tempPath, table, delimiter, replace)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.meta.RecordImport(r.Context(), table, header.Filename, now); err != nil {
		h.logger.Warn("Failed to record import origin",
			zap.String("table", table), zap.Error(err))
	}

	h.writeJSON(w, map[string]any{
		"message":             fmt.Sprintf("file %q uploaded", header.Filename),
		"table_name":          table,
		"original_table_name": stem(header.Filename),
		"row_count":           rowCount,
	})
}

// importDatabase copies every table out of an uploaded .duckdb file.
func (h *UploadHandler) importDatabase(w http.ResponseWriter, r *http.Request, tempPath, filename string, replace bool, now time.Time) {
	tables, err := h.store.ImportDatabase(r.Context(), tempPath, replace)
	if err != nil {
		h.writeError(w, err)
		return
	}
	for _, table := range tables {
		if err := h.meta.RecordImport(r.Context(), table, filename, now); err != nil {
			h.logger.Warn("Failed to record import origin",
				zap.String("table", table), zap.Error(err))
		}
	}

	h.writeJSON(w, map[string]any{
		"message":         fmt.Sprintf("database file %q imported", filename),
		"imported_tables": tables,
		"row_count":       len(tables),
	})
}

// spool writes the upload to a uniquely named temp file so the engine's
// file-reading functions can work off disk.
func (h *UploadHandler) spool(src io.Reader, ext string) (string, error) {
	path := filepath.Join(os.TempDir(), "duckpond-upload-"+uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// TableNameFromFilename derives the target table name from an uploaded file
// name: the extension is dropped and the stem is URL-escaped so arbitrary
// display characters survive as a storable identifier.
func TableNameFromFilename(filename string) string {
	escaped := url.QueryEscape(stem(filename))
	// QueryEscape uses + for spaces; use the percent form so the name
	// round-trips through url.QueryUnescape for display.
	return strings.ReplaceAll(escaped, "+", "%20")
}

// stem returns the file name without directory or extension.
func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (h *UploadHandler) writeJSON(w http.ResponseWriter, data any) {
	if err := WriteJSON(w, http.StatusOK, data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *UploadHandler) writeError(w http.ResponseWriter, err error) {
	if apperrors.IsInputError(err) {
		h.logger.Debug("Upload rejected", zap.Error(err))
	} else {
		h.logger.Error("Upload failed", zap.Error(err))
	}
	if werr := WriteError(w, err); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}
