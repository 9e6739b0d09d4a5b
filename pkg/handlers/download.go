package handlers

import (
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/duckpond/duckpond/pkg/store"
)

// DownloadHandler streams the raw database file.
type DownloadHandler struct {
	store  *store.Store
	logger *zap.Logger
}

// NewDownloadHandler creates a new DownloadHandler.
func NewDownloadHandler(st *store.Store, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{store: st, logger: logger}
}

// RegisterRoutes registers the download route on the given mux.
func (h *DownloadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /download/database", h.Download)
}

// Download handles GET /download/database. The file streams as an
// attachment; a missing database file is a 404.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	path := h.store.Path()
	if _, err := os.Stat(path); err != nil {
		if err := ErrorResponse(w, http.StatusNotFound, "not_found", "database file not found"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="database.duckdb"`)
	http.ServeFile(w, r, path)
}
