package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/duckpond/duckpond/pkg/apperrors"
	"github.com/duckpond/duckpond/pkg/config"
	"github.com/duckpond/duckpond/pkg/metadata"
	"github.com/duckpond/duckpond/pkg/store"
)

// TablesHandler serves table listing, metadata, paging, and deletion.
type TablesHandler struct {
	store  *store.Store
	meta   *metadata.Service
	cfg    *config.Config
	logger *zap.Logger
}

// NewTablesHandler creates a new TablesHandler.
func NewTablesHandler(st *store.Store, meta *metadata.Service, cfg *config.Config, logger *zap.Logger) *TablesHandler {
	return &TablesHandler{store: st, meta: meta, cfg: cfg, logger: logger}
}

// RegisterRoutes registers the table routes on the given mux.
func (h *TablesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /tables", h.ListTables)
	mux.HandleFunc("GET /table/{name}/metadata", h.GetMetadata)
	mux.HandleFunc("PUT /table/{name}/metadata", h.SetMetadata)
	mux.HandleFunc("GET /table/{name}/data", h.GetData)
	mux.HandleFunc("PUT /table/{name}/column/{column}", h.RenameColumn)
	mux.HandleFunc("DELETE /table/{name}", h.DeleteTable)
}

// tableEntry is one row of the /tables response.
type tableEntry struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	RowCount    int64  `json:"row_count"`
}

// ListTables handles GET /tables.
func (h *TablesHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	all, err := h.meta.List(r.Context())
	if err != nil {
		h.writeError(w, "list tables", err)
		return
	}

	entries := make([]tableEntry, 0, len(all))
	for _, meta := range all {
		entries = append(entries, tableEntry{
			Name:        meta.Table,
			DisplayName: meta.DisplayName,
			RowCount:    meta.RowCount,
		})
	}
	h.writeJSON(w, map[string]any{"tables": entries})
}

// GetMetadata handles GET /table/{name}/metadata.
func (h *TablesHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	name, ok := ParseTableName(w, r, h.logger)
	if !ok {
		return
	}
	meta, err := h.meta.Get(r.Context(), name)
	if err != nil {
		h.writeError(w, "get metadata", err)
		return
	}
	h.writeJSON(w, meta)
}

// SetMetadata handles PUT /table/{name}/metadata with a partial update body:
// {"display_name": ..., "comment": ..., "column_comments": {...}}.
func (h *TablesHandler) SetMetadata(w http.ResponseWriter, r *http.Request) {
	name, ok := ParseTableName(w, r, h.logger)
	if !ok {
		return
	}

	var upd metadata.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.writeError(w, "decode metadata update",
			fmt.Errorf("%w: invalid JSON body: %v", apperrors.ErrValidation, err))
		return
	}

	if err := h.meta.Set(r.Context(), name, upd); err != nil {
		h.writeError(w, "set metadata", err)
		return
	}

	// Return the merged result so the UI can refresh in one round trip.
	meta, err := h.meta.Get(r.Context(), name)
	if err != nil {
		h.writeError(w, "reload metadata", err)
		return
	}
	h.writeJSON(w, meta)
}

// GetData handles GET /table/{name}/data?limit=&offset=.
func (h *TablesHandler) GetData(w http.ResponseWriter, r *http.Request) {
	name, ok := ParseTableName(w, r, h.logger)
	if !ok {
		return
	}

	limit, ok := h.queryInt(w, r, "limit", h.cfg.DefaultRowLimit)
	if !ok {
		return
	}
	offset, ok := h.queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	if limit <= 0 || offset < 0 {
		h.writeError(w, "page bounds",
			fmt.Errorf("%w: limit must be positive and offset non-negative", apperrors.ErrValidation))
		return
	}
	if limit > h.cfg.MaxRowLimit {
		limit = h.cfg.MaxRowLimit
	}

	rs, err := h.store.Page(r.Context(), name, limit, offset)
	if err != nil {
		h.writeError(w, "page table", err)
		return
	}
	h.writeJSON(w, map[string]any{
		"table":   name,
		"columns": rs.Columns,
		"rows":    rs.Rows,
		"limit":   limit,
		"offset":  offset,
	})
}

// RenameColumn handles PUT /table/{name}/column/{column}?new_name=. Any
// comment stored under the old column name moves with it.
func (h *TablesHandler) RenameColumn(w http.ResponseWriter, r *http.Request) {
	name, ok := ParseTableName(w, r, h.logger)
	if !ok {
		return
	}
	oldName := r.PathValue("column")
	newName := r.URL.Query().Get("new_name")
	if newName == "" {
		h.writeError(w, "rename column",
			fmt.Errorf("%w: query parameter \"new_name\" is required", apperrors.ErrValidation))
		return
	}

	if err := h.meta.RenameColumn(r.Context(), name, oldName, newName); err != nil {
		h.writeError(w, "rename column", err)
		return
	}
	h.writeJSON(w, map[string]string{
		"message":  fmt.Sprintf("column %q renamed to %q", oldName, newName),
		"table":    name,
		"old_name": oldName,
		"new_name": newName,
	})
}

// DeleteTable handles DELETE /table/{name}. The metadata record is removed
// in the same request.
func (h *TablesHandler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	name, ok := ParseTableName(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.meta.DropTable(r.Context(), name); err != nil {
		h.writeError(w, "drop table", err)
		return
	}
	h.writeJSON(w, map[string]string{
		"message": fmt.Sprintf("table %q deleted", name),
	})
}

// queryInt parses an optional integer query parameter.
func (h *TablesHandler) queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, "parse query param",
			fmt.Errorf("%w: query parameter %q must be an integer", apperrors.ErrValidation, key))
		return 0, false
	}
	return v, true
}

func (h *TablesHandler) writeJSON(w http.ResponseWriter, data any) {
	if err := WriteJSON(w, http.StatusOK, data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *TablesHandler) writeError(w http.ResponseWriter, op string, err error) {
	if apperrors.IsInputError(err) {
		h.logger.Debug("Request rejected", zap.String("op", op), zap.Error(err))
	} else {
		h.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
	}
	if werr := WriteError(w, err); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}
