package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/duckpond/duckpond/pkg/store"
)

// ParseTableName extracts and validates the table name from the request
// path. Returns the name and true on success, or "" and false after writing
// an error response. Expects path parameter: name
func ParseTableName(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	name := r.PathValue("name")
	if err := store.ValidateTableName(name); err != nil {
		if werr := WriteError(w, err); werr != nil {
			logger.Error("Failed to write error response", zap.Error(werr))
		}
		return "", false
	}
	return name, true
}
