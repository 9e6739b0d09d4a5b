package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/duckpond/duckpond/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a taxonomy error: the status, code, and message all come
// from the error's classification.
func WriteError(w http.ResponseWriter, err error) error {
	return ErrorResponse(w, apperrors.HTTPStatus(err), apperrors.Code(err), apperrors.Message(err))
}
