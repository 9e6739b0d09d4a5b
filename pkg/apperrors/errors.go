// Package apperrors defines the error taxonomy shared by the HTTP facade,
// the MCP tool dispatcher, and the store layer.
package apperrors

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrNotFound indicates a table or column that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input: a bad identifier, invalid
	// SQL, or an unsupported file type.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a table name collision on import.
	ErrConflict = errors.New("conflict")

	// ErrStore indicates an underlying engine failure, treated as opaque
	// and unrecoverable for the current call.
	ErrStore = errors.New("store failure")
)

// Code maps an error to its machine-readable code for response envelopes.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "store_error"
	}
}

// HTTPStatus maps an error to the status code the HTTP facade should write.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// enginePrefixes are DuckDB error classes caused by the caller's input
// rather than by an engine failure. DuckDB prefixes its messages with the
// error class, e.g. `Parser Error: syntax error at or near "FRM"`.
var enginePrefixes = []string{
	"Parser Error",
	"Binder Error",
	"Catalog Error",
	"Syntax Error",
	"Conversion Error",
	"Constraint Error",
	"Invalid Input Error",
	"Out of Range Error",
}

// classified pairs an engine error with its taxonomy sentinel while keeping
// the engine's message intact for the caller.
type classified struct {
	kind error
	err  error
}

func (c *classified) Error() string   { return c.err.Error() }
func (c *classified) Unwrap() []error { return []error{c.kind, c.err} }

// ClassifyEngine wraps a raw engine error with the matching sentinel:
// input-caused failures become ErrValidation (or ErrNotFound for catalog
// lookups), everything else becomes ErrStore. Returns nil for nil.
func ClassifyEngine(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrStore) {
		return err
	}
	msg := err.Error()
	for _, prefix := range enginePrefixes {
		if strings.Contains(msg, prefix) {
			if prefix == "Catalog Error" {
				return &classified{kind: ErrNotFound, err: err}
			}
			return &classified{kind: ErrValidation, err: err}
		}
	}
	return &classified{kind: ErrStore, err: err}
}

// Message extracts a human-actionable message, trimming the noise the
// database/sql stack and the engine add around the interesting part.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, prefix := range []string{
		"duckdb: ",
		"failed to execute query: ",
		"failed to execute statement: ",
	} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}

// IsInputError reports whether the error was caused by caller input rather
// than a server failure. Input errors are logged at debug level.
func IsInputError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict)
}
