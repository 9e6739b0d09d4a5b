package dispatch

import (
	"fmt"
	"strings"

	"github.com/duckpond/duckpond/pkg/apperrors"
)

// requireStringArg extracts a required, non-blank string argument.
func requireStringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: parameter %q is required", apperrors.ErrValidation, key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: parameter %q must be a string", apperrors.ErrValidation, key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: parameter %q must not be empty", apperrors.ErrValidation, key)
	}
	return s, nil
}

// requireTableArg extracts the table argument common to the per-table tools.
func requireTableArg(args map[string]any) (string, error) {
	return requireStringArg(args, "table")
}

// optionalIntArg extracts an optional integer argument. JSON numbers arrive
// as float64; whole floats are accepted, fractional ones are not.
func optionalIntArg(args map[string]any, key string, def int) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%w: parameter %q must be an integer", apperrors.ErrValidation, key)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: parameter %q must be an integer", apperrors.ErrValidation, key)
	}
}
