// Package sqlcheck provides SQL validation utilities for the query tools.
package sqlcheck

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrEmptyQuery indicates the query is blank after trimming.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrMultipleStatements indicates the query contains multiple SQL
	// statements; only single statements are permitted.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

// Normalize trims whitespace, strips a trailing semicolon, and rejects
// queries containing more than one statement. Any semicolon remaining
// outside string literals after normalization means a second statement.
func Normalize(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}

	normalized := stripTrailingSemicolon(query)
	if hasSemicolonOutsideStrings(normalized) {
		return "", ErrMultipleStatements
	}
	return normalized, nil
}

// IsSelect reports whether the normalized query is a plain SELECT (or WITH)
// statement.
func IsSelect(query string) bool {
	upper := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}

// EnsureSelectLimit appends a LIMIT clause to SELECT statements that do not
// already carry one, bounding the rows returned to the agent. Non-SELECT
// statements pass through untouched.
func EnsureSelectLimit(query string, limit int) string {
	if limit <= 0 || !IsSelect(query) {
		return query
	}
	if strings.Contains(strings.ToUpper(query), "LIMIT") {
		return query
	}
	return query + " LIMIT " + strconv.Itoa(limit)
}

// hasSemicolonOutsideStrings scans the query with a small state machine so
// that semicolons inside single- or double-quoted literals don't count.
func hasSemicolonOutsideStrings(query string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range query {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// A doubled quote ('') exits and immediately re-enters on the
			// next quote, which keeps us inside the literal.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

// stripTrailingSemicolon removes one trailing semicolon plus surrounding
// whitespace.
func stripTrailingSemicolon(query string) string {
	query = strings.TrimRight(query, " \t\n\r")
	if strings.HasSuffix(query, ";") {
		query = strings.TrimRight(strings.TrimSuffix(query, ";"), " \t\n\r")
	}
	return query
}
