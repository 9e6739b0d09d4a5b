package sqlcheck

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes an injection pattern detected in a
// free-text field.
type InjectionCheckResult struct {
	Fingerprint string // libinjection fingerprint of the detected pattern
	FieldName   string // name of the field that failed the check
}

// CheckFieldForInjection screens a free-text value (display name, comment)
// with libinjection before it is persisted. Returns nil when the value is
// clean.
func CheckFieldForInjection(fieldName, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Fingerprint: string(fingerprint),
		FieldName:   fieldName,
	}
}

// CheckFields screens a set of named free-text values and returns a result
// for every field that failed. An empty slice means all fields are clean.
func CheckFields(fields map[string]string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for name, value := range fields {
		if r := CheckFieldForInjection(name, value); r != nil {
			results = append(results, r)
		}
	}
	return results
}
