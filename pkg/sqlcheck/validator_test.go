package sqlcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"plain", "SELECT 1", "SELECT 1", nil},
		{"trailing semicolon", "SELECT 1;", "SELECT 1", nil},
		{"trailing semicolon and space", "SELECT 1 ;  ", "SELECT 1", nil},
		{"whitespace only", "   ", "", ErrEmptyQuery},
		{"empty", "", "", ErrEmptyQuery},
		{"two statements", "SELECT 1; SELECT 2", "", ErrMultipleStatements},
		{"semicolon in single-quoted literal", "SELECT 'a;b'", "SELECT 'a;b'", nil},
		{"semicolon in double-quoted ident", `SELECT "a;b" FROM t`, `SELECT "a;b" FROM t`, nil},
		{"doubled quote stays inside literal", "SELECT 'it''s; fine'", "SELECT 'it''s; fine'", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsSelect(t *testing.T) {
	assert.True(t, IsSelect("SELECT 1"))
	assert.True(t, IsSelect("  select * from t"))
	assert.True(t, IsSelect("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.False(t, IsSelect("INSERT INTO t VALUES (1)"))
	assert.False(t, IsSelect("DROP TABLE t"))
}

func TestEnsureSelectLimit(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t LIMIT 100", EnsureSelectLimit("SELECT * FROM t", 100))
	assert.Equal(t, "SELECT * FROM t LIMIT 5", EnsureSelectLimit("SELECT * FROM t LIMIT 5", 100),
		"existing LIMIT untouched")
	assert.Equal(t, "DROP TABLE t", EnsureSelectLimit("DROP TABLE t", 100),
		"non-SELECT untouched")
	assert.Equal(t, "SELECT 1", EnsureSelectLimit("SELECT 1", 0),
		"non-positive limit disables the append")
}

func TestCheckFieldForInjection(t *testing.T) {
	assert.Nil(t, CheckFieldForInjection("comment", "Monthly sales summary"))
	assert.Nil(t, CheckFieldForInjection("display_name", "売上レポート 2024"))

	r := CheckFieldForInjection("comment", "x'; DROP TABLE users--")
	require.NotNil(t, r)
	assert.Equal(t, "comment", r.FieldName)
	assert.NotEmpty(t, r.Fingerprint)
}

func TestCheckFields(t *testing.T) {
	results := CheckFields(map[string]string{
		"clean": "hello world",
		"dirty": "1' OR '1'='1",
		"blank": "",
	})
	require.Len(t, results, 1)
	assert.Equal(t, "dirty", results[0].FieldName)
}
