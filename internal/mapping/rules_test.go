package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nconklindev/harmony/internal/types"
)

func TestParseRules(t *testing.T) {
	yaml := `
rules:
  - field: employeeId
    tokens: [ID, emp]
  - field: salary
    keywords: [Salary, pay, ctc]
`

	rs, err := ParseRules([]byte(yaml))
	require.NoError(t, err)
	require.Len(t, rs.Rules, 2)

	assert.Equal(t, "employeeId", rs.Rules[0].Field)
	assert.Equal(t, []string{"id", "emp"}, rs.Rules[0].Tokens)
	assert.Equal(t, []string{"salary", "pay", "ctc"}, rs.Rules[1].Keywords)

	got := Suggest([]string{"Emp ID", "Annual CTC", "Email"}, types.Mapping{}, nil, rs)
	assert.Equal(t, types.Mapping{"Emp ID": "employeeId", "Annual CTC": "salary"}, got)
}

func TestParseRules_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"Missing field", "rules:\n  - keywords: [a]\n"},
		{"Nothing to match", "rules:\n  - field: x\n"},
		{"Blank keyword", "rules:\n  - field: x\n    keywords: [' ']\n"},
		{"Bad yaml", "rules: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - field: phone\n    keywords: [tel]\n"), 0o644))

	rs, err := LoadRules(path)
	require.NoError(t, err)

	field, ok := rs.Match("Tel. (home)")
	assert.True(t, ok)
	assert.Equal(t, "phone", field)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultRulesValid(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())
}
