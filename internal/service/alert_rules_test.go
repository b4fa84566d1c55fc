package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincrime_engine/internal/domain"
)

func TestAlertRule_Evaluate(t *testing.T) {
	tests := []struct {
		operator  string
		value     float64
		threshold float64
		want      bool
	}{
		{">", 0.2, 0.1, true},
		{">", 0.1, 0.1, false},
		{">=", 3, 3, true},
		{"<", 1, 2, true},
		{"<=", 3, 2, false},
		{"==", 5, 5, true},
		{"!=", 5, 5, false},
	}

	for _, tt := range tests {
		r := AlertRule{Name: "r", Signal: "s", Operator: tt.operator, Threshold: tt.threshold}
		got, err := r.Evaluate(tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v %s %v", tt.value, tt.operator, tt.threshold)
	}

	_, err := AlertRule{Operator: "~"}.Evaluate(1)
	assert.Error(t, err)
}

func TestDefaultAlertRules(t *testing.T) {
	rules := DefaultAlertRules()
	require.Len(t, rules, 4)
	for _, r := range rules {
		assert.NoError(t, r.Validate(), r.Name)
	}
}

func TestLoadAlertRules(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(good, []byte(`[
		{"name": "velocity", "signal": "transfer_velocity", "operator": ">", "threshold": 10, "message": "busy"}
	]`), 0o600))

	rules, err := LoadAlertRules(good)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 10.0, rules[0].Threshold)
	assert.Equal(t, domain.SeverityMedium, rules[0].Severity)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"name": "x", "signal": "y", "operator": "=~"}]`), 0o600))
	_, err = LoadAlertRules(bad)
	assert.Error(t, err)

	_, err = LoadAlertRules(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
