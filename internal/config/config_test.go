package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/mitebill/internal/config"
)

const validYAML = `
mite:
  account: acme
  api_key: mite-secret
alphaflow:
  base_url: https://acme.example.cloud
  api_key: af-secret
  organization_id: org-1
  administrator_id: admin-1
  default_trading_partner_id: tp-default
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Mite.Account)
	assert.Equal(t, 190.0, cfg.Alphaflow.DefaultHourlyRate)
	assert.Equal(t, 19.0, cfg.Alphaflow.DefaultVATRate)
	assert.Equal(t, 30, cfg.Alphaflow.DefaultDueDays)
	assert.Equal(t, "EUR", cfg.Alphaflow.DefaultCurrency)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validYAML+`
  default_hourly_rate: 120
  default_due_days: 14
logging:
  level: debug
`))
	require.NoError(t, err)
	assert.Equal(t, 120.0, cfg.Alphaflow.DefaultHourlyRate)
	assert.Equal(t, 14, cfg.Alphaflow.DefaultDueDays)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_MITE_KEY", "from-env")
	yaml := `
mite:
  account: acme
  api_key: ${TEST_MITE_KEY}
alphaflow:
  base_url: https://acme.example.cloud
  api_key: af-secret
  organization_id: org-1
  administrator_id: admin-1
`
	cfg, err := config.Load(writeConfig(t, yaml))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Mite.APIKey)
}

func TestLoad_MissingEnvVarFails(t *testing.T) {
	yaml := `
mite:
  account: acme
  api_key: ${DEFINITELY_NOT_SET_12345}
alphaflow:
  base_url: https://acme.example.cloud
  api_key: af-secret
  organization_id: org-1
  administrator_id: admin-1
`
	_, err := config.Load(writeConfig(t, yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFINITELY_NOT_SET_12345")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("ALPHAFLOW_DEFAULT_HOURLY_RATE", "99.5")
	t.Setenv("MITE_ACCOUNT", "other")

	cfg, err := config.Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, 99.5, cfg.Alphaflow.DefaultHourlyRate)
	assert.Equal(t, "other", cfg.Mite.Account)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  string
		wantErr string
	}{
		{"missing mite account", `
mite:
  api_key: k
alphaflow:
  base_url: u
  api_key: k
  organization_id: o
  administrator_id: a
`, "mite.account"},
		{"missing alphaflow key", `
mite:
  account: acme
  api_key: k
alphaflow:
  base_url: u
  organization_id: o
  administrator_id: a
`, "alphaflow.api_key"},
		{"negative rate", validYAML + `
  default_hourly_rate: -1
`, "default_hourly_rate"},
		{"vat over 100", validYAML + `
  default_vat_rate: 120
`, "default_vat_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.mutate))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
