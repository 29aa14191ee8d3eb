// Package config loads the mitebill configuration from a YAML file and
// the environment. Resolution order is: built-in defaults, then the
// config file, then environment variables. The result is one frozen
// Config value handed into every component constructor.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for mitebill.
type Config struct {
	Mite      MiteConfig      `yaml:"mite"`
	Alphaflow AlphaflowConfig `yaml:"alphaflow"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MiteConfig holds mite time-tracking API credentials.
type MiteConfig struct {
	// Account is the mite subdomain, e.g. "acme" for acme.mite.de.
	Account string `yaml:"account"`
	APIKey  string `yaml:"api_key"`
}

// AlphaflowConfig holds Alphaflow / d.velop cloud settings and the
// invoice defaults applied when no override is given on the command line.
type AlphaflowConfig struct {
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	OrganizationID  string `yaml:"organization_id"`
	AdministratorID string `yaml:"administrator_id"`

	DefaultHourlyRate       float64 `yaml:"default_hourly_rate"`
	DefaultVATRate          float64 `yaml:"default_vat_rate"`
	DefaultDueDays          int     `yaml:"default_due_days"`
	DefaultCurrency         string  `yaml:"default_currency"`
	DefaultTradingPartnerID string  `yaml:"default_trading_partner_id"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

const (
	DefaultHourlyRate = 190.0
	DefaultVATRate    = 19.0
	DefaultDueDays    = 30
	DefaultCurrency   = "EUR"
	DefaultLogLevel   = "info"
)

// envPattern matches ${VAR_NAME} references inside config values.
var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR} references in s with the value of
// the environment variable VAR. A referenced but unset variable is an
// error so that missing secrets fail loudly instead of turning into
// empty credentials.
func substituteEnvVars(s string) (string, error) {
	var missing string
	out := envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = name
			return match
		}
		return val
	})
	if missing != "" {
		return "", fmt.Errorf("environment variable %q referenced in config but not set", missing)
	}
	return out, nil
}

// Load reads the config file at path, applies ${VAR} substitution and
// environment overrides, validates the result and returns it.
// A .env file in the working directory is loaded first if present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("config file not found: %s (copy config_example.yaml and adjust the values)", path)
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	substituted, err := substituteEnvVars(string(data))
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// defaults returns a Config pre-filled with the built-in defaults.
func defaults() Config {
	return Config{
		Alphaflow: AlphaflowConfig{
			DefaultHourlyRate: DefaultHourlyRate,
			DefaultVATRate:    DefaultVATRate,
			DefaultDueDays:    DefaultDueDays,
			DefaultCurrency:   DefaultCurrency,
		},
		Logging: LoggingConfig{Level: DefaultLogLevel},
	}
}

// applyEnvOverrides lets environment variables win over file values.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Mite.Account, "MITE_ACCOUNT")
	setString(&cfg.Mite.APIKey, "MITE_API_KEY")
	setString(&cfg.Alphaflow.BaseURL, "ALPHAFLOW_BASE_URL")
	setString(&cfg.Alphaflow.APIKey, "ALPHAFLOW_API_KEY")
	setString(&cfg.Alphaflow.OrganizationID, "ALPHAFLOW_ORG_ID")
	setString(&cfg.Alphaflow.AdministratorID, "ALPHAFLOW_ADMIN_ID")
	setString(&cfg.Alphaflow.DefaultTradingPartnerID, "ALPHAFLOW_DEFAULT_TRADING_PARTNER")
	setString(&cfg.Alphaflow.DefaultCurrency, "ALPHAFLOW_DEFAULT_CURRENCY")
	setFloat(&cfg.Alphaflow.DefaultHourlyRate, "ALPHAFLOW_DEFAULT_HOURLY_RATE")
	setFloat(&cfg.Alphaflow.DefaultVATRate, "ALPHAFLOW_DEFAULT_VAT_RATE")
	setInt(&cfg.Alphaflow.DefaultDueDays, "ALPHAFLOW_DEFAULT_DUE_DAYS")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks required fields and value ranges.
func (c Config) Validate() error {
	if c.Mite.Account == "" {
		return fmt.Errorf("mite.account is required")
	}
	if c.Mite.APIKey == "" {
		return fmt.Errorf("mite.api_key is required")
	}
	if c.Alphaflow.BaseURL == "" {
		return fmt.Errorf("alphaflow.base_url is required")
	}
	if c.Alphaflow.APIKey == "" {
		return fmt.Errorf("alphaflow.api_key is required")
	}
	if c.Alphaflow.OrganizationID == "" {
		return fmt.Errorf("alphaflow.organization_id is required")
	}
	if c.Alphaflow.AdministratorID == "" {
		return fmt.Errorf("alphaflow.administrator_id is required")
	}
	if c.Alphaflow.DefaultHourlyRate <= 0 {
		return fmt.Errorf("alphaflow.default_hourly_rate must be > 0, got %v", c.Alphaflow.DefaultHourlyRate)
	}
	if c.Alphaflow.DefaultVATRate < 0 || c.Alphaflow.DefaultVATRate > 100 {
		return fmt.Errorf("alphaflow.default_vat_rate must be between 0 and 100, got %v", c.Alphaflow.DefaultVATRate)
	}
	if c.Alphaflow.DefaultDueDays <= 0 {
		return fmt.Errorf("alphaflow.default_due_days must be > 0, got %d", c.Alphaflow.DefaultDueDays)
	}
	return nil
}
