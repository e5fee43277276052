package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFiles_DefaultsAndOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quartus.toml")
	content := `
environment = "production"

[server]
port = 9090

[edgar]
user_agent = "quartus-test admin@example.com"

[cache]
calculation_quarters = 20
display_quarters = 16
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Cache.CalculationQuarters)
	assert.Equal(t, 16, cfg.Cache.DisplayQuarters)

	// Defaults survive partial files
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 45, cfg.Cache.ReportingLagDays)
	assert.Equal(t, 120, cfg.Facts.QuarterlyMaxDays)
	assert.Equal(t, 500.0, cfg.Series.MaxGrowthPercent)
}

func TestLoadFromFiles_RequiresUserAgent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quartus.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 8090\n"), 0644))

	_, err := LoadFromFiles(path)
	assert.Error(t, err, "SEC user agent is mandatory")
}

func TestValidate_CalculationWindowMustCoverDerivation(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Edgar.UserAgent = "quartus-test admin@example.com"
	cfg.Cache.DisplayQuarters = 12
	cfg.Cache.CalculationQuarters = 14 // needs >= 15

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calculation_quarters")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUARTUS_SERVER_PORT", "7070")
	t.Setenv("QUARTUS_EDGAR_USER_AGENT", "env-agent admin@example.com")
	t.Setenv("QUARTUS_LOG_OUTPUT", "stdout, file")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-agent admin@example.com", cfg.Edgar.UserAgent)
	assert.Equal(t, []string{"stdout", "file"}, cfg.Logging.Output)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, 8181, "0.0.0.0")
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Zero values leave the config untouched
	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestEdgarRequestTimeout(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.EdgarRequestTimeout())

	cfg.Edgar.RequestTimeout = "5s"
	assert.Equal(t, 5*time.Second, cfg.EdgarRequestTimeout())

	cfg.Edgar.RequestTimeout = "garbage"
	assert.Equal(t, 30*time.Second, cfg.EdgarRequestTimeout())
}
