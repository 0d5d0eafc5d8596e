package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtmp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chtmp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "paytrack.db", cfg.Store.SQLitePath)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "local", cfg.Blob.Driver)
	assert.Equal(t, "uploads", cfg.Blob.Dir)
	assert.InDelta(t, 0.20, cfg.Rules.VATRate, 0.001)
	assert.InDelta(t, 1.5, cfg.Rules.OvertimeMultiplier, 0.001)
	assert.InDelta(t, 2.0, cfg.Rules.OvertimeTolerancePct, 0.001)
	assert.InDelta(t, 5.0, cfg.Rules.RateChangeAlertPct, 0.001)
	assert.Equal(t, 85, cfg.Rules.NameMatchThreshold)
	assert.Equal(t, 4, cfg.Pipeline.ValidationWorkers)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 60, cfg.Pipeline.StageTimeoutSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	chtmp(t)

	yaml := `
store:
  driver: sqlite
  sqlite_path: /var/lib/paytrack/data.db
rules:
  vat_rate: 0.19
  name_match_threshold: 90
log:
  level: debug
  format: console
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/paytrack/data.db", cfg.Store.SQLitePath)
	assert.InDelta(t, 0.19, cfg.Rules.VATRate, 0.001)
	assert.Equal(t, 90, cfg.Rules.NameMatchThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.InDelta(t, 1.5, cfg.Rules.OvertimeMultiplier, 0.001)
}

func TestLoadFromEnv(t *testing.T) {
	chtmp(t)
	t.Setenv("PAYTRACK_STORE_DRIVER", "sqlite")
	t.Setenv("PAYTRACK_RULES_VAT_RATE", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.InDelta(t, 0.25, cfg.Rules.VATRate, 0.001)
}

func TestApplyParameters(t *testing.T) {
	r := RulesConfig{
		VATRate:              0.20,
		OvertimeMultiplier:   1.5,
		OvertimeTolerancePct: 2.0,
		RateChangeAlertPct:   5.0,
		NameMatchThreshold:   85,
	}

	err := r.ApplyParameters(map[string]string{
		"rules.vat_rate":             "0.19",
		"rules.name_match_threshold": "92",
		"unrelated.setting":          "whatever",
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.19, r.VATRate, 0.001)
	assert.Equal(t, 92, r.NameMatchThreshold)
	assert.InDelta(t, 1.5, r.OvertimeMultiplier, 0.001)
}

func TestApplyParameters_BadValue(t *testing.T) {
	r := RulesConfig{}
	err := r.ApplyParameters(map[string]string{"rules.vat_rate": "twenty percent"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules.vat_rate")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
