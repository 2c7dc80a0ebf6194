package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
data_dir: "/srv/crashes"
catalog:
  tie_break: "key"
  max_join_rows: 1000
runner:
  max_concurrent: 2
database:
  host: "db.example.com"
  tables:
    unit: "vehicle_units"
`)
	t.Setenv("CRASHLENS_MAX_CONCURRENT", "8")
	t.Setenv("PGPASSWORD", "secret")

	cfg, err := Load(path, "test-version")
	require.NoError(t, err)

	assert.Equal(t, "test-version", cfg.Version)
	assert.Equal(t, "/srv/crashes", cfg.DataDir)
	assert.Equal(t, "key", cfg.Catalog.TieBreak)
	assert.Equal(t, 1000, cfg.Catalog.MaxJoinRows)
	assert.Equal(t, 8, cfg.Runner.MaxConcurrent, "env wins over yaml")
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "vehicle_units", cfg.Database.Tables.Unit)
	assert.Equal(t, "primary_person", cfg.Database.Tables.Person)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "dev")
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.Source)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "Primary_Person_use.csv", cfg.Files.Person)
	assert.Equal(t, "Units_use.csv", cfg.Files.Unit)
	assert.Equal(t, "Damages_use.csv", cfg.Files.Damage)
	assert.Equal(t, "Charges_use.csv", cfg.Files.Charge)
	assert.Equal(t, "stable", cfg.Catalog.TieBreak)
	assert.True(t, cfg.Catalog.Validate)
	assert.Equal(t, 4, cfg.Runner.MaxConcurrent)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_YAMLDisablesValidation(t *testing.T) {
	path := writeConfig(t, "catalog:\n  validate: false\n")
	cfg, err := Load(path, "dev")
	require.NoError(t, err)
	assert.False(t, cfg.Catalog.Validate)
	assert.Equal(t, "stable", cfg.Catalog.TieBreak)
}

func TestLoad_EnvDisablesValidation(t *testing.T) {
	path := writeConfig(t, "catalog:\n  validate: true\n")
	t.Setenv("CRASHLENS_VALIDATE", "false")
	cfg, err := Load(path, "dev")
	require.NoError(t, err)
	assert.False(t, cfg.Catalog.Validate)
}

func TestLoad_RejectsUnknownSource(t *testing.T) {
	path := writeConfig(t, "source: \"parquet\"\n")
	_, err := Load(path, "dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source must be csv or postgres")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Source:  "CSV",
			Catalog: CatalogConfig{TieBreak: "Stable"},
			Log:     LogConfig{Format: "json"},
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "csv", cfg.Source)
	assert.Equal(t, "stable", cfg.Catalog.TieBreak)
	assert.Equal(t, 1, cfg.Runner.MaxConcurrent)

	cfg = base()
	cfg.Catalog.TieBreak = "random"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Catalog.MaxJoinRows = -1
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Log.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}
