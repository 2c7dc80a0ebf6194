package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/spektr-org/crashlens/logging"
)

// Config holds all configuration for crashlens.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Version string `yaml:"-"` // Set at load time, not from config

	// Source selects where tables are loaded from: "csv" or "postgres".
	Source string `yaml:"source" env:"CRASHLENS_SOURCE" env-default:"csv"`

	// DataDir is the directory holding the source CSV files.
	DataDir string `yaml:"data_dir" env:"CRASHLENS_DATA_DIR" env-default:"data"`

	// Files maps each logical table to its CSV file name inside DataDir.
	Files FilesConfig `yaml:"files"`

	// Query catalog behavior
	Catalog CatalogConfig `yaml:"catalog"`

	// Runner concurrency
	Runner RunnerConfig `yaml:"runner"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Database configuration (PostgreSQL source)
	Database DatabaseConfig `yaml:"database"`
}

// FilesConfig names the source file of each logical table.
type FilesConfig struct {
	Person string `yaml:"person" env:"CRASHLENS_PERSON_FILE" env-default:"Primary_Person_use.csv"`
	Unit   string `yaml:"unit" env:"CRASHLENS_UNIT_FILE" env-default:"Units_use.csv"`
	Damage string `yaml:"damage" env:"CRASHLENS_DAMAGE_FILE" env-default:"Damages_use.csv"`
	Charge string `yaml:"charge" env:"CRASHLENS_CHARGE_FILE" env-default:"Charges_use.csv"`
}

// CatalogConfig holds query catalog options.
type CatalogConfig struct {
	// TieBreak is "stable" (input order) or "key" (lexicographic on grouping key).
	TieBreak string `yaml:"tie_break" env:"CRASHLENS_TIE_BREAK" env-default:"stable"`
	// MaxJoinRows caps the output of any single join. Zero disables the cap.
	MaxJoinRows int `yaml:"max_join_rows" env:"CRASHLENS_MAX_JOIN_ROWS" env-default:"0"`
	// Validate checks every loaded table against its declared schema.
	// Defaults to true; see Load.
	Validate bool `yaml:"validate" env:"CRASHLENS_VALIDATE"`
}

// RunnerConfig bounds parallel question execution.
type RunnerConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" env:"CRASHLENS_MAX_CONCURRENT" env-default:"4"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"CRASHLENS_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"CRASHLENS_LOG_FORMAT" env-default:"console"` // "console" or "json"
	// Dir, when set, receives a crashlens.log file alongside stderr output.
	Dir string `yaml:"dir" env:"CRASHLENS_LOG_DIR" env-default:""`
}

// DatabaseConfig holds PostgreSQL connection settings and table names.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"crashlens"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"crashes"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"4"`

	Tables TableNamesConfig `yaml:"tables"`
}

// TableNamesConfig maps each logical table to a database table.
type TableNamesConfig struct {
	Person string `yaml:"person" env:"CRASHLENS_PERSON_TABLE" env-default:"primary_person"`
	Unit   string `yaml:"unit" env:"CRASHLENS_UNIT_TABLE" env-default:"units"`
	Damage string `yaml:"damage" env:"CRASHLENS_DAMAGE_TABLE" env-default:"damages"`
	Charge string `yaml:"charge" env:"CRASHLENS_CHARGE_TABLE" env-default:"charges"`
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error: environment and defaults are used instead.
func Load(path, version string) (*Config, error) {
	// Bool defaults are set here: env-default would override an explicit false.
	cfg := &Config{Version: version, Catalog: CatalogConfig{Validate: true}}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		} else {
			path = ""
		}
	}
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks enumerated and numeric fields.
func (c *Config) Validate() error {
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	switch c.Source {
	case "csv", "postgres":
	default:
		return fmt.Errorf("source must be csv or postgres, got %q", c.Source)
	}

	c.Catalog.TieBreak = strings.ToLower(strings.TrimSpace(c.Catalog.TieBreak))
	switch c.Catalog.TieBreak {
	case "stable", "key":
	default:
		return fmt.Errorf("catalog.tie_break must be stable or key, got %q", c.Catalog.TieBreak)
	}

	if c.Catalog.MaxJoinRows < 0 {
		return fmt.Errorf("catalog.max_join_rows must not be negative")
	}
	if c.Runner.MaxConcurrent < 1 {
		c.Runner.MaxConcurrent = 1
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}
