// Package config builds the process configuration once, from defaults, an
// optional TOML file and the environment (in that order of precedence).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	// Database is nil when no client store is configured.
	Database *DatabaseConfig

	// Task settings
	Variant     string
	Timeout     time.Duration
	OutputDir   string
	PreviewRows int

	// Logging
	LogLevel  string
	LogFormat string

	// Variants holds per-variant overrides from the config file.
	Variants map[string]VariantOverride
}

// VariantOverride adjusts a built-in schema variant without recompiling.
type VariantOverride struct {
	ClientsQuery     string   `toml:"clients_query"`
	PublicIPQuery    string   `toml:"public_ip_query"`
	Regions          []string `toml:"regions"`
	ClientKeyMode    string   `toml:"client_key_mode"`
	ScheduleKeyMode  string   `toml:"schedule_key_mode"`
	DepartmentPolicy string   `toml:"department_policy"`
	GroupBy          string   `toml:"group_by"`
	B2BValues        []string `toml:"b2b_values"`
	B2CValues        []string `toml:"b2c_values"`
}

type fileConfig struct {
	App struct {
		Variant        string `toml:"variant"`
		TimeoutSeconds int    `toml:"timeout_seconds"`
		OutputDir      string `toml:"output_dir"`
		PreviewRows    int    `toml:"preview_rows"`
		LogLevel       string `toml:"log_level"`
		LogFormat      string `toml:"log_format"`
	} `toml:"app"`
	Database *fileDatabase              `toml:"database"`
	Variants map[string]VariantOverride `toml:"variants"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Variant:     "cartera-ip",
		Timeout:     5 * time.Minute,
		OutputDir:   os.TempDir(),
		PreviewRows: 20,
		LogLevel:    "info",
		LogFormat:   "json",
		Variants:    map[string]VariantOverride{},
	}
}

// LoadConfig loads configuration. path may be empty; NODEFILTER_CONFIG is used then.
func LoadConfig(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("NODEFILTER_CONFIG")
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	db, err := LoadDatabaseConfig(cfg.Database)
	if err != nil {
		return nil, errors.New("failed to load database configuration: " + err.Error())
	}
	cfg.Database = db

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.App.Variant != "" {
		c.Variant = fc.App.Variant
	}
	if fc.App.TimeoutSeconds > 0 {
		c.Timeout = time.Duration(fc.App.TimeoutSeconds) * time.Second
	}
	if fc.App.OutputDir != "" {
		c.OutputDir = fc.App.OutputDir
	}
	if fc.App.PreviewRows > 0 {
		c.PreviewRows = fc.App.PreviewRows
	}
	if fc.App.LogLevel != "" {
		c.LogLevel = fc.App.LogLevel
	}
	if fc.App.LogFormat != "" {
		c.LogFormat = fc.App.LogFormat
	}
	if fc.Database != nil {
		c.Database = fc.Database.toConfig()
	}
	for name, v := range fc.Variants {
		c.Variants[name] = v
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Variant = getEnv("NODEFILTER_VARIANT", c.Variant)
	c.Timeout = time.Duration(getEnvAsInt("NODEFILTER_TIMEOUT_SECONDS", int(c.Timeout/time.Second))) * time.Second
	c.OutputDir = getEnv("NODEFILTER_OUTPUT_DIR", c.OutputDir)
	c.PreviewRows = getEnvAsInt("NODEFILTER_PREVIEW_ROWS", c.PreviewRows)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.Variant == "" {
		return errors.New("variant is required")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.PreviewRows <= 0 {
		return errors.New("preview rows must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
