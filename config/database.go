package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"
)

// Supported client store drivers.
const (
	DriverSQLServer = "sqlserver"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite3"
	DriverSnowflake = "snowflake"
)

// DatabaseConfig holds the client store connection parameters
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Instance string
	User     string
	Password string
	Database string
	SSLMode  string

	// Path is the database file for sqlite3.
	Path string

	// Snowflake only
	Account   string
	Warehouse string
	Role      string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Query timeout
	QueryTimeout time.Duration
}

type fileDatabase struct {
	Driver              string `toml:"driver"`
	Host                string `toml:"host"`
	Port                int    `toml:"port"`
	Instance            string `toml:"instance"`
	User                string `toml:"user"`
	Password            string `toml:"password"`
	Database            string `toml:"database"`
	SSLMode             string `toml:"sslmode"`
	Path                string `toml:"path"`
	Account             string `toml:"account"`
	Warehouse           string `toml:"warehouse"`
	Role                string `toml:"role"`
	QueryTimeoutSeconds int    `toml:"query_timeout_seconds"`
}

func (f *fileDatabase) toConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver:       f.Driver,
		Host:         f.Host,
		Port:         f.Port,
		Instance:     f.Instance,
		User:         f.User,
		Password:     f.Password,
		Database:     f.Database,
		SSLMode:      f.SSLMode,
		Path:         f.Path,
		Account:      f.Account,
		Warehouse:    f.Warehouse,
		Role:         f.Role,
		QueryTimeout: time.Duration(f.QueryTimeoutSeconds) * time.Second,
	}
}

// LoadDatabaseConfig merges environment variables over base (which may be nil).
// It returns nil, nil when no store is configured at all.
func LoadDatabaseConfig(base *DatabaseConfig) (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{}
	if base != nil {
		*cfg = *base
	}

	cfg.Driver = strings.ToLower(getEnv("NODEFILTER_DB_DRIVER", cfg.Driver))
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLServer
	}
	cfg.Host = getEnv("DB_SERVER", cfg.Host)
	cfg.Port = getEnvAsInt("DB_PORT", cfg.Port)
	cfg.Instance = getEnv("DB_INSTANCE", cfg.Instance)
	cfg.User = getEnv("DB_USERNAME", cfg.User)
	cfg.Password = getEnv("DB_PASSWORD", cfg.Password)
	cfg.Database = getEnv("DB_DATABASE", cfg.Database)
	cfg.SSLMode = getEnv("DB_SSLMODE", cfg.SSLMode)
	cfg.Path = getEnv("DB_PATH", cfg.Path)
	cfg.Account = getEnv("SNOWFLAKE_ACCOUNT", cfg.Account)
	cfg.Warehouse = getEnv("SNOWFLAKE_WAREHOUSE", cfg.Warehouse)
	cfg.Role = getEnv("SNOWFLAKE_ROLE", cfg.Role)

	cfg.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", orInt(cfg.MaxOpenConns, 4))
	cfg.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", orInt(cfg.MaxIdleConns, 2))
	cfg.ConnMaxLifetime = time.Duration(getEnvAsInt("DB_CONN_MAX_LIFETIME_SECONDS",
		orInt(int(cfg.ConnMaxLifetime/time.Second), 600))) * time.Second
	cfg.QueryTimeout = time.Duration(getEnvAsInt("DB_QUERY_TIMEOUT_SECONDS",
		orInt(int(cfg.QueryTimeout/time.Second), 120))) * time.Second

	if !cfg.configured() {
		return nil, nil
	}
	return cfg, nil
}

func (c *DatabaseConfig) configured() bool {
	switch c.Driver {
	case DriverSQLite:
		return c.Path != "" || c.Database != ""
	case DriverSnowflake:
		return c.Account != ""
	default:
		return c.Host != ""
	}
}

// Validate checks the parameters the selected driver needs.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverSQLServer, DriverPostgres:
		if c.Host == "" {
			return fmt.Errorf("%s: DB_SERVER is required", c.Driver)
		}
		if c.User == "" {
			return fmt.Errorf("%s: DB_USERNAME is required", c.Driver)
		}
		if c.Database == "" {
			return fmt.Errorf("%s: DB_DATABASE is required", c.Driver)
		}
	case DriverSQLite:
		if c.Path == "" && c.Database == "" {
			return errors.New("sqlite3: DB_PATH is required")
		}
	case DriverSnowflake:
		if c.Account == "" || c.User == "" || c.Warehouse == "" {
			return errors.New("snowflake: SNOWFLAKE_ACCOUNT, DB_USERNAME and SNOWFLAKE_WAREHOUSE are required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}
	if c.QueryTimeout < 0 {
		return errors.New("query timeout cannot be negative")
	}
	return nil
}

// DriverName is the database/sql driver registered for Driver.
func (c *DatabaseConfig) DriverName() string {
	if c.Driver == DriverPostgres {
		return "pgx"
	}
	return c.Driver
}

// ConnectionString returns the DSN for the configured driver.
func (c *DatabaseConfig) ConnectionString() (string, error) {
	switch c.Driver {
	case DriverSQLServer:
		port := orInt(c.Port, 1433)
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.User, c.Password),
			Host:     net.JoinHostPort(c.Host, strconv.Itoa(port)),
			RawQuery: url.Values{"database": {c.Database}}.Encode(),
		}
		if c.Instance != "" {
			u.Path = c.Instance
		}
		return u.String(), nil
	case DriverPostgres:
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host,
			orInt(c.Port, 5432),
			c.User,
			c.Password,
			c.Database,
			sslMode,
		), nil
	case DriverSQLite:
		path := c.Path
		if path == "" {
			path = c.Database
		}
		if path == ":memory:" || strings.HasPrefix(path, "file:") {
			return path, nil
		}
		return fmt.Sprintf("file:%s?mode=ro", path), nil
	case DriverSnowflake:
		return gosnowflake.DSN(&gosnowflake.Config{
			Account:   c.Account,
			User:      c.User,
			Password:  c.Password,
			Database:  c.Database,
			Warehouse: c.Warehouse,
			Role:      c.Role,
		})
	}
	return "", fmt.Errorf("unsupported database driver %q", c.Driver)
}

// String describes the target without credentials, for logs.
func (c *DatabaseConfig) String() string {
	switch c.Driver {
	case DriverSQLite:
		if c.Path != "" {
			return "sqlite3:" + c.Path
		}
		return "sqlite3:" + c.Database
	case DriverSnowflake:
		return "snowflake:" + c.Account + "/" + c.Database
	}
	return fmt.Sprintf("%s:%s/%s", c.Driver, c.Host, c.Database)
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
