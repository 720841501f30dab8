package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/afroash/corrosion-monitor/internal/storage"
)

// AppConfig holds server configuration
type AppConfig struct {
	Server   ServerSettings   `yaml:"server"`
	Database DatabaseSettings `yaml:"database"`
	Refresh  RefreshSettings  `yaml:"refresh"`
	Query    QuerySettings    `yaml:"query"`
	Logging  LoggingConfig    `yaml:"logging"`
}

// ServerSettings contains HTTP server configuration
type ServerSettings struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// DatabaseSettings selects and configures the readings store
type DatabaseSettings struct {
	Driver          string        `yaml:"driver"` // "sqlite3" or "mysql"
	Path            string        `yaml:"path"`   // sqlite3 only
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RefreshSettings configures the background refresh channel
type RefreshSettings struct {
	Interval time.Duration `yaml:"interval"`
}

// QuerySettings holds defaults for optional query parameters
type QuerySettings struct {
	DefaultPageSize int `yaml:"default_page_size"`
	RecentLimit     int `yaml:"recent_limit"`
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadAppConfig loads server configuration from a YAML file
func LoadAppConfig(path string) (*AppConfig, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var config AppConfig
	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.ApplyDefaults()
	if err := config.OverrideFromEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// ApplyDefaults sets default values for server config
func (ac *AppConfig) ApplyDefaults() {
	if ac.Server.Port == 0 {
		ac.Server.Port = 8080
	}
	if ac.Server.Host == "" {
		ac.Server.Host = "localhost"
	}
	if ac.Server.ReadTimeout == 0 {
		ac.Server.ReadTimeout = 60 * time.Second
	}
	if ac.Server.WriteTimeout == 0 {
		ac.Server.WriteTimeout = 10 * time.Second
	}
	if ac.Server.ShutdownTimeout == 0 {
		ac.Server.ShutdownTimeout = 10 * time.Second
	}
	if ac.Database.Driver == "" {
		ac.Database.Driver = storage.DriverSQLite
	}
	if ac.Database.Path == "" {
		ac.Database.Path = "./data/corrosion.db"
	}
	if ac.Database.Host == "" {
		ac.Database.Host = "localhost"
	}
	if ac.Database.Port == 0 {
		ac.Database.Port = 3306
	}
	if ac.Database.MaxOpenConns == 0 {
		ac.Database.MaxOpenConns = 10
	}
	if ac.Database.MaxIdleConns == 0 {
		ac.Database.MaxIdleConns = 5
	}
	if ac.Database.ConnMaxLifetime == 0 {
		ac.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if ac.Refresh.Interval == 0 {
		ac.Refresh.Interval = 10 * time.Second
	}
	if ac.Query.DefaultPageSize == 0 {
		ac.Query.DefaultPageSize = 5
	}
	if ac.Query.RecentLimit == 0 {
		ac.Query.RecentLimit = 10
	}
	ac.Logging.applyDefaults()
}

// OverrideFromEnv overrides config from environment variables
func (ac *AppConfig) OverrideFromEnv() error {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
		ac.Server.Port = port
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		ac.Server.Host = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		ac.Database.Driver = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		ac.Database.Path = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		ac.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		ac.Database.Port = port
	}
	if v := os.Getenv("DB_USER"); v != "" {
		ac.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		ac.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		ac.Database.Name = v
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid REFRESH_INTERVAL %q: %w", v, err)
		}
		ac.Refresh.Interval = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		ac.Logging.Level = v
	}
	return nil
}

// Validate checks if server configuration is valid
func (ac *AppConfig) Validate() error {
	if ac.Server.Port < 1 || ac.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	switch ac.Database.Driver {
	case storage.DriverSQLite:
		if ac.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite3")
		}
	case storage.DriverMySQL:
		if ac.Database.User == "" || ac.Database.Name == "" {
			return fmt.Errorf("database user and name are required for mysql")
		}
		if ac.Database.Port < 1 || ac.Database.Port > 65535 {
			return fmt.Errorf("database port must be between 1 and 65535")
		}
	default:
		return fmt.Errorf("database driver must be %q or %q", storage.DriverSQLite, storage.DriverMySQL)
	}
	if ac.Refresh.Interval < 1*time.Second {
		return fmt.Errorf("refresh interval must be at least 1 second")
	}
	if ac.Query.DefaultPageSize < 1 || ac.Query.DefaultPageSize > 100 {
		return fmt.Errorf("default page size must be between 1 and 100")
	}
	if ac.Query.RecentLimit < 1 || ac.Query.RecentLimit > 100 {
		return fmt.Errorf("recent limit must be between 1 and 100")
	}
	return ac.Logging.validate()
}

// DSN returns the data source name for the configured driver
func (d DatabaseSettings) DSN() string {
	if d.Driver != storage.DriverMySQL {
		return d.Path
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	cfg.DBName = d.Name
	cfg.Timeout = 5 * time.Second
	return cfg.FormatDSN()
}

// SQLConfig converts the settings into a storage.SQLConfig
func (d DatabaseSettings) SQLConfig() storage.SQLConfig {
	return storage.SQLConfig{
		Driver:          d.Driver,
		DSN:             d.DSN(),
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
	}
}

// String returns a safe string representation (hides the database password)
func (ac *AppConfig) String() string {
	db := ac.Database
	db.Password = maskSecret(db.Password)
	return fmt.Sprintf("AppConfig{Server: %+v, Database: %+v, Refresh: %+v, Query: %+v, Logging: %+v}",
		ac.Server,
		db,
		ac.Refresh,
		ac.Query,
		ac.Logging,
	)
}
