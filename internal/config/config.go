package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/afroash/corrosion-monitor/internal/models"
)

// Refresh modes of the dashboard
const (
	RefreshModePoll   = "poll"
	RefreshModeStream = "stream"
)

// Config holds all configuration for the terminal dashboard
type Config struct {
	API       APIConfig       `yaml:"api"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// APIConfig contains connection settings for the query service
type APIConfig struct {
	BaseURL              string        `yaml:"base_url"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
	PongTimeout          time.Duration `yaml:"pong_timeout"`
}

// DashboardConfig contains what the dashboard shows and how often
type DashboardConfig struct {
	DeviceID        int           `yaml:"device_id"` // 0 selects the first device
	RefreshMode     string        `yaml:"refresh_mode"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	PageSize        int           `yaml:"page_size"`
	ChartMetric     string        `yaml:"chart_metric"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`    // "json" or "console"
	FilePath string `yaml:"file_path"` // empty = stderr only
}

// LoadConfig loads dashboard configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var config Config
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

// ApplyDefaults sets default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8080/api"
	}
	if c.API.RequestTimeout == 0 {
		c.API.RequestTimeout = 10 * time.Second
	}
	if c.API.ReconnectInterval == 0 {
		c.API.ReconnectInterval = 1 * time.Second
	}
	if c.API.MaxReconnectInterval == 0 {
		c.API.MaxReconnectInterval = 1 * time.Minute
	}
	if c.API.PongTimeout == 0 {
		c.API.PongTimeout = 90 * time.Second
	}
	if c.Dashboard.RefreshMode == "" {
		c.Dashboard.RefreshMode = RefreshModePoll
	}
	if c.Dashboard.RefreshInterval == 0 {
		c.Dashboard.RefreshInterval = 10 * time.Second
	}
	if c.Dashboard.PageSize == 0 {
		c.Dashboard.PageSize = 5
	}
	if c.Dashboard.ChartMetric == "" {
		c.Dashboard.ChartMetric = string(models.MetricTemperature)
	}
	c.Logging.applyDefaults()
}

func (l *LoggingConfig) applyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "json"
	}
}

// OverrideFromEnv overrides config values from environment variables
func (c *Config) OverrideFromEnv() error {
	if v := os.Getenv("DASHBOARD_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("DASHBOARD_DEVICE_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DASHBOARD_DEVICE_ID %q: %w", v, err)
		}
		c.Dashboard.DeviceID = id
	}
	if v := os.Getenv("DASHBOARD_REFRESH_MODE"); v != "" {
		c.Dashboard.RefreshMode = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api base url must be an http(s) url, got %q", c.API.BaseURL)
	}
	if c.API.RequestTimeout < 100*time.Millisecond {
		return fmt.Errorf("request timeout must be at least 100ms")
	}
	if c.Dashboard.RefreshMode != RefreshModePoll && c.Dashboard.RefreshMode != RefreshModeStream {
		return fmt.Errorf("refresh mode must be %q or %q", RefreshModePoll, RefreshModeStream)
	}
	if c.Dashboard.RefreshInterval < 1*time.Second {
		return fmt.Errorf("refresh interval must be at least 1 second")
	}
	if c.Dashboard.PageSize < 1 || c.Dashboard.PageSize > 100 {
		return fmt.Errorf("page size must be between 1 and 100")
	}
	if _, err := models.ParseMetric(c.Dashboard.ChartMetric); err != nil {
		return fmt.Errorf("chart metric: %w", err)
	}
	return c.Logging.validate()
}

func (l *LoggingConfig) validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error")
	}
	if l.Format != "json" && l.Format != "console" {
		return fmt.Errorf("log format must be json or console")
	}
	return nil
}

// String returns a readable representation for startup logs
func (c *Config) String() string {
	return fmt.Sprintf("Config{API: %+v, Dashboard: %+v, Logging: %+v}",
		c.API,
		c.Dashboard,
		c.Logging,
	)
}

// maskSecret masks all but first 4 characters of a secret
func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}
