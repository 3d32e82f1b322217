// Package config provides YAML-based configuration loading for Opsdeck.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/opsdeck/internal/tasktree"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Opsdeck configuration, loaded from opsdeck.yaml.
type Config struct {
	Tenant    string          `yaml:"tenant"`
	Database  DatabaseConfig  `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Log       LogConfig       `yaml:"log"`
	Notify    NotifyConfig    `yaml:"notify"`
	Board     BoardConfig     `yaml:"board"`
}

// DatabaseConfig selects and addresses the reference store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// DashboardConfig holds settings for the JSON API server.
type DashboardConfig struct {
	Port int `yaml:"port"`
	// Reconcile is a 5-field cron schedule for periodic refetches.
	// Empty disables it.
	Reconcile        string `yaml:"reconcile"`
	RemoteTimeoutSec int    `yaml:"remote_timeout_sec"`
	AnalyticsMaxAge  string `yaml:"analytics_max_age"`
}

// LogConfig configures the logrus logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NotifyConfig holds webhook targets for failed-move notifications.
type NotifyConfig struct {
	SlackWebhookURL     string `yaml:"slack_webhook_url"`
	DiscordWebhookID    string `yaml:"discord_webhook_id"`
	DiscordWebhookToken string `yaml:"discord_webhook_token"`
}

// BoardConfig customizes the Kanban board and the calendar used for date
// buckets. Weeks always start on Sunday.
type BoardConfig struct {
	Timezone string            `yaml:"timezone"`
	Titles   map[string]string `yaml:"titles"`
}

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOverlay reads path when it exists, lets overlay change the raw
// values, then applies defaults and validates. A missing file starts from
// an empty config, so the overlay alone can describe a working setup.
func LoadOverlay(path string, overlay func(*Config)) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if overlay != nil {
		overlay(&cfg)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated config for a tenant with every default
// applied, used when no config file exists.
func Default(tenant string) *Config {
	cfg := Config{Tenant: tenant}
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" && c.Tenant != "" {
		c.Database.Path = "opsdeck_" + c.Tenant + ".db"
	}
	if c.Database.Driver == DriverMySQL {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" && c.Tenant != "" {
			c.Database.Name = "opsdeck_" + c.Tenant
		}
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Dashboard.RemoteTimeoutSec == 0 {
		c.Dashboard.RemoteTimeoutSec = 30
	}
	if c.Dashboard.AnalyticsMaxAge == "" {
		c.Dashboard.AnalyticsMaxAge = "5m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Board.Timezone == "" {
		c.Board.Timezone = "Local"
	}
}

// Validate checks that all required fields are present and consistent.
func (c *Config) Validate() error {
	var errs []string
	if c.Tenant == "" {
		errs = append(errs, "tenant is required")
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	case DriverMySQL:
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Dashboard.Port < 1 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port %d out of range", c.Dashboard.Port))
	}
	if c.Dashboard.Reconcile != "" {
		if _, err := cron.ParseStandard(c.Dashboard.Reconcile); err != nil {
			errs = append(errs, fmt.Sprintf("dashboard.reconcile: %v", err))
		}
	}
	if c.Dashboard.RemoteTimeoutSec < 0 {
		errs = append(errs, "dashboard.remote_timeout_sec must not be negative")
	}
	if d, err := time.ParseDuration(c.Dashboard.AnalyticsMaxAge); err != nil || d < 0 {
		errs = append(errs, fmt.Sprintf("dashboard.analytics_max_age %q is not a duration", c.Dashboard.AnalyticsMaxAge))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is unknown", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	if (c.Notify.DiscordWebhookID == "") != (c.Notify.DiscordWebhookToken == "") {
		errs = append(errs, "notify.discord_webhook_id and discord_webhook_token must be set together")
	}
	if _, err := time.LoadLocation(c.Board.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("board.timezone %q is unknown", c.Board.Timezone))
	}
	for k := range c.Board.Titles {
		if _, err := tasktree.ParseStatus(k); err != nil {
			errs = append(errs, fmt.Sprintf("board.titles: %q is not a status", k))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the board timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Board.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RemoteTimeout returns the per-request store timeout.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Dashboard.RemoteTimeoutSec) * time.Second
}

// AnalyticsMaxAge returns how old precomputed analytics may be.
func (c *Config) AnalyticsMaxAge() time.Duration {
	d, _ := time.ParseDuration(c.Dashboard.AnalyticsMaxAge)
	return d
}

// BoardTitles returns the column title overrides keyed by status.
func (c *Config) BoardTitles() map[tasktree.Status]string {
	out := make(map[tasktree.Status]string, len(c.Board.Titles))
	for k, v := range c.Board.Titles {
		out[tasktree.Status(k)] = v
	}
	return out
}
