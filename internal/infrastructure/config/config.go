package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl"
	"gopkg.in/yaml.v3"
)

// DefaultTables returns the allowlist used when the store section names no
// tables. Each call returns a fresh slice.
func DefaultTables() []string {
	return []string{
		"admin",
		"pages",
		"articles",
		"calendar",
		"songs",
		"users",
		"game_users",
		"games",
	}
}

// Supported database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config is the root configuration structure for sitedb.
// It is loaded from YAML or HCL and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database" hcl:"database"`
	Store    StoreConfig    `yaml:"store" hcl:"store"`
	Logging  LoggingConfig  `yaml:"logging" hcl:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt" hcl:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb" hcl:"influxdb"`
}

// DatabaseConfig describes the single database endpoint.
type DatabaseConfig struct {
	// Driver is one of mysql, postgres or sqlite3.
	Driver string `yaml:"driver" hcl:"driver"`

	// DSN, when set, is passed to the driver verbatim and the
	// host/port/user/password/name fields are ignored.
	DSN string `yaml:"dsn" hcl:"dsn"`

	Host     string `yaml:"host" hcl:"host"`
	Port     int    `yaml:"port" hcl:"port"`
	User     string `yaml:"user" hcl:"user"`
	Password string `yaml:"password" hcl:"password"`
	Name     string `yaml:"name" hcl:"name"`

	// Path is the database file for the sqlite3 driver.
	Path string `yaml:"path" hcl:"path"`

	// Params are extra driver parameters appended to the DSN.
	Params map[string]string `yaml:"params" hcl:"params"`

	MaxOpenConns    int `yaml:"max_open_conns" hcl:"max_open_conns"`
	MaxIdleConns    int `yaml:"max_idle_conns" hcl:"max_idle_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime" hcl:"conn_max_lifetime"` // seconds
	ConnectTimeout  int `yaml:"connect_timeout" hcl:"connect_timeout"`     // seconds
}

// StoreConfig controls which identifiers may reach generated SQL.
type StoreConfig struct {
	// Tables is the table allowlist. Empty means DefaultTables.
	Tables []string `yaml:"tables" hcl:"tables"`

	// Columns optionally restricts column identifiers per table.
	// Tables without an entry accept any column name.
	Columns map[string][]string `yaml:"columns" hcl:"columns"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" hcl:"level"`
	Format string `yaml:"format" hcl:"format"`
	Output string `yaml:"output" hcl:"output"`
}

// MQTTConfig contains settings for the change-event publisher.
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled" hcl:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker" hcl:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth" hcl:"auth"`
	QoS         int              `yaml:"qos" hcl:"qos"`
	TopicPrefix string           `yaml:"topic_prefix" hcl:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" hcl:"host"`
	Port     int    `yaml:"port" hcl:"port"`
	TLS      bool   `yaml:"tls" hcl:"tls"`
	ClientID string `yaml:"client_id" hcl:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" hcl:"username"`
	Password string `yaml:"password" hcl:"password"`
}

// InfluxDBConfig contains settings for the statement metrics writer.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" hcl:"enabled"`
	URL           string `yaml:"url" hcl:"url"`
	Token         string `yaml:"token" hcl:"token"`
	Org           string `yaml:"org" hcl:"org"`
	Bucket        string `yaml:"bucket" hcl:"bucket"`
	BatchSize     int    `yaml:"batch_size" hcl:"batch_size"`
	FlushInterval int    `yaml:"flush_interval" hcl:"flush_interval"` // seconds
}

// Load reads configuration from a YAML or HCL file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. File values (override defaults)
//  3. Environment variables (override file values)
//
// Files ending in .hcl are decoded as HCL; everything else as YAML.
//
// Environment variables follow the pattern: SITEDB_SECTION_KEY
// For example: SITEDB_DATABASE_DSN, SITEDB_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// decode unmarshals data into cfg according to the file extension.
func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return hcl.Decode(cfg, string(data))
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// defaultConfig returns a Config pointing at the site's MySQL database.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          DriverMySQL,
			Host:            "localhost",
			Port:            3306,
			User:            "justus",
			Name:            "olmmcc",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 3600,
			ConnectTimeout:  5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sitedb",
			},
			QoS:         1,
			TopicPrefix: "sitedb",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("SITEDB_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SITEDB_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SITEDB_DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("SITEDB_DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("SITEDB_DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}

	// Logging
	if v := os.Getenv("SITEDB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// MQTT
	if v := os.Getenv("SITEDB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SITEDB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SITEDB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SITEDB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
// All problems are reported together in a single error.
func (c *Config) Validate() error {
	var errs []string

	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres:
		if c.Database.DSN == "" && c.Database.Host == "" {
			errs = append(errs, "database.host or database.dsn is required")
		}
		if c.Database.DSN == "" && c.Database.Name == "" {
			errs = append(errs, "database.name or database.dsn is required")
		}
	case DriverSQLite:
		if c.Database.DSN == "" && c.Database.Path == "" {
			errs = append(errs, "database.path or database.dsn is required for sqlite3")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of mysql, postgres, sqlite3", c.Database.Driver))
	}

	if c.Database.Port < 0 || c.Database.Port > 65535 {
		errs = append(errs, "database.port must be between 0 and 65535")
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		errs = append(errs, "database connection limits must not be negative")
	}

	for _, table := range c.Store.Tables {
		if strings.TrimSpace(table) == "" {
			errs = append(errs, "store.tables must not contain empty names")
			break
		}
	}
	for table := range c.Store.Columns {
		if !containsString(c.AllowedTables(), table) {
			errs = append(errs, fmt.Sprintf("store.columns.%s refers to a table outside store.tables", table))
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// AllowedTables returns a copy of the configured table allowlist, or
// DefaultTables.
func (c *Config) AllowedTables() []string {
	if len(c.Store.Tables) == 0 {
		return DefaultTables()
	}
	return append([]string(nil), c.Store.Tables...)
}

// GetConnMaxLifetime returns the pool connection lifetime as a Duration.
// Zero means connections are reused forever.
func (d DatabaseConfig) GetConnMaxLifetime() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// GetConnectTimeout returns the connect timeout as a Duration. Zero means
// the caller's default applies.
func (d DatabaseConfig) GetConnectTimeout() time.Duration {
	return time.Duration(d.ConnectTimeout) * time.Second
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
