// Package config holds the typed configuration of a migration run.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source is the legacy MySQL database.
type Source struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	// Timezone is the zone legacy DATETIME values were written in.
	Timezone string `mapstructure:"timezone"`
}

// Location loads the source timezone.
func (s Source) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// Destination is the target PostgreSQL database.
type Destination struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Database       string `mapstructure:"database"`
	SSLMode        string `mapstructure:"sslmode"`
	ConnectTimeout int    `mapstructure:"connect_timeout"`
	MaxConns       int32  `mapstructure:"max_conns"`
}

// ConnectionString returns the connection string with credentials.
// WARNING: Do not log this - use SanitizedConnectionString() for logging.
func (d Destination) ConnectionString() string {
	return d.connectionString(d.Password)
}

// SanitizedConnectionString returns a connection string safe for logging.
func (d Destination) SanitizedConnectionString() string {
	return d.connectionString("****")
}

func (d Destination) connectionString(password string) string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = 10
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		d.User, password, d.Host, d.Port, d.Database, sslMode, timeout,
	)
}

// Migration tunes the pipeline.
type Migration struct {
	ResetSchema   bool   `mapstructure:"reset_schema"`
	SchemaFile    string `mapstructure:"schema_file"`
	EmailDomain   string `mapstructure:"email_domain"`
	ProgressEvery int    `mapstructure:"progress_every"`
	ReportPath    string `mapstructure:"report_path"`
}

// Log configures the operator log stream.
type Log struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Progress configures the optional Redis progress publisher.
type Progress struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisChannel  string `mapstructure:"redis_channel"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// Runs configures the run journal.
type Runs struct {
	Path string `mapstructure:"path"`
}

// Config is the full configuration.
type Config struct {
	Source      Source      `mapstructure:"source"`
	Destination Destination `mapstructure:"destination"`
	Migration   Migration   `mapstructure:"migration"`
	Log         Log         `mapstructure:"log"`
	Progress    Progress    `mapstructure:"progress"`
	Runs        Runs        `mapstructure:"runs"`
}

// envOnly are keys without a meaningful default. They are bound explicitly
// so values supplied only through the environment still reach Unmarshal.
var envOnly = []string{
	"source.host", "source.user", "source.password", "source.database",
	"destination.host", "destination.user", "destination.password", "destination.database",
	"migration.reset_schema", "migration.report_path",
	"log.json", "log.file", "log.max_size_mb", "log.max_backups", "log.max_age_days",
	"progress.redis_addr", "progress.redis_password", "progress.redis_db",
	"runs.path",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	for _, key := range envOnly {
		_ = v.BindEnv(key)
	}
	v.SetDefault("source.port", 3306)
	v.SetDefault("source.timezone", "Australia/Melbourne")
	v.SetDefault("destination.port", 5432)
	v.SetDefault("destination.sslmode", "disable")
	v.SetDefault("destination.connect_timeout", 10)
	v.SetDefault("destination.max_conns", 4)
	v.SetDefault("migration.schema_file", "scripts/reset_schema.sql")
	v.SetDefault("migration.email_domain", "legacy.invalid")
	v.SetDefault("migration.progress_every", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("progress.redis_channel", "jobmigrate:progress")
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Source.Host) == "" {
		errs = append(errs, errors.New("source.host is required"))
	}
	if strings.TrimSpace(c.Source.Database) == "" {
		errs = append(errs, errors.New("source.database is required"))
	}
	if _, err := c.Source.Location(); err != nil {
		errs = append(errs, fmt.Errorf("source.timezone %q: %w", c.Source.Timezone, err))
	}
	if strings.TrimSpace(c.Destination.Host) == "" {
		errs = append(errs, errors.New("destination.host is required"))
	}
	if strings.TrimSpace(c.Destination.Database) == "" {
		errs = append(errs, errors.New("destination.database is required"))
	}
	if c.Migration.ProgressEvery < 0 {
		errs = append(errs, errors.New("migration.progress_every must not be negative"))
	}
	return errors.Join(errs...)
}
