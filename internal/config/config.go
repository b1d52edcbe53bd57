// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vulngate/vulngate/internal/findings"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Policy   PolicyConfig   `mapstructure:"policy" yaml:"policy"`
	Bypass   BypassConfig   `mapstructure:"bypass" yaml:"bypass"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
	Scanners ScannersConfig `mapstructure:"scanners" yaml:"scanners"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// PolicyConfig is the on-disk form of the severity policy.
type PolicyConfig struct {
	SeverityThreshold string   `mapstructure:"severity_threshold" yaml:"severity_threshold"`
	Exceptions        []string `mapstructure:"exceptions" yaml:"exceptions"`
}

// Threshold parses the configured severity threshold.
func (p PolicyConfig) Threshold() (findings.Severity, error) {
	return findings.ParseSeverity(p.SeverityThreshold)
}

// BypassConfig configures the bypass trust anchor. The secret is only ever
// sourced from the environment (VULNGATE_BYPASS_SECRET), never from the
// config file on disk.
type BypassConfig struct {
	Mode   string `mapstructure:"mode" yaml:"mode"`
	Secret string `mapstructure:"secret" yaml:"-"`
}

// AuditConfig configures the bypass audit trail.
type AuditConfig struct {
	LogFile      string        `mapstructure:"log_file" yaml:"log_file"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	// DatabaseURL, when set, adds a PostgreSQL audit sink alongside the
	// local file.
	DatabaseURL string `mapstructure:"database_url" yaml:"-"`
}

// ScannersConfig locates scanner output on disk.
type ScannersConfig struct {
	ResultsDir string `mapstructure:"results_dir" yaml:"results_dir"`
	Default    string `mapstructure:"default" yaml:"default"`
}

// FindingsPath derives the input path for a scanner's results. Callers can
// always override it with an explicit path flag.
func (s ScannersConfig) FindingsPath(scanner string) string {
	return filepath.Join(s.ResultsDir, scanner+"-results.json")
}

// ServerConfig tunes the optional long-running evaluation service.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vulngate")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Policy --
	v.SetDefault("policy.severity_threshold", "HIGH")
	v.SetDefault("policy.exceptions", []string{})

	// -- Bypass --
	v.SetDefault("bypass.mode", "static")

	// -- Audit --
	v.SetDefault("audit.log_file", ".vulngate/bypass-audit.jsonl")
	v.SetDefault("audit.max_retries", 3)
	v.SetDefault("audit.retry_backoff", "50ms")

	// -- Scanners --
	v.SetDefault("scanners.results_dir", ".vulngate")
	v.SetDefault("scanners.default", "trivy")

	// -- Server --
	v.SetDefault("server.addr", ":8840")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
}

// NewDefaultConfig creates a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewFromViper builds and validates a configuration from a viper instance.
func NewFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never the config file.
	v.BindEnv("bypass.secret", "VULNGATE_BYPASS_SECRET")
	v.BindEnv("audit.database_url", "VULNGATE_AUDIT_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if _, err := c.Policy.Threshold(); err != nil {
		return fmt.Errorf("policy.severity_threshold: %w", err)
	}
	switch strings.ToLower(c.Bypass.Mode) {
	case "static", "signed":
	default:
		return fmt.Errorf("bypass.mode must be \"static\" or \"signed\", got %q", c.Bypass.Mode)
	}
	if c.Audit.LogFile == "" {
		return fmt.Errorf("audit.log_file is a required configuration field")
	}
	if c.Audit.MaxRetries < 0 {
		return fmt.Errorf("audit.max_retries must not be negative")
	}
	if c.Scanners.ResultsDir == "" {
		return fmt.Errorf("scanners.results_dir is a required configuration field")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be a positive duration")
	}
	return nil
}
