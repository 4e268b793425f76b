// Package config handles configuration loading for contentctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Content ContentConfig `yaml:"content"`
	Build   BuildConfig   `yaml:"build"`
	Attack  AttackConfig  `yaml:"attack"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// ContentConfig locates the content tree.
type ContentConfig struct {
	Dir         string `yaml:"dir"`
	MaxFileSize int64  `yaml:"max_file_size"` // Largest definition file accepted, in bytes
}

// BuildConfig holds build settings.
type BuildConfig struct {
	Strict  bool          `yaml:"strict"` // Unresolved references fail the detection
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

// Attack dataset sources.
const (
	AttackSourceEmbedded = "embedded"
	AttackSourceFile     = "file"
	AttackSourceRedis    = "redis"
)

// AttackConfig selects the ATT&CK dataset.
type AttackConfig struct {
	Source string      `yaml:"source"`
	File   string      `yaml:"file"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	Key         string        `yaml:"key"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// ExportConfig holds bundle output settings.
type ExportConfig struct {
	OutputPath string   `yaml:"output_path"`
	S3         S3Config `yaml:"s3"`
}

// S3Config holds settings for uploading bundles to S3-compatible storage.
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // Custom endpoint for S3-compatible stores
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Content: ContentConfig{
			Dir:         ".",
			MaxFileSize: 4 * 1024 * 1024, // 4MB
		},
		Build: BuildConfig{
			Strict:  false,
			Workers: 4,
			Timeout: 5 * time.Minute,
		},
		Attack: AttackConfig{
			Source: AttackSourceEmbedded,
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				Key:         "contentctl:attack:enterprise",
				DialTimeout: 5 * time.Second,
			},
		},
		Export: ExportConfig{
			OutputPath: "dist/bundle.json",
			S3: S3Config{
				Enabled: false,
				Prefix:  "bundles/",
				Region:  "us-east-1",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a file or returns defaults. Environment
// overrides apply in both cases.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := os.Getenv("CONTENTCTL_CONFIG_PATH")
	if configPath == "" {
		configPath = "contentctl.yaml"
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// File doesn't exist, use defaults
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("CONTENTCTL_CONTENT_DIR"); dir != "" {
		c.Content.Dir = dir
	}

	if strict := os.Getenv("CONTENTCTL_STRICT"); strict != "" {
		if v, err := strconv.ParseBool(strict); err == nil {
			c.Build.Strict = v
		}
	}

	if workers := os.Getenv("CONTENTCTL_WORKERS"); workers != "" {
		fmt.Sscanf(workers, "%d", &c.Build.Workers)
	}

	if level := os.Getenv("CONTENTCTL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	// Attack dataset
	if src := os.Getenv("CONTENTCTL_ATTACK_SOURCE"); src != "" {
		c.Attack.Source = strings.ToLower(src)
	}

	if addr := os.Getenv("CONTENTCTL_REDIS_ADDR"); addr != "" {
		c.Attack.Redis.Addr = addr
	}

	if pass := os.Getenv("CONTENTCTL_REDIS_PASSWORD"); pass != "" {
		c.Attack.Redis.Password = pass
	}

	// Export
	if bucket := os.Getenv("CONTENTCTL_S3_BUCKET"); bucket != "" {
		c.Export.S3.Bucket = bucket
		c.Export.S3.Enabled = true
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Content.Dir == "" {
		return fmt.Errorf("content dir must be set")
	}

	if c.Content.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive")
	}

	if c.Build.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Build.Workers)
	}

	switch c.Attack.Source {
	case AttackSourceEmbedded, AttackSourceRedis:
	case AttackSourceFile:
		if c.Attack.File == "" {
			return fmt.Errorf("attack source %q requires attack.file", c.Attack.Source)
		}
	default:
		return fmt.Errorf("invalid attack source: %q", c.Attack.Source)
	}

	if c.Export.S3.Enabled && c.Export.S3.Bucket == "" {
		return fmt.Errorf("s3 export requires a bucket")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	return nil
}
