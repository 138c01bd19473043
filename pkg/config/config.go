package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the harness configuration
type Config struct {
	Logging    LoggingConfig               `yaml:"logging" json:"logging"`
	History    HistoryConfig               `yaml:"history" json:"history"`
	ControlAPI ControlAPIConfig            `yaml:"control_api" json:"control_api"`
	Artifacts  ArtifactConfig              `yaml:"artifacts" json:"artifacts"`
	Containers map[string]*ContainerConfig `yaml:"containers" json:"containers"`
}

// LoggingConfig contains harness logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
}

// HistoryConfig contains run-history store settings
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Path          string `yaml:"path" json:"path"`
	PruneSchedule string `yaml:"prune_schedule" json:"prune_schedule"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
}

// ControlAPIConfig contains settings for the loopback control API
type ControlAPIConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	Token   string `yaml:"token,omitempty" json:"token,omitempty"`
}

// ArtifactConfig contains artifact resolution settings
type ArtifactConfig struct {
	CacheDir string   `yaml:"cache_dir" json:"cache_dir"`
	S3       S3Config `yaml:"s3" json:"s3"`
}

// S3Config contains credentials for s3:// artifact sources
type S3Config struct {
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty" json:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty" json:"-"`
}

// Load loads the harness configuration from path and environment variables
func Load(path string) (*Config, error) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		History: HistoryConfig{
			Enabled:       true,
			Path:          "./data/harness.db",
			PruneSchedule: "@daily",
			RetentionDays: 14,
		},
		ControlAPI: ControlAPIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    7099,
		},
		Artifacts: ArtifactConfig{
			CacheDir: "./data/artifacts",
		},
		Containers: map[string]*ContainerConfig{},
	}

	if path == "" {
		path = os.Getenv("HARNESS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	for id, cc := range cfg.Containers {
		cc.applyDefaults()
		if err := cc.Validate(); err != nil {
			return nil, fmt.Errorf("container %q: %w", id, err)
		}
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("HARNESS_API_TOKEN"); token != "" {
		cfg.ControlAPI.Token = token
	}
	if key := os.Getenv("HARNESS_S3_ACCESS_KEY"); key != "" {
		cfg.Artifacts.S3.AccessKey = key
	}
	if key := os.Getenv("HARNESS_S3_SECRET_KEY"); key != "" {
		cfg.Artifacts.S3.SecretKey = key
	}
	if password := os.Getenv("HARNESS_MANAGEMENT_PASSWORD"); password != "" {
		for _, cc := range cfg.Containers {
			if cc.Management.Password == "" {
				cc.Management.Password = password
			}
		}
	}
}

// parseDurationOr parses a duration string, falling back when empty or invalid
func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
