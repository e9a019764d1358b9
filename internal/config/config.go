// Package config loads and finalizes the annotator service configuration.
// A config.toml base is merged with an environment overlay
// (config.<env>.toml selected by ANNOTATOR_ENV) and ANNOTATOR_* variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/cognitedata/annotator/internal/detection"
	"github.com/cognitedata/annotator/pkg/archive"
	"github.com/cognitedata/annotator/pkg/database"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvAnnotatorEnv             = "ANNOTATOR_ENV"
	EnvAnnotatorShutdownTimeout = "ANNOTATOR_SHUTDOWN_TIMEOUT"
	EnvAnnotatorVersion         = "ANNOTATOR_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "ANNOTATOR_DB_HOST",
	Port:            "ANNOTATOR_DB_PORT",
	Name:            "ANNOTATOR_DB_NAME",
	User:            "ANNOTATOR_DB_USER",
	Password:        "ANNOTATOR_DB_PASSWORD",
	SSLMode:         "ANNOTATOR_DB_SSL_MODE",
	MaxOpenConns:    "ANNOTATOR_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "ANNOTATOR_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "ANNOTATOR_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "ANNOTATOR_DB_CONN_TIMEOUT",
}

var archiveEnv = &archive.Env{
	ContainerName:    "ANNOTATOR_ARCHIVE_CONTAINER_NAME",
	ConnectionString: "ANNOTATOR_ARCHIVE_CONNECTION_STRING",
}

var detectionEnv = &detection.Env{
	BaseURL:           "ANNOTATOR_DETECTION_BASE_URL",
	RequestTimeout:    "ANNOTATOR_DETECTION_REQUEST_TIMEOUT",
	RequestsPerSecond: "ANNOTATOR_DETECTION_REQUESTS_PER_SECOND",
}

// Config is the root configuration for the annotator service.
type Config struct {
	Worker          WorkerConfig     `toml:"worker"`
	Database        database.Config  `toml:"database"`
	Archive         archive.Config   `toml:"archive"`
	Detection       detection.Config `toml:"detection"`
	Annotation      AnnotationConfig `toml:"annotation"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env returns the ANNOTATOR_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvAnnotatorEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and
// environment variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Worker.Merge(&overlay.Worker)
	c.Database.Merge(&overlay.Database)
	c.Archive.Merge(&overlay.Archive)
	c.Detection.Merge(&overlay.Detection)
	c.Annotation.Merge(&overlay.Annotation)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Worker.Finalize(); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Archive.Finalize(archiveEnv); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if err := c.Detection.Finalize(detectionEnv); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if err := c.Annotation.Finalize(); err != nil {
		return fmt.Errorf("annotation: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvAnnotatorShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvAnnotatorVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvAnnotatorEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
