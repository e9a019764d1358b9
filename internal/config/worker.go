package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvWorkerHost            = "ANNOTATOR_WORKER_HOST"
	EnvWorkerPort            = "ANNOTATOR_WORKER_PORT"
	EnvWorkerTickInterval    = "ANNOTATOR_WORKER_TICK_INTERVAL"
	EnvWorkerFinalizeBackoff = "ANNOTATOR_WORKER_FINALIZE_BACKOFF"
)

// WorkerConfig holds scheduling parameters and the address for the
// worker's operational HTTP endpoints.
type WorkerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	TickInterval    string `toml:"tick_interval"`
	FinalizeBackoff string `toml:"finalize_backoff"`
}

// Addr returns the host:port for the operational HTTP listener.
func (c *WorkerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TickIntervalDuration returns TickInterval as a time.Duration.
func (c *WorkerConfig) TickIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.TickInterval)
	return d
}

// FinalizeBackoffDuration returns FinalizeBackoff as a time.Duration.
func (c *WorkerConfig) FinalizeBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.FinalizeBackoff)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *WorkerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *WorkerConfig) Merge(overlay *WorkerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.TickInterval != "" {
		c.TickInterval = overlay.TickInterval
	}
	if overlay.FinalizeBackoff != "" {
		c.FinalizeBackoff = overlay.FinalizeBackoff
	}
}

func (c *WorkerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8090
	}
	if c.TickInterval == "" {
		c.TickInterval = "1m"
	}
	if c.FinalizeBackoff == "" {
		c.FinalizeBackoff = "30s"
	}
}

func (c *WorkerConfig) loadEnv() {
	if v := os.Getenv(EnvWorkerHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvWorkerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv(EnvWorkerTickInterval); v != "" {
		c.TickInterval = v
	}
	if v := os.Getenv(EnvWorkerFinalizeBackoff); v != "" {
		c.FinalizeBackoff = v
	}
}

func (c *WorkerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if _, err := time.ParseDuration(c.TickInterval); err != nil {
		return fmt.Errorf("invalid tick_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.FinalizeBackoff); err != nil {
		return fmt.Errorf("invalid finalize_backoff: %w", err)
	}
	return nil
}
