package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvAnnotationBatchSize        = "ANNOTATOR_ANNOTATION_BATCH_SIZE"
	EnvAnnotationPageRange        = "ANNOTATOR_ANNOTATION_PAGE_RANGE"
	EnvAnnotationMaxRetryAttempts = "ANNOTATOR_ANNOTATION_MAX_RETRY_ATTEMPTS"
	EnvAnnotationPatternMode      = "ANNOTATOR_ANNOTATION_PATTERN_MODE"

	// MaxBatchSize is the external detection API's per-call document limit.
	MaxBatchSize = 50
)

// AnnotationConfig tunes the pipeline coordinators: batch formation,
// page chunking, retry budgets, confidence thresholds, and caches.
type AnnotationConfig struct {
	BatchSize             int      `toml:"batch_size"`
	PageRange             int      `toml:"page_range"`
	MaxRetryAttempts      int      `toml:"max_retry_attempts"`
	AutoApprovalThreshold float64  `toml:"auto_approval_threshold"`
	AutoSuggestThreshold  float64  `toml:"auto_suggest_threshold"`
	PatternMode           bool     `toml:"pattern_mode"`
	CacheTTL              string   `toml:"cache_ttl"`
	PromotionCacheTTL     string   `toml:"promotion_cache_ttl"`
	FallbackScope         string   `toml:"fallback_scope"`
	ManualPatterns        []string `toml:"manual_patterns"`
	ReadyLimit            int      `toml:"ready_limit"`
	PromotionLimit        int      `toml:"promotion_limit"`
}

// CacheTTLDuration returns CacheTTL as a time.Duration.
func (c *AnnotationConfig) CacheTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.CacheTTL)
	return d
}

// PromotionCacheTTLDuration returns PromotionCacheTTL as a time.Duration.
func (c *AnnotationConfig) PromotionCacheTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.PromotionCacheTTL)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AnnotationConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. PatternMode can only be
// enabled by an overlay, not disabled.
func (c *AnnotationConfig) Merge(overlay *AnnotationConfig) {
	if overlay.BatchSize != 0 {
		c.BatchSize = overlay.BatchSize
	}
	if overlay.PageRange != 0 {
		c.PageRange = overlay.PageRange
	}
	if overlay.MaxRetryAttempts != 0 {
		c.MaxRetryAttempts = overlay.MaxRetryAttempts
	}
	if overlay.AutoApprovalThreshold != 0 {
		c.AutoApprovalThreshold = overlay.AutoApprovalThreshold
	}
	if overlay.AutoSuggestThreshold != 0 {
		c.AutoSuggestThreshold = overlay.AutoSuggestThreshold
	}
	if overlay.PatternMode {
		c.PatternMode = true
	}
	if overlay.CacheTTL != "" {
		c.CacheTTL = overlay.CacheTTL
	}
	if overlay.PromotionCacheTTL != "" {
		c.PromotionCacheTTL = overlay.PromotionCacheTTL
	}
	if overlay.FallbackScope != "" {
		c.FallbackScope = overlay.FallbackScope
	}
	if len(overlay.ManualPatterns) > 0 {
		c.ManualPatterns = overlay.ManualPatterns
	}
	if overlay.ReadyLimit != 0 {
		c.ReadyLimit = overlay.ReadyLimit
	}
	if overlay.PromotionLimit != 0 {
		c.PromotionLimit = overlay.PromotionLimit
	}
}

func (c *AnnotationConfig) loadDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 25
	}
	if c.PageRange == 0 {
		c.PageRange = 50
	}
	if c.MaxRetryAttempts == 0 {
		c.MaxRetryAttempts = 3
	}
	if c.AutoApprovalThreshold == 0 {
		c.AutoApprovalThreshold = 0.85
	}
	if c.AutoSuggestThreshold == 0 {
		c.AutoSuggestThreshold = 0.5
	}
	if c.CacheTTL == "" {
		c.CacheTTL = "1h"
	}
	if c.PromotionCacheTTL == "" {
		c.PromotionCacheTTL = "30m"
	}
	if c.ReadyLimit == 0 {
		c.ReadyLimit = 200
	}
	if c.PromotionLimit == 0 {
		c.PromotionLimit = 100
	}
}

func (c *AnnotationConfig) loadEnv() {
	if v := os.Getenv(EnvAnnotationBatchSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BatchSize = n
		}
	}
	if v := os.Getenv(EnvAnnotationPageRange); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PageRange = n
		}
	}
	if v := os.Getenv(EnvAnnotationMaxRetryAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetryAttempts = n
		}
	}
	if v := os.Getenv(EnvAnnotationPatternMode); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.PatternMode = b
		}
	}
}

func (c *AnnotationConfig) validate() error {
	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("batch_size must be between 1 and %d", MaxBatchSize)
	}
	if c.PageRange < 1 {
		return fmt.Errorf("page_range must be positive")
	}
	if c.AutoApprovalThreshold < 0 || c.AutoApprovalThreshold > 1 {
		return fmt.Errorf("auto_approval_threshold must be within [0, 1]")
	}
	if c.AutoSuggestThreshold < 0 || c.AutoSuggestThreshold > 1 {
		return fmt.Errorf("auto_suggest_threshold must be within [0, 1]")
	}
	if c.AutoSuggestThreshold > c.AutoApprovalThreshold {
		return fmt.Errorf("auto_suggest_threshold must not exceed auto_approval_threshold")
	}
	if _, err := time.ParseDuration(c.CacheTTL); err != nil {
		return fmt.Errorf("invalid cache_ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.PromotionCacheTTL); err != nil {
		return fmt.Errorf("invalid promotion_cache_ttl: %w", err)
	}
	return nil
}
