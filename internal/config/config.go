package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds worker configuration loaded from the environment.
type Config struct {
	// Redis configuration (batch queue + progress events)
	RedisURL string

	// PostgreSQL configuration for the cross-session run record.
	// Optional: when empty, run records are only appended to runs.jsonl.
	DatabaseURL string

	// Output base directory. One session directory is created under it per run.
	OutputBaseDir string

	// Worker configuration
	WorkerConcurrency int
	ProcessingTimeout int // milliseconds, per job

	// Extraction defaults, overridable per run
	OCRThreshold int
	OCRLanguages string
	OCRPageSegMode int
	OCREngineMode  int
	RenderDPI      int
	TableEngines   string

	// Session retention policy
	MaxSessions   int
	MaxAgeHours   float64
	CleanupOnExit bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		OutputBaseDir:     getEnvOrDefault("OUTPUT_BASE_DIR", "output"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 1800000), // 30 minutes
		OCRThreshold:      getEnvAsIntOrDefault("OCR_THRESHOLD", 40),
		OCRLanguages:      getEnvOrDefault("OCR_LANGUAGES", "eng"),
		OCRPageSegMode:    getEnvAsIntOrDefault("OCR_PSM", 3),
		OCREngineMode:     getEnvAsIntOrDefault("OCR_OEM", 3),
		RenderDPI:         getEnvAsIntOrDefault("RENDER_DPI", 300),
		TableEngines:      getEnvOrDefault("TABLE_ENGINES", "lattice,stream,textgrid"),
		MaxSessions:       getEnvAsIntOrDefault("MAX_SESSIONS", 5),
		MaxAgeHours:       getEnvAsFloatOrDefault("MAX_AGE_HOURS", 24),
		CleanupOnExit:     getEnvAsBoolOrDefault("CLEANUP_ON_EXIT", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid.
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.OutputBaseDir == "" {
		return fmt.Errorf("OUTPUT_BASE_DIR is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 64, got %d", c.WorkerConcurrency)
	}

	if c.OCRThreshold < 0 {
		return fmt.Errorf("OCR_THRESHOLD must not be negative, got %d", c.OCRThreshold)
	}

	if c.RenderDPI < 72 || c.RenderDPI > 1200 {
		return fmt.Errorf("RENDER_DPI must be between 72 and 1200, got %d", c.RenderDPI)
	}

	if c.MaxSessions < 1 {
		return fmt.Errorf("MAX_SESSIONS must be at least 1, got %d", c.MaxSessions)
	}

	if c.MaxAgeHours <= 0 {
		return fmt.Errorf("MAX_AGE_HOURS must be positive, got %v", c.MaxAgeHours)
	}

	return nil
}

// ProgressFunc is invoked after each completed page with the number of
// pages done so far and the total in range.
type ProgressFunc func(done, total int)

// RunOptions is the immutable per-run configuration threaded through the
// pipeline. It is built once per run and passed down by value; components
// never consult ambient state.
type RunOptions struct {
	Source    string
	BaseDir   string
	StartPage int // 1-based, inclusive
	EndPage   int // inclusive; <= 0 means "to end"

	OCRThreshold   int
	OCRLanguages   []string
	OCRPageSegMode int
	OCREngineMode  int
	RenderDPI      int

	TableEngines []string

	MaxSessions   int
	MaxAgeHours   float64
	CleanupOnExit bool

	// Progress, when set, is called after every completed page. Kept per
	// run rather than per processor so concurrent runs report independently.
	Progress ProgressFunc
}

// RunOptionsFrom builds per-run options from the service configuration.
func (c *Config) RunOptionsFrom(source string) RunOptions {
	return RunOptions{
		Source:         source,
		BaseDir:        c.OutputBaseDir,
		StartPage:      1,
		EndPage:        0,
		OCRThreshold:   c.OCRThreshold,
		OCRLanguages:   SplitList(c.OCRLanguages, "+"),
		OCRPageSegMode: c.OCRPageSegMode,
		OCREngineMode:  c.OCREngineMode,
		RenderDPI:      c.RenderDPI,
		TableEngines:   SplitList(c.TableEngines, ","),
		MaxSessions:    c.MaxSessions,
		MaxAgeHours:    c.MaxAgeHours,
		CleanupOnExit:  c.CleanupOnExit,
	}
}

// SplitList splits a separated list, trimming whitespace and dropping empties.
func SplitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrDefault gets environment variable or returns default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default.
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default.
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default.
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
