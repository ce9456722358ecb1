package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Storage configuration
	DBPath string

	// Redis configuration (optional; events are dropped when unset)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Memcache configuration (optional; cooldown markers stay in-process when unset)
	MemcacheAddr string

	// Fetch strategy configuration
	ExtractAPIURL          string
	ExtractAPIKey          string
	ExtractCooldown        time.Duration
	RenderAPIURL           string
	RenderCooldown         time.Duration
	DirectCooldown         time.Duration
	FetchTimeout           time.Duration
	FetchRetries           int

	// Refresh pacing
	BulkCooldown      time.Duration
	ManualMinInterval time.Duration
	BatchBaseDelay    time.Duration
	BatchDelayStep    time.Duration

	// Periodic jobs
	BatchInterval  time.Duration
	SweepInterval  time.Duration
	SampleInterval time.Duration

	// Notification configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	return Config{
		DBPath:               getEnv("DB_PATH", "pricepulse.db"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "pricepulse"),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 500),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		ExtractAPIURL:        getEnv("EXTRACT_API_URL", ""),
		ExtractAPIKey:        getEnv("EXTRACT_API_KEY", ""),
		ExtractCooldown:      getEnvDuration("EXTRACT_COOLDOWN_SECONDS", 30*60),
		RenderAPIURL:         getEnv("RENDER_API_URL", ""),
		RenderCooldown:       getEnvDuration("RENDER_COOLDOWN_SECONDS", 60*60),
		DirectCooldown:       getEnvDuration("DIRECT_COOLDOWN_SECONDS", 120*60),
		FetchTimeout:         getEnvDuration("FETCH_TIMEOUT_SECONDS", 45),
		FetchRetries:         getEnvInt("FETCH_RETRIES", 2),
		BulkCooldown:         getEnvDuration("BULK_COOLDOWN_MINUTES", 60) * 60,
		ManualMinInterval:    getEnvDuration("MANUAL_REFRESH_SECONDS", 120),
		BatchBaseDelay:       getEnvDuration("BATCH_BASE_DELAY_SECONDS", 2),
		BatchDelayStep:       getEnvDuration("BATCH_DELAY_STEP_SECONDS", 1),
		BatchInterval:        getEnvDuration("BATCH_INTERVAL_MINUTES", 30) * 60,
		SweepInterval:        getEnvDuration("SWEEP_INTERVAL_MINUTES", 15) * 60,
		SampleInterval:       getEnvDuration("SAMPLE_INTERVAL_MINUTES", 360) * 60,
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             getEnvInt("SMTP_PORT", 587),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:             getEnv("SMTP_FROM", ""),
		Environment:          getEnv("PRICEPULSE_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be positive")
	}
	if c.BulkCooldown <= 0 || c.ManualMinInterval <= 0 {
		return fmt.Errorf("refresh intervals must be positive")
	}
	if c.BatchInterval <= 0 || c.SweepInterval <= 0 || c.SampleInterval <= 0 {
		return fmt.Errorf("job intervals must be positive")
	}
	if c.ManualMinInterval > c.BulkCooldown {
		return fmt.Errorf("MANUAL_REFRESH_SECONDS must not exceed the bulk cooldown")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvDuration retrieves a duration in seconds or returns a default value
func getEnvDuration(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
