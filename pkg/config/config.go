package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/eventlens/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Engine configuration
	Engine EngineConfig

	// Cache configuration for watch mode
	Cache CacheConfig

	// Report store configuration
	Store StoreConfig

	// Observability configuration
	Observability ObservabilityConfig

	// ShutdownTimeout bounds graceful shutdown of long-running commands
	ShutdownTimeout time.Duration
}

// EngineConfig holds parallelism settings for the engine
type EngineConfig struct {
	ProcessWorkers     int
	AggregationWorkers int
	FunnelShards       int
}

// CacheConfig holds processed-batch cache settings
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// StoreConfig holds report publishing settings
type StoreConfig struct {
	// URL of the report store; empty disables publishing
	URL     string
	History int
	TTL     time.Duration // Redis only

	S3AccessKey string
	S3SecretKey string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool
	MetricsAddr    string

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// OTel converts the observability settings into an observability.OTelConfig
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Engine:          loadEngineConfig(),
		Cache:           loadCacheConfig(),
		Store:           loadStoreConfig(),
		Observability:   loadObservabilityConfig(),
		ShutdownTimeout: getEnvDuration("EVENTLENS_SHUTDOWN_TIMEOUT", observability.DefaultShutdownTimeout),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadEngineConfig loads engine parallelism from environment
func loadEngineConfig() EngineConfig {
	return EngineConfig{
		ProcessWorkers:     getEnvInt("EVENTLENS_PROCESS_WORKERS", 1),
		AggregationWorkers: getEnvInt("EVENTLENS_AGGREGATION_WORKERS", runtime.GOMAXPROCS(0)),
		FunnelShards:       getEnvInt("EVENTLENS_FUNNEL_SHARDS", 1),
	}
}

// loadCacheConfig loads cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Size: getEnvInt("EVENTLENS_CACHE_SIZE", 64),
		TTL:  getEnvDuration("EVENTLENS_CACHE_TTL", 10*time.Minute),
	}
}

// loadStoreConfig loads report store configuration from environment
func loadStoreConfig() StoreConfig {
	return StoreConfig{
		URL:         getEnv("EVENTLENS_REPORT_STORE", ""),
		History:     getEnvInt("EVENTLENS_REPORT_HISTORY", 100),
		TTL:         getEnvDuration("EVENTLENS_REPORT_TTL", 0),
		S3AccessKey: getEnv("EVENTLENS_S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("EVENTLENS_S3_SECRET_KEY", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("EVENTLENS_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("EVENTLENS_METRICS_ENABLED", false),
		MetricsAddr:        getEnv("EVENTLENS_METRICS_ADDR", ":9090"),
		OTelEnabled:        getEnvBool("EVENTLENS_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("EVENTLENS_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("EVENTLENS_OTEL_SERVICE_NAME", "eventlens"),
		OTelServiceVersion: getEnv("EVENTLENS_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("EVENTLENS_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Engine.ProcessWorkers < 1 {
		return fmt.Errorf("process workers must be at least 1, got %d", c.Engine.ProcessWorkers)
	}
	if c.Engine.AggregationWorkers < 1 {
		return fmt.Errorf("aggregation workers must be at least 1, got %d", c.Engine.AggregationWorkers)
	}
	if c.Engine.FunnelShards < 1 {
		return fmt.Errorf("funnel shards must be at least 1, got %d", c.Engine.FunnelShards)
	}

	if c.Cache.Size < 1 {
		return fmt.Errorf("cache size must be at least 1, got %d", c.Cache.Size)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	if c.Store.History < 1 {
		return fmt.Errorf("report history must be at least 1, got %d", c.Store.History)
	}
	if c.Store.TTL < 0 {
		return fmt.Errorf("report TTL must not be negative")
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	if c.Observability.MetricsEnabled && c.Observability.MetricsAddr == "" {
		return fmt.Errorf("metrics address is required when metrics are enabled")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
