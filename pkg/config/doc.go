// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates eventlens configuration from environment
// variables with sensible defaults for all settings. Analysis definitions
// (metric and funnel specs) are not configured here; see pkg/job.
//
// # Configuration Structure
//
// Engine settings:
//
//	EVENTLENS_PROCESS_WORKERS="1"
//	EVENTLENS_AGGREGATION_WORKERS="8"  # defaults to GOMAXPROCS
//	EVENTLENS_FUNNEL_SHARDS="1"
//
// Cache settings (watch mode):
//
//	EVENTLENS_CACHE_SIZE="64"
//	EVENTLENS_CACHE_TTL="10m"
//
// Observability settings:
//
//	EVENTLENS_LOG_LEVEL="info"  # debug, info, warn, error
//	EVENTLENS_METRICS_ENABLED="true"
//	EVENTLENS_METRICS_ADDR=":9090"
//	EVENTLENS_OTEL_ENABLED="true"
//	EVENTLENS_OTEL_ENDPOINT="otel-collector:4317"
//	EVENTLENS_SHUTDOWN_TIMEOUT="30s"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
//
// # Related Packages
//
//   - pkg/engine: Uses engine parallelism settings
//   - pkg/observability: Uses observability configuration
package config
