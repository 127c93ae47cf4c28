// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes the observability infrastructure shared by the
// engine and the eventlens command: JSON logging, metrics collection, health
// probes for scheduled runs, tracing and graceful shutdown.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stderr)
//	logger.WithField("metric", "revenue").Info("metric computed")
//
// Context-aware logging:
//
//	ctx = observability.WithRunID(ctx, runID)
//	observability.FromContext(ctx).Infof("processed %d records", n)
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveRecords(accepted, rejected, duplicates, warnings)
//	metrics.FunnelStepSubjects.WithLabelValues("checkout", "purchase").Set(42)
//
// Serve them:
//
//	router := mux.NewRouter()
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	observability.RegisterMetricsEndpoint(router, registry)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.RegisterHealthEndpoints(router)
//	checker.RecordRun(err)
//
// # OpenTelemetry
//
// Initialize tracing and OTLP metric export:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:        true,
//		Endpoint:       "otel-collector:4317",
//		ServiceName:    "eventlens",
//		ServiceVersion: "v1.0.0",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/engine: Instrumented library entry points
package observability
