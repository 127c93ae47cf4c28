package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/eventlens/pkg/config"
	"github.com/platinummonkey/eventlens/pkg/engine"
	"github.com/platinummonkey/eventlens/pkg/observability"
	"github.com/platinummonkey/eventlens/pkg/store"
)

// environment holds the process-wide dependencies shared by commands
type environment struct {
	config      *config.Config
	log         *logrus.Logger
	engine      *engine.Engine
	registry    *prometheus.Registry
	metrics     *observability.Metrics
	otelMetrics *observability.OTelMetrics
	providers   *observability.OTelProviders
	obsLogger   *observability.Logger

	// reports is nil unless a report store is configured
	reports store.Store
}

// newEnvironment loads configuration from the environment and wires the
// engine with logging, metrics and, when enabled, OpenTelemetry.
func newEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return newEnvironmentWithConfig(ctx, cfg, os.Stderr)
}

func newEnvironmentWithConfig(ctx context.Context, cfg *config.Config, logOutput io.Writer) (*environment, error) {
	env := &environment{
		config:    cfg,
		log:       newLogger(cfg.Observability.LogLevel, logOutput),
		registry:  prometheus.NewRegistry(),
		obsLogger: observability.NewLogger(cfg.Observability.LogLevel, logOutput),
	}
	env.metrics = observability.NewMetrics(env.registry)

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), env.obsLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	env.providers = providers

	opts := []engine.Option{
		engine.WithLogger(env.obsLogger),
		engine.WithMetrics(env.metrics),
	}
	if providers != nil {
		env.otelMetrics, err = observability.NewOTelMetrics()
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithOTelMetrics(env.otelMetrics))
	}

	env.engine = engine.New(&engine.Config{
		ProcessWorkers:     cfg.Engine.ProcessWorkers,
		AggregationWorkers: cfg.Engine.AggregationWorkers,
		FunnelShards:       cfg.Engine.FunnelShards,
	}, opts...)
	return env, nil
}

// openStore connects the report store named by url, falling back to
// EVENTLENS_REPORT_STORE. Publishing stays off when neither is set.
func (e *environment) openStore(ctx context.Context, url string) error {
	if url == "" {
		url = e.config.Store.URL
	}
	if url == "" {
		return nil
	}

	reports, err := store.Open(ctx, url, store.Options{
		History:     e.config.Store.History,
		TTL:         e.config.Store.TTL,
		S3AccessKey: e.config.Store.S3AccessKey,
		S3SecretKey: e.config.Store.S3SecretKey,
	})
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	e.reports = reports
	return nil
}

// close flushes telemetry and closes the report store
func (e *environment) close(ctx context.Context) error {
	var errs []error
	if e.reports != nil {
		errs = append(errs, e.reports.Close())
	}
	errs = append(errs, observability.ShutdownOTel(ctx, e.providers, e.obsLogger))
	return errors.Join(errs...)
}

// newLogger creates the human-readable CLI logger
func newLogger(level observability.LogLevel, output io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	switch level {
	case observability.DebugLevel:
		logger.SetLevel(logrus.DebugLevel)
	case observability.WarnLevel:
		logger.SetLevel(logrus.WarnLevel)
	case observability.ErrorLevel:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}
