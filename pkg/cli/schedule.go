package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/eventlens/pkg/job"
	"github.com/platinummonkey/eventlens/pkg/observability"
	"github.com/platinummonkey/eventlens/pkg/server"
)

type scheduleOptions struct {
	runOptions
	cron   string
	addr   string
	runNow bool
}

func newScheduleCommand() *Command {
	var opts scheduleOptions
	cmd := &Command{
		Name:        "schedule",
		Description: "Run a job on a cron schedule and serve health, metrics and reports",
		Flags:       flag.NewFlagSet("schedule", flag.ContinueOnError),
	}

	bindRunFlags(cmd.Flags, &opts.runOptions)
	cmd.Flags.StringVar(&opts.cron, "cron", "@every 5m", "Cron schedule for job runs")
	cmd.Flags.StringVar(&opts.addr, "addr", "", "HTTP listen address (default EVENTLENS_METRICS_ADDR)")
	cmd.Flags.BoolVar(&opts.runNow, "run-now", true, "Run once at startup before the first scheduled run")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if err := opts.validate(); err != nil {
			return err
		}
		if opts.input == "-" {
			return fmt.Errorf("schedule needs an input file, not stdin")
		}
		return withEnvironment(func(ctx context.Context, env *environment) error {
			return runSchedule(ctx, env, opts)
		})
	}
	return cmd
}

// newScheduleHandler serves health probes, stored reports, on-demand runs
// and, when enabled, Prometheus metrics
func newScheduleHandler(env *environment, health *observability.HealthChecker, runner *jobRunner) http.Handler {
	cfg := server.Config{
		Health:  health,
		Store:   env.reports,
		Metrics: env.metrics,
		Log:     env.log,
		Run: func(ctx context.Context) (*job.Report, bool, error) {
			return runner.run(ctx, triggerAPI)
		},
	}
	if env.config.Observability.MetricsEnabled {
		cfg.Registry = env.registry
	}
	return server.NewHandler(cfg)
}

func runSchedule(ctx context.Context, env *environment, opts scheduleOptions) error {
	if err := env.openStore(ctx, opts.store); err != nil {
		return err
	}

	health := observability.NewHealthChecker(env.config.Observability.OTelServiceVersion)
	runner := newJobRunner(env, opts.runOptions, health)

	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(env.log))))
	if _, err := c.AddFunc(opts.cron, func() {
		runner.trigger(ctx, triggerSchedule)
	}); err != nil {
		return fmt.Errorf("invalid -cron schedule %q: %w", opts.cron, err)
	}

	addr := opts.addr
	if addr == "" {
		addr = env.config.Observability.MetricsAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newScheduleHandler(env, health, runner),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sm := observability.NewShutdownManager(env.obsLogger, srv, env.config.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		stopped := c.Stop()
		select {
		case <-stopped.Done():
			return nil
		case <-ctx.Done():
			return fmt.Errorf("scheduled run still in progress: %w", ctx.Err())
		}
	})

	// a failed listener stops the scheduler and fails the command
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	serveErr := make(chan error, 1)
	go func() {
		env.log.WithField("addr", addr).Info("Serving HTTP API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.log.WithError(err).Error("HTTP server failed")
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
			cancel()
		}
	}()

	if opts.runNow {
		runner.trigger(ctx, triggerStartup)
	}

	c.Start()
	env.log.WithField("schedule", opts.cron).Info("Scheduler started")

	err := sm.WaitForShutdown(ctx)
	select {
	case serr := <-serveErr:
		return errors.Join(serr, err)
	default:
		return err
	}
}
