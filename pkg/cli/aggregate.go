package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/eventlens/pkg/job"
)

type aggregateOptions struct {
	input string
	job   string
	out   string
}

func newAggregateCommand() *Command {
	var opts aggregateOptions
	cmd := &Command{
		Name:        "aggregate",
		Description: "Compute the metrics of a job definition",
		Flags:       flag.NewFlagSet("aggregate", flag.ContinueOnError),
	}

	cmd.Flags.StringVar(&opts.input, "input", "", "Records as a JSON array or NDJSON (- for stdin)")
	cmd.Flags.StringVar(&opts.job, "job", "", "YAML job definition with metric specs")
	cmd.Flags.StringVar(&opts.out, "out", "", "Output file (default stdout)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return withEnvironment(func(ctx context.Context, env *environment) error {
			return runAggregate(ctx, env, opts)
		})
	}
	return cmd
}

func runAggregate(ctx context.Context, env *environment, opts aggregateOptions) error {
	if opts.job == "" {
		return fmt.Errorf("-job is required")
	}
	def, err := job.LoadFile(opts.job)
	if err != nil {
		return err
	}
	if len(def.Metrics) == 0 {
		return fmt.Errorf("%s defines no metrics", opts.job)
	}

	records, err := readInput(opts.input)
	if err != nil {
		return err
	}

	res, err := env.engine.ProcessEvents(ctx, records, def.Processing)
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		env.log.WithField("rejected", len(res.Errors)).Warn("Some records were rejected")
	}

	results, err := env.engine.AggregateMetrics(ctx, res.Events.Events(), def.Metrics)
	if err != nil {
		return err
	}
	if err := writeJSON(opts.out, results); err != nil {
		return err
	}

	env.log.WithFields(logrus.Fields{
		"events":  res.Events.Len(),
		"metrics": len(results),
	}).Info("Computed metrics")
	return nil
}
