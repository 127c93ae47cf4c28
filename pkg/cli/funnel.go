package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/eventlens/pkg/funnel"
)

type funnelOptions struct {
	input  string
	config string
	steps  string
	window int64
	out    string
}

func newFunnelCommand() *Command {
	var opts funnelOptions
	cmd := &Command{
		Name:        "funnel",
		Description: "Compute step conversion for an ordered list of events",
		Flags:       flag.NewFlagSet("funnel", flag.ContinueOnError),
	}

	cmd.Flags.StringVar(&opts.input, "input", "", "Records as a JSON array or NDJSON (- for stdin)")
	cmd.Flags.StringVar(&opts.config, "config", "", "YAML processing config")
	cmd.Flags.StringVar(&opts.steps, "steps", "", "Comma-separated event names, in funnel order")
	cmd.Flags.Int64Var(&opts.window, "window", 0, "Maximum time from the first step to any later step (0 for none)")
	cmd.Flags.StringVar(&opts.out, "out", "", "Output file (default stdout)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return withEnvironment(func(ctx context.Context, env *environment) error {
			return runFunnel(ctx, env, opts)
		})
	}
	return cmd
}

// parseSteps splits a comma-separated step list, ignoring surrounding spaces
func parseSteps(s string) ([]funnel.Step, error) {
	var names []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("-steps is required")
	}
	return funnel.StepsFor(names...), nil
}

func runFunnel(ctx context.Context, env *environment, opts funnelOptions) error {
	steps, err := parseSteps(opts.steps)
	if err != nil {
		return err
	}
	cfg, err := loadProcessingConfig(opts.config)
	if err != nil {
		return err
	}
	records, err := readInput(opts.input)
	if err != nil {
		return err
	}

	res, err := env.engine.ProcessEvents(ctx, records, cfg)
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		env.log.WithField("rejected", len(res.Errors)).Warn("Some records were rejected")
	}

	fr, err := env.engine.ComputeFunnel(ctx, res.Events.Events(), steps, opts.window)
	if err != nil {
		return err
	}
	if err := writeJSON(opts.out, fr); err != nil {
		return err
	}

	env.log.WithFields(logrus.Fields{
		"entered":   fr.Entered,
		"completed": fr.Completed,
	}).Info("Computed funnel")
	return nil
}
