package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/eventlens/pkg/events"
)

type processOptions struct {
	input  string
	config string
	out    string
	strict bool
}

// processOutput is the JSON document written by the process command
type processOutput struct {
	Events     []events.Event            `json:"events"`
	Errors     []*events.ValidationError `json:"errors"`
	Warnings   []*events.ValidationError `json:"warnings"`
	Duplicates int                       `json:"duplicates"`
}

func newProcessCommand() *Command {
	var opts processOptions
	cmd := &Command{
		Name:        "process",
		Description: "Validate and transform raw events into a canonical batch",
		Flags:       flag.NewFlagSet("process", flag.ContinueOnError),
	}

	cmd.Flags.StringVar(&opts.input, "input", "", "Records as a JSON array or NDJSON (- for stdin)")
	cmd.Flags.StringVar(&opts.config, "config", "", "YAML processing config")
	cmd.Flags.StringVar(&opts.out, "out", "", "Output file (default stdout)")
	cmd.Flags.BoolVar(&opts.strict, "strict", false, "Fail when any record is rejected")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return withEnvironment(func(ctx context.Context, env *environment) error {
			return runProcess(ctx, env, opts)
		})
	}
	return cmd
}

func runProcess(ctx context.Context, env *environment, opts processOptions) error {
	records, err := readInput(opts.input)
	if err != nil {
		return err
	}
	cfg, err := loadProcessingConfig(opts.config)
	if err != nil {
		return err
	}

	res, err := env.engine.ProcessEvents(ctx, records, cfg)
	if err != nil {
		return err
	}

	out := processOutput{
		Events:     res.Events.Events(),
		Errors:     res.Errors,
		Warnings:   res.Warnings,
		Duplicates: res.Duplicates,
	}
	if out.Errors == nil {
		out.Errors = []*events.ValidationError{}
	}
	if out.Warnings == nil {
		out.Warnings = []*events.ValidationError{}
	}
	if err := writeJSON(opts.out, out); err != nil {
		return err
	}

	env.log.WithFields(logrus.Fields{
		"records":    len(records),
		"events":     res.Events.Len(),
		"rejected":   len(res.Errors),
		"duplicates": res.Duplicates,
	}).Info("Processed batch")

	return checkStrict(opts.strict, len(res.Errors))
}

// checkStrict fails a command that rejected records when strict mode is on
func checkStrict(strict bool, rejected int) error {
	if strict && rejected > 0 {
		return fmt.Errorf("%d records rejected", rejected)
	}
	return nil
}

// withEnvironment builds the environment for a one-shot command and flushes
// telemetry afterwards
func withEnvironment(fn func(ctx context.Context, env *environment) error) error {
	ctx := context.Background()
	env, err := newEnvironment(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := env.close(ctx); err != nil {
			env.log.WithError(err).Warn("Failed to flush telemetry")
		}
	}()
	return fn(ctx, env)
}
