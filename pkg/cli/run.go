package cli

import (
	"context"
	"flag"
)

func newRunCommand() *Command {
	var opts runOptions
	cmd := &Command{
		Name:        "run",
		Description: "Run a job definition once and write its report",
		Flags:       flag.NewFlagSet("run", flag.ContinueOnError),
	}

	bindRunFlags(cmd.Flags, &opts)
	cmd.Flags.BoolVar(&opts.strict, "strict", false, "Fail when any record is rejected")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if err := opts.validate(); err != nil {
			return err
		}
		return withEnvironment(func(ctx context.Context, env *environment) error {
			return runJob(ctx, env, opts)
		})
	}
	return cmd
}

func bindRunFlags(fs *flag.FlagSet, opts *runOptions) {
	fs.StringVar(&opts.job, "job", "", "YAML job definition")
	fs.StringVar(&opts.input, "input", "", "Records as a JSON array or NDJSON (- for stdin)")
	fs.StringVar(&opts.out, "out", "", "Report file (default stdout)")
	fs.StringVar(&opts.store, "store", "", "Report store URL (default EVENTLENS_REPORT_STORE)")
}

func runJob(ctx context.Context, env *environment, opts runOptions) error {
	if err := env.openStore(ctx, opts.store); err != nil {
		return err
	}
	report, _, err := newJobRunner(env, opts, nil).run(ctx, triggerManual)
	if err != nil {
		return err
	}
	env.log.WithField("run_id", report.RunID).Info("Job run complete")
	return checkStrict(opts.strict, report.Rejected())
}
