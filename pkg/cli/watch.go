package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

type watchOptions struct {
	runOptions
	debounce time.Duration
}

func newWatchCommand() *Command {
	var opts watchOptions
	cmd := &Command{
		Name:        "watch",
		Description: "Re-run a job whenever its definition or input changes",
		Flags:       flag.NewFlagSet("watch", flag.ContinueOnError),
	}

	bindRunFlags(cmd.Flags, &opts.runOptions)
	cmd.Flags.DurationVar(&opts.debounce, "debounce", 250*time.Millisecond, "Quiet period before re-running after a change")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if err := opts.validate(); err != nil {
			return err
		}
		if opts.input == "-" {
			return fmt.Errorf("watch needs an input file, not stdin")
		}
		return withEnvironment(func(ctx context.Context, env *environment) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, env, opts)
		})
	}
	return cmd
}

func runWatch(ctx context.Context, env *environment, opts watchOptions) error {
	if err := env.openStore(ctx, opts.store); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	targets, err := watchTargets(opts.job, opts.input)
	if err != nil {
		return err
	}
	// Directories are watched rather than files so editors that replace a
	// file by rename keep triggering runs.
	for dir := range dirsOf(targets) {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	runner := newJobRunner(env, opts.runOptions, nil)
	runner.trigger(ctx, triggerStartup)

	env.log.WithField("files", len(targets)).Info("Watching for changes")
	watchLoop(ctx, env.log, watcher, targets, opts.debounce, func() {
		runner.trigger(ctx, triggerWatch)
	})
	return nil
}

// watchTargets returns the cleaned absolute paths of the watched files
func watchTargets(paths ...string) (map[string]bool, error) {
	targets := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		targets[abs] = true
	}
	return targets, nil
}

func dirsOf(targets map[string]bool) map[string]bool {
	dirs := make(map[string]bool, len(targets))
	for p := range targets {
		dirs[filepath.Dir(p)] = true
	}
	return dirs
}

// watchLoop calls fn once events on the targets have been quiet for
// debounce. It returns when ctx is done or the watcher closes.
func watchLoop(ctx context.Context, log logrus.FieldLogger, watcher *fsnotify.Watcher, targets map[string]bool, debounce time.Duration, fn func()) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !targets[name] {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			fn()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("Watcher error")
		}
	}
}
