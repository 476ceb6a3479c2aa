package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/audio"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/docker"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/runner"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
	"github.com/ProDevCodePoland/ringrtc/internal/storage/factory"
)

var runCmd = &cobra.Command{
	Use:   "run [test-set...]",
	Short: "Run test sets and write their reports",
	RunE:  runE,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runE(cmd *cobra.Command, args []string) error {
	sets, err := lookupTestSets(cfg.TestSets, args)
	if err != nil {
		return err
	}
	return runTestSets(cmd.Context(), sets)
}

// lookupTestSets resolves every name before anything starts, so a typo fails
// the invocation up front.
func lookupTestSets(path string, names []string) ([]*spec.TestSet, error) {
	if len(names) == 0 {
		names = []string{spec.DefaultTestSet}
	}
	cat, err := spec.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	sets := make([]*spec.TestSet, 0, len(names))
	for _, name := range names {
		ts, err := cat.Lookup(name)
		if err != nil {
			return nil, err
		}
		sets = append(sets, ts)
	}
	return sets, nil
}

func runTestSets(ctx context.Context, sets []*spec.TestSet) error {
	var opts []runner.Option
	opts = append(opts, runner.WithOutput(os.Stdout))

	storageCfg, err := factory.LoadEnv()
	if err != nil {
		return err
	}
	if storageCfg != nil {
		store, err := factory.NewStore(ctx, storageCfg)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, runner.WithSink(store))
		slog.Info("Result history enabled", "storage", storageCfg.Type)
	}

	mgr, err := docker.NewManager(cfg.dockerConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to close docker manager", "error", err)
		}
	}()

	if flags.build {
		if err := mgr.BuildImages(ctx); err != nil {
			return err
		}
	}
	if flags.clean {
		if err := clean(ctx, mgr); err != nil {
			return err
		}
	}
	if err := mgr.Init(ctx); err != nil {
		return err
	}

	tool := audio.NewContainerTool(mgr, docker.Visqol,
		audio.Mount{Host: cfg.MediaDir, Container: docker.MediaMount},
		audio.Mount{Host: cfg.OutputDir, Container: docker.ResultsMount},
	)

	pipeline := audio.NewPipeline(tool, cfg.pipelineConfig())

	for _, ts := range sets {
		started := time.Now()
		out := cfg.invocationDir(ts.Name, started)

		r := runner.New(runner.Config{
			TestSet:       ts.Name,
			OutputDir:     out,
			Timestamp:     started,
			Colored:       !color.NoColor,
			ImpairTimeout: cfg.StartupTimeout,
		}, runner.NewDockerInfrastructure(mgr), pipeline, opts...)

		slog.Info("Running test set", "test_set", ts.Name, "output", out)
		if err := r.RunTestSet(ctx, ts); err != nil {
			if errors.Is(err, context.Canceled) {
				slog.Warn("Interrupted, partial results were reported", "test_set", ts.Name)
			}
			return err
		}
		slog.Info("Test set finished", "test_set", ts.Name, "elapsed", time.Since(started).Round(time.Second))
	}
	return nil
}
