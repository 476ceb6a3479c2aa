package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/docker"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the harness containers and network",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd.Context(), func(mgr *docker.Manager) error {
			return clean(cmd.Context(), mgr)
		})
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

// clean removes leftovers of earlier invocations. Absent containers are fine.
func clean(ctx context.Context, mgr *docker.Manager) error {
	slog.Info("Cleaning containers and network")
	if err := mgr.CleanUp(ctx, docker.AllContainers); err != nil {
		return err
	}
	return mgr.CleanNetwork(ctx)
}

func withManager(ctx context.Context, fn func(*docker.Manager) error) error {
	mgr, err := docker.NewManager(cfg.dockerConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to close docker manager", "error", err)
		}
	}()
	return fn(mgr)
}
