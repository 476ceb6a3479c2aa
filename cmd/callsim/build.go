package main

import (
	"github.com/spf13/cobra"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/docker"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the client, signaling, relay, capture and scoring images",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd.Context(), func(mgr *docker.Manager) error {
			return mgr.BuildImages(cmd.Context())
		})
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
