package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ProDevCodePoland/ringrtc/pkg/config/env"
)

var flags struct {
	build   bool
	clean   bool
	verbose bool
}

// cfg is resolved from flags and environment before any subcommand runs.
var cfg *appConfig

// rootCmd runs test sets when no subcommand is given, same as `callsim run`.
var rootCmd = &cobra.Command{
	Use:   "callsim [test-set...]",
	Short: "Run call quality test sets",
	Long: `callsim runs two-party calls between containerized clients over an emulated
network, scores the received audio and writes a report per test group.

Test sets are read from the catalogue file (--testsets). When no test set is
named, "example" runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flags.verbose {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
		if err := env.LoadDotEnv(".env"); err != nil {
			return err
		}

		var err error
		cfg, err = loadConfig(cmd.Flags())
		return err
	},
	RunE: runE,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("root", ".", "source tree holding call_sim/ (env CALLSIM_ROOT)")
	pf.String("output-dir", defaultOutputDir, "results directory, relative to --root (env CALLSIM_OUTPUT_DIR)")
	pf.String("media-dir", defaultMediaDir, "reference sounds directory, relative to --root (env CALLSIM_MEDIA_DIR)")
	pf.String("testsets", defaultTestSets, "test set catalogue file (env CALLSIM_TESTSETS)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging, including container output")

	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		c.Flags().BoolVar(&flags.build, "build", false, "build all images before running")
		c.Flags().BoolVar(&flags.clean, "clean", false, "remove leftover containers and the network before running")
	}
}
