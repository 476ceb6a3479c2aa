package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/audio"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/docker"
)

const (
	defaultOutputDir = "call_sim/test_results"
	defaultMediaDir  = "call_sim/media"
	defaultTestSets  = "configs/testsets.yaml"

	// invocation directories sort lexically in time order
	timestampLayout = "20060102-150405"
)

// appConfig holds absolute paths; containers bind mount them.
type appConfig struct {
	Root           string
	OutputDir      string
	MediaDir       string
	TestSets       string
	NetworkName    string
	StartupTimeout time.Duration
	ScoreTimeout   time.Duration
}

// newViper resolves each key from its flag when set, then CALLSIM_<KEY>, then
// the default.
func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("CALLSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("root", ".")
	v.SetDefault("output-dir", defaultOutputDir)
	v.SetDefault("media-dir", defaultMediaDir)
	v.SetDefault("testsets", defaultTestSets)
	v.SetDefault("network-name", docker.DefaultNetworkName)
	v.SetDefault("startup-timeout", docker.DefaultStartupTimeout.String())
	v.SetDefault("score-timeout", audio.DefaultScoreTimeout.String())

	for _, name := range []string{"root", "output-dir", "media-dir", "testsets"} {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag(name, f); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// loadConfig resolves the harness settings. Output and media dirs are
// relative to the root.
func loadConfig(fs *pflag.FlagSet) (*appConfig, error) {
	v, err := newViper(fs)
	if err != nil {
		return nil, apperr.NewConfigurationWrap("bind flags", err)
	}

	root, err := filepath.Abs(v.GetString("root"))
	if err != nil {
		return nil, apperr.NewConfigurationWrap("resolve root", err)
	}
	testSets, err := filepath.Abs(v.GetString("testsets"))
	if err != nil {
		return nil, apperr.NewConfigurationWrap("resolve test set catalogue", err)
	}

	startup, err := positiveDuration(v, "startup-timeout")
	if err != nil {
		return nil, err
	}
	score, err := positiveDuration(v, "score-timeout")
	if err != nil {
		return nil, err
	}

	return &appConfig{
		Root:           root,
		OutputDir:      underRoot(root, v.GetString("output-dir")),
		MediaDir:       underRoot(root, v.GetString("media-dir")),
		TestSets:       testSets,
		NetworkName:    v.GetString("network-name"),
		StartupTimeout: startup,
		ScoreTimeout:   score,
	}, nil
}

// viper's GetDuration swallows parse errors, so durations are parsed here.
func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, apperr.NewConfigurationWrap(fmt.Sprintf("parse %s %q", key, raw), err)
	}
	if d <= 0 {
		return 0, apperr.NewConfiguration(fmt.Sprintf("%s must be positive, got %s", key, d))
	}
	return d, nil
}

func (c *appConfig) dockerConfig() docker.Config {
	return docker.Config{
		NetworkName:    c.NetworkName,
		Root:           c.Root,
		MediaDir:       c.MediaDir,
		ResultsDir:     c.OutputDir,
		StartupTimeout: c.StartupTimeout,
	}
}

// pipelineConfig keeps preprocessed references in one directory shared by all
// invocations, so baseline scores and spectrograms are reused across runs.
func (c *appConfig) pipelineConfig() audio.Config {
	return audio.Config{
		MediaDir:     c.MediaDir,
		RefDir:       filepath.Join(c.OutputDir, "ref"),
		ScoreTimeout: c.ScoreTimeout,
	}
}

// invocationDir is where one test set invocation writes its runs and reports.
func (c *appConfig) invocationDir(testSet string, at time.Time) string {
	return filepath.Join(c.OutputDir, testSet, at.Format(timestampLayout))
}

func underRoot(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}
