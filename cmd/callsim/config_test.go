package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/docker"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
)

const catalogue = "../../configs/testsets.yaml"

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("callsim", pflag.ContinueOnError)
	fs.String("root", ".", "")
	fs.String("output-dir", defaultOutputDir, "")
	fs.String("media-dir", defaultMediaDir, "")
	fs.String("testsets", defaultTestSets, "")
	return fs
}

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"CALLSIM_ROOT", "CALLSIM_OUTPUT_DIR", "CALLSIM_MEDIA_DIR", "CALLSIM_TESTSETS",
		"CALLSIM_STARTUP_TIMEOUT", "CALLSIM_SCORE_TIMEOUT", "CALLSIM_NETWORK_NAME",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	t.Setenv("CALLSIM_ROOT", root)

	c, err := loadConfig(newFlagSet())
	require.NoError(t, err)

	assert.Equal(t, root, c.Root)
	assert.Equal(t, filepath.Join(root, "call_sim", "test_results"), c.OutputDir)
	assert.Equal(t, filepath.Join(root, "call_sim", "media"), c.MediaDir)
	assert.True(t, filepath.IsAbs(c.TestSets))
	assert.Equal(t, docker.DefaultNetworkName, c.NetworkName)
	assert.Equal(t, docker.DefaultStartupTimeout, c.StartupTimeout)
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	envRoot, flagRoot := t.TempDir(), t.TempDir()
	t.Setenv("CALLSIM_ROOT", envRoot)
	t.Setenv("CALLSIM_OUTPUT_DIR", "from-env")
	t.Setenv("CALLSIM_MEDIA_DIR", "/srv/media")
	t.Setenv("CALLSIM_SCORE_TIMEOUT", "5m")
	t.Setenv("CALLSIM_NETWORK_NAME", "callsim_ci")

	fs := newFlagSet()
	require.NoError(t, fs.Set("root", flagRoot))
	require.NoError(t, fs.Set("output-dir", "from-flag"))

	c, err := loadConfig(fs)
	require.NoError(t, err)

	assert.Equal(t, flagRoot, c.Root)
	assert.Equal(t, filepath.Join(flagRoot, "from-flag"), c.OutputDir)
	assert.Equal(t, "/srv/media", c.MediaDir)
	assert.Equal(t, 5*time.Minute, c.ScoreTimeout)
	assert.Equal(t, "callsim_ci", c.NetworkName)

	dc := c.dockerConfig()
	assert.Equal(t, c.OutputDir, dc.ResultsDir)
	assert.Equal(t, "callsim_ci", dc.NetworkName)
}

func TestLoadConfig_InvalidTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALLSIM_STARTUP_TIMEOUT", "soon")

	_, err := loadConfig(newFlagSet())
	var cfgErr *apperr.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	t.Setenv("CALLSIM_STARTUP_TIMEOUT", "-1s")
	_, err = loadConfig(newFlagSet())
	assert.ErrorAs(t, err, &cfgErr)
}

func TestInvocationDir(t *testing.T) {
	c := &appConfig{OutputDir: "/results"}
	at := time.Date(2026, 3, 1, 12, 30, 5, 0, time.UTC)
	assert.Equal(t, "/results/ptime_analysis/20260301-123005", c.invocationDir("ptime_analysis", at))
}

func TestPipelineConfig_SharedRefDir(t *testing.T) {
	c := &appConfig{OutputDir: "/results", MediaDir: "/media", ScoreTimeout: time.Minute}
	pc := c.pipelineConfig()

	assert.Equal(t, "/results/ref", pc.RefDir)
	assert.Equal(t, "/media", pc.MediaDir)
	assert.Equal(t, time.Minute, pc.ScoreTimeout)

	at := time.Date(2026, 3, 1, 12, 30, 5, 0, time.UTC)
	assert.NotContains(t, pc.RefDir, at.Format(timestampLayout))
}

func TestLookupTestSets(t *testing.T) {
	t.Run("shipped catalogue is valid", func(t *testing.T) {
		names := []string{
			"example",
			"baseline_over_all_profiles",
			"dtx_tests_with_loss",
			"example_with_relay",
			"ptime_analysis",
			"video_send_over_bandwidth",
			"video_compare_vp8_vs_vp9",
			"changing_bandwidth_audio_test",
		}
		sets, err := lookupTestSets(catalogue, names)
		require.NoError(t, err)
		require.Len(t, sets, len(names))

		ptime := sets[4]
		require.Len(t, ptime.Runs, 2)
		assert.Len(t, ptime.Runs[1].Cases, 4)
		assert.Equal(t, []string{"speaker_a", "speaker_b"}, ptime.Preprocess)

		changing := sets[7].Runs[0]
		assert.Equal(t, 240, changing.Cases[0].LengthSeconds)
		assert.Equal(t, spec.AnalysisChopped, changing.Cases[0].ClientB.Audio.AnalysisMode)
		assert.Equal(t, "limit_default", changing.Profiles[0].Label())
	})

	t.Run("defaults to example", func(t *testing.T) {
		sets, err := lookupTestSets(catalogue, nil)
		require.NoError(t, err)
		require.Len(t, sets, 1)
		assert.Equal(t, spec.DefaultTestSet, sets[0].Name)
	})

	t.Run("unknown name fails before running", func(t *testing.T) {
		_, err := lookupTestSets(catalogue, []string{"example", "nope"})
		var cfgErr *apperr.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})
}
