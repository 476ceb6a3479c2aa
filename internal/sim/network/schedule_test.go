package network

import (
	"errors"
	"testing"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allProfiles() []Profile {
	return []Profile{
		None{},
		Default{},
		Moderate{},
		International{},
		SpikyLoss{},
		LimitedBandwidth{Kbps: 250},
		SimpleLoss{Percent: 10},
		Custom{Name: "limit_default", Timeline: []NetworkConfigWithOffset{
			{Offset: 0},
			{Offset: 60 * time.Second, NetworkConfig: NetworkConfig{RateKbps: 50}},
			{Offset: 120 * time.Second, NetworkConfig: NetworkConfig{RateKbps: 25}},
			{Offset: 180 * time.Second},
		}},
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		profile Profile
		want    string
	}{
		{None{}, "none"},
		{Default{}, "default"},
		{Moderate{}, "moderate"},
		{International{}, "international"},
		{SpikyLoss{}, "spiky_loss"},
		{LimitedBandwidth{Kbps: 50}, "limited_bandwidth_50"},
		{SimpleLoss{Percent: 10}, "simple_loss_10"},
		{Custom{Name: "limit_default"}, "limit_default"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.Label())
		})
	}
}

func TestSchedule_StartsAtZeroAndStrictlyIncreases(t *testing.T) {
	for _, p := range allProfiles() {
		t.Run(p.Label(), func(t *testing.T) {
			timeline, err := Schedule(p, 240*time.Second)
			require.NoError(t, err)
			require.NotEmpty(t, timeline)

			assert.Equal(t, time.Duration(0), timeline[0].Offset)
			for i := 1; i < len(timeline); i++ {
				assert.Greater(t, timeline[i].Offset, timeline[i-1].Offset)
			}
			assert.Less(t, timeline[len(timeline)-1].Offset, 240*time.Second)
		})
	}
}

func TestSchedule_Shorthands(t *testing.T) {
	timeline, err := Schedule(LimitedBandwidth{Kbps: 75}, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []NetworkConfigWithOffset{{Offset: 0, NetworkConfig: NetworkConfig{RateKbps: 75}}}, timeline)

	timeline, err = Schedule(SimpleLoss{Percent: 10}, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []NetworkConfigWithOffset{{Offset: 0, NetworkConfig: NetworkConfig{LossPercent: 10}}}, timeline)
}

func TestSchedule_SpikyLossClampedToCall(t *testing.T) {
	timeline, err := Schedule(SpikyLoss{}, 30*time.Second)
	require.NoError(t, err)

	// one full 20s cycle plus the start of the second
	assert.Len(t, timeline, len(spikyLossPattern)+1)
	assert.Equal(t, 20*time.Second, timeline[len(timeline)-1].Offset)
	for _, e := range timeline {
		assert.Less(t, e.Offset, 30*time.Second)
	}
}

func TestSchedule_CustomRejected(t *testing.T) {
	tests := []struct {
		name     string
		timeline []NetworkConfigWithOffset
		contains string
	}{
		{
			name: "unsorted offsets",
			timeline: []NetworkConfigWithOffset{
				{Offset: 0},
				{Offset: 120 * time.Second},
				{Offset: 60 * time.Second},
			},
			contains: "strictly increasing",
		},
		{
			name: "duplicate offsets",
			timeline: []NetworkConfigWithOffset{
				{Offset: 0},
				{Offset: 60 * time.Second},
				{Offset: 60 * time.Second},
			},
			contains: "strictly increasing",
		},
		{
			name: "offset beyond call",
			timeline: []NetworkConfigWithOffset{
				{Offset: 0},
				{Offset: 300 * time.Second},
			},
			contains: "outside",
		},
		{
			name:     "negative offset",
			timeline: []NetworkConfigWithOffset{{Offset: -time.Second}},
			contains: "negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Schedule(Custom{Name: "bad", Timeline: tt.timeline}, 240*time.Second)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)

			var ce *apperr.ConfigurationError
			assert.True(t, errors.As(err, &ce))
		})
	}
}

func TestSchedule_InvalidParameters(t *testing.T) {
	tests := []struct {
		name     string
		profile  Profile
		contains string
	}{
		{"negative loss", SimpleLoss{Percent: -5}, "within 0-100%"},
		{"loss above 100", SimpleLoss{Percent: 150}, "within 0-100%"},
		{"zero bandwidth", LimitedBandwidth{Kbps: 0}, "bandwidth must be positive"},
		{"negative bandwidth", LimitedBandwidth{Kbps: -10}, "bandwidth must be positive"},
		{
			"custom negative loss",
			Custom{Name: "neg", Timeline: []NetworkConfigWithOffset{
				{Offset: 0, NetworkConfig: NetworkConfig{LossPercent: -10, DelayMs: 20}},
			}},
			"loss must be within",
		},
		{
			"custom jitter without delay",
			Custom{Name: "jitter", Timeline: []NetworkConfigWithOffset{
				{Offset: 0},
				{Offset: 10 * time.Second, NetworkConfig: NetworkConfig{JitterMs: 30}},
			}},
			"needs a delay",
		},
		{
			"custom correlation above 100",
			Custom{Name: "corr", Timeline: []NetworkConfigWithOffset{
				{Offset: 0, NetworkConfig: NetworkConfig{LossPercent: 5, LossCorrelationPercent: 101}},
			}},
			"correlation",
		},
		{
			"custom negative delay",
			Custom{Name: "delay", Timeline: []NetworkConfigWithOffset{
				{Offset: 0, NetworkConfig: NetworkConfig{DelayMs: -1}},
			}},
			"delay must not be negative",
		},
		{
			"custom label escapes output tree",
			Custom{Name: "../x", Timeline: []NetworkConfigWithOffset{{Offset: 0}}},
			"path separators",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Schedule(tt.profile, 240*time.Second)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)

			var ce *apperr.ConfigurationError
			assert.True(t, errors.As(err, &ce))
		})
	}
}

func TestSchedule_BoundaryParameters(t *testing.T) {
	for _, p := range []Profile{SimpleLoss{Percent: 0}, SimpleLoss{Percent: 100}, LimitedBandwidth{Kbps: 1}} {
		_, err := Schedule(p, 30*time.Second)
		assert.NoError(t, err, p.Label())
	}
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"limit_default", "simple_loss_10", "opus-20ms", "v1.2"} {
		assert.True(t, ValidName(name), name)
	}
	for _, name := range []string{"", ".", "..", "../x", "a/b", `a\b`, "x.."} {
		assert.False(t, ValidName(name), name)
	}
}

func TestSchedule_CustomWithoutInitialEntry(t *testing.T) {
	timeline, err := Schedule(Custom{Name: "late", Timeline: []NetworkConfigWithOffset{
		{Offset: 10 * time.Second, NetworkConfig: NetworkConfig{LossPercent: 20}},
	}}, 30*time.Second)
	require.NoError(t, err)

	require.Len(t, timeline, 2)
	assert.Equal(t, time.Duration(0), timeline[0].Offset)
	assert.True(t, timeline[0].NetworkConfig.IsZero())
}

func TestSchedule_InvalidDuration(t *testing.T) {
	_, err := Schedule(None{}, 0)
	assert.ErrorContains(t, err, "must be positive")
}

func TestBoundaries(t *testing.T) {
	timeline, err := Schedule(allProfiles()[7], 240*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0, 60 * time.Second, 120 * time.Second, 180 * time.Second}, Boundaries(timeline))
}

func TestTcCommand(t *testing.T) {
	t.Run("unimpaired removes qdisc", func(t *testing.T) {
		assert.Equal(t, []string{"tc", "qdisc", "del", "dev", "eth0", "root"}, TcCommand("eth0", NetworkConfig{}))
	})

	t.Run("rate only", func(t *testing.T) {
		assert.Equal(t,
			[]string{"tc", "qdisc", "replace", "dev", "eth0", "root", "netem", "rate", "50kbit"},
			TcCommand("eth0", NetworkConfig{RateKbps: 50}))
	})

	t.Run("all dimensions", func(t *testing.T) {
		cfg := NetworkConfig{DelayMs: 20, JitterMs: 5, LossPercent: 3, LossCorrelationPercent: 25, RateKbps: 1000}
		assert.Equal(t,
			[]string{"delay", "20ms", "5ms", "distribution", "normal", "loss", "3%", "25%", "rate", "1000kbit"},
			cfg.NetemArgs())
	})
}
