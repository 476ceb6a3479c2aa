package network

import (
	"fmt"
	"time"
)

// NetworkConfig is a point-in-time impairment setting. A zero field leaves that
// dimension unimpaired.
type NetworkConfig struct {
	RateKbps               int `yaml:"rate_kbps,omitempty" json:"rate_kbps,omitempty"`
	LossPercent            int `yaml:"loss_percent,omitempty" json:"loss_percent,omitempty"`
	LossCorrelationPercent int `yaml:"loss_correlation_percent,omitempty" json:"loss_correlation_percent,omitempty"`
	DelayMs                int `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`
	JitterMs               int `yaml:"jitter_ms,omitempty" json:"jitter_ms,omitempty"`
}

// IsZero reports whether the config impairs nothing.
func (c NetworkConfig) IsZero() bool {
	return c == NetworkConfig{}
}

func (c NetworkConfig) String() string {
	if c.IsZero() {
		return "unimpaired"
	}
	return fmt.Sprintf("rate=%dkbps loss=%d%% delay=%dms jitter=%dms", c.RateKbps, c.LossPercent, c.DelayMs, c.JitterMs)
}

// Validate rejects settings netem cannot express: negative values, percentages
// above 100 and jitter without a base delay.
func (c NetworkConfig) Validate() error {
	switch {
	case c.RateKbps < 0:
		return fmt.Errorf("rate must not be negative, got %dkbps", c.RateKbps)
	case c.DelayMs < 0:
		return fmt.Errorf("delay must not be negative, got %dms", c.DelayMs)
	case c.JitterMs < 0:
		return fmt.Errorf("jitter must not be negative, got %dms", c.JitterMs)
	case c.LossPercent < 0 || c.LossPercent > 100:
		return fmt.Errorf("loss must be within 0-100%%, got %d%%", c.LossPercent)
	case c.LossCorrelationPercent < 0 || c.LossCorrelationPercent > 100:
		return fmt.Errorf("loss correlation must be within 0-100%%, got %d%%", c.LossCorrelationPercent)
	case c.JitterMs > 0 && c.DelayMs == 0:
		return fmt.Errorf("jitter of %dms needs a delay", c.JitterMs)
	}
	return nil
}

type NetworkConfigWithOffset struct {
	Offset        time.Duration `yaml:"offset" json:"offset"`
	NetworkConfig NetworkConfig `yaml:"network_config" json:"network_config"`
}

// Profile is a closed set of network profile variants. Every variant has a
// stable label used for artifact paths and chart x-axis entries.
type Profile interface {
	Label() string
	entries(callDuration time.Duration) []NetworkConfigWithOffset
}

type None struct{}

type Default struct{}

type Moderate struct{}

type International struct{}

type SpikyLoss struct{}

type LimitedBandwidth struct {
	Kbps int
}

type SimpleLoss struct {
	Percent int
}

type Custom struct {
	Name     string
	Timeline []NetworkConfigWithOffset
}

func (None) Label() string          { return "none" }
func (Default) Label() string       { return "default" }
func (Moderate) Label() string      { return "moderate" }
func (International) Label() string { return "international" }
func (SpikyLoss) Label() string     { return "spiky_loss" }

func (p LimitedBandwidth) Label() string {
	return fmt.Sprintf("limited_bandwidth_%d", p.Kbps)
}

func (p SimpleLoss) Label() string {
	return fmt.Sprintf("simple_loss_%d", p.Percent)
}

func (p Custom) Label() string { return p.Name }

func (None) entries(time.Duration) []NetworkConfigWithOffset {
	return single(NetworkConfig{})
}

func (Default) entries(time.Duration) []NetworkConfigWithOffset {
	return single(NetworkConfig{DelayMs: 20, JitterMs: 5, LossPercent: 1})
}

func (Moderate) entries(time.Duration) []NetworkConfigWithOffset {
	return single(NetworkConfig{DelayMs: 75, JitterMs: 20, LossPercent: 3, RateKbps: 1000})
}

func (International) entries(time.Duration) []NetworkConfigWithOffset {
	return single(NetworkConfig{DelayMs: 200, JitterMs: 40, LossPercent: 2})
}

const spikyLossCycle = 20 * time.Second

var spikyLossPattern = []NetworkConfigWithOffset{
	{Offset: 0, NetworkConfig: NetworkConfig{LossPercent: 1}},
	{Offset: 12 * time.Second, NetworkConfig: NetworkConfig{LossPercent: 25}},
	{Offset: 15 * time.Second, NetworkConfig: NetworkConfig{LossPercent: 1}},
	{Offset: 17 * time.Second, NetworkConfig: NetworkConfig{LossPercent: 35}},
	{Offset: 18 * time.Second, NetworkConfig: NetworkConfig{LossPercent: 1}},
}

// entries repeats the spike cycle until it covers the whole call.
func (SpikyLoss) entries(callDuration time.Duration) []NetworkConfigWithOffset {
	var out []NetworkConfigWithOffset
	for start := time.Duration(0); start < callDuration; start += spikyLossCycle {
		for _, e := range spikyLossPattern {
			out = append(out, NetworkConfigWithOffset{Offset: start + e.Offset, NetworkConfig: e.NetworkConfig})
		}
	}
	if len(out) == 0 {
		return single(spikyLossPattern[0].NetworkConfig)
	}
	return out
}

func (p LimitedBandwidth) entries(time.Duration) []NetworkConfigWithOffset {
	return single(NetworkConfig{RateKbps: p.Kbps})
}

func (p SimpleLoss) entries(time.Duration) []NetworkConfigWithOffset {
	return single(NetworkConfig{LossPercent: p.Percent})
}

func (p Custom) entries(time.Duration) []NetworkConfigWithOffset {
	out := make([]NetworkConfigWithOffset, len(p.Timeline))
	copy(out, p.Timeline)
	return out
}

func single(cfg NetworkConfig) []NetworkConfigWithOffset {
	return []NetworkConfigWithOffset{{Offset: 0, NetworkConfig: cfg}}
}
