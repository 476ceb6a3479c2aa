package spec

import (
	"fmt"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/network"
	"gopkg.in/yaml.v3"
)

// ProfileSpec is the YAML form of a network profile. Accepted shapes:
//
//	- none
//	- spiky_loss
//	- simple_loss: 10
//	- limited_bandwidth: 250
//	- custom:
//	    label: limit_default
//	    timeline:
//	      - offset: 0s
//	      - offset: 60s
//	        rate_kbps: 50
type ProfileSpec struct {
	network.Profile
}

var presets = map[string]network.Profile{
	"none":          network.None{},
	"default":       network.Default{},
	"moderate":      network.Moderate{},
	"international": network.International{},
	"spiky_loss":    network.SpikyLoss{},
}

type timelineEntry struct {
	Offset                string `yaml:"offset"`
	network.NetworkConfig `yaml:",inline"`
}

type customProfile struct {
	Label    string          `yaml:"label"`
	Timeline []timelineEntry `yaml:"timeline"`
}

func (p *ProfileSpec) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		preset, ok := presets[n.Value]
		if !ok {
			return fmt.Errorf("line %d: unknown network profile %q", n.Line, n.Value)
		}
		p.Profile = preset
		return nil
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return fmt.Errorf("line %d: network profile must have exactly one key", n.Line)
		}
		return p.decodeParameterized(n.Content[0].Value, n.Content[1])
	default:
		return fmt.Errorf("line %d: network profile must be a name or a single-key mapping", n.Line)
	}
}

func (p *ProfileSpec) decodeParameterized(kind string, value *yaml.Node) error {
	switch kind {
	case "simple_loss":
		var percent int
		if err := value.Decode(&percent); err != nil {
			return fmt.Errorf("simple_loss: %w", err)
		}
		p.Profile = network.SimpleLoss{Percent: percent}
	case "limited_bandwidth":
		var kbps int
		if err := value.Decode(&kbps); err != nil {
			return fmt.Errorf("limited_bandwidth: %w", err)
		}
		p.Profile = network.LimitedBandwidth{Kbps: kbps}
	case "custom":
		var c customProfile
		if err := value.Decode(&c); err != nil {
			return fmt.Errorf("custom: %w", err)
		}
		timeline := make([]network.NetworkConfigWithOffset, 0, len(c.Timeline))
		for i, e := range c.Timeline {
			offset, err := parseOffset(e.Offset)
			if err != nil {
				return fmt.Errorf("custom profile %q entry %d: %w", c.Label, i, err)
			}
			timeline = append(timeline, network.NetworkConfigWithOffset{Offset: offset, NetworkConfig: e.NetworkConfig})
		}
		p.Profile = network.Custom{Name: c.Label, Timeline: timeline}
	default:
		return fmt.Errorf("line %d: unknown network profile %q", value.Line, kind)
	}
	return nil
}

func parseOffset(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q: %w", s, err)
	}
	return d, nil
}

// Profiles unwraps the YAML forms.
func Profiles(specs []ProfileSpec) []network.Profile {
	out := make([]network.Profile, len(specs))
	for i, s := range specs {
		out[i] = s.Profile
	}
	return out
}
