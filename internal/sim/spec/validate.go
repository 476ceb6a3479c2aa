package spec

import (
	"fmt"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/network"
)

var validDimensions = map[ChartDimension]bool{
	DimensionMos:           true,
	DimensionMosNormalized: true,
	DimensionMosOverTime:   true,
}

var validPacketSizes = map[int]bool{10: true, 20: true, 40: true, 60: true, 80: true, 100: true, 120: true}

// ValidateRun checks one group's matrix before anything is started and fills in
// defaults on group and cases. Every case is resolved against every profile, so a
// custom timeline that does not fit a case's length is rejected here.
func ValidateRun(group *GroupConfig, cases []TestCaseConfig, profiles []network.Profile) error {
	if err := validateRun(group, cases, profiles); err != nil {
		return apperr.NewConfigurationWrap("invalid test matrix", err)
	}
	return nil
}

func validateRun(group *GroupConfig, cases []TestCaseConfig, profiles []network.Profile) error {
	if group.Name == "" {
		return fmt.Errorf("group has no name")
	}
	if !network.ValidName(group.Name) {
		return fmt.Errorf("group name %q must not contain path separators or \"..\"", group.Name)
	}
	if len(group.ChartDimensions) == 0 {
		group.ChartDimensions = []ChartDimension{DimensionMos}
	}
	for _, d := range group.ChartDimensions {
		if !validDimensions[d] {
			return fmt.Errorf("group %q has invalid chart dimension %q", group.Name, d)
		}
	}
	if len(cases) == 0 {
		return fmt.Errorf("group %q has no test cases", group.Name)
	}
	if len(profiles) == 0 {
		return fmt.Errorf("group %q has no network profiles", group.Name)
	}

	caseNames := make(map[string]bool, len(cases))
	for i := range cases {
		c := &cases[i]
		if c.Name == "" {
			return fmt.Errorf("group %q: test case at index %d has no name", group.Name, i)
		}
		if !network.ValidName(c.Name) {
			return fmt.Errorf("group %q: test case name %q must not contain path separators or \"..\"", group.Name, c.Name)
		}
		if caseNames[c.Name] {
			return fmt.Errorf("group %q: duplicate test case name %q", group.Name, c.Name)
		}
		caseNames[c.Name] = true

		if c.LengthSeconds == 0 {
			c.LengthSeconds = DefaultLengthSeconds
		}
		if c.LengthSeconds < 0 {
			return fmt.Errorf("test case %q: length must be positive, got %d", c.Name, c.LengthSeconds)
		}
		for _, client := range []*CallConfig{&c.ClientA, &c.ClientB} {
			if err := validateCall(client); err != nil {
				return fmt.Errorf("test case %q: %w", c.Name, err)
			}
		}
	}

	labels := make(map[string]bool, len(profiles))
	for i, p := range profiles {
		if p == nil {
			return fmt.Errorf("group %q: network profile at index %d is empty", group.Name, i)
		}
		if labels[p.Label()] {
			return fmt.Errorf("group %q: duplicate network profile %q", group.Name, p.Label())
		}
		labels[p.Label()] = true
	}
	for _, l := range group.XAxisLabels {
		if !labels[l] {
			return fmt.Errorf("group %q: x axis label %q matches no network profile", group.Name, l)
		}
	}

	for _, c := range cases {
		for _, p := range profiles {
			if _, err := network.Schedule(p, c.Duration()); err != nil {
				return fmt.Errorf("test case %q: %w", c.Name, err)
			}
		}
	}
	return nil
}

func validateCall(c *CallConfig) error {
	if c.Audio.InputName == "" {
		c.Audio.InputName = SilenceInput
	}
	if c.Audio.PacketSizeMs == 0 {
		c.Audio.PacketSizeMs = DefaultPacketSizeMs
	}
	if !validPacketSizes[c.Audio.PacketSizeMs] {
		return fmt.Errorf("unsupported packet size %dms", c.Audio.PacketSizeMs)
	}
	switch c.Audio.AnalysisMode {
	case "":
		c.Audio.AnalysisMode = AnalysisFull
	case AnalysisFull, AnalysisChopped:
	default:
		return fmt.Errorf("invalid analysis mode %q", c.Audio.AnalysisMode)
	}
	if c.ForceRelay && len(c.RelayServers) == 0 {
		return fmt.Errorf("force_relay is set but no relay servers are configured")
	}
	if len(c.RelayServers) > 0 {
		if c.RelayUsername == "" {
			c.RelayUsername = DefaultRelayUsername
		}
		if c.RelayPassword == "" {
			c.RelayPassword = DefaultRelayPassword
		}
	}
	return nil
}
