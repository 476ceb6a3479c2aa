package spec

import (
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// SilenceInput is the reference sound a participant sends when none is configured.
	SilenceInput = "silence"

	DefaultLengthSeconds = 30
	DefaultPacketSizeMs  = 20

	DefaultRelayUsername = "test"
	DefaultRelayPassword = "test"
)

type MetricKind string

const (
	MetricMos           MetricKind = "mos"
	MetricMosNormalized MetricKind = "mos_normalized"
)

type ChartDimension string

const (
	DimensionMos           ChartDimension = "mos"
	DimensionMosNormalized ChartDimension = "mos_normalized"
	DimensionMosOverTime   ChartDimension = "mos_over_time"
)

// Metric returns the metric a chart dimension plots.
func (d ChartDimension) Metric() MetricKind {
	switch d {
	case DimensionMosNormalized:
		return MetricMosNormalized
	default:
		return MetricMos
	}
}

// TimeSeries reports whether the dimension is plotted against segment start time
// instead of profile label.
func (d ChartDimension) TimeSeries() bool {
	return d == DimensionMosOverTime
}

type AnalysisMode string

const (
	AnalysisFull    AnalysisMode = "full"
	AnalysisChopped AnalysisMode = "chopped"
)

type GroupConfig struct {
	Name            string           `yaml:"name" json:"name"`
	ChartDimensions []ChartDimension `yaml:"chart_dimensions" json:"chart_dimensions"`
	XAxisLabels     []string         `yaml:"x_axis_labels,omitempty" json:"x_axis_labels,omitempty"`
}

type TestCaseConfig struct {
	Name          string     `yaml:"name" json:"name"`
	LengthSeconds int        `yaml:"length_seconds" json:"length_seconds"`
	ClientA       CallConfig `yaml:"client_a" json:"client_a"`
	ClientB       CallConfig `yaml:"client_b" json:"client_b"`
}

func (c TestCaseConfig) Duration() time.Duration {
	return time.Duration(c.LengthSeconds) * time.Second
}

// CallConfig is one participant's behaviour during a call.
type CallConfig struct {
	Audio         AudioConfig `yaml:"audio" json:"audio"`
	Video         VideoConfig `yaml:"video" json:"video"`
	RelayServers  []string    `yaml:"relay_servers,omitempty" json:"relay_servers,omitempty"`
	RelayUsername string      `yaml:"relay_username" json:"relay_username"`
	RelayPassword string      `yaml:"relay_password" json:"-"`
	ForceRelay    bool        `yaml:"force_relay" json:"force_relay"`
}

type AudioConfig struct {
	InputName           string       `yaml:"input_name" json:"input_name"`
	PacketSizeMs        int          `yaml:"packet_size_ms" json:"packet_size_ms"`
	EnableDTX           bool         `yaml:"enable_dtx" json:"enable_dtx"`
	AnalysisMode        AnalysisMode `yaml:"analysis_mode" json:"analysis_mode"`
	GenerateSpectrogram bool         `yaml:"generate_spectrogram" json:"generate_spectrogram"`
}

type VideoConfig struct {
	InputName string `yaml:"input_name,omitempty" json:"input_name,omitempty"`
	EnableVP9 bool   `yaml:"enable_vp9" json:"enable_vp9"`
}

func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		InputName:           SilenceInput,
		PacketSizeMs:        DefaultPacketSizeMs,
		EnableDTX:           true,
		AnalysisMode:        AnalysisFull,
		GenerateSpectrogram: true,
	}
}

func DefaultCallConfig() CallConfig {
	return CallConfig{
		Audio:         DefaultAudioConfig(),
		RelayUsername: DefaultRelayUsername,
		RelayPassword: DefaultRelayPassword,
	}
}

func (c CallConfig) WithAudioInputName(name string) CallConfig {
	c.Audio.InputName = name
	return c
}

// SendsAudio reports whether the participant sends anything worth scoring.
func (c CallConfig) SendsAudio() bool {
	return c.Audio.InputName != "" && c.Audio.InputName != SilenceInput
}

// UnmarshalYAML starts from DefaultCallConfig so that omitted keys keep their
// defaults, including the ones that default to true.
func (c *CallConfig) UnmarshalYAML(n *yaml.Node) error {
	type plain CallConfig
	p := plain(DefaultCallConfig())
	if err := n.Decode(&p); err != nil {
		return err
	}
	*c = CallConfig(p)
	return nil
}

// UnmarshalYAML fills omitted client configs with defaults.
func (c *TestCaseConfig) UnmarshalYAML(n *yaml.Node) error {
	type plain TestCaseConfig
	p := plain(NewTestCase(""))
	if err := n.Decode(&p); err != nil {
		return err
	}
	*c = TestCaseConfig(p)
	return nil
}

// NewTestCase returns a case with the default length and both clients at defaults.
func NewTestCase(name string) TestCaseConfig {
	return TestCaseConfig{
		Name:          name,
		LengthSeconds: DefaultLengthSeconds,
		ClientA:       DefaultCallConfig(),
		ClientB:       DefaultCallConfig(),
	}
}
