package report

import (
	"runtime"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
)

// GroupReport is the summary of one group's runs.
type GroupReport struct {
	Meta     Meta             `json:"meta"`
	Group    string           `json:"group"`
	XAxis    []string         `json:"x_axis"`
	Charts   []Chart          `json:"charts"`
	Runs     []RunEntry       `json:"runs"`
	Failures []Failure        `json:"failures"`
	Counts   Counts           `json:"counts"`
	Config   spec.GroupConfig `json:"config"`
}

type Meta struct {
	TestSet     string          `json:"test_set"`
	Timestamp   time.Time       `json:"timestamp"`
	Environment EnvironmentInfo `json:"environment"`
}

type EnvironmentInfo struct {
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	NumCPU    int    `json:"num_cpu"`
}

func NewEnvironmentInfo() EnvironmentInfo {
	return EnvironmentInfo{
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		NumCPU:    runtime.NumCPU(),
	}
}

// Chart is one chart dimension of a group. For label dimensions every series has
// one point per x-axis label; for time dimensions the points are segment starts.
type Chart struct {
	Dimension spec.ChartDimension `json:"dimension"`
	Metric    spec.MetricKind     `json:"metric"`
	Series    []Series            `json:"series"`
}

type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Point is a chart value. A nil Value is a gap left by a failed or unscored run.
type Point struct {
	X      string         `json:"x"`
	Offset *time.Duration `json:"offset,omitempty"`
	Value  *float64       `json:"value"`
}

// RunEntry is one row of the per-run table.
type RunEntry struct {
	ID           string                      `json:"id"`
	TestCase     string                      `json:"test_case"`
	Profile      string                      `json:"profile"`
	Metrics      map[spec.MetricKind]float64 `json:"metrics,omitempty"`
	Duration     time.Duration               `json:"duration"`
	ScheduleSkew time.Duration               `json:"schedule_skew_p99"`
	Dir          string                      `json:"dir"`
	Succeeded    bool                        `json:"succeeded"`
}

type Failure struct {
	TestCase string `json:"test_case"`
	Profile  string `json:"profile"`
	Stage    string `json:"stage,omitempty"`
	Message  string `json:"message"`
}

type Counts struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
