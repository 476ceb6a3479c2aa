package spec

import (
	"errors"
	"fmt"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/network"
)

// RunResult is produced once per (test case, network profile) pair and is not
// modified after it is recorded.
type RunResult struct {
	ID           string                       `json:"id"`
	TestSet      string                       `json:"test_set"`
	Group        string                       `json:"group"`
	TestCase     string                       `json:"test_case_name"`
	Profile      string                       `json:"profile_label"`
	StartedAt    time.Time                    `json:"started_at"`
	Duration     time.Duration                `json:"duration"`
	Metrics      map[MetricKind]float64       `json:"metrics,omitempty"`
	Series       map[MetricKind][]SeriesPoint `json:"series,omitempty"`
	ClientScores []DirectionScore             `json:"client_scores,omitempty"`
	Artifacts    ArtifactSet                  `json:"artifact_paths"`
	Impairments  []network.Change             `json:"impairments,omitempty"`
	ScheduleSkew network.SkewStats            `json:"schedule_skew"`
	Succeeded    bool                         `json:"succeeded"`
	Error        *ErrorInfo                   `json:"error,omitempty"`
}

// Key identifies the run within its group.
func (r RunResult) Key() string {
	return r.TestCase + "/" + r.Profile
}

type ErrorInfo struct {
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

func (e *ErrorInfo) String() string {
	if e.Stage == "" {
		return e.Message
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

// NewErrorInfo flattens err for serialization, keeping the run stage when known.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	var re *apperr.RunError
	if errors.As(err, &re) {
		msg := re.Message
		if re.Err != nil {
			msg += ": " + re.Err.Error()
		}
		return &ErrorInfo{Stage: string(re.Stage), Message: msg}
	}
	return &ErrorInfo{Message: err.Error()}
}

type SeriesPoint struct {
	Offset time.Duration `json:"offset"`
	Value  float64       `json:"value"`
}

// DirectionScore is the quality of audio received by one participant from the other.
type DirectionScore struct {
	Receiver  string        `json:"receiver"`
	Reference string        `json:"reference"`
	Mos       float64       `json:"mos"`
	Series    []SeriesPoint `json:"series,omitempty"`
}

// ArtifactSet lists what a run left on disk. Paths are host paths.
type ArtifactSet struct {
	Dir           string          `json:"dir"`
	ClientA       ClientArtifacts `json:"client_a"`
	ClientB       ClientArtifacts `json:"client_b"`
	PacketCapture string          `json:"packet_capture,omitempty"`
}

type ClientArtifacts struct {
	ReceivedAudio string `json:"received_audio,omitempty"`
	ReceivedVideo string `json:"received_video,omitempty"`
	Log           string `json:"log,omitempty"`
	Spectrogram   string `json:"spectrogram,omitempty"`
}
