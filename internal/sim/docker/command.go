package docker

import (
	"path"
	"strconv"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
)

const signalingURL = "http://" + SignalingServer + ":8080"

// Output file names inside ReportMount, per role.
func receivedAudioFile(role string) string { return role + "_received.wav" }
func receivedVideoFile(role string) string { return role + "_received.yuv" }
func logFile(role string) string           { return role + ".log" }

const captureFile = "capture.pcap"

// clientCommand renders the participant CLI arguments for one role. client_a
// places the call to client_b.
func clientCommand(role string, c spec.CallConfig, callLength time.Duration) []string {
	args := []string{
		"--name", role,
		"--signaling-url", signalingURL,
		"--call-length-seconds", strconv.Itoa(int((callLength + callLengthGrace) / time.Second)),
		"--input-file", path.Join(MediaMount, c.Audio.InputName+".wav"),
		"--output-file", path.Join(ReportMount, receivedAudioFile(role)),
		"--audio-packet-size-ms", strconv.Itoa(c.Audio.PacketSizeMs),
	}
	if role == ClientA {
		args = append(args, "--call-to", ClientB)
	}
	if !c.Audio.EnableDTX {
		args = append(args, "--no-dtx")
	}
	if c.Video.InputName != "" {
		args = append(args,
			"--input-video-file", path.Join(MediaMount, c.Video.InputName+".yuv"),
			"--output-video-file", path.Join(ReportMount, receivedVideoFile(role)),
		)
	}
	if c.Video.EnableVP9 {
		args = append(args, "--enable-vp9")
	}
	for _, s := range c.RelayServers {
		args = append(args, "--relay-server", s)
	}
	if len(c.RelayServers) > 0 {
		args = append(args, "--relay-username", c.RelayUsername, "--relay-password", c.RelayPassword)
	}
	if c.ForceRelay {
		args = append(args, "--force-relay")
	}
	return args
}

func clientEnv(role string) map[string]string {
	return map[string]string{
		"RUST_LOG":     "info",
		"CALLSIM_ROLE": role,
	}
}

func tcpdumpCommand() []string {
	return []string{"-i", netemInterface, "-U", "-w", path.Join(ReportMount, captureFile)}
}

func turnCommand(username, password string) []string {
	return []string{
		"-n",
		"--log-file=stdout",
		"--lt-cred-mech",
		"--user=" + username + ":" + password,
		"--realm=callsim",
		"--listening-port=3478",
		"--alt-listening-port=80",
	}
}
