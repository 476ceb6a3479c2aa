package docker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/network"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

func TestClientCommand(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := spec.DefaultCallConfig().WithAudioInputName("normal_phrasing")
		args := clientCommand(ClientA, cfg, 30*time.Second)

		assert.Equal(t, []string{
			"--name", "client_a",
			"--signaling-url", "http://signaling_server:8080",
			"--call-length-seconds", "35",
			"--input-file", "/media/normal_phrasing.wav",
			"--output-file", "/report/client_a_received.wav",
			"--audio-packet-size-ms", "20",
			"--call-to", "client_b",
		}, args)
	})

	t.Run("callee does not dial", func(t *testing.T) {
		args := clientCommand(ClientB, spec.DefaultCallConfig(), 30*time.Second)
		assert.NotContains(t, args, "--call-to")
		assert.Contains(t, args, "/media/silence.wav")
	})

	t.Run("codec, video and relay flags", func(t *testing.T) {
		cfg := spec.DefaultCallConfig()
		cfg.Audio.EnableDTX = false
		cfg.Audio.PacketSizeMs = 60
		cfg.Video = spec.VideoConfig{InputName: "ConferenceMotion_50fps@1280x720", EnableVP9: true}
		cfg.RelayServers = []string{"turn:turn", "turn:turn:80?transport=tcp"}
		cfg.ForceRelay = true

		args := clientCommand(ClientB, cfg, 240*time.Second)

		assert.Contains(t, args, "--no-dtx")
		assert.Contains(t, args, "--enable-vp9")
		assert.Contains(t, args, "--force-relay")
		assert.Subset(t, args, []string{"--input-video-file", "/media/ConferenceMotion_50fps@1280x720.yuv"})
		assert.Subset(t, args, []string{"/report/client_b_received.yuv"})
		assert.Subset(t, args, []string{"--relay-server", "turn:turn", "turn:turn:80?transport=tcp"})
		assert.Subset(t, args, []string{"--relay-username", "test", "--relay-password"})
		assert.Subset(t, args, []string{"--audio-packet-size-ms", "60"})
		assert.Subset(t, args, []string{"--call-length-seconds", "245"})
	})
}

func TestSplitImage(t *testing.T) {
	tests := []struct {
		image, repo, tag string
	}{
		{"call_sim-cli:latest", "call_sim-cli", "latest"},
		{"visqol", "visqol", "latest"},
		{"localhost:5000/turn", "localhost:5000/turn", "latest"},
		{"localhost:5000/turn:v2", "localhost:5000/turn", "v2"},
	}
	for _, tt := range tests {
		t.Run(tt.image, func(t *testing.T) {
			repo, tag := splitImage(tt.image)
			assert.Equal(t, tt.repo, repo)
			assert.Equal(t, tt.tag, tag)
		})
	}
}

func TestRunHandle_Impair(t *testing.T) {
	type call struct {
		role string
		cmd  []string
	}

	newHandle := func(exec func(role string, cmd []string) (string, error)) (*RunHandle, *[]call) {
		var calls []call
		h := newRunHandle(spec.RunRequest{ID: "r1"})
		h.exec = func(_ context.Context, role string, cmd []string) (string, error) {
			calls = append(calls, call{role, cmd})
			return exec(role, cmd)
		}
		return h, &calls
	}

	t.Run("applies to both participants", func(t *testing.T) {
		h, calls := newHandle(func(string, []string) (string, error) { return "", nil })

		require.NoError(t, h.Impair(context.Background(), network.NetworkConfig{RateKbps: 50}))

		require.Len(t, *calls, 2)
		assert.Equal(t, "client_a", (*calls)[0].role)
		assert.Equal(t, "client_b", (*calls)[1].role)
		assert.Equal(t, []string{"tc", "qdisc", "replace", "dev", "eth0", "root", "netem", "rate", "50kbit"}, (*calls)[0].cmd)
	})

	t.Run("removing a missing qdisc is fine", func(t *testing.T) {
		h, _ := newHandle(func(string, []string) (string, error) {
			return "Error: Cannot delete qdisc with handle of zero.", errors.New("exit 2")
		})
		assert.NoError(t, h.Impair(context.Background(), network.NetworkConfig{}))
	})

	t.Run("other failures surface", func(t *testing.T) {
		h, _ := newHandle(func(role string, _ []string) (string, error) {
			if role == ClientB {
				return "RTNETLINK answers: Operation not permitted", errors.New("exit 2")
			}
			return "", nil
		})
		err := h.Impair(context.Background(), network.NetworkConfig{LossPercent: 10})
		assert.ErrorContains(t, err, "client_b")
	})
}

func TestRunHandle_Artifacts(t *testing.T) {
	tc := spec.NewTestCase("video")
	tc.ClientA.Video.InputName = "ConferenceMotion_50fps@1280x720"

	h := newRunHandle(spec.RunRequest{Dir: "/out/g/video/none", Case: tc})
	arts := h.artifacts()

	assert.Equal(t, "/out/g/video/none/client_a_received.wav", arts.ClientA.ReceivedAudio)
	assert.Equal(t, "/out/g/video/none/client_b_received.wav", arts.ClientB.ReceivedAudio)
	assert.Equal(t, "/out/g/video/none/capture.pcap", arts.PacketCapture)
	assert.Empty(t, arts.ClientA.ReceivedVideo)
	assert.Equal(t, "/out/g/video/none/client_b_received.yuv", arts.ClientB.ReceivedVideo)
}

func TestCallMonitor(t *testing.T) {
	ended := make(chan string, 2)
	mon := newCallMonitor(ClientA, ended)

	mon.Accept(testcontainers.Log{LogType: testcontainers.StdoutLog, Content: []byte("INFO starting\n")})
	select {
	case <-mon.connected:
		t.Fatal("connected too early")
	default:
	}

	mon.Accept(testcontainers.Log{LogType: testcontainers.StdoutLog, Content: []byte("INFO call connected\n")})
	mon.Accept(testcontainers.Log{LogType: testcontainers.StdoutLog, Content: []byte("INFO call connected\n")})
	<-mon.connected

	mon.Accept(testcontainers.Log{LogType: testcontainers.StdoutLog, Content: []byte("INFO call ended\n")})
	assert.Equal(t, ClientA, <-ended)

	mon.detach()
	mon.Accept(testcontainers.Log{LogType: testcontainers.StdoutLog, Content: []byte("INFO call ended\n")})
	assert.Empty(t, ended)
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	assert.Equal(t, DefaultNetworkName, cfg.NetworkName)
	assert.Equal(t, DefaultStartupTimeout, cfg.StartupTimeout)
	assert.Equal(t, DefaultImages(), cfg.Images)
}
