package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/network"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
	"github.com/docker/docker/api/types/container"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RunHandle is one live call. It is the only thing allowed to change the
// participants' interface settings while the run is active.
type RunHandle struct {
	req       spec.RunRequest
	startedAt time.Time

	containers map[string]testcontainers.Container
	monitors   []*callMonitor
	ended      chan string

	exec func(ctx context.Context, role string, cmd []string) (string, error)
}

func newRunHandle(req spec.RunRequest) *RunHandle {
	h := &RunHandle{
		req:        req,
		containers: make(map[string]testcontainers.Container),
		ended:      make(chan string, 2),
	}
	h.exec = h.execContainer
	return h
}

func (h *RunHandle) StartedAt() time.Time {
	return h.startedAt
}

// Ended delivers the role of a participant that reported the call over.
func (h *RunHandle) Ended() <-chan string {
	return h.ended
}

// Impair shapes the egress of both participants so that both media directions
// see cfg. Removing a qdisc that is not there counts as success.
func (h *RunHandle) Impair(ctx context.Context, cfg network.NetworkConfig) error {
	cmd := network.TcCommand(netemInterface, cfg)
	for _, role := range []string{ClientA, ClientB} {
		out, err := h.exec(ctx, role, cmd)
		if err != nil {
			if cfg.IsZero() && noQdisc(out) {
				continue
			}
			return fmt.Errorf("%s: %w", role, err)
		}
	}
	return nil
}

func noQdisc(out string) bool {
	return strings.Contains(out, "No such file or directory") ||
		strings.Contains(out, "handle of zero") ||
		strings.Contains(out, "Invalid handle")
}

func (h *RunHandle) execContainer(ctx context.Context, role string, cmd []string) (string, error) {
	c, ok := h.containers[role]
	if !ok {
		return "", fmt.Errorf("container %s is not running", role)
	}
	return execIn(ctx, c, cmd)
}

// StartRun brings up both participants and the packet capture and returns once
// both report the call connected. On any failure everything started here is
// removed again before returning.
func (m *Manager) StartRun(ctx context.Context, req spec.RunRequest) (h *RunHandle, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, apperr.NewRun(apperr.StageStart, "run "+m.active.req.ID+" is still active")
	}

	// leftovers of a crashed invocation would clash with the fixed names
	if err := m.removeContainers(ctx, perRunContainers); err != nil {
		return nil, apperr.NewRunWrap(apperr.StageStart, "remove stale participants", err)
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return nil, apperr.NewRunWrap(apperr.StageStart, "create run directory", err)
	}
	if err := m.ensureServices(ctx); err != nil {
		return nil, apperr.NewRunWrap(apperr.StageStart, "start services", err)
	}

	h = newRunHandle(req)
	defer func() {
		if err != nil {
			h.terminate(context.WithoutCancel(ctx))
		}
	}()

	// callee first so that it is registered when the caller dials
	for _, role := range []string{ClientB, ClientA} {
		cfg := req.Case.ClientA
		if role == ClientB {
			cfg = req.Case.ClientB
		}
		mon := newCallMonitor(role, h.ended)
		c, err := m.startContainer(ctx, m.clientRequest(role, cfg, req, mon))
		if err != nil {
			return nil, apperr.NewRunWrap(apperr.StageStart, "start "+role, err)
		}
		h.containers[role] = c
		h.monitors = append(h.monitors, mon)
	}

	capture, err := m.startContainer(ctx, m.tcpdumpRequest(h.containers[ClientA].GetContainerID(), req.Dir))
	if err != nil {
		return nil, apperr.NewRunWrap(apperr.StageStart, "start "+Tcpdump, err)
	}
	h.containers[Tcpdump] = capture

	if err := h.awaitConnected(ctx, m.cfg.StartupTimeout); err != nil {
		return nil, err
	}

	h.startedAt = time.Now()
	m.active = h
	slog.Info("Call connected", "run", req.ID, "case", req.Case.Name, "profile", req.Profile)
	return h, nil
}

func (h *RunHandle) awaitConnected(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for _, mon := range h.monitors {
		select {
		case <-mon.connected:
		case role := <-h.ended:
			return apperr.NewRun(apperr.StageStart, role+" ended the call before it connected")
		case <-timer.C:
			return apperr.NewRun(apperr.StageStart, fmt.Sprintf("%s did not connect within %s", mon.container, timeout))
		case <-ctx.Done():
			return apperr.NewRunWrap(apperr.StageStart, "waiting for call to connect", ctx.Err())
		}
	}
	return nil
}

func (m *Manager) clientRequest(role string, cfg spec.CallConfig, req spec.RunRequest, mon *callMonitor) testcontainers.ContainerRequest {
	return testcontainers.ContainerRequest{
		Name:           role,
		Image:          m.cfg.Images.Client,
		Cmd:            clientCommand(role, cfg, req.Case.Duration()),
		Env:            clientEnv(role),
		Networks:       []string{m.cfg.NetworkName},
		NetworkAliases: map[string][]string{m.cfg.NetworkName: {role}},
		LogConsumerCfg: &testcontainers.LogConsumerConfig{
			Consumers: []testcontainers.LogConsumer{mon},
		},
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.CapAdd = append(hc.CapAdd, "NET_ADMIN")
			hc.Binds = append(hc.Binds,
				m.cfg.MediaDir+":"+MediaMount+":ro",
				req.Dir+":"+ReportMount,
			)
		},
	}
}

func (m *Manager) tcpdumpRequest(clientID, dir string) testcontainers.ContainerRequest {
	return testcontainers.ContainerRequest{
		Name:  Tcpdump,
		Image: m.cfg.Images.Tcpdump,
		Cmd:   tcpdumpCommand(),
		// tcpdump prints this to stderr once the capture is open
		WaitingFor: wait.ForLog("listening on").WithStartupTimeout(m.cfg.StartupTimeout),
		LogConsumerCfg: &testcontainers.LogConsumerConfig{
			Consumers: []testcontainers.LogConsumer{&logForwarder{container: Tcpdump}},
		},
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.NetworkMode = container.NetworkMode("container:" + clientID)
			hc.CapAdd = append(hc.CapAdd, "NET_ADMIN", "NET_RAW")
			hc.Binds = append(hc.Binds, dir+":"+ReportMount)
		},
	}
}

// StopRun ends the call, flushes the capture and recordings, and removes the
// per-run containers. Teardown always completes; the returned error only says
// whether the artifacts are usable.
func (m *Manager) StopRun(ctx context.Context, h *RunHandle) (spec.ArtifactSet, error) {
	m.mu.Lock()
	if m.active == h {
		m.active = nil
	}
	m.mu.Unlock()

	for _, mon := range h.monitors {
		mon.detach()
	}

	ctx = context.WithoutCancel(ctx)
	var errs []error

	// capture first, then the participants so their recordings are finalized
	timeout := defaultStopTimeout
	for _, role := range []string{Tcpdump, ClientA, ClientB} {
		c, ok := h.containers[role]
		if !ok {
			continue
		}
		if err := c.Stop(ctx, &timeout); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", role, err))
		}
	}
	for _, role := range []string{ClientA, ClientB} {
		if c, ok := h.containers[role]; ok {
			if err := saveLogs(ctx, c, filepath.Join(h.req.Dir, logFile(role))); err != nil {
				slog.Warn("Failed to save container logs", "container", role, "error", err)
			}
		}
	}
	h.terminate(ctx)

	arts := h.artifacts()
	for role, path := range map[string]string{ClientA: arts.ClientA.ReceivedAudio, ClientB: arts.ClientB.ReceivedAudio} {
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("%s recording: %w", role, err))
		}
	}

	if len(errs) > 0 {
		return arts, apperr.NewRunWrap(apperr.StageCapture, "collect artifacts", errors.Join(errs...))
	}
	slog.Debug("Run artifacts collected", "run", h.req.ID, "dir", arts.Dir)
	return arts, nil
}

func (h *RunHandle) artifacts() spec.ArtifactSet {
	dir := h.req.Dir
	arts := spec.ArtifactSet{
		Dir: dir,
		ClientA: spec.ClientArtifacts{
			ReceivedAudio: filepath.Join(dir, receivedAudioFile(ClientA)),
			Log:           filepath.Join(dir, logFile(ClientA)),
		},
		ClientB: spec.ClientArtifacts{
			ReceivedAudio: filepath.Join(dir, receivedAudioFile(ClientB)),
			Log:           filepath.Join(dir, logFile(ClientB)),
		},
		PacketCapture: filepath.Join(dir, captureFile),
	}
	// each side receives the video the other one sends
	if h.req.Case.ClientB.Video.InputName != "" {
		arts.ClientA.ReceivedVideo = filepath.Join(dir, receivedVideoFile(ClientA))
	}
	if h.req.Case.ClientA.Video.InputName != "" {
		arts.ClientB.ReceivedVideo = filepath.Join(dir, receivedVideoFile(ClientB))
	}
	return arts
}

// terminate removes every per-run container, whatever state it is in.
func (h *RunHandle) terminate(ctx context.Context) {
	for role, c := range h.containers {
		if err := testcontainers.TerminateContainer(c, testcontainers.StopContext(ctx)); err != nil {
			slog.Warn("Failed to remove participant", "container", role, "error", err)
		}
		delete(h.containers, role)
	}
}

func saveLogs(ctx context.Context, c testcontainers.Container, path string) error {
	r, err := c.Logs(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, r)
	return err
}
