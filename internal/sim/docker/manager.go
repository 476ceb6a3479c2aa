package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Manager owns the containers and network of one harness invocation. Signaling,
// relay and scoring services stay up across runs; the participants and the packet
// capture are created and removed per run.
type Manager struct {
	cfg Config
	cli *client.Client

	mu       sync.Mutex
	services map[string]testcontainers.Container
	active   *RunHandle
}

func NewManager(cfg Config) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, apperr.NewInfrastructureWrap("connect to docker", err)
	}

	return newManager(cfg, cli), nil
}

func newManager(cfg Config, cli *client.Client) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:      cfg,
		cli:      cli,
		services: make(map[string]testcontainers.Container),
	}
}

// Init creates the isolated network if it does not exist yet. No run can proceed
// without it, so failure is fatal.
func (m *Manager) Init(ctx context.Context) error {
	_, err := m.cli.NetworkInspect(ctx, m.cfg.NetworkName, network.InspectOptions{})
	if err == nil {
		slog.Debug("Reusing network", "network", m.cfg.NetworkName)
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return apperr.NewInfrastructureWrap("inspect network "+m.cfg.NetworkName, err)
	}

	if _, err := m.cli.NetworkCreate(ctx, m.cfg.NetworkName, network.CreateOptions{Driver: "bridge", Attachable: true}); err != nil {
		return apperr.NewInfrastructureWrap("create network "+m.cfg.NetworkName, err)
	}
	slog.Info("Network created", "network", m.cfg.NetworkName)
	return nil
}

// Close stops everything the manager started and removes the network.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if active != nil {
		if _, err := m.StopRun(ctx, active); err != nil {
			slog.Warn("Stopping active run on close", "run", active.req.ID, "error", err)
		}
	}

	m.mu.Lock()
	for name, c := range m.services {
		if err := testcontainers.TerminateContainer(c); err != nil {
			slog.Warn("Failed to terminate service", "container", name, "error", err)
		}
		delete(m.services, name)
	}
	m.mu.Unlock()

	if err := m.CleanNetwork(ctx); err != nil {
		slog.Warn("Failed to remove network", "network", m.cfg.NetworkName, "error", err)
	}
	return m.cli.Close()
}

// Exec runs cmd in one of the long-lived service containers, starting the
// services first if needed.
func (m *Manager) Exec(ctx context.Context, name string, cmd []string) (string, error) {
	m.mu.Lock()
	err := m.ensureServices(ctx)
	c, ok := m.services[name]
	m.mu.Unlock()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no service container %q", name)
	}
	return execIn(ctx, c, cmd)
}

// ensureServices must be called with mu held.
func (m *Manager) ensureServices(ctx context.Context) error {
	for _, name := range []string{SignalingServer, Turn, Visqol} {
		if _, ok := m.services[name]; ok {
			continue
		}
		c, err := m.startContainer(ctx, m.serviceRequest(name))
		if err != nil {
			return fmt.Errorf("start %s: %w", name, err)
		}
		m.services[name] = c
		slog.Info("Service started", "container", name)
	}
	return nil
}

func (m *Manager) serviceRequest(name string) testcontainers.ContainerRequest {
	req := testcontainers.ContainerRequest{
		Name:           name,
		Networks:       []string{m.cfg.NetworkName},
		NetworkAliases: map[string][]string{m.cfg.NetworkName: {name}},
		LogConsumerCfg: &testcontainers.LogConsumerConfig{
			Consumers: []testcontainers.LogConsumer{&logForwarder{container: name}},
		},
	}

	switch name {
	case SignalingServer:
		req.Image = m.cfg.Images.Signaling
		req.WaitingFor = wait.ForLog("Listening").WithStartupTimeout(m.cfg.StartupTimeout)
	case Turn:
		req.Image = m.cfg.Images.Turn
		req.Cmd = turnCommand(spec.DefaultRelayUsername, spec.DefaultRelayPassword)
		req.WaitingFor = wait.ForLog("listener opened").WithStartupTimeout(m.cfg.StartupTimeout)
	case Visqol:
		req.Image = m.cfg.Images.Visqol
		req.Entrypoint = []string{"sleep", "infinity"}
		req.WaitingFor = wait.ForExec([]string{"true"}).WithStartupTimeout(m.cfg.StartupTimeout)
		req.HostConfigModifier = func(hc *container.HostConfig) {
			hc.Binds = append(hc.Binds,
				m.cfg.MediaDir+":"+MediaMount+":ro",
				m.cfg.ResultsDir+":"+ResultsMount,
			)
		}
	}
	return req
}

func (m *Manager) startContainer(ctx context.Context, req testcontainers.ContainerRequest) (testcontainers.Container, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.StartupTimeout)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		// a container that was created but failed its wait strategy is still returned
		if c != nil {
			_ = testcontainers.TerminateContainer(c)
		}
		return nil, err
	}
	return c, nil
}

// execIn runs cmd and returns its combined output. A non-zero exit is an error
// carrying that output.
func execIn(ctx context.Context, c testcontainers.Container, cmd []string) (string, error) {
	code, r, err := c.Exec(ctx, cmd, tcexec.Multiplexed())
	if err != nil {
		return "", fmt.Errorf("exec %q: %w", strings.Join(cmd, " "), err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read output of %q: %w", strings.Join(cmd, " "), err)
	}
	if code != 0 {
		return string(out), fmt.Errorf("%q exited with %d: %s", strings.Join(cmd, " "), code, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
