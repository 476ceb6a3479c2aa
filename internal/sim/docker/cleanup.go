package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
)

// CleanUp force-removes the named containers. Containers that do not exist are
// logged and skipped, so it is safe to call before and after any run.
func (m *Manager) CleanUp(ctx context.Context, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range names {
		delete(m.services, name)
	}
	return m.removeContainers(ctx, names)
}

func (m *Manager) removeContainers(ctx context.Context, names []string) error {
	var errs []error
	for _, name := range names {
		err := m.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true, RemoveVolumes: true})
		switch {
		case err == nil:
			slog.Info("Container removed", "container", name)
		case errdefs.IsNotFound(err):
			slog.Debug("Cleanup skipped", "warning", &apperr.CleanupWarning{Resource: "container " + name})
		default:
			errs = append(errs, fmt.Errorf("remove container %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// CleanNetwork removes the harness network. A missing network is not an error.
func (m *Manager) CleanNetwork(ctx context.Context) error {
	err := m.cli.NetworkRemove(ctx, m.cfg.NetworkName)
	switch {
	case err == nil:
		slog.Info("Network removed", "network", m.cfg.NetworkName)
		return nil
	case errdefs.IsNotFound(err):
		slog.Warn("Cleanup skipped", "warning", &apperr.CleanupWarning{Resource: "network " + m.cfg.NetworkName})
		return nil
	default:
		return fmt.Errorf("remove network %s: %w", m.cfg.NetworkName, err)
	}
}
