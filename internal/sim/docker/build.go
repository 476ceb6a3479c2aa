package docker

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/testcontainers/testcontainers-go"
)

const dockerDir = "call_sim/docker"

type imageBuild struct {
	image      string
	context    string
	dockerfile string
}

// builds lists every image the harness needs. The participant CLI is built from
// the whole source tree, the services from their own directories.
func (m *Manager) builds() []imageBuild {
	dir := filepath.Join(m.cfg.Root, dockerDir)
	return []imageBuild{
		{image: m.cfg.Images.Client, context: m.cfg.Root, dockerfile: filepath.Join(dockerDir, "ringrtc", "Dockerfile")},
		{image: m.cfg.Images.Signaling, context: filepath.Join(dir, "signaling_server"), dockerfile: "Dockerfile"},
		{image: m.cfg.Images.Turn, context: filepath.Join(dir, "turn"), dockerfile: "Dockerfile"},
		{image: m.cfg.Images.Tcpdump, context: filepath.Join(dir, "tcpdump"), dockerfile: "Dockerfile"},
		{image: m.cfg.Images.Visqol, context: filepath.Join(dir, "visqol"), dockerfile: "Dockerfile"},
	}
}

// BuildImages builds all images. Any failure is fatal for the invocation.
func (m *Manager) BuildImages(ctx context.Context) error {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return apperr.NewInfrastructureWrap("create docker provider", err)
	}
	defer provider.Close()

	for _, b := range m.builds() {
		repo, tag := splitImage(b.image)
		out := newLogWriter(b.image)
		req := &testcontainers.ContainerRequest{
			FromDockerfile: testcontainers.FromDockerfile{
				Context:        b.context,
				Dockerfile:     b.dockerfile,
				Repo:           repo,
				Tag:            tag,
				KeepImage:      true,
				BuildLogWriter: out,
			},
		}

		slog.Info("Building image", "image", b.image, "context", b.context)
		_, err := provider.BuildImage(ctx, req)
		out.Close()
		if err != nil {
			return apperr.NewInfrastructureWrap("build image "+b.image, err)
		}
	}
	return nil
}

func splitImage(image string) (repo, tag string) {
	i := strings.LastIndex(image, ":")
	if i < 0 || strings.Contains(image[i:], "/") {
		return image, "latest"
	}
	return image[:i], image[i+1:]
}

// logWriter turns build output into debug log lines.
type logWriter struct {
	pw   *io.PipeWriter
	done chan struct{}
}

func newLogWriter(image string) *logWriter {
	pr, pw := io.Pipe()
	w := &logWriter{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		s := bufio.NewScanner(pr)
		for s.Scan() {
			slog.Debug("build output", "image", image, "line", s.Text())
		}
		_, _ = io.Copy(io.Discard, pr)
	}()
	return w
}

func (w *logWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *logWriter) Close() {
	_ = w.pw.Close()
	<-w.done
}
