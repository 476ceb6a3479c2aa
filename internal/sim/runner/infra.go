package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/audio"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/docker"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/network"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
)

// Call is a connected call. Impair is only ever called by the run's scheduler.
type Call interface {
	network.Impairer
	StartedAt() time.Time
	Ended() <-chan string
}

type Infrastructure interface {
	StartRun(ctx context.Context, req spec.RunRequest) (Call, error)
	StopRun(ctx context.Context, call Call) (spec.ArtifactSet, error)
	// Reset removes every container so the next run starts from scratch.
	Reset(ctx context.Context) error
}

type Scorer interface {
	PreprocessAll(ctx context.Context, names []string) error
	Score(ctx context.Context, req audio.ScoreRequest) (audio.Scores, error)
}

type ResultSink interface {
	Save(ctx context.Context, results []spec.RunResult) error
}

// DockerInfrastructure runs calls in containers through a docker.Manager.
type DockerInfrastructure struct {
	m *docker.Manager
}

func NewDockerInfrastructure(m *docker.Manager) *DockerInfrastructure {
	return &DockerInfrastructure{m: m}
}

func (d *DockerInfrastructure) StartRun(ctx context.Context, req spec.RunRequest) (Call, error) {
	h, err := d.m.StartRun(ctx, req)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (d *DockerInfrastructure) StopRun(ctx context.Context, call Call) (spec.ArtifactSet, error) {
	h, ok := call.(*docker.RunHandle)
	if !ok {
		return spec.ArtifactSet{}, fmt.Errorf("unexpected call type %T", call)
	}
	return d.m.StopRun(ctx, h)
}

func (d *DockerInfrastructure) Reset(ctx context.Context) error {
	return d.m.CleanUp(ctx, docker.AllContainers)
}
