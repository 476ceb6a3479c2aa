package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Tool is the external media tooling. Paths are host paths.
type Tool interface {
	// Score compares degraded against reference and returns a MOS.
	Score(ctx context.Context, reference, degraded string) (float64, error)
	Spectrogram(ctx context.Context, input, output string) error
	Trim(ctx context.Context, input, output string, start, length time.Duration) error
	Length(ctx context.Context, input string) (time.Duration, error)
}

// Executor runs a command inside a named container and returns its output.
type Executor interface {
	Exec(ctx context.Context, container string, cmd []string) (string, error)
}

// Mount maps a host directory to its location inside the tool container.
type Mount struct {
	Host      string
	Container string
}

// ContainerTool runs ViSQOL and sox inside the scoring container.
type ContainerTool struct {
	exec      Executor
	container string
	mounts    []Mount
}

func NewContainerTool(exec Executor, container string, mounts ...Mount) *ContainerTool {
	return &ContainerTool{exec: exec, container: container, mounts: mounts}
}

var mosPattern = regexp.MustCompile(`MOS-LQO:\s+([0-9]+(?:\.[0-9]+)?)`)

func (t *ContainerTool) Score(ctx context.Context, reference, degraded string) (float64, error) {
	ref, err := t.containerPath(reference)
	if err != nil {
		return 0, err
	}
	deg, err := t.containerPath(degraded)
	if err != nil {
		return 0, err
	}

	out, err := t.exec.Exec(ctx, t.container, []string{
		"visqol",
		"--reference_file", ref,
		"--degraded_file", deg,
		"--use_speech_mode",
	})
	if err != nil {
		return 0, fmt.Errorf("visqol: %w", err)
	}
	return parseMOS(out)
}

func parseMOS(out string) (float64, error) {
	m := mosPattern.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("no MOS-LQO in visqol output: %q", strings.TrimSpace(out))
	}
	return strconv.ParseFloat(m[1], 64)
}

func (t *ContainerTool) Spectrogram(ctx context.Context, input, output string) error {
	in, err := t.containerPath(input)
	if err != nil {
		return err
	}
	out, err := t.containerPath(output)
	if err != nil {
		return err
	}
	if _, err := t.exec.Exec(ctx, t.container, []string{"sox", in, "-n", "spectrogram", "-o", out}); err != nil {
		return fmt.Errorf("sox spectrogram: %w", err)
	}
	return nil
}

func (t *ContainerTool) Trim(ctx context.Context, input, output string, start, length time.Duration) error {
	in, err := t.containerPath(input)
	if err != nil {
		return err
	}
	out, err := t.containerPath(output)
	if err != nil {
		return err
	}
	if _, err := t.exec.Exec(ctx, t.container, []string{"sox", in, out, "trim", seconds(start), seconds(length)}); err != nil {
		return fmt.Errorf("sox trim: %w", err)
	}
	return nil
}

func (t *ContainerTool) Length(ctx context.Context, input string) (time.Duration, error) {
	in, err := t.containerPath(input)
	if err != nil {
		return 0, err
	}
	out, err := t.exec.Exec(ctx, t.container, []string{"soxi", "-D", in})
	if err != nil {
		return 0, fmt.Errorf("soxi: %w", err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse length of %s: %w", input, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (t *ContainerTool) containerPath(host string) (string, error) {
	for _, m := range t.mounts {
		rel, err := filepath.Rel(m.Host, host)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.ToSlash(filepath.Join(m.Container, rel)), nil
	}
	return "", fmt.Errorf("%s is not visible to the %s container", host, t.container)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
