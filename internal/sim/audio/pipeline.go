package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const DefaultScoreTimeout = 2 * time.Minute

type Config struct {
	// MediaDir holds the reference sounds as <name>.wav.
	MediaDir string
	// RefDir receives preprocessing output.
	RefDir       string
	ScoreTimeout time.Duration
	// Concurrency bounds parallel preprocessing. Zero means one per sound.
	Concurrency   int
	NoSpectrogram bool
}

// Reference is a preprocessed reference sound.
type Reference struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	Spectrogram   string  `json:"spectrogram,omitempty"`
	BaselineScore float64 `json:"baseline_score"`
}

// Pipeline prepares reference media and scores captured calls through a Tool.
// It is safe for concurrent use.
type Pipeline struct {
	tool Tool
	cfg  Config

	mu     sync.RWMutex
	refs   map[string]Reference
	flight singleflight.Group
}

func NewPipeline(tool Tool, cfg Config) *Pipeline {
	if cfg.ScoreTimeout <= 0 {
		cfg.ScoreTimeout = DefaultScoreTimeout
	}
	return &Pipeline{
		tool: tool,
		cfg:  cfg,
		refs: make(map[string]Reference),
	}
}

func (p *Pipeline) ReferencePath(name string) string {
	return filepath.Join(p.cfg.MediaDir, name+".wav")
}

// Baseline returns the self-comparison score of a preprocessed reference.
func (p *Pipeline) Baseline(name string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ref, ok := p.refs[name]
	return ref.BaselineScore, ok
}

// PreprocessAll preprocesses independent sounds concurrently and fails on the
// first error.
func (p *Pipeline) PreprocessAll(ctx context.Context, names []string) error {
	g, ctx := errgroup.WithContext(ctx)
	if p.cfg.Concurrency > 0 {
		g.SetLimit(p.cfg.Concurrency)
	}
	for _, name := range names {
		g.Go(func() error {
			_, err := p.Preprocess(ctx, name)
			return err
		})
	}
	return g.Wait()
}

// Preprocess produces a spectrogram and a baseline score for one reference sound.
// Results are cached by name in memory and on disk; a second call does no work.
func (p *Pipeline) Preprocess(ctx context.Context, name string) (Reference, error) {
	p.mu.RLock()
	ref, ok := p.refs[name]
	p.mu.RUnlock()
	if ok {
		return ref, nil
	}

	v, err, _ := p.flight.Do(name, func() (any, error) {
		p.mu.RLock()
		ref, ok := p.refs[name]
		p.mu.RUnlock()
		if ok {
			return ref, nil
		}

		ref, err := p.preprocess(ctx, name)
		if err != nil {
			return Reference{}, err
		}
		p.mu.Lock()
		p.refs[name] = ref
		p.mu.Unlock()
		return ref, nil
	})
	if err != nil {
		return Reference{}, fmt.Errorf("preprocess %s: %w", name, err)
	}
	return v.(Reference), nil
}

func (p *Pipeline) preprocess(ctx context.Context, name string) (Reference, error) {
	ref := Reference{Name: name, Path: p.ReferencePath(name)}
	if _, err := os.Stat(ref.Path); err != nil {
		return ref, fmt.Errorf("reference sound: %w", err)
	}
	if err := os.MkdirAll(p.cfg.RefDir, 0o755); err != nil {
		return ref, fmt.Errorf("create reference directory: %w", err)
	}

	if !p.cfg.NoSpectrogram {
		spectrogram := filepath.Join(p.cfg.RefDir, name+".png")
		if !exists(spectrogram) {
			if err := p.spectrogram(ctx, ref.Path, spectrogram); err != nil {
				return ref, err
			}
		}
		ref.Spectrogram = spectrogram
	}

	scoreFile := filepath.Join(p.cfg.RefDir, name+".mos")
	if score, err := readScore(scoreFile); err == nil {
		ref.BaselineScore = score
		slog.Debug("Reusing baseline score", "sound", name, "mos", score)
		return ref, nil
	}

	score, err := p.score(ctx, ref.Path, ref.Path)
	if err != nil {
		return ref, err
	}
	ref.BaselineScore = score
	if err := os.WriteFile(scoreFile, []byte(strconv.FormatFloat(score, 'f', -1, 64)+"\n"), 0o644); err != nil {
		slog.Warn("Failed to persist baseline score", "sound", name, "error", err)
	}

	slog.Info("Reference preprocessed", "sound", name, "baseline_mos", score)
	return ref, nil
}

// bounded runs one tool invocation under ScoreTimeout.
func (p *Pipeline) bounded(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ScoreTimeout)
	defer cancel()

	err := fn(ctx)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s: %w", what, p.cfg.ScoreTimeout, context.DeadlineExceeded)
	}
	return err
}

func (p *Pipeline) score(ctx context.Context, reference, degraded string) (float64, error) {
	var mos float64
	err := p.bounded(ctx, "scoring "+filepath.Base(degraded), func(ctx context.Context) error {
		var err error
		mos, err = p.tool.Score(ctx, reference, degraded)
		return err
	})
	return mos, err
}

func (p *Pipeline) spectrogram(ctx context.Context, input, output string) error {
	return p.bounded(ctx, "spectrogram of "+filepath.Base(input), func(ctx context.Context) error {
		return p.tool.Spectrogram(ctx, input, output)
	})
}

func (p *Pipeline) trim(ctx context.Context, input, output string, start, length time.Duration) error {
	return p.bounded(ctx, "trimming "+filepath.Base(input), func(ctx context.Context) error {
		return p.tool.Trim(ctx, input, output, start, length)
	})
}

func (p *Pipeline) length(ctx context.Context, input string) (time.Duration, error) {
	var d time.Duration
	err := p.bounded(ctx, "measuring "+filepath.Base(input), func(ctx context.Context) error {
		var err error
		d, err = p.tool.Length(ctx, input)
		return err
	})
	return d, err
}

func readScore(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
