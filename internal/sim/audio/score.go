package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/network"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
)

// ScoreRequest describes one finished run.
type ScoreRequest struct {
	Case      spec.TestCaseConfig
	Timeline  []network.NetworkConfigWithOffset
	Artifacts spec.ArtifactSet
}

type Scores struct {
	Metrics    map[spec.MetricKind]float64
	Series     map[spec.MetricKind][]spec.SeriesPoint
	Directions []spec.DirectionScore
	// Spectrograms of received audio, by receiving role.
	Spectrograms map[string]string
}

type direction struct {
	receiver string
	sender   spec.CallConfig
	degraded string
}

// Score rates the audio each participant received against what the other side
// sent. Directions whose sender sends silence are skipped. Full mode yields one
// score per direction; Chopped mode scores every segment and keeps the series.
func (p *Pipeline) Score(ctx context.Context, req ScoreRequest) (Scores, error) {
	scores := Scores{
		Metrics:      make(map[spec.MetricKind]float64),
		Series:       make(map[spec.MetricKind][]spec.SeriesPoint),
		Spectrograms: make(map[string]string),
	}

	dirs := []direction{
		{receiver: "client_a", sender: req.Case.ClientB, degraded: req.Artifacts.ClientA.ReceivedAudio},
		{receiver: "client_b", sender: req.Case.ClientA, degraded: req.Artifacts.ClientB.ReceivedAudio},
	}

	for _, d := range dirs {
		if !d.sender.SendsAudio() {
			continue
		}
		ds, err := p.scoreDirection(ctx, req, d)
		if err != nil {
			return scores, apperr.NewRunWrap(apperr.StageScore, "score audio received by "+d.receiver, err)
		}
		scores.Directions = append(scores.Directions, ds)

		if d.sender.Audio.GenerateSpectrogram {
			out := strings.TrimSuffix(d.degraded, filepath.Ext(d.degraded)) + ".png"
			if err := p.spectrogram(ctx, d.degraded, out); err != nil {
				slog.Warn("Failed to render spectrogram", "file", d.degraded, "error", err)
			} else {
				scores.Spectrograms[d.receiver] = out
			}
		}
	}

	if len(scores.Directions) == 0 {
		return scores, nil
	}

	var mos []float64
	var series [][]spec.SeriesPoint
	var normalized []float64
	var normalizedSeries [][]spec.SeriesPoint
	for _, ds := range scores.Directions {
		mos = append(mos, ds.Mos)
		if len(ds.Series) > 0 {
			series = append(series, ds.Series)
		}
		if baseline, ok := p.Baseline(ds.Reference); ok && baseline > 0 {
			normalized = append(normalized, ds.Mos/baseline)
			if len(ds.Series) > 0 {
				normalizedSeries = append(normalizedSeries, scale(ds.Series, 1/baseline))
			}
		}
	}

	scores.Metrics[spec.MetricMos] = mean(mos)
	if len(series) > 0 {
		scores.Series[spec.MetricMos] = mergeSeries(series)
	}
	if len(normalized) > 0 {
		scores.Metrics[spec.MetricMosNormalized] = mean(normalized)
	}
	if len(normalizedSeries) > 0 {
		scores.Series[spec.MetricMosNormalized] = mergeSeries(normalizedSeries)
	}
	return scores, nil
}

func (p *Pipeline) scoreDirection(ctx context.Context, req ScoreRequest, d direction) (spec.DirectionScore, error) {
	name := d.sender.Audio.InputName
	reference := p.ReferencePath(name)
	ds := spec.DirectionScore{Receiver: d.receiver, Reference: name}

	if _, err := os.Stat(d.degraded); err != nil {
		return ds, fmt.Errorf("recording: %w", err)
	}

	if d.sender.Audio.AnalysisMode != spec.AnalysisChopped {
		mos, err := p.score(ctx, reference, d.degraded)
		if err != nil {
			return ds, err
		}
		ds.Mos = mos
		return ds, nil
	}

	refLength, err := p.length(ctx, reference)
	if err != nil {
		return ds, err
	}
	segments := Segments(req.Case.Duration(), refLength, network.Boundaries(req.Timeline))
	if len(segments) == 0 {
		return ds, fmt.Errorf("no segments for a %s call with a %s reference", req.Case.Duration(), refLength)
	}

	dir := filepath.Join(filepath.Dir(d.degraded), "segments")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ds, err
	}

	values := make([]float64, 0, len(segments))
	for i, seg := range segments {
		deg := filepath.Join(dir, fmt.Sprintf("%s_%03d.wav", d.receiver, i))
		ref := filepath.Join(dir, fmt.Sprintf("%s_ref_%03d.wav", d.receiver, i))
		if err := p.trim(ctx, d.degraded, deg, seg.Start, seg.Length); err != nil {
			return ds, err
		}
		if err := p.trim(ctx, reference, ref, seg.RefOffset, seg.Length); err != nil {
			return ds, err
		}
		mos, err := p.score(ctx, ref, deg)
		if err != nil {
			return ds, fmt.Errorf("segment at %s: %w", seg.Start, err)
		}
		values = append(values, mos)
		ds.Series = append(ds.Series, spec.SeriesPoint{Offset: seg.Start, Value: mos})
	}
	ds.Mos = mean(values)
	return ds, nil
}

// mergeSeries averages points that share an offset across directions.
func mergeSeries(all [][]spec.SeriesPoint) []spec.SeriesPoint {
	sums := make(map[time.Duration][]float64)
	for _, s := range all {
		for _, pt := range s {
			sums[pt.Offset] = append(sums[pt.Offset], pt.Value)
		}
	}
	out := make([]spec.SeriesPoint, 0, len(sums))
	for offset, vs := range sums {
		out = append(out, spec.SeriesPoint{Offset: offset, Value: mean(vs)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

func scale(s []spec.SeriesPoint, f float64) []spec.SeriesPoint {
	out := make([]spec.SeriesPoint, len(s))
	for i, pt := range s {
		out[i] = spec.SeriesPoint{Offset: pt.Offset, Value: pt.Value * f}
	}
	return out
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
