package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
)

func success(group, tc, profile string, mos float64) spec.RunResult {
	return spec.RunResult{
		ID:        tc + "-" + profile,
		Group:     group,
		TestCase:  tc,
		Profile:   profile,
		Metrics:   map[spec.MetricKind]float64{spec.MetricMos: mos},
		Succeeded: true,
	}
}

func failure(group, tc, profile string) spec.RunResult {
	return spec.RunResult{
		ID:       tc + "-" + profile,
		Group:    group,
		TestCase: tc,
		Profile:  profile,
		Error:    &spec.ErrorInfo{Stage: "call", Message: "client_b ended the call early"},
	}
}

func values(s Series) []*float64 {
	out := make([]*float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

func TestFinalize_FailedRunLeavesGap(t *testing.T) {
	agg := NewAggregator("example", time.Now())
	profiles := []string{"none", "simple_loss_10", "simple_loss_30"}
	for _, p := range profiles {
		agg.Ingest(success("g", "with_dtx", p, 4.1))
		if p == "simple_loss_10" {
			agg.Ingest(failure("g", "no_dtx", p))
		} else {
			agg.Ingest(success("g", "no_dtx", p, 3.9))
		}
	}

	rep := agg.Finalize(spec.GroupConfig{Name: "g", ChartDimensions: []spec.ChartDimension{spec.DimensionMos}})

	assert.Equal(t, profiles, rep.XAxis)
	require.Len(t, rep.Charts, 1)
	chart := rep.Charts[0]
	require.Len(t, chart.Series, 2)

	assert.Equal(t, "with_dtx", chart.Series[0].Name)
	for _, v := range values(chart.Series[0]) {
		require.NotNil(t, v)
		assert.InDelta(t, 4.1, *v, 1e-9)
	}

	assert.Equal(t, "no_dtx", chart.Series[1].Name)
	gaps := values(chart.Series[1])
	require.Len(t, gaps, 3)
	assert.NotNil(t, gaps[0])
	assert.Nil(t, gaps[1], "failed run must be a gap, not a zero")
	assert.NotNil(t, gaps[2])

	require.Len(t, rep.Failures, 1)
	assert.Equal(t, Failure{TestCase: "no_dtx", Profile: "simple_loss_10", Stage: "call", Message: "client_b ended the call early"}, rep.Failures[0])
	assert.Equal(t, Counts{Total: 6, Succeeded: 5, Failed: 1}, rep.Counts)
}

func TestFinalize_GroupsAreIndependent(t *testing.T) {
	agg := NewAggregator("ptime_analysis", time.Now())
	agg.Ingest(success("over_loss", "ptime_20", "none", 4.2))
	agg.Ingest(success("over_bandwidth", "ptime_20", "limited_bandwidth_50", 2.5))
	agg.Ingest(success("over_loss", "ptime_20", "simple_loss_10", 3.8))

	loss := agg.Finalize(spec.GroupConfig{Name: "over_loss"})
	bw := agg.Finalize(spec.GroupConfig{Name: "over_bandwidth"})

	assert.Equal(t, []string{"none", "simple_loss_10"}, loss.XAxis)
	assert.Equal(t, []string{"limited_bandwidth_50"}, bw.XAxis)
	assert.Equal(t, 2, loss.Counts.Total)
	assert.Equal(t, 1, bw.Counts.Total)
	require.Len(t, loss.Charts, 1)
	assert.Equal(t, spec.DimensionMos, loss.Charts[0].Dimension)
}

func TestFinalize_XAxisOverride(t *testing.T) {
	agg := NewAggregator("example", time.Now())
	agg.Ingest(success("g", "c", "simple_loss_10", 3))
	agg.Ingest(success("g", "c", "none", 4))
	agg.Ingest(success("g", "c", "simple_loss_30", 2))

	rep := agg.Finalize(spec.GroupConfig{Name: "g", XAxisLabels: []string{"none", "simple_loss_30"}})

	assert.Equal(t, []string{"none", "simple_loss_30", "simple_loss_10"}, rep.XAxis)
	pts := rep.Charts[0].Series[0].Points
	assert.Equal(t, "none", pts[0].X)
	assert.InDelta(t, 4, *pts[0].Value, 1e-9)
	assert.InDelta(t, 3, *pts[2].Value, 1e-9)
}

func TestFinalize_NormalizedMissingIsGap(t *testing.T) {
	agg := NewAggregator("example", time.Now())
	agg.Ingest(success("g", "c", "none", 4))

	rep := agg.Finalize(spec.GroupConfig{
		Name:            "g",
		ChartDimensions: []spec.ChartDimension{spec.DimensionMos, spec.DimensionMosNormalized},
	})

	require.Len(t, rep.Charts, 2)
	assert.NotNil(t, rep.Charts[0].Series[0].Points[0].Value)
	assert.Nil(t, rep.Charts[1].Series[0].Points[0].Value)
}

func TestFinalize_TimeSeries(t *testing.T) {
	r := success("g", "ptime_20", "limit_default", 3.5)
	r.Series = map[spec.MetricKind][]spec.SeriesPoint{
		spec.MetricMos: {
			{Offset: 0, Value: 4.2},
			{Offset: 60 * time.Second, Value: 2.1},
			{Offset: 120 * time.Second, Value: 1.4},
			{Offset: 180 * time.Second, Value: 4.0},
		},
	}
	failed := failure("g", "ptime_60", "limit_default")

	agg := NewAggregator("changing_bandwidth_audio_test", time.Now())
	agg.Ingest(r)
	agg.Ingest(failed)

	rep := agg.Finalize(spec.GroupConfig{Name: "g", ChartDimensions: []spec.ChartDimension{spec.DimensionMosOverTime}})

	require.Len(t, rep.Charts, 1)
	chart := rep.Charts[0]
	require.Len(t, chart.Series, 1)
	assert.Equal(t, "ptime_20/limit_default", chart.Series[0].Name)
	require.Len(t, chart.Series[0].Points, 4)
	assert.Equal(t, "1m0s", chart.Series[0].Points[1].X)
	assert.Equal(t, 60*time.Second, *chart.Series[0].Points[1].Offset)
	assert.InDelta(t, 2.1, *chart.Series[0].Points[1].Value, 1e-9)
	assert.Len(t, rep.Failures, 1)
}

func TestWriteJSON(t *testing.T) {
	agg := NewAggregator("example", time.Now())
	agg.Ingest(success("g", "c", "none", 4))
	agg.Ingest(failure("g", "c", "simple_loss_10"))
	rep := agg.Finalize(spec.GroupConfig{Name: "g"})

	path := filepath.Join(t.TempDir(), "report_g.json")
	require.NoError(t, WriteJSON(rep, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "g", decoded["group"])

	charts := decoded["charts"].([]any)
	points := charts[0].(map[string]any)["series"].([]any)[0].(map[string]any)["points"].([]any)
	assert.Nil(t, points[1].(map[string]any)["value"])
}

func TestWriteTable(t *testing.T) {
	agg := NewAggregator("example", time.Now())
	agg.Ingest(success("g", "default", "none", 4.25))
	agg.Ingest(failure("g", "default", "simple_loss_10"))
	rep := agg.Finalize(spec.GroupConfig{Name: "g"})

	var buf bytes.Buffer
	WriteTable(&buf, []*GroupReport{rep}, false)
	out := buf.String()

	assert.Contains(t, out, "=== Test Set: example")
	assert.Contains(t, out, "--- Group: g ---")
	assert.Contains(t, out, "Runs (1/2 succeeded)")
	assert.Contains(t, out, "4.250")
	assert.Contains(t, out, "client_b ended the call early")
	assert.Equal(t, 1, strings.Count(out, "FAIL"))
}
