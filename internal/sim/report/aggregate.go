package report

import (
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
)

// Aggregator collects run results and summarizes them per group. Results are
// read in ingestion order so series are reproducible for identical inputs.
type Aggregator struct {
	testSet   string
	timestamp time.Time
	results   []spec.RunResult
}

func NewAggregator(testSet string, timestamp time.Time) *Aggregator {
	return &Aggregator{testSet: testSet, timestamp: timestamp}
}

func (a *Aggregator) Ingest(r spec.RunResult) {
	a.results = append(a.results, r)
}

// Finalize builds the report of one group from the results ingested for it.
// Other groups' results are ignored.
func (a *Aggregator) Finalize(group spec.GroupConfig) *GroupReport {
	var results []spec.RunResult
	for _, r := range a.results {
		if r.Group == group.Name {
			results = append(results, r)
		}
	}

	rep := &GroupReport{
		Meta: Meta{
			TestSet:     a.testSet,
			Timestamp:   a.timestamp,
			Environment: NewEnvironmentInfo(),
		},
		Group:  group.Name,
		XAxis:  xAxis(group.XAxisLabels, results),
		Config: group,
	}

	cases := caseOrder(results)
	dimensions := group.ChartDimensions
	if len(dimensions) == 0 {
		dimensions = []spec.ChartDimension{spec.DimensionMos}
	}
	for _, dim := range dimensions {
		if dim.TimeSeries() {
			rep.Charts = append(rep.Charts, timeChart(dim, results))
		} else {
			rep.Charts = append(rep.Charts, labelChart(dim, cases, rep.XAxis, results))
		}
	}

	for _, r := range results {
		rep.Runs = append(rep.Runs, RunEntry{
			ID:           r.ID,
			TestCase:     r.TestCase,
			Profile:      r.Profile,
			Metrics:      r.Metrics,
			Duration:     r.Duration,
			ScheduleSkew: r.ScheduleSkew.P99,
			Dir:          r.Artifacts.Dir,
			Succeeded:    r.Succeeded,
		})
		rep.Counts.Total++
		if r.Succeeded {
			rep.Counts.Succeeded++
			continue
		}
		rep.Counts.Failed++
		f := Failure{TestCase: r.TestCase, Profile: r.Profile, Message: "unknown error"}
		if r.Error != nil {
			f.Stage = r.Error.Stage
			f.Message = r.Error.Message
		}
		rep.Failures = append(rep.Failures, f)
	}

	return rep
}

// xAxis lists the explicit labels first, then any other label in first-seen order.
func xAxis(explicit []string, results []spec.RunResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range explicit {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	for _, r := range results {
		if !seen[r.Profile] {
			seen[r.Profile] = true
			out = append(out, r.Profile)
		}
	}
	return out
}

func caseOrder(results []spec.RunResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range results {
		if !seen[r.TestCase] {
			seen[r.TestCase] = true
			out = append(out, r.TestCase)
		}
	}
	return out
}

func labelChart(dim spec.ChartDimension, cases, labels []string, results []spec.RunResult) Chart {
	metric := dim.Metric()
	values := make(map[string]float64)
	for _, r := range results {
		if !r.Succeeded {
			continue
		}
		if v, ok := r.Metrics[metric]; ok {
			values[r.Key()] = v
		}
	}

	chart := Chart{Dimension: dim, Metric: metric}
	for _, c := range cases {
		s := Series{Name: c, Points: make([]Point, 0, len(labels))}
		for _, l := range labels {
			p := Point{X: l}
			if v, ok := values[c+"/"+l]; ok {
				p.Value = &v
			}
			s.Points = append(s.Points, p)
		}
		chart.Series = append(chart.Series, s)
	}
	return chart
}

// timeChart plots each successful run's segment series against segment start.
func timeChart(dim spec.ChartDimension, results []spec.RunResult) Chart {
	metric := dim.Metric()
	chart := Chart{Dimension: dim, Metric: metric}
	for _, r := range results {
		if !r.Succeeded {
			continue
		}
		series := r.Series[metric]
		if len(series) == 0 {
			continue
		}
		s := Series{Name: r.Key(), Points: make([]Point, 0, len(series))}
		for _, pt := range series {
			offset, value := pt.Offset, pt.Value
			s.Points = append(s.Points, Point{X: offset.String(), Offset: &offset, Value: &value})
		}
		chart.Series = append(chart.Series, s)
	}
	return chart
}
