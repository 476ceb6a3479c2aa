package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
)

// WriteTable prints a plain-text summary of the group reports. Status is the last
// column so colour codes do not disturb alignment.
func WriteTable(w io.Writer, reports []*GroupReport, colored bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	ok, fail := status(colored)

	for i, rep := range reports {
		if i == 0 {
			fmt.Fprintf(tw, "\n=== Test Set: %s (%s) ===\n", rep.Meta.TestSet, rep.Meta.Timestamp.Format(time.RFC3339))
		}
		fmt.Fprintf(tw, "\n--- Group: %s ---\n\n", rep.Group)
		writeRunTable(tw, rep, ok, fail)
		writeFailures(tw, rep)
	}

	tw.Flush()
}

func status(colored bool) (ok, fail string) {
	if !colored {
		return "OK", "FAIL"
	}
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	green.EnableColor()
	red.EnableColor()
	return green.Sprint("OK"), red.Sprint("FAIL")
}

func writeRunTable(tw *tabwriter.Writer, rep *GroupReport, ok, fail string) {
	fmt.Fprintf(tw, "Runs (%d/%d succeeded)\n\n", rep.Counts.Succeeded, rep.Counts.Total)

	header := []string{"Test Case", "Profile", "MOS", "MOS (norm)", "Duration", "Skew p99", "Status"}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))

	for _, e := range rep.Runs {
		st := ok
		if !e.Succeeded {
			st = fail
		}
		row := []string{
			e.TestCase,
			e.Profile,
			fmtMetric(e.Metrics, spec.MetricMos),
			fmtMetric(e.Metrics, spec.MetricMosNormalized),
			fmtDuration(e.Duration),
			fmtDuration(e.ScheduleSkew),
			st,
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	fmt.Fprintln(tw)
}

func writeFailures(tw *tabwriter.Writer, rep *GroupReport) {
	if len(rep.Failures) == 0 {
		return
	}
	fmt.Fprintf(tw, "Failures\n\n")
	fmt.Fprintln(tw, "Test Case\tProfile\tStage\tError")
	fmt.Fprintln(tw, "---\t---\t---\t---")
	for _, f := range rep.Failures {
		stage := f.Stage
		if stage == "" {
			stage = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.TestCase, f.Profile, stage, f.Message)
	}
	fmt.Fprintln(tw)
}

func fmtMetric(m map[spec.MetricKind]float64, kind spec.MetricKind) string {
	v, ok := m[kind]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}

func fmtDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "-"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}
