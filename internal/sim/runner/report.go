package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/report"
)

// Report summarizes every run since the last report, one report per group, and
// clears the accumulated results.
func (r *Runner) Report(ctx context.Context) ([]*report.GroupReport, error) {
	r.mu.Lock()
	results, groups := r.results, r.groups
	r.results, r.groups = nil, nil
	r.mu.Unlock()

	agg := report.NewAggregator(r.cfg.TestSet, r.cfg.Timestamp)
	for _, res := range results {
		agg.Ingest(res)
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	reports := make([]*report.GroupReport, 0, len(groups))
	for _, g := range groups {
		rep := agg.Finalize(g)
		path := filepath.Join(r.cfg.OutputDir, "report_"+g.Name+".json")
		if err := report.WriteJSON(rep, path); err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		slog.Info("Report written", "group", g.Name, "path", path,
			"succeeded", rep.Counts.Succeeded, "failed", rep.Counts.Failed)
		reports = append(reports, rep)
	}

	summary, err := os.Create(filepath.Join(r.cfg.OutputDir, "summary.txt"))
	if err != nil {
		return nil, fmt.Errorf("create summary: %w", err)
	}
	report.WriteTable(summary, reports, false)
	if err := summary.Close(); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}

	if r.out != nil {
		report.WriteTable(r.out, reports, r.cfg.Colored)
	}

	if r.sink != nil && len(results) > 0 {
		if err := r.sink.Save(ctx, results); err != nil {
			slog.Warn("Failed to store results", "test_set", r.cfg.TestSet, "error", err)
		}
	}

	return reports, nil
}
