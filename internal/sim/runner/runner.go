package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/audio"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/docker"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/network"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/report"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
	"github.com/google/uuid"
)

// Runner executes the test matrix of one test set. Runs are strictly
// sequential because participants and the emulated network are singletons.
type Runner struct {
	cfg    Config
	infra  Infrastructure
	scorer Scorer

	sink      ResultSink
	out       io.Writer
	callTimer func(time.Duration) <-chan time.Time

	// held for the whole of Run
	runMu sync.Mutex

	mu      sync.Mutex
	groups  []spec.GroupConfig
	results []spec.RunResult
}

func New(cfg Config, infra Infrastructure, scorer Scorer, opts ...Option) *Runner {
	if cfg.Timestamp.IsZero() {
		cfg.Timestamp = time.Now()
	}
	r := &Runner{
		cfg:       cfg,
		infra:     infra,
		scorer:    scorer,
		callTimer: time.After,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunTestSet preprocesses the set's reference sounds, runs every group and
// writes the report. On cancellation the runs finished so far are still
// reported.
func (r *Runner) RunTestSet(ctx context.Context, ts *spec.TestSet) error {
	if err := r.Preprocess(ctx, ts.Preprocess); err != nil {
		return err
	}
	for _, rs := range ts.Runs {
		if _, err := r.Run(ctx, rs.Group, rs.Cases, spec.Profiles(rs.Profiles)); err != nil {
			if ctx.Err() != nil {
				// report whatever finished before the interrupt
				if _, rerr := r.Report(context.WithoutCancel(ctx)); rerr != nil {
					slog.Warn("Failed to report partial results", "error", rerr)
				}
			}
			return fmt.Errorf("run group %q: %w", rs.Group.Name, err)
		}
	}
	_, err := r.Report(ctx)
	return err
}

// Preprocess prepares reference sounds concurrently. Without a baseline no run
// can be normalized, so a failure here aborts the test set.
func (r *Runner) Preprocess(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	slog.Info("Preprocessing reference sounds", "sounds", names)
	if err := r.scorer.PreprocessAll(ctx, names); err != nil {
		return apperr.NewInfrastructureWrap("preprocess reference sounds", err)
	}
	return nil
}

// Run executes cases × profiles in the given order. A failing run is recorded
// and the matrix continues; only a configuration error or cancellation stops it.
func (r *Runner) Run(ctx context.Context, group spec.GroupConfig, cases []spec.TestCaseConfig, profiles []network.Profile) ([]spec.RunResult, error) {
	cases = slices.Clone(cases)
	if err := spec.ValidateRun(&group, cases, profiles); err != nil {
		return nil, err
	}
	if err := r.addGroup(group); err != nil {
		return nil, err
	}

	timelines := make(map[string][]network.NetworkConfigWithOffset, len(cases)*len(profiles))
	for _, tc := range cases {
		for _, p := range profiles {
			tl, err := network.Schedule(p, tc.Duration())
			if err != nil {
				return nil, apperr.NewConfigurationWrap(fmt.Sprintf("test case %q, profile %q", tc.Name, p.Label()), err)
			}
			timelines[tc.Name+"/"+p.Label()] = tl
		}
	}

	r.runMu.Lock()
	defer r.runMu.Unlock()

	slog.Info("Running group", "group", group.Name, "cases", len(cases), "profiles", len(profiles))

	results := make([]spec.RunResult, 0, len(cases)*len(profiles))
	for _, tc := range cases {
		for _, p := range profiles {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			res := r.runOne(ctx, group.Name, tc, p.Label(), timelines[tc.Name+"/"+p.Label()])
			results = append(results, res)

			r.mu.Lock()
			r.results = append(r.results, res)
			r.mu.Unlock()
		}
	}
	return results, nil
}

func (r *Runner) addGroup(group spec.GroupConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.groups {
		if g.Name == group.Name {
			return apperr.NewConfiguration(fmt.Sprintf("group %q already ran in this test set", group.Name))
		}
	}
	r.groups = append(r.groups, group)
	return nil
}

func (r *Runner) runOne(ctx context.Context, group string, tc spec.TestCaseConfig, profile string, timeline []network.NetworkConfigWithOffset) spec.RunResult {
	req := spec.RunRequest{
		ID:      uuid.NewString(),
		TestSet: r.cfg.TestSet,
		Group:   group,
		Case:    tc,
		Profile: profile,
		Dir:     filepath.Join(r.cfg.OutputDir, group, tc.Name, profile),
	}
	res := spec.RunResult{
		ID:        req.ID,
		TestSet:   req.TestSet,
		Group:     group,
		TestCase:  tc.Name,
		Profile:   profile,
		StartedAt: time.Now(),
		Artifacts: spec.ArtifactSet{Dir: req.Dir},
	}

	log := slog.With("run", req.ID, "group", group, "case", tc.Name, "profile", profile)
	log.Info("Starting run", "duration", tc.Duration(), "changes", len(timeline))

	err := r.execute(ctx, req, timeline, &res)
	res.Duration = time.Since(res.StartedAt)

	if err != nil {
		res.Error = spec.NewErrorInfo(err)
		log.Warn("Run failed", "error", err)
		if needsReset(err) {
			if rerr := r.infra.Reset(context.WithoutCancel(ctx)); rerr != nil {
				log.Warn("Failed to reset infrastructure", "error", rerr)
			}
		}
	} else {
		res.Succeeded = true
		log.Info("Run finished", "mos", res.Metrics[spec.MetricMos], "skew_p99", res.ScheduleSkew.P99)
	}

	if err := os.MkdirAll(req.Dir, 0o755); err == nil {
		if err := report.WriteJSON(res, filepath.Join(req.Dir, "run.json")); err != nil {
			log.Warn("Failed to write run result", "error", err)
		}
	}
	return res
}

// execute drives one run through start, schedule, call, capture and score. The
// call is always stopped, even when a later stage fails.
func (r *Runner) execute(ctx context.Context, req spec.RunRequest, timeline []network.NetworkConfigWithOffset, res *spec.RunResult) error {
	call, err := r.infra.StartRun(ctx, req)
	if err != nil {
		return err
	}
	stopped := false
	defer func() {
		if stopped {
			return
		}
		if _, err := r.infra.StopRun(ctx, call); err != nil {
			slog.Warn("Failed to stop run", "run", req.ID, "error", err)
		}
	}()

	sched := network.NewScheduler(call, timeline, r.cfg.ImpairTimeout)
	if err := sched.Start(ctx, call.StartedAt()); err != nil {
		return err
	}
	waitErr := r.awaitCall(ctx, call, sched, req.Case.Duration())
	sched.Stop()
	res.Impairments = sched.Changes()
	res.ScheduleSkew = sched.Skew()

	stopped = true
	arts, stopErr := r.infra.StopRun(ctx, call)
	res.Artifacts = arts
	if waitErr != nil {
		return waitErr
	}
	if stopErr != nil {
		return stopErr
	}

	scores, err := r.scorer.Score(ctx, audio.ScoreRequest{Case: req.Case, Timeline: timeline, Artifacts: arts})
	if err != nil {
		return err
	}
	res.Metrics = scores.Metrics
	if len(scores.Series) > 0 {
		res.Series = scores.Series
	}
	res.ClientScores = scores.Directions
	res.Artifacts.ClientA.Spectrogram = scores.Spectrograms[docker.ClientA]
	res.Artifacts.ClientB.Spectrogram = scores.Spectrograms[docker.ClientB]
	return nil
}

// awaitCall waits out the call duration measured from call start.
func (r *Runner) awaitCall(ctx context.Context, call Call, sched *network.Scheduler, d time.Duration) error {
	select {
	case <-r.callTimer(time.Until(call.StartedAt().Add(d))):
		return nil
	case role := <-call.Ended():
		return apperr.NewRun(apperr.StageCall, role+" ended the call early")
	case err := <-sched.Failed():
		return err
	case <-ctx.Done():
		return apperr.NewRunWrap(apperr.StageCall, "call interrupted", ctx.Err())
	}
}

// needsReset reports whether a failure may have left services in a bad state.
func needsReset(err error) bool {
	var re *apperr.RunError
	if !errors.As(err, &re) {
		return true
	}
	return re.Stage == apperr.StageStart
}
