package runner

import (
	"io"
	"time"
)

type Config struct {
	TestSet string
	// OutputDir is this invocation's output root; runs are written below it as
	// <group>/<case>/<profile>.
	OutputDir string
	Timestamp time.Time
	Colored   bool
	// ImpairTimeout bounds each network config change applied to a call.
	// Zero uses network.DefaultApplyTimeout.
	ImpairTimeout time.Duration
}

type Option func(*Runner)

// WithSink stores every reported result set in s.
func WithSink(s ResultSink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithOutput prints the summary table to w after each report.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithCallTimer replaces the timer used to wait out the call duration.
func WithCallTimer(f func(time.Duration) <-chan time.Time) Option {
	return func(r *Runner) { r.callTimer = f }
}
