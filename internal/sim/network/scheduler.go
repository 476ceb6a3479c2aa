package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
)

// Impairer applies a network config to a participant's virtual interface,
// replacing whatever setting was there before.
type Impairer interface {
	Impair(ctx context.Context, cfg NetworkConfig) error
}

// Change is one applied timeline entry.
type Change struct {
	Offset    time.Duration `json:"offset"`
	AppliedAt time.Time     `json:"applied_at"`
	Skew      time.Duration `json:"skew"`
	Config    NetworkConfig `json:"config"`
}

// DefaultApplyTimeout bounds a single Impair call.
const DefaultApplyTimeout = 30 * time.Second

// Scheduler drives one run's impairment timeline from a single background
// goroutine. Entries are applied strictly in order and none is skipped; an entry
// whose offset has already passed is applied immediately.
type Scheduler struct {
	target       Impairer
	timeline     []NetworkConfigWithOffset
	applyTimeout time.Duration
	skew         *skewHistogram

	mu      sync.Mutex
	changes []Change

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	failed  chan error
}

// NewScheduler returns a scheduler for timeline. Each Impair call is given
// applyTimeout, or DefaultApplyTimeout when it is not positive.
func NewScheduler(target Impairer, timeline []NetworkConfigWithOffset, applyTimeout time.Duration) *Scheduler {
	if applyTimeout <= 0 {
		applyTimeout = DefaultApplyTimeout
	}
	return &Scheduler{
		target:       target,
		timeline:     timeline,
		applyTimeout: applyTimeout,
		skew:         newSkewHistogram(),
		done:         make(chan struct{}),
		failed:       make(chan error, 1),
	}
}

// Start applies the offset-0 entry before returning, so the initial network
// state is in place when the call-duration wait begins. Remaining entries are
// applied in the background relative to anchor.
func (s *Scheduler) Start(ctx context.Context, anchor time.Time) error {
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)

	if len(s.timeline) == 0 {
		close(s.done)
		return nil
	}

	if err := s.apply(ctx, anchor, s.timeline[0]); err != nil {
		close(s.done)
		return err
	}

	go s.loop(ctx, anchor, s.timeline[1:])
	return nil
}

func (s *Scheduler) loop(ctx context.Context, anchor time.Time, rest []NetworkConfigWithOffset) {
	defer close(s.done)

	for _, e := range rest {
		if wait := time.Until(anchor.Add(e.Offset)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err := s.apply(ctx, anchor, e); err != nil {
			select {
			case s.failed <- err:
			default:
			}
			return
		}
	}
}

func (s *Scheduler) apply(ctx context.Context, anchor time.Time, e NetworkConfigWithOffset) error {
	applyCtx, cancel := context.WithTimeout(ctx, s.applyTimeout)
	err := s.target.Impair(applyCtx, e.NetworkConfig)
	timedOut := errors.Is(applyCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()
	if timedOut {
		err = fmt.Errorf("timed out after %s: %w", s.applyTimeout, context.DeadlineExceeded)
	}
	if err != nil {
		return apperr.NewRunWrap(apperr.StageSchedule, fmt.Sprintf("apply network config at %s", e.Offset), err)
	}

	now := time.Now()
	skew := now.Sub(anchor.Add(e.Offset))
	s.skew.record(skew)

	s.mu.Lock()
	s.changes = append(s.changes, Change{Offset: e.Offset, AppliedAt: now, Skew: skew, Config: e.NetworkConfig})
	s.mu.Unlock()

	slog.Debug("Network config applied", "offset", e.Offset, "config", e.NetworkConfig.String(), "skew", skew)
	return nil
}

// Stop cancels the timer and returns once no further entry can be applied.
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	s.cancel()
	<-s.done
}

// Failed delivers the first error raised by a background application.
func (s *Scheduler) Failed() <-chan error {
	return s.failed
}

func (s *Scheduler) Changes() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Change, len(s.changes))
	copy(out, s.changes)
	return out
}

func (s *Scheduler) Skew() SkewStats {
	return s.skew.stats()
}
