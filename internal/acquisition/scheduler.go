// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	xglog "github.com/ManuGH/courtrec/internal/log"
	"github.com/rs/zerolog"
)

// ErrRunLocked means another process holds the run lock.
var ErrRunLocked = errors.New("acquisition run already in progress")

// Clock interface for mocking time
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer interface for mocking time.Timer
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// RealClock implements Clock using standard time package
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
func (RealClock) NewTimer(d time.Duration) Timer {
	return &RealTimer{t: time.NewTimer(d)}
}

// RealTimer wraps time.Timer
type RealTimer struct {
	t *time.Timer
}

func (r *RealTimer) C() <-chan time.Time        { return r.t.C }
func (r *RealTimer) Stop() bool                 { return r.t.Stop() }
func (r *RealTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

// Runner executes one acquisition pass.
type Runner interface {
	Run(ctx context.Context, date, trigger string) (*RunSummary, error)
}

// Locker guards against overlapping runs across processes. TryLock returns
// acquired=false without error when someone else holds the lock.
type Locker interface {
	TryLock(ctx context.Context) (release func(context.Context) error, acquired bool, err error)
}

// Scheduler fires the driver once an hour at a fixed minute offset.
type Scheduler struct {
	runner Runner
	minute int
	loc    *time.Location
	locker Locker
	clock  Clock
	logger zerolog.Logger

	// OnRun, when set, observes every completed run. Used by tests.
	OnRun func(*RunSummary, error)
}

// NewScheduler creates a scheduler. locker may be nil.
func NewScheduler(runner Runner, minute int, loc *time.Location, locker Locker) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		runner: runner,
		minute: ((minute % 60) + 60) % 60,
		loc:    loc,
		locker: locker,
		clock:  RealClock{},
		logger: xglog.WithComponent("acquisition.scheduler"),
	}
}

// NextSlot returns the first hh:minute strictly after now in loc.
func NextSlot(now time.Time, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	slot := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), minute, 0, 0, loc)
	if !slot.After(local) {
		slot = slot.Add(time.Hour)
	}
	return slot
}

func (s *Scheduler) untilNext() time.Duration {
	now := s.clock.Now()
	d := NextSlot(now, s.minute, s.loc).Sub(now)
	if d < 0 {
		d = 0
	}
	return d
}

// Run blocks until ctx is cancelled, firing one run per slot. A failed run
// is logged; the next slot still fires.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := s.clock.NewTimer(s.untilNext())
	defer timer.Stop()

	s.logger.Info().Int("minute", s.minute).Str("timezone", s.loc.String()).Msg("acquisition scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("acquisition scheduler stopping")
			return nil
		case <-timer.C():
			summary, err := s.RunOnce(ctx, "", "scheduled")
			switch {
			case errors.Is(err, ErrRunLocked):
				s.logger.Info().Msg("slot skipped, run lock held elsewhere")
			case err != nil:
				s.logger.Error().Err(err).Msg("scheduled acquisition run failed")
			}
			if s.OnRun != nil {
				s.OnRun(summary, err)
			}
			timer.Reset(s.untilNext())
		}
	}
}

// RunOnce executes a single run under the run lock, if one is configured.
func (s *Scheduler) RunOnce(ctx context.Context, date, trigger string) (*RunSummary, error) {
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx)
		if err != nil {
			schedulerSkips.WithLabelValues("lock_error").Inc()
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			schedulerSkips.WithLabelValues("locked").Inc()
			return nil, ErrRunLocked
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn().Err(err).Msg("release run lock")
			}
		}()
	}
	return s.runner.Run(ctx, date, trigger)
}
