// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package acquisition

import (
	"context"
	"sync"
	"time"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// IntervalPacer rests for a fixed interval between consecutive dispatches.
// The first Wait returns immediately; every later Wait sleeps the full
// interval no matter how long the previous dispatch took.
type IntervalPacer struct {
	interval time.Duration
	sleep    SleepFunc

	mu      sync.Mutex
	started bool
}

// PacerOption customizes an IntervalPacer.
type PacerOption func(*IntervalPacer)

// WithSleep replaces the timer-based sleep.
func WithSleep(fn SleepFunc) PacerOption {
	return func(p *IntervalPacer) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// NewIntervalPacer creates a pacer. A non-positive interval disables pacing.
func NewIntervalPacer(interval time.Duration, opts ...PacerOption) *IntervalPacer {
	p := &IntervalPacer{interval: interval, sleep: sleepContext}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *IntervalPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	first := !p.started
	p.started = true
	p.mu.Unlock()

	if first || p.interval <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, p.interval)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoPacing never waits.
type NoPacing struct{}

func (NoPacing) Wait(ctx context.Context) error { return ctx.Err() }
