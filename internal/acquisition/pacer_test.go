// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package acquisition

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/courtrec/internal/booking"
)

type recordingSleep struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.calls = append(r.calls, d)
	r.mu.Unlock()
	return ctx.Err()
}

func TestIntervalPacer_FirstDispatchImmediate(t *testing.T) {
	rec := &recordingSleep{}
	p := NewIntervalPacer(5*time.Second, WithSleep(rec.sleep))

	require.NoError(t, p.Wait(context.Background()))
	assert.Empty(t, rec.calls)

	require.NoError(t, p.Wait(context.Background()))
	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, rec.calls)
}

func TestIntervalPacer_FullDelayAfterLongDispatch(t *testing.T) {
	p := NewIntervalPacer(60 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx))
	time.Sleep(150 * time.Millisecond) // dispatch longer than the interval

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestIntervalPacer_Cancelled(t *testing.T) {
	p := NewIntervalPacer(time.Hour)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)
}

func TestIntervalPacer_ZeroDisables(t *testing.T) {
	rec := &recordingSleep{}
	p := NewIntervalPacer(0, WithSleep(rec.sleep))
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Empty(t, rec.calls)
}

func TestNoPacing(t *testing.T) {
	assert.NoError(t, NoPacing{}.Wait(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NoPacing{}.Wait(ctx), context.Canceled)
}

func TestDriver_RestsBetweenSlowDispatches(t *testing.T) {
	const interval = 50 * time.Millisecond
	src := &staticSource{bookings: []booking.Booking{{ID: 1, EndTime: "10:00"}, {ID: 2, EndTime: "11:00"}}}

	var (
		mu     sync.Mutex
		starts []time.Time
		ends   []time.Time
	)
	dl := new(MockDownloader)
	dl.On("AutoDownload", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
			time.Sleep(3 * interval)
			mu.Lock()
			ends = append(ends, time.Now())
			mu.Unlock()
		}).
		Return(Result{}, nil)

	_, err := newTestDriver(src, dl, NewIntervalPacer(interval), "").Run(context.Background(), "2025-06-14", "")
	require.NoError(t, err)

	require.Len(t, starts, 2)
	require.Len(t, ends, 2)
	assert.GreaterOrEqual(t, starts[1].Sub(ends[0]), interval)
}
