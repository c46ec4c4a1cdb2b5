// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package acquisition

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/ManuGH/courtrec/internal/booking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) AutoDownload(ctx context.Context, bookingID int64) (Result, error) {
	args := m.Called(ctx, bookingID)
	return args.Get(0).(Result), args.Error(1)
}

type staticSource struct {
	bookings []booking.Booking
	err      error
	dates    []string
}

func (s *staticSource) BookingsForDate(_ context.Context, date string) ([]booking.Booking, error) {
	s.dates = append(s.dates, date)
	return s.bookings, s.err
}

type countingPacer struct {
	mu    sync.Mutex
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.waits++
	p.mu.Unlock()
	return ctx.Err()
}

var (
	madrid, _ = time.LoadLocation("Europe/Madrid")
	// 15:00 in Madrid on 2025-06-14
	fixedNow = time.Date(2025, 6, 14, 13, 0, 0, 0, time.UTC)
)

func newTestDriver(src booking.Lister, dl Downloader, pacer Pacer, summaryPath string) *Driver {
	return NewDriver(Deps{
		Source:          src,
		Downloader:      dl,
		Pacer:           pacer,
		Location:        madrid,
		Clock:           func() time.Time { return fixedNow },
		DispatchTimeout: time.Minute,
		SummaryPath:     summaryPath,
	})
}

func TestDriver_ScenarioA_DispatchesOnce(t *testing.T) {
	src := &staticSource{bookings: []booking.Booking{{ID: 1, CourtName: "Court 1", CustomerName: "Ana", EndTime: "14:00"}}}
	dl := new(MockDownloader)
	dl.On("AutoDownload", mock.Anything, int64(1)).Return(Result{Filename: "rec.mp4", FileSize: 42}, nil).Once()

	summary, err := newTestDriver(src, dl, NoPacing{}, "").Run(context.Background(), "", "")
	require.NoError(t, err)

	dl.AssertExpectations(t)
	dl.AssertNumberOfCalls(t, "AutoDownload", 1)
	assert.Equal(t, []string{"2025-06-14"}, src.dates, "empty date means today in the configured zone")
	assert.Equal(t, StateCompletedWithResults, summary.State)
	assert.Equal(t, "15:00", summary.Now)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, Outcome{BookingID: 1, Court: "Court 1", Customer: "Ana", Status: OutcomeSucceeded, Filename: "rec.mp4", FileSize: 42}, withoutDuration(summary.Outcomes[0]))
	assert.NotEmpty(t, summary.RunID)
}

func withoutDuration(o Outcome) Outcome {
	o.DurationMs = 0
	return o
}

func TestDriver_NothingEligible(t *testing.T) {
	src := &staticSource{bookings: []booking.Booking{
		{ID: 2, EndTime: "16:00"},
		{ID: 3, EndTime: "10:00", HasRecording: true},
		{ID: 4, EndTime: "??"},
	}}
	dl := new(MockDownloader)

	summary, err := newTestDriver(src, dl, NoPacing{}, "").Run(context.Background(), "2025-06-14", "manual")
	require.NoError(t, err)

	dl.AssertNotCalled(t, "AutoDownload", mock.Anything, mock.Anything)
	assert.Equal(t, StateCompletedNoWork, summary.State)
	assert.Equal(t, 3, summary.Seen)
	assert.Equal(t, 1, summary.SkippedNotEnded)
	assert.Equal(t, 1, summary.SkippedHasRecording)
	assert.Equal(t, 1, summary.SkippedInvalid)
	assert.Zero(t, summary.Attempted)
}

func TestDriver_HasRecordingNeverDispatched(t *testing.T) {
	src := &staticSource{bookings: []booking.Booking{
		{ID: 10, EndTime: "08:00", HasRecording: true},
		{ID: 11, EndTime: "09:00"},
		{ID: 12, EndTime: "00:00", HasRecording: true},
	}}
	dl := new(MockDownloader)
	dl.On("AutoDownload", mock.Anything, int64(11)).Return(Result{}, nil)

	// A past date makes every booking "ended".
	summary, err := newTestDriver(src, dl, NoPacing{}, "").Run(context.Background(), "2025-06-01", "")
	require.NoError(t, err)

	dl.AssertNotCalled(t, "AutoDownload", mock.Anything, int64(10))
	dl.AssertNotCalled(t, "AutoDownload", mock.Anything, int64(12))
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, "23:59", summary.Now)
}

func TestDriver_FailureDoesNotAbortQueue(t *testing.T) {
	src := &staticSource{bookings: []booking.Booking{
		{ID: 1, EndTime: "10:00"},
		{ID: 2, EndTime: "11:00"},
		{ID: 3, EndTime: "12:00"},
	}}
	var order []int64
	dl := new(MockDownloader)
	record := func(args mock.Arguments) { order = append(order, args.Get(1).(int64)) }
	dl.On("AutoDownload", mock.Anything, int64(1)).Run(record).Return(Result{Filename: "1.mp4"}, nil)
	dl.On("AutoDownload", mock.Anything, int64(2)).Run(record).Return(Result{}, &DownloadError{BookingID: 2, Reason: "not_found", Message: "no recording yet"})
	dl.On("AutoDownload", mock.Anything, int64(3)).Run(record).Return(Result{Filename: "3.mp4"}, nil)

	summary, err := newTestDriver(src, dl, NoPacing{}, "").Run(context.Background(), "2025-06-14", "")
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, order, "dispatch follows source order")
	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, OutcomeFailed, summary.Outcomes[1].Status)
	assert.Equal(t, "not_found", summary.Outcomes[1].Reason)
	assert.Contains(t, summary.Outcomes[1].Error, "no recording yet")
	assert.Equal(t, StateCompletedWithResults, summary.State)
}

func TestDriver_SourceUnavailableIsFatal(t *testing.T) {
	src := &staticSource{err: errors.New("connection refused")}
	dl := new(MockDownloader)
	path := filepath.Join(t.TempDir(), "last_run.json")

	summary, err := newTestDriver(src, dl, NoPacing{}, path).Run(context.Background(), "2025-06-14", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, booking.ErrSourceUnavailable)
	dl.AssertNotCalled(t, "AutoDownload", mock.Anything, mock.Anything)
	require.NotNil(t, summary)
	assert.Equal(t, StateFailedFatal, summary.State)

	persisted, err := ReadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, StateFailedFatal, persisted.State)
	assert.Contains(t, persisted.Error, "connection refused")
}

func TestDriver_InvalidDateIsFatal(t *testing.T) {
	src := &staticSource{}
	summary, err := newTestDriver(src, new(MockDownloader), NoPacing{}, "").Run(context.Background(), "14/06/2025", "")
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.Equal(t, StateFailedFatal, summary.State)
	assert.Empty(t, src.dates)
}

func TestDriver_PacesEveryDispatch(t *testing.T) {
	src := &staticSource{bookings: []booking.Booking{{ID: 1, EndTime: "10:00"}, {ID: 2, EndTime: "11:00"}, {ID: 3, EndTime: "12:00"}}}
	dl := new(MockDownloader)
	dl.On("AutoDownload", mock.Anything, mock.Anything).Return(Result{}, nil)
	pacer := &countingPacer{}

	_, err := newTestDriver(src, dl, pacer, "").Run(context.Background(), "2025-06-14", "")
	require.NoError(t, err)
	assert.Equal(t, 3, pacer.waits)
}

func TestDriver_CancellationStopsQueue(t *testing.T) {
	src := &staticSource{bookings: []booking.Booking{{ID: 1, EndTime: "10:00"}, {ID: 2, EndTime: "11:00"}}}
	ctx, cancel := context.WithCancel(context.Background())
	dl := new(MockDownloader)
	dl.On("AutoDownload", mock.Anything, int64(1)).Run(func(mock.Arguments) { cancel() }).Return(Result{}, nil)

	summary, err := newTestDriver(src, dl, NoPacing{}, "").Run(ctx, "2025-06-14", "")
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Equal(t, 1, summary.Attempted)
	dl.AssertNotCalled(t, "AutoDownload", mock.Anything, int64(2))
}

func TestDriver_DispatchTimeoutBoundsEachBooking(t *testing.T) {
	src := &staticSource{bookings: []booking.Booking{{ID: 1, EndTime: "10:00"}, {ID: 2, EndTime: "11:00"}}}
	dl := new(MockDownloader)
	dl.On("AutoDownload", mock.Anything, int64(1)).Return(Result{}, context.DeadlineExceeded).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, time.Second)
	})
	dl.On("AutoDownload", mock.Anything, int64(2)).Return(Result{}, nil)

	d := newTestDriver(src, dl, NoPacing{}, "")
	d.deps.DispatchTimeout = 50 * time.Millisecond
	summary, err := d.Run(context.Background(), "2025-06-14", "")
	require.NoError(t, err)
	assert.Equal(t, ReasonDispatchTimeout, summary.Outcomes[0].Reason)
	assert.Equal(t, OutcomeSucceeded, summary.Outcomes[1].Status)
}

func TestDriver_WritesSummary(t *testing.T) {
	src := &staticSource{bookings: []booking.Booking{{ID: 1, CourtName: "Court 1", EndTime: "10:00"}}}
	dl := new(MockDownloader)
	dl.On("AutoDownload", mock.Anything, int64(1)).Return(Result{Filename: "a.mp4", FileSize: 9}, nil)
	path := filepath.Join(t.TempDir(), "nested", "last_run.json")

	summary, err := newTestDriver(src, dl, NoPacing{}, path).Run(context.Background(), "2025-06-14", "scheduled")
	require.NoError(t, err)

	persisted, err := ReadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, persisted.RunID)
	assert.Equal(t, "scheduled", persisted.Trigger)
	assert.Equal(t, summary.Outcomes, persisted.Outcomes)
}
