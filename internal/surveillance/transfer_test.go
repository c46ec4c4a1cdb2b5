// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surveillance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep(t *testing.T) {
	policy := CopyPolicy{Interval: time.Second, MaxAttempts: 3}
	transient := errors.New("connection reset")
	copyErr := &APIError{Sentinel: ErrCopy, API: apiCopyMove, Method: "status", Code: 1000}

	tests := []struct {
		name  string
		state CopyState
		poll  PollResult
		want  CopyState
	}{
		{"first poll unfinished", CopyState{Phase: PhaseStarted}, PollResult{}, CopyState{Phase: PhasePolling, Attempt: 1}},
		{"finished", CopyState{Phase: PhasePolling, Attempt: 1}, PollResult{Finished: true}, CopyState{Phase: PhaseFinished, Attempt: 2}},
		{"transient error consumes attempt", CopyState{Phase: PhasePolling, Attempt: 1}, PollResult{Err: transient}, CopyState{Phase: PhasePolling, Attempt: 2, Err: transient}},
		{"budget exhausted", CopyState{Phase: PhasePolling, Attempt: 2}, PollResult{}, CopyState{Phase: PhaseTimedOut, Attempt: 3}},
		{"finished on last attempt wins", CopyState{Phase: PhasePolling, Attempt: 2}, PollResult{Finished: true}, CopyState{Phase: PhaseFinished, Attempt: 3}},
		{"explicit failure", CopyState{Phase: PhasePolling, Attempt: 1}, PollResult{Err: copyErr}, CopyState{Phase: PhaseFailed, Attempt: 2, Err: copyErr}},
		{"finished is absorbing", CopyState{Phase: PhaseFinished, Attempt: 2}, PollResult{Err: copyErr}, CopyState{Phase: PhaseFinished, Attempt: 2}},
		{"timed out is absorbing", CopyState{Phase: PhaseTimedOut, Attempt: 3}, PollResult{Finished: true}, CopyState{Phase: PhaseTimedOut, Attempt: 3}},
		{"failed is absorbing", CopyState{Phase: PhaseFailed, Attempt: 1, Err: copyErr}, PollResult{Finished: true}, CopyState{Phase: PhaseFailed, Attempt: 1, Err: copyErr}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Step(policy, tt.state, tt.poll))
		})
	}
}

func TestStep_AlwaysTerminatesWithinBudget(t *testing.T) {
	for _, max := range []int{1, 2, 10, 120} {
		policy := CopyPolicy{Interval: time.Second, MaxAttempts: max}
		s := CopyState{Phase: PhaseStarted}
		steps := 0
		for !s.Terminal() {
			s = Step(policy, s, PollResult{})
			steps++
			require.LessOrEqual(t, steps, max)
		}
		assert.Equal(t, PhaseTimedOut, s.Phase)
		assert.Equal(t, max, steps)
	}
}

func seedRecording(m *MockServer) RecordingMatch {
	rec := RecordingMatch{Folder: "/volume1/surveillance", Path: "Court1/20250614-1800.mp4", SizeBytes: 4096}
	m.SetRecordings("7", rec)
	return rec
}

func TestCopy_FinishesAndKeepsSource(t *testing.T) {
	m := newMock(t)
	rec := seedRecording(m)
	m.SetFinishAfter(3)
	sleeper := &countingSleeper{}
	tr := NewTransfer(newTestSessions(t, m), DefaultCopyPolicy(), WithSleeper(sleeper))

	err := tr.Copy(context.Background(), rec.SourcePath(), "/video/courtrec/2025-06-14")
	require.NoError(t, err)
	assert.Equal(t, 3, sleeper.calls)
	assert.Equal(t, 3*time.Second, sleeper.total)

	starts := m.Calls(apiCopyMove, "start")
	require.Len(t, starts, 1)
	assert.Equal(t, `["/volume1/surveillance/Court1/20250614-1800.mp4"]`, starts[0].Params["path"])
	assert.Equal(t, "/video/courtrec/2025-06-14", starts[0].Params["dest_folder_path"])
	assert.Equal(t, "true", starts[0].Params["overwrite"])
	assert.Equal(t, "false", starts[0].Params["remove_src"])
	assert.Equal(t, 1, m.Logins("FileStation"))
	assert.Zero(t, m.Logins("SurveillanceStation"))

	_, ok := m.FileSize(rec.SourcePath())
	assert.True(t, ok, "source is never removed")

	info, err := tr.Stat(context.Background(), "/video/courtrec/2025-06-14/20250614-1800.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), info.Size)
	assert.Equal(t, "20250614-1800.mp4", info.Name)
}

func TestCopy_TimesOutAfterMaxPolls(t *testing.T) {
	m := newMock(t)
	rec := seedRecording(m)
	m.SetFinishAfter(-1)
	sleeper := &countingSleeper{}
	tr := NewTransfer(newTestSessions(t, m), CopyPolicy{Interval: time.Second, MaxAttempts: 120}, WithSleeper(sleeper))

	err := tr.Copy(context.Background(), rec.SourcePath(), "/video/out")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Len(t, m.Calls(apiCopyMove, "status"), 120)
	assert.Equal(t, 120, sleeper.calls)
	assert.Equal(t, 120*time.Second, sleeper.total, "bounded wait of about two minutes")
}

func TestCopy_ExplicitFailureIsCopyError(t *testing.T) {
	m := newMock(t)
	rec := seedRecording(m)
	m.SetFailCopy(true)
	tr := NewTransfer(newTestSessions(t, m), DefaultCopyPolicy(), WithSleeper(&countingSleeper{}))

	err := tr.Copy(context.Background(), rec.SourcePath(), "/video/out")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCopy)
	assert.Equal(t, 1000, CodeOf(err))
	assert.Empty(t, m.Calls(apiCopyMove, "status"))
}

func TestCopy_MissingSourceIsCopyError(t *testing.T) {
	m := newMock(t)
	tr := NewTransfer(newTestSessions(t, m), DefaultCopyPolicy(), WithSleeper(&countingSleeper{}))

	err := tr.Copy(context.Background(), "/volume1/surveillance/missing.mp4", "/video/out")
	assert.ErrorIs(t, err, ErrCopy)
}

func TestCopy_TransientPollErrorsConsumeAttempts(t *testing.T) {
	m := newMock(t)
	rec := seedRecording(m)
	m.SetFinishAfter(1)
	m.FailStatusPolls(2)
	tr := NewTransfer(newTestSessions(t, m), CopyPolicy{Interval: time.Second, MaxAttempts: 5}, WithSleeper(&countingSleeper{}))

	require.NoError(t, tr.Copy(context.Background(), rec.SourcePath(), "/video/out"))
	assert.Len(t, m.Calls(apiCopyMove, "status"), 3)

	m.FailStatusPolls(10)
	err := tr.Copy(context.Background(), rec.SourcePath(), "/video/out")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCopy_ReauthenticatesTransferSession(t *testing.T) {
	m := newMock(t)
	rec := seedRecording(m)
	m.SetFinishAfter(1)
	tr := NewTransfer(newTestSessions(t, m), DefaultCopyPolicy(), WithSleeper(&countingSleeper{}))

	require.NoError(t, tr.Copy(context.Background(), rec.SourcePath(), "/video/out"))
	m.ExpireSessions("FileStation", 1)
	require.NoError(t, tr.Copy(context.Background(), rec.SourcePath(), "/video/out"))
	assert.Equal(t, 2, m.Logins("FileStation"))
}

func TestCopy_HonoursCancellation(t *testing.T) {
	m := newMock(t)
	rec := seedRecording(m)
	m.SetFinishAfter(-1)
	ctx, cancel := context.WithCancel(context.Background())
	polls := 0
	sleeper := SleeperFunc(func(ctx context.Context, _ time.Duration) error {
		polls++
		if polls == 3 {
			cancel()
		}
		return ctx.Err()
	})
	tr := NewTransfer(newTestSessions(t, m), DefaultCopyPolicy(), WithSleeper(sleeper))

	err := tr.Copy(ctx, rec.SourcePath(), "/video/out")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, m.Calls(apiCopyMove, "status"), 2)
}

func TestCopy_RejectsRelativePaths(t *testing.T) {
	m := newMock(t)
	tr := NewTransfer(newTestSessions(t, m), DefaultCopyPolicy())

	assert.Error(t, tr.Copy(context.Background(), "relative.mp4", "/video/out"))
	assert.Error(t, tr.Copy(context.Background(), "/abs.mp4", "video/out"))
	assert.Empty(t, m.Calls("", ""))
}

func TestStat_MissingFileIsCopyError(t *testing.T) {
	m := newMock(t)
	tr := NewTransfer(newTestSessions(t, m), DefaultCopyPolicy())

	_, err := tr.Stat(context.Background(), "/video/out/nothing.mp4")
	assert.ErrorIs(t, err, ErrCopy)
	assert.Equal(t, 408, CodeOf(err))
}
