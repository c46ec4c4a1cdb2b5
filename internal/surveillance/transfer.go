// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surveillance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	xglog "github.com/ManuGH/courtrec/internal/log"
)

const (
	apiCopyMove = "SYNO.FileStation.CopyMove"
	apiFileList = "SYNO.FileStation.List"

	DefaultPollInterval = time.Second
	DefaultMaxPolls     = 120
)

// CopyPhase is the coarse state of a copy task as seen by this process.
type CopyPhase int

const (
	PhaseStarted CopyPhase = iota
	PhasePolling
	PhaseFinished
	PhaseTimedOut
	PhaseFailed
)

func (p CopyPhase) String() string {
	switch p {
	case PhaseStarted:
		return "started"
	case PhasePolling:
		return "polling"
	case PhaseFinished:
		return "finished"
	case PhaseTimedOut:
		return "timed_out"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// CopyState is a point in the copy state machine. Attempt counts status polls.
type CopyState struct {
	Phase   CopyPhase
	Attempt int
	Err     error
}

// Terminal reports whether no further transitions are possible.
func (s CopyState) Terminal() bool {
	return s.Phase == PhaseFinished || s.Phase == PhaseTimedOut || s.Phase == PhaseFailed
}

// PollResult is the outcome of one status query.
type PollResult struct {
	Finished bool
	Progress float64
	Err      error
}

// CopyPolicy bounds the polling loop.
type CopyPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultCopyPolicy polls once a second for at most two minutes.
func DefaultCopyPolicy() CopyPolicy {
	return CopyPolicy{Interval: DefaultPollInterval, MaxAttempts: DefaultMaxPolls}
}

func (p CopyPolicy) normalized() CopyPolicy {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxPolls
	}
	return p
}

// Step applies one poll result. Terminal states are absorbing. An error
// wrapping ErrCopy fails the task; any other error counts as an unfinished
// poll and consumes an attempt.
func Step(policy CopyPolicy, s CopyState, r PollResult) CopyState {
	if s.Terminal() {
		return s
	}
	policy = policy.normalized()
	attempt := s.Attempt + 1

	switch {
	case r.Err != nil && errors.Is(r.Err, ErrCopy):
		return CopyState{Phase: PhaseFailed, Attempt: attempt, Err: r.Err}
	case r.Err == nil && r.Finished:
		return CopyState{Phase: PhaseFinished, Attempt: attempt}
	case attempt >= policy.MaxAttempts:
		return CopyState{Phase: PhaseTimedOut, Attempt: attempt, Err: r.Err}
	default:
		return CopyState{Phase: PhasePolling, Attempt: attempt, Err: r.Err}
	}
}

// Sleeper waits between polls.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

type wallSleeper struct{}

func (wallSleeper) Sleep(ctx context.Context, d time.Duration) error { return sleepWithContext(ctx, d) }

// FileInfo describes a file on the external filesystem.
type FileInfo struct {
	Path string
	Name string
	Size int64
}

// Transfer copies files inside the external filesystem namespace.
type Transfer struct {
	sessions *SessionManager
	policy   CopyPolicy
	sleeper  Sleeper
}

// TransferOption customizes a Transfer.
type TransferOption func(*Transfer)

// WithSleeper replaces the wall-clock sleeper.
func WithSleeper(s Sleeper) TransferOption {
	return func(t *Transfer) {
		if s != nil {
			t.sleeper = s
		}
	}
}

// NewTransfer creates a transfer orchestrator under the transfer session.
func NewTransfer(sessions *SessionManager, policy CopyPolicy, opts ...TransferOption) *Transfer {
	t := &Transfer{
		sessions: sessions,
		policy:   policy.normalized(),
		sleeper:  wallSleeper{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Policy returns the effective polling policy.
func (t *Transfer) Policy() CopyPolicy { return t.policy }

// Copy starts a copy of src into destFolder and blocks until the task
// finishes, fails, or the poll budget is spent. Source files are never
// removed and existing targets are overwritten. On ErrTimeout the remote task
// may still be running; it is not cancelled.
func (t *Transfer) Copy(ctx context.Context, src, destFolder string) error {
	if !path.IsAbs(src) {
		return fmt.Errorf("copy source %q: must be absolute", src)
	}
	if !path.IsAbs(destFolder) {
		return fmt.Errorf("copy destination %q: must be absolute", destFolder)
	}

	logger := xglog.WithComponentFromContext(ctx, "surveillance")

	taskID, err := t.start(ctx, src, destFolder)
	if err != nil {
		return err
	}
	logger.Info().
		Str(xglog.FieldEvent, "copy.started").
		Str(xglog.FieldTaskID, taskID).
		Str(xglog.FieldSourcePath, src).
		Str(xglog.FieldDestPath, destFolder).
		Msg("copy task started")

	state := CopyState{Phase: PhaseStarted}
	for !state.Terminal() {
		if err := t.sleeper.Sleep(ctx, t.policy.Interval); err != nil {
			return err
		}
		res := t.poll(ctx, taskID)
		if res.Err != nil && !errors.Is(res.Err, ErrCopy) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Debug().Err(res.Err).Str(xglog.FieldTaskID, taskID).Int(xglog.FieldAttempt, state.Attempt+1).Msg("copy status poll failed")
		}
		state = Step(t.policy, state, res)
	}

	copyPolls.Observe(float64(state.Attempt))
	copyOutcomes.WithLabelValues(state.Phase.String()).Inc()

	switch state.Phase {
	case PhaseFinished:
		logger.Info().
			Str(xglog.FieldEvent, "copy.finished").
			Str(xglog.FieldTaskID, taskID).
			Int("polls", state.Attempt).
			Msg("copy task finished")
		return nil
	case PhaseTimedOut:
		return &APIError{
			Sentinel: ErrTimeout,
			API:      apiCopyMove,
			Method:   "status",
			Err:      fmt.Errorf("task %s unfinished after %d polls", taskID, state.Attempt),
		}
	default:
		return state.Err
	}
}

func (t *Transfer) start(ctx context.Context, src, destFolder string) (string, error) {
	paths, err := json.Marshal([]string{src})
	if err != nil {
		return "", fmt.Errorf("encode copy path: %w", err)
	}

	var data struct {
		TaskID string `json:"taskid"`
	}
	err = t.sessions.Do(ctx, SessionTransfer, func(s Session) error {
		params := url.Values{}
		params.Set("path", string(paths))
		params.Set("dest_folder_path", destFolder)
		params.Set("overwrite", "true")
		params.Set("remove_src", "false")
		params.Set("_sid", s.Token)
		return t.sessions.client.call(ctx, apiRequest{CGI: cgiEntry, API: apiCopyMove, Method: "start", Version: 3, Params: params, NoRetry: true}, &data)
	})
	if err != nil {
		return "", asCopyError(err)
	}
	if strings.TrimSpace(data.TaskID) == "" {
		return "", &APIError{Sentinel: ErrCopy, API: apiCopyMove, Method: "start", Err: errors.New("empty task id")}
	}
	return data.TaskID, nil
}

func (t *Transfer) poll(ctx context.Context, taskID string) PollResult {
	var data struct {
		Finished bool    `json:"finished"`
		Progress float64 `json:"progress"`
	}
	err := t.sessions.Do(ctx, SessionTransfer, func(s Session) error {
		params := url.Values{}
		params.Set("taskid", taskID)
		params.Set("_sid", s.Token)
		return t.sessions.client.call(ctx, apiRequest{CGI: cgiEntry, API: apiCopyMove, Method: "status", Version: 3, Params: params}, &data)
	})
	if err != nil {
		return PollResult{Err: asCopyError(err)}
	}
	return PollResult{Finished: data.Finished, Progress: data.Progress}
}

// Stat reads size and name of a file on the external filesystem.
func (t *Transfer) Stat(ctx context.Context, filePath string) (FileInfo, error) {
	paths, err := json.Marshal([]string{filePath})
	if err != nil {
		return FileInfo{}, fmt.Errorf("encode info path: %w", err)
	}

	var data struct {
		Files []struct {
			Path       string `json:"path"`
			Name       string `json:"name"`
			Code       int    `json:"code"`
			Additional struct {
				Size int64 `json:"size"`
			} `json:"additional"`
		} `json:"files"`
	}
	err = t.sessions.Do(ctx, SessionTransfer, func(s Session) error {
		params := url.Values{}
		params.Set("path", string(paths))
		params.Set("additional", `["size"]`)
		params.Set("_sid", s.Token)
		return t.sessions.client.call(ctx, apiRequest{CGI: cgiEntry, API: apiFileList, Method: "getinfo", Version: 2, Params: params}, &data)
	})
	if err != nil {
		return FileInfo{}, asCopyError(err)
	}
	if len(data.Files) == 0 || data.Files[0].Code != 0 {
		code := 0
		if len(data.Files) > 0 {
			code = data.Files[0].Code
		}
		return FileInfo{}, &APIError{Sentinel: ErrCopy, API: apiFileList, Method: "getinfo", Code: code, Err: fmt.Errorf("copied file %s not present", filePath)}
	}

	f := data.Files[0]
	info := FileInfo{Path: f.Path, Name: f.Name, Size: f.Additional.Size}
	if info.Path == "" {
		info.Path = filePath
	}
	if info.Name == "" {
		info.Name = path.Base(info.Path)
	}
	return info, nil
}

// asCopyError reclassifies an explicit rejection by the file service as a
// copy failure. Transport problems and auth failures keep their sentinel.
func asCopyError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Sentinel == ErrRequestFailed {
		return &APIError{Sentinel: ErrCopy, API: apiErr.API, Method: apiErr.Method, Code: apiErr.Code, Status: apiErr.Status, Err: apiErr.Err}
	}
	return err
}
